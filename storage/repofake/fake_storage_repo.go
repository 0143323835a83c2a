package storagerepofake

import (
	"sort"
	"sync"

	"github.com/jrsteele09/go-session-client/storage"
)

var _ storage.Repo = (*FakeStorageRepo)(nil)

// FakeStorageRepo keeps values in memory. It doubles as the session storage
// area, which never outlives the process.
type FakeStorageRepo struct {
	values map[string]string
	lock   sync.RWMutex
}

func NewFakeStorageRepo() *FakeStorageRepo {
	return &FakeStorageRepo{
		values: make(map[string]string),
	}
}

func (r *FakeStorageRepo) Get(key string) (string, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	v, ok := r.values[key]
	if !ok {
		return "", storage.ErrNotFound
	}
	return v, nil
}

func (r *FakeStorageRepo) Set(key, value string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.values[key] = value
	return nil
}

func (r *FakeStorageRepo) Delete(key string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	delete(r.values, key)
	return nil
}

func (r *FakeStorageRepo) Keys() ([]string, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	keys := make([]string, 0, len(r.values))
	for k := range r.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}
