package fakeuserrepo

import (
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-session-client/users"
)

var _ users.UserRepo = (*FakeUserRepo)(nil)

// FakeUserRepo keeps users in memory. It stores and returns copies, so
// changes only land through Upsert or SetLoggedIn.
type FakeUserRepo struct {
	users    map[string]*users.User
	emailIDs map[string]string // email to user id
	lock     sync.RWMutex
}

func NewFakeUserRepo() *FakeUserRepo {
	return &FakeUserRepo{
		users:    make(map[string]*users.User),
		emailIDs: make(map[string]string),
	}
}

func (ur *FakeUserRepo) Upsert(user *users.User) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	email := users.NormaliseEmail(user.Email)
	stored := *user
	ur.users[user.ID] = &stored
	ur.emailIDs[email] = user.ID
	return nil
}

func (ur *FakeUserRepo) Delete(email string) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	email = users.NormaliseEmail(email)
	userID, ok := ur.emailIDs[email]
	if !ok {
		return users.ErrNotFound
	}
	delete(ur.emailIDs, email)
	delete(ur.users, userID)
	return nil
}

func (ur *FakeUserRepo) GetByEmail(email string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	id, ok := ur.emailIDs[users.NormaliseEmail(email)]
	if !ok {
		return nil, users.ErrNotFound
	}
	u := *ur.users[id]
	return &u, nil
}

func (ur *FakeUserRepo) GetByID(id string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	u, ok := ur.users[id]
	if !ok {
		return nil, users.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (ur *FakeUserRepo) List(offset, limit int) ([]*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	list := make([]*users.User, 0, len(ur.users))
	for _, v := range ur.users {
		u := *v
		list = append(list, &u)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].Email < list[j].Email
	})

	if offset >= len(list) {
		return []*users.User{}, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(list) {
		end = len(list)
	}
	return list[offset:end], nil
}

func (ur *FakeUserRepo) SetLoggedIn(email string, loggedIn bool) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	id, ok := ur.emailIDs[users.NormaliseEmail(email)]
	if !ok {
		return users.ErrNotFound
	}
	ur.users[id].LoggedIn = loggedIn
	return nil
}
