package sessions

import (
	"sync"
)

// Reader is the read-only view handed to UI code.
type Reader interface {
	State() State
	Subscribe() (<-chan State, func())
}

// Store holds the tab-local auth state. Only the refresher, the invalidator and
// the session manager hold a *Store; everything else gets a Reader.
type Store struct {
	mu          sync.RWMutex
	state       State
	subscribers map[int]chan State
	nextID      int
}

var _ Reader = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		subscribers: make(map[int]chan State),
	}
}

// State returns a copy of the current state.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyState(s.state)
}

// SetUser records an authenticated session.
func (s *Store) SetUser(session Session) {
	s.set(State{User: &session, IsAuthenticated: true})
}

// Clear resets the store to "no session".
func (s *Store) Clear() {
	s.set(State{})
}

// Subscribe returns a channel that receives the latest state after every
// change, starting with the current one. Slow readers only see the newest
// value. Call the returned func to unsubscribe.
func (s *Store) Subscribe() (<-chan State, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	ch := make(chan State, 1)
	ch <- copyState(s.state)
	s.subscribers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if c, ok := s.subscribers[id]; ok {
				delete(s.subscribers, id)
				close(c)
			}
		})
	}
}

func (s *Store) set(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = state
	for _, ch := range s.subscribers {
		publish(ch, copyState(state))
	}
}

// publish replaces any unread value so the channel never blocks the writer.
func publish(ch chan State, state State) {
	select {
	case <-ch:
	default:
	}
	ch <- state
}

func copyState(state State) State {
	if state.User == nil {
		return state
	}
	user := *state.User
	return State{User: &user, IsAuthenticated: state.IsAuthenticated}
}
