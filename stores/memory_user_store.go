package stores

import (
	"fmt"
	"sync"

	ma "github.com/mailauth-io/mailauth"
)

// MemoryUserStore is the process-lifetime implementation of
// mailauth.UserStore: a user registry indexed by record ID and by each
// identity attribute. A single RWMutex covers every index, so the
// check-then-insert in CreateUser is one critical section and no two
// concurrent creates can claim the same key.
type MemoryUserStore struct {
	mu            sync.RWMutex
	byID          map[string]*ma.User
	byFederatedID map[string]*ma.User
	byEmail       map[string]*ma.User
	byUsername    map[string]*ma.User
}

func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{
		byID:          map[string]*ma.User{},
		byFederatedID: map[string]*ma.User{},
		byEmail:       map[string]*ma.User{},
		byUsername:    map[string]*ma.User{},
	}
}

func (s *MemoryUserStore) GetUserByID(id string) (*ma.User, error) {
	return s.get(s.byID, id)
}

func (s *MemoryUserStore) GetUserByFederatedID(federatedID string) (*ma.User, error) {
	return s.get(s.byFederatedID, federatedID)
}

func (s *MemoryUserStore) GetUserByEmail(email string) (*ma.User, error) {
	return s.get(s.byEmail, email)
}

func (s *MemoryUserStore) GetUserByUsername(username string) (*ma.User, error) {
	return s.get(s.byUsername, username)
}

func (s *MemoryUserStore) get(index map[string]*ma.User, key string) (*ma.User, error) {
	if key == "" {
		return nil, ma.ErrUserNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := index[key]
	if !ok {
		return nil, ma.ErrUserNotFound
	}
	return user, nil
}

// CreateUser inserts a user, enforcing uniqueness of each populated
// identity attribute. The returned error wraps mailauth.ErrUserExists on
// any collision, naming the colliding attribute.
func (s *MemoryUserStore) CreateUser(user *ma.User) error {
	if user.ID == "" {
		return fmt.Errorf("user has no ID")
	}
	if user.FederatedID == "" && user.Email == "" && user.Username == "" {
		return fmt.Errorf("user has no identity attribute")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[user.ID]; ok {
		return fmt.Errorf("%w: id %s", ma.ErrUserExists, user.ID)
	}
	if user.FederatedID != "" {
		if _, ok := s.byFederatedID[user.FederatedID]; ok {
			return fmt.Errorf("%w: federated id %s", ma.ErrUserExists, user.FederatedID)
		}
	}
	if user.Email != "" {
		if _, ok := s.byEmail[user.Email]; ok {
			return fmt.Errorf("%w: email %s", ma.ErrUserExists, user.Email)
		}
	}
	if user.Username != "" {
		if _, ok := s.byUsername[user.Username]; ok {
			return fmt.Errorf("%w: username %s", ma.ErrUserExists, user.Username)
		}
	}

	s.byID[user.ID] = user
	if user.FederatedID != "" {
		s.byFederatedID[user.FederatedID] = user
	}
	if user.Email != "" {
		s.byEmail[user.Email] = user
	}
	if user.Username != "" {
		s.byUsername[user.Username] = user
	}
	return nil
}
