package stores

import (
	"sync"

	ma "github.com/mailauth-io/mailauth"
)

// MemoryCodeStore is the process-lifetime implementation of
// mailauth.CodeStore: one pending challenge per email, overwritten on
// re-issue. The store is safe for concurrent use, but it does not
// serialize a Get with a following Remove; OTPAuth owns that pairing.
type MemoryCodeStore struct {
	mu         sync.RWMutex
	challenges map[string]*ma.Challenge
}

func NewMemoryCodeStore() *MemoryCodeStore {
	return &MemoryCodeStore{challenges: map[string]*ma.Challenge{}}
}

func (s *MemoryCodeStore) Put(challenge *ma.Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.challenges[challenge.Email] = challenge
	return nil
}

func (s *MemoryCodeStore) Get(email string) (*ma.Challenge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	challenge, ok := s.challenges[email]
	if !ok {
		return nil, ma.ErrChallengeNotFound
	}
	return challenge, nil
}

func (s *MemoryCodeStore) Remove(email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.challenges, email)
	return nil
}
