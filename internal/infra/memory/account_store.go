package memory

import (
	"context"
	"sync"
	"time"

	"trivia-game-service/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

// AccountStore is an in-memory implementation of app.AccountStore. It applies
// the same bcrypt hashing contract as the Postgres store.
type AccountStore struct {
	mu       sync.RWMutex
	nextID   int64
	byName   map[string]*domain.Player
	clock    func() time.Time
	hashCost int
}

func NewAccountStore() *AccountStore {
	return &AccountStore{
		nextID:   1,
		byName:   make(map[string]*domain.Player),
		clock:    time.Now,
		hashCost: bcrypt.MinCost,
	}
}

func (s *AccountStore) Register(_ context.Context, username, password string) (domain.Player, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return domain.Player{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byName[username]; exists {
		return domain.Player{}, domain.ErrDuplicateUsername
	}
	player := &domain.Player{
		ID:           s.nextID,
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    s.clock().UTC(),
	}
	s.nextID++
	s.byName[username] = player
	return *player, nil
}

func (s *AccountStore) Authenticate(_ context.Context, username, password string) (domain.Player, error) {
	s.mu.RLock()
	player, ok := s.byName[username]
	s.mu.RUnlock()
	if !ok {
		return domain.Player{}, domain.ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(player.PasswordHash), []byte(password)) != nil {
		return domain.Player{}, domain.ErrInvalidCredentials
	}
	return *player, nil
}

// Exists reports whether a player id is known; used by the in-memory event
// store for referential integrity.
func (s *AccountStore) Exists(playerID int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.byName {
		if p.ID == playerID {
			return true
		}
	}
	return false
}
