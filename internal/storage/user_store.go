package storage

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/thanhnp/coin-tracker/internal/models"
)

// UserStore handles user account storage operations
type UserStore struct {
	db *PebbleDB
	mu sync.Mutex // serializes the username check-and-write
}

// NewUserStore creates a new UserStore
func NewUserStore(db *PebbleDB) *UserStore {
	return &UserStore{db: db}
}

// userStored mirrors models.User with the password hash serialized
type userStored struct {
	Username     string `json:"username"`
	PasswordHash string `json:"password_hash"`
	CreatedAt    int64  `json:"created_at"`
}

// Create stores a new user. It returns models.ErrUserExists if the username is taken.
func (s *UserStore) Create(u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	exists, err := s.db.Has(CFUsers, []byte(u.Username))
	if err != nil {
		return err
	}
	if exists {
		return models.ErrUserExists
	}

	data, err := json.Marshal(userStored{
		Username:     u.Username,
		PasswordHash: u.PasswordHash,
		CreatedAt:    u.CreatedAt.UnixNano(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}
	return s.db.Put(CFUsers, []byte(u.Username), data)
}

// Get retrieves a user by username. A missing user returns nil, nil.
func (s *UserStore) Get(username string) (*models.User, error) {
	data, err := s.db.Get(CFUsers, []byte(username))
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}

	var stored userStored
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user: %w", err)
	}
	return &models.User{
		Username:     stored.Username,
		PasswordHash: stored.PasswordHash,
		CreatedAt:    time.Unix(0, stored.CreatedAt).UTC(),
	}, nil
}
