package storage

import (
	"encoding/json"
	"fmt"

	"github.com/thanhnp/coin-tracker/internal/models"
)

// SyncStore handles sync state storage operations
type SyncStore struct {
	db *PebbleDB
}

// NewSyncStore creates a new SyncStore
func NewSyncStore(db *PebbleDB) *SyncStore {
	return &SyncStore{db: db}
}

// GetState retrieves the last sync state of an address. A never-synced
// address returns nil, nil.
func (s *SyncStore) GetState(address string) (*models.SyncState, error) {
	data, err := s.db.Get(CFSyncState, []byte(address))
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}

	var state models.SyncState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal sync state: %w", err)
	}
	return &state, nil
}

// SetState records the sync state of an address
func (s *SyncStore) SetState(state *models.SyncState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal sync state: %w", err)
	}
	return s.db.Put(CFSyncState, []byte(state.Address), data)
}
