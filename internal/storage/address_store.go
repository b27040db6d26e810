package storage

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/thanhnp/coin-tracker/internal/models"
)

// AddressStore handles address record storage and the owner index
type AddressStore struct {
	db *PebbleDB
	mu sync.Mutex // serializes ownership check-and-write
}

// NewAddressStore creates a new AddressStore
func NewAddressStore(db *PebbleDB) *AddressStore {
	return &AddressStore{db: db}
}

// addressKey creates a key for the addresses column family
func addressKey(address string) []byte {
	return []byte(address)
}

// ownerAddressKey creates a key for the owner_addresses column family
func ownerAddressKey(owner, address string) []byte {
	return []byte(fmt.Sprintf("%s:%s", owner, address))
}

// ownerPrefix creates a prefix for all index entries of an owner
func ownerPrefix(owner string) []byte {
	return []byte(owner + ":")
}

// Create claims an address for rec.Owner, writing the record and its owner
// index entry in one batch. It returns models.ErrAddressClaimed if the address
// is already stored, whoever owns it.
func (s *AddressStore) Create(rec *models.AddressRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	exists, err := s.db.Has(CFAddresses, addressKey(rec.Address))
	if err != nil {
		return err
	}
	if exists {
		return models.ErrAddressClaimed
	}
	return s.write(rec)
}

// Save stores an address record, replacing the existing one of the same
// owner. It returns models.ErrAddressClaimed if another owner holds the address.
func (s *AddressStore) Save(rec *models.AddressRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, err := s.Get(rec.Address)
	if err != nil {
		return err
	}
	if prev != nil && prev.Owner != rec.Owner {
		return models.ErrAddressClaimed
	}
	return s.write(rec)
}

func (s *AddressStore) write(rec *models.AddressRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal address: %w", err)
	}

	batch := s.db.NewBatch()
	defer batch.Destroy()

	if err := s.db.PutBatch(batch, CFAddresses, addressKey(rec.Address), data); err != nil {
		return err
	}
	if err := s.db.PutBatch(batch, CFOwnerAddresses, ownerAddressKey(rec.Owner, rec.Address), []byte(rec.Address)); err != nil {
		return err
	}

	return s.db.WriteBatch(batch)
}

// Get retrieves an address record. A missing address returns nil, nil.
func (s *AddressStore) Get(address string) (*models.AddressRecord, error) {
	data, err := s.db.Get(CFAddresses, addressKey(address))
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}

	var rec models.AddressRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal address: %w", err)
	}
	return &rec, nil
}

// Delete removes an address record and its owner index entry.
// It returns models.ErrAddressNotFound when the address is not stored.
func (s *AddressStore) Delete(address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.Get(address)
	if err != nil {
		return err
	}
	if rec == nil {
		return models.ErrAddressNotFound
	}

	batch := s.db.NewBatch()
	defer batch.Destroy()

	if err := s.db.DeleteBatch(batch, CFAddresses, addressKey(address)); err != nil {
		return err
	}
	if err := s.db.DeleteBatch(batch, CFOwnerAddresses, ownerAddressKey(rec.Owner, address)); err != nil {
		return err
	}

	return s.db.WriteBatch(batch)
}

// ListByOwner returns the addresses indexed under owner, in key order
func (s *AddressStore) ListByOwner(owner string) ([]string, error) {
	prefix := ownerPrefix(owner)
	entries, err := s.db.Scan(CFOwnerAddresses, prefix, func(key, _ []byte) bool {
		// "alice:" also prefixes "alice:x:addr" for an owner named "alice:x"
		return !strings.Contains(string(key[len(prefix):]), ":")
	})
	if err != nil {
		return nil, err
	}

	addrs := make([]string, 0, len(entries))
	for _, e := range entries {
		addrs = append(addrs, string(e.Value))
	}
	return addrs, nil
}

// Scan returns every address record for which filter returns true.
// It reads the whole column family.
func (s *AddressStore) Scan(filter func(*models.AddressRecord) bool) ([]*models.AddressRecord, error) {
	iter, err := s.db.NewIterator(CFAddresses)
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var recs []*models.AddressRecord
	for ; iter.Valid(); iter.Next() {
		var rec models.AddressRecord
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal address: %w", err)
		}
		if filter == nil || filter(&rec) {
			recs = append(recs, &rec)
		}
	}
	return recs, nil
}

// RebuildOwnerIndex drops the owner index and rewrites it from the address
// records. It returns the number of index entries written.
func (s *AddressStore) RebuildOwnerIndex() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stale, err := s.db.Scan(CFOwnerAddresses, nil, nil)
	if err != nil {
		return 0, err
	}
	recs, err := s.Scan(nil)
	if err != nil {
		return 0, err
	}

	batch := s.db.NewBatch()
	defer batch.Destroy()

	for _, e := range stale {
		if err := s.db.DeleteBatch(batch, CFOwnerAddresses, e.Key); err != nil {
			return 0, err
		}
	}
	for _, rec := range recs {
		if err := s.db.PutBatch(batch, CFOwnerAddresses, ownerAddressKey(rec.Owner, rec.Address), []byte(rec.Address)); err != nil {
			return 0, err
		}
	}

	if err := s.db.WriteBatch(batch); err != nil {
		return 0, err
	}
	return len(recs), nil
}
