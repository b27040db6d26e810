package storage

import "errors"

// Stores holds every typed store sharing one database
type Stores struct {
	DB           *PebbleDB
	Addresses    *AddressStore
	Transactions *TxStore
	Users        *UserStore
	SyncState    *SyncStore
}

// NewStores creates all stores using the given database
func NewStores(db *PebbleDB) *Stores {
	return &Stores{
		DB:           db,
		Addresses:    NewAddressStore(db),
		Transactions: NewTxStore(db),
		Users:        NewUserStore(db),
		SyncState:    NewSyncStore(db),
	}
}

// Close flushes and closes the database. The database is closed even when
// the flush fails.
func (s *Stores) Close() error {
	flushErr := s.DB.Flush()
	return errors.Join(flushErr, s.DB.Close())
}
