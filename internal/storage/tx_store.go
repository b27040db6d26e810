package storage

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/thanhnp/coin-tracker/internal/models"
)

// TxStore handles transaction record storage operations
type TxStore struct {
	db *PebbleDB
}

// NewTxStore creates a new TxStore
func NewTxStore(db *PebbleDB) *TxStore {
	return &TxStore{db: db}
}

// TxContentKey derives the identity of a transaction record from its content,
// so the same upstream transaction always maps to the same record.
func TxContentKey(address string, timestamp, balance, fee int64) string {
	payload := fmt.Sprintf("%s|%d|%d|%d", address, timestamp, balance, fee)
	return chainhash.DoubleHashH([]byte(payload)).String()
}

// txKey creates a key for the transactions column family. The inverted
// timestamp makes a prefix scan over one address return newest first.
func txKey(address string, timestamp time.Time, contentKey string) []byte {
	secs := timestamp.Unix()
	if secs < 0 {
		secs = 0
	}
	return []byte(fmt.Sprintf("%s:%020d:%s", address, math.MaxInt64-secs, contentKey))
}

// addressTxPrefix creates a prefix for all transactions of an address
func addressTxPrefix(address string) []byte {
	return []byte(address + ":")
}

// SaveBatch stores transaction records in a single atomic batch.
// Records with an existing key are overwritten.
func (s *TxStore) SaveBatch(recs []*models.TransactionRecord) error {
	if len(recs) == 0 {
		return nil
	}

	batch := s.db.NewBatch()
	defer batch.Destroy()

	for _, rec := range recs {
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to marshal transaction: %w", err)
		}
		if err := s.db.PutBatch(batch, CFTransactions, txKey(rec.Address, rec.Timestamp, rec.Key), data); err != nil {
			return err
		}
	}

	return s.db.WriteBatch(batch)
}

// Get retrieves a single transaction record
func (s *TxStore) Get(address string, timestamp time.Time, contentKey string) (*models.TransactionRecord, error) {
	data, err := s.db.Get(CFTransactions, txKey(address, timestamp, contentKey))
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}

	var rec models.TransactionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal transaction: %w", err)
	}
	return &rec, nil
}

// ListByAddress returns up to limit transaction records of an address in scan
// order (newest first). A limit <= 0 returns all of them.
func (s *TxStore) ListByAddress(address string, limit int) ([]*models.TransactionRecord, error) {
	iter, err := s.db.NewPrefixIterator(CFTransactions, addressTxPrefix(address))
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var recs []*models.TransactionRecord
	for ; iter.Valid(); iter.Next() {
		if limit > 0 && len(recs) >= limit {
			break
		}
		var rec models.TransactionRecord
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal transaction: %w", err)
		}
		recs = append(recs, &rec)
	}

	return recs, nil
}

// CountByAddress returns the number of stored transactions for an address
func (s *TxStore) CountByAddress(address string) (int, error) {
	recs, err := s.db.Scan(CFTransactions, addressTxPrefix(address), nil)
	if err != nil {
		return 0, err
	}
	return len(recs), nil
}
