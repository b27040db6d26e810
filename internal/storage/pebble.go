package storage

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
)

// Key prefixes (simulating column families)
const (
	PrefixAddresses      = "adr:"
	PrefixOwnerAddresses = "own:"
	PrefixTransactions   = "txn:"
	PrefixUsers          = "usr:"
	PrefixSyncState      = "syn:"
)

// Column family names
const (
	CFAddresses      = "addresses"
	CFOwnerAddresses = "owner_addresses"
	CFTransactions   = "transactions"
	CFUsers          = "users"
	CFSyncState      = "sync_state"
)

// Column family name to prefix mapping
var cfPrefixes = map[string]string{
	CFAddresses:      PrefixAddresses,
	CFOwnerAddresses: PrefixOwnerAddresses,
	CFTransactions:   PrefixTransactions,
	CFUsers:          PrefixUsers,
	CFSyncState:      PrefixSyncState,
}

// PebbleDB wraps the Pebble database
type PebbleDB struct {
	db *pebble.DB
}

// WriteBatch wraps Pebble's batch for atomic writes
type WriteBatch struct {
	batch *pebble.Batch
}

// Iterator wraps Pebble's iterator
type Iterator struct {
	iter     *pebble.Iterator
	cfPrefix []byte // just the column family prefix (to strip from keys)
}

// KV is a key-value pair returned by Scan. Key has the column family prefix stripped.
type KV struct {
	Key   []byte
	Value []byte
}

// NewPebbleDB opens (or creates) a database on disk
func NewPebbleDB(path string) (*PebbleDB, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	cache := pebble.NewCache(64 << 20)
	defer cache.Unref()

	return open(path, &pebble.Options{
		Cache:        cache,
		MaxOpenFiles: 500,
	})
}

// NewMemPebbleDB opens a database backed by an in-memory filesystem
func NewMemPebbleDB() (*PebbleDB, error) {
	return open("coin-tracker", &pebble.Options{FS: vfs.NewMem()})
}

func open(path string, opts *pebble.Options) (*PebbleDB, error) {
	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return &PebbleDB{db: db}, nil
}

// Close closes the database
func (p *PebbleDB) Close() error {
	return p.db.Close()
}

// Flush forces memtables to disk
func (p *PebbleDB) Flush() error {
	return p.db.Flush()
}

// prefixKey creates a prefixed key for the given column family
func (p *PebbleDB) prefixKey(cf string, key []byte) ([]byte, error) {
	prefix, ok := cfPrefixes[cf]
	if !ok {
		return nil, fmt.Errorf("column family not found: %s", cf)
	}
	out := make([]byte, 0, len(prefix)+len(key))
	out = append(out, prefix...)
	return append(out, key...), nil
}

// Put stores a key-value pair in the specified column family, overwriting any existing value
func (p *PebbleDB) Put(cf string, key, value []byte) error {
	prefixedKey, err := p.prefixKey(cf, key)
	if err != nil {
		return err
	}
	return p.db.Set(prefixedKey, value, pebble.Sync)
}

// Get retrieves a value from the specified column family.
// A missing key returns nil, nil.
func (p *PebbleDB) Get(cf string, key []byte) ([]byte, error) {
	prefixedKey, err := p.prefixKey(cf, key)
	if err != nil {
		return nil, err
	}

	value, closer, err := p.db.Get(prefixedKey)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	defer closer.Close()

	// Copy the value since it's only valid until closer.Close()
	result := make([]byte, len(value))
	copy(result, value)
	return result, nil
}

// Has reports whether key exists in the column family
func (p *PebbleDB) Has(cf string, key []byte) (bool, error) {
	value, err := p.Get(cf, key)
	if err != nil {
		return false, err
	}
	return value != nil, nil
}

// Delete removes a key from the specified column family
func (p *PebbleDB) Delete(cf string, key []byte) error {
	prefixedKey, err := p.prefixKey(cf, key)
	if err != nil {
		return err
	}
	return p.db.Delete(prefixedKey, pebble.Sync)
}

// NewBatch creates a new write batch
func (p *PebbleDB) NewBatch() *WriteBatch {
	return &WriteBatch{batch: p.db.NewBatch()}
}

// WriteBatch commits a batch to the database
func (p *PebbleDB) WriteBatch(batch *WriteBatch) error {
	return batch.batch.Commit(pebble.Sync)
}

// PutBatch adds a put operation to the batch
func (p *PebbleDB) PutBatch(batch *WriteBatch, cf string, key, value []byte) error {
	prefixedKey, err := p.prefixKey(cf, key)
	if err != nil {
		return err
	}
	return batch.batch.Set(prefixedKey, value, nil)
}

// DeleteBatch adds a delete operation to the batch
func (p *PebbleDB) DeleteBatch(batch *WriteBatch, cf string, key []byte) error {
	prefixedKey, err := p.prefixKey(cf, key)
	if err != nil {
		return err
	}
	return batch.batch.Delete(prefixedKey, nil)
}

// Destroy closes the batch and releases resources
func (b *WriteBatch) Destroy() {
	b.batch.Close()
}

// NewIterator creates an iterator over a whole column family
func (p *PebbleDB) NewIterator(cf string) (*Iterator, error) {
	return p.NewPrefixIterator(cf, nil)
}

// NewPrefixIterator creates an iterator over the keys of a column family that start with prefix
func (p *PebbleDB) NewPrefixIterator(cf string, prefix []byte) (*Iterator, error) {
	cfPrefix, ok := cfPrefixes[cf]
	if !ok {
		return nil, fmt.Errorf("column family not found: %s", cf)
	}

	cfPrefixBytes := []byte(cfPrefix)
	fullPrefix := append(append([]byte{}, cfPrefixBytes...), prefix...)
	iter, err := p.db.NewIter(&pebble.IterOptions{
		LowerBound: fullPrefix,
		UpperBound: prefixUpperBound(fullPrefix),
	})
	if err != nil {
		return nil, err
	}

	iter.First()
	return &Iterator{iter: iter, cfPrefix: cfPrefixBytes}, nil
}

// Scan returns every entry of a column family under prefix, in key order, for
// which filter returns true. A nil filter keeps everything.
func (p *PebbleDB) Scan(cf string, prefix []byte, filter func(key, value []byte) bool) ([]KV, error) {
	iter, err := p.NewPrefixIterator(cf, prefix)
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []KV
	for ; iter.Valid(); iter.Next() {
		key := iter.Key()
		value := iter.Value()
		if filter != nil && !filter(key, value) {
			continue
		}
		out = append(out, KV{
			Key:   append([]byte{}, key...),
			Value: append([]byte{}, value...),
		})
	}
	return out, nil
}

// prefixUpperBound returns the upper bound for prefix iteration
func prefixUpperBound(prefix []byte) []byte {
	if len(prefix) == 0 {
		return nil
	}
	upper := make([]byte, len(prefix))
	copy(upper, prefix)
	for i := len(upper) - 1; i >= 0; i-- {
		if upper[i] < 0xff {
			upper[i]++
			return upper[:i+1]
		}
	}
	return nil
}

// Valid returns true if the iterator is positioned at a valid key
func (i *Iterator) Valid() bool {
	return i.iter.Valid()
}

// Next advances the iterator to the next key
func (i *Iterator) Next() bool {
	return i.iter.Next()
}

// Key returns the current key without the column family prefix.
// The slice is only valid until the next call to Next.
func (i *Iterator) Key() []byte {
	key := i.iter.Key()
	if bytes.HasPrefix(key, i.cfPrefix) {
		return key[len(i.cfPrefix):]
	}
	return key
}

// Value returns the current value
func (i *Iterator) Value() []byte {
	return i.iter.Value()
}

// Close closes the iterator
func (i *Iterator) Close() error {
	return i.iter.Close()
}
