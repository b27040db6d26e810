package ledger

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/thanhnp/coin-tracker/internal/models"
)

// CachingSource wraps a Source and keeps successful answers for a TTL, so a
// page that asks for several balances does not hit the ledger once per call.
// Failures are never cached.
type CachingSource struct {
	next  Source
	cache *gocache.Cache
}

// NewCachingSource wraps next with a cache whose entries live for ttl
func NewCachingSource(next Source, ttl time.Duration) *CachingSource {
	return &CachingSource{
		next:  next,
		cache: gocache.New(ttl, 2*ttl),
	}
}

func validKey(address string) string { return "valid:" + address }
func rawKey(address string) string   { return "raw:" + address }

// ValidateAddress implements Source
func (c *CachingSource) ValidateAddress(ctx context.Context, address string) error {
	if _, ok := c.cache.Get(validKey(address)); ok {
		return nil
	}
	if err := c.next.ValidateAddress(ctx, address); err != nil {
		return err
	}
	c.cache.SetDefault(validKey(address), struct{}{})
	return nil
}

// FetchRaw implements Source
func (c *CachingSource) FetchRaw(ctx context.Context, address string) (*models.RawLedgerData, error) {
	if v, ok := c.cache.Get(rawKey(address)); ok {
		return v.(*models.RawLedgerData), nil
	}
	data, err := c.next.FetchRaw(ctx, address)
	if err != nil {
		return nil, err
	}
	c.cache.SetDefault(rawKey(address), data)
	// A successful fetch proves the ledger knows the address.
	c.cache.SetDefault(validKey(address), struct{}{})
	return data, nil
}

// Invalidate drops any cached answer for address
func (c *CachingSource) Invalidate(address string) {
	c.cache.Delete(validKey(address))
	c.cache.Delete(rawKey(address))
}
