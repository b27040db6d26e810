package registry

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thanhnp/coin-tracker/internal/ledger"
	"github.com/thanhnp/coin-tracker/internal/ledger/ledgertest"
	"github.com/thanhnp/coin-tracker/internal/logger"
	"github.com/thanhnp/coin-tracker/internal/models"
	"github.com/thanhnp/coin-tracker/internal/storage"
)

const (
	satoshiAddr = "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa"
	binanceAddr = "34xp4vRoCGJym3xR7yCVPFHoCNxv4Twseo"
)

func newTestRegistry(t *testing.T) (*Registry, *ledgertest.Fake, *storage.Stores) {
	t.Helper()
	db, err := storage.NewMemPebbleDB()
	require.NoError(t, err)
	stores := storage.NewStores(db)
	t.Cleanup(func() { stores.Close() })

	fake := ledgertest.New()
	fake.SetBalance(satoshiAddr, 100000000)
	fake.SetBalance(binanceAddr, 250000000)
	return New(fake, stores.Addresses, logger.Discard()), fake, stores
}

func TestAddAddress_ThenListedOnce(t *testing.T) {
	r, _, stores := newTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, r.AddAddress(ctx, satoshiAddr, "satoshi"))

	addrs, err := r.ListAddressesForUser(ctx, "satoshi")
	require.NoError(t, err)
	assert.Equal(t, []string{satoshiAddr}, addrs)

	rec, err := stores.Addresses.Get(satoshiAddr)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, int64(100000000), rec.CachedBalance)
	assert.False(t, rec.AddedAt.IsZero())
}

func TestAddAddress_InvalidAddress(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	ctx := context.Background()

	err := r.AddAddress(ctx, "Randomaddresses", "satoshi")
	require.Error(t, err)
	assert.Equal(t, models.KindValidation, models.KindOf(err))

	addrs, err := r.ListAddressesForUser(ctx, "satoshi")
	require.NoError(t, err)
	assert.Empty(t, addrs)
}

func TestAddAddress_LedgerDown(t *testing.T) {
	r, fake, _ := newTestRegistry(t)
	fake.Fail(satoshiAddr, true)

	err := r.AddAddress(context.Background(), satoshiAddr, "satoshi")
	require.Error(t, err)
	assert.Equal(t, models.KindExternalService, models.KindOf(err))
}

func TestAddAddress_BalanceFetchFailureStoresZero(t *testing.T) {
	r, fake, stores := newTestRegistry(t)
	fake.FailFetch(satoshiAddr, true)

	require.NoError(t, r.AddAddress(context.Background(), satoshiAddr, "satoshi"))

	rec, err := stores.Addresses.Get(satoshiAddr)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Zero(t, rec.CachedBalance)
}

func TestAddAddress_AlreadyClaimed(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, r.AddAddress(ctx, satoshiAddr, "satoshi"))

	err := r.AddAddress(ctx, satoshiAddr, "mallory")
	require.Error(t, err)
	assert.Equal(t, models.KindConflict, models.KindOf(err))
	assert.ErrorIs(t, err, models.ErrAddressClaimed)

	err = r.AddAddress(ctx, satoshiAddr, "satoshi")
	assert.Equal(t, models.KindConflict, models.KindOf(err))

	owned, err := r.ListAddressesForUser(ctx, "mallory")
	require.NoError(t, err)
	assert.Empty(t, owned)
}

// barrierSource holds every FetchRaw until n callers are waiting, so all of
// them have passed the ownership lookup before any of them writes.
type barrierSource struct {
	ledger.Source
	wg *sync.WaitGroup
}

func (b barrierSource) FetchRaw(ctx context.Context, address string) (*models.RawLedgerData, error) {
	b.wg.Done()
	b.wg.Wait()
	return b.Source.FetchRaw(ctx, address)
}

func TestAddAddress_ConcurrentClaimsHaveOneWinner(t *testing.T) {
	_, fake, stores := newTestRegistry(t)
	ctx := context.Background()

	users := []string{"alice", "bob"}
	var barrier sync.WaitGroup
	barrier.Add(len(users))
	r := New(barrierSource{Source: fake, wg: &barrier}, stores.Addresses, logger.Discard())

	errs := make([]error, len(users))
	var wg sync.WaitGroup
	for i, user := range users {
		wg.Add(1)
		go func(i int, user string) {
			defer wg.Done()
			errs[i] = r.AddAddress(ctx, satoshiAddr, user)
		}(i, user)
	}
	wg.Wait()

	winner := ""
	for i, err := range errs {
		if err == nil {
			require.Empty(t, winner, "both claims succeeded")
			winner = users[i]
			continue
		}
		assert.Equal(t, models.KindConflict, models.KindOf(err))
		assert.ErrorIs(t, err, models.ErrAddressClaimed)
	}
	require.NotEmpty(t, winner)

	rec, err := stores.Addresses.Get(satoshiAddr)
	require.NoError(t, err)
	assert.Equal(t, winner, rec.Owner)
	for _, user := range users {
		owned, err := r.IsOwnedBy(ctx, satoshiAddr, user)
		require.NoError(t, err)
		assert.Equal(t, user == winner, owned, user)
	}
}

func TestRemoveAddress_ExcludedFromList(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, r.AddAddress(ctx, satoshiAddr, "satoshi"))
	require.NoError(t, r.AddAddress(ctx, binanceAddr, "satoshi"))
	require.NoError(t, r.RemoveAddress(ctx, satoshiAddr))

	addrs, err := r.ListAddressesForUser(ctx, "satoshi")
	require.NoError(t, err)
	assert.Equal(t, []string{binanceAddr}, addrs)

	// Once removed, anyone may claim it.
	require.NoError(t, r.AddAddress(ctx, satoshiAddr, "hal"))
}

func TestRemoveAddress_Errors(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	ctx := context.Background()

	err := r.RemoveAddress(ctx, satoshiAddr)
	assert.Equal(t, models.KindNotFound, models.KindOf(err))

	err = r.RemoveAddress(ctx, "invalidaddress")
	assert.Equal(t, models.KindValidation, models.KindOf(err))
}

func TestIsOwnedByAndRecords(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, r.AddAddress(ctx, satoshiAddr, "satoshi"))
	require.NoError(t, r.AddAddress(ctx, binanceAddr, "binance"))

	owned, err := r.IsOwnedBy(ctx, satoshiAddr, "satoshi")
	require.NoError(t, err)
	assert.True(t, owned)

	owned, err = r.IsOwnedBy(ctx, binanceAddr, "satoshi")
	require.NoError(t, err)
	assert.False(t, owned)

	recs, err := r.Records(ctx, "binance")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, int64(250000000), recs[0].CachedBalance)
}

func TestScanAndRebuildIndex(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, r.AddAddress(ctx, satoshiAddr, "satoshi"))
	require.NoError(t, r.AddAddress(ctx, binanceAddr, "binance"))

	recs, err := r.ScanAddresses(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, recs, 2)

	n, err := r.RebuildOwnerIndex(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	addrs, err := r.ListAddressesForUser(ctx, "binance")
	require.NoError(t, err)
	assert.Equal(t, []string{binanceAddr}, addrs)
}

func TestDedupe(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, dedupe([]string{"b", "a", "b"}))
	assert.Empty(t, dedupe(nil))
}
