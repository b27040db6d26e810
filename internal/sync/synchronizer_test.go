package sync

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thanhnp/coin-tracker/internal/ledger"
	"github.com/thanhnp/coin-tracker/internal/ledger/ledgertest"
	"github.com/thanhnp/coin-tracker/internal/logger"
	"github.com/thanhnp/coin-tracker/internal/models"
	"github.com/thanhnp/coin-tracker/internal/storage"
)

const testAddr = "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa"

func newTestSynchronizer(t *testing.T, opts ...Option) (*Synchronizer, *ledgertest.Fake, *storage.Stores) {
	t.Helper()
	db, err := storage.NewMemPebbleDB()
	require.NoError(t, err)
	stores := storage.NewStores(db)
	t.Cleanup(func() { stores.Close() })

	fake := ledgertest.New()
	s := NewSynchronizer(fake, stores.Transactions, stores.SyncState, logger.Discard(), opts...)
	return s, fake, stores
}

// history builds n complete transactions, newest first, one minute apart.
func history(n int) []models.RawTransaction {
	txs := make([]models.RawTransaction, n)
	for i := range txs {
		txs[i] = ledgertest.Tx(int64(1700000000-60*i), int64(1000*(i+1)), 10)
	}
	return txs
}

func TestSync_SingleTransactionScenario(t *testing.T) {
	s, fake, _ := newTestSynchronizer(t)
	ctx := context.Background()
	fake.Set(testAddr, &models.RawLedgerData{
		FinalBalance: ledgertest.Int(500000000),
		Transactions: []models.RawTransaction{ledgertest.Tx(1700000000, 500000000, 1000)},
	})

	res, err := s.Sync(ctx, "satoshi", testAddr)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Stored)
	assert.False(t, res.Truncated)

	txs, err := s.ReadTransactions(ctx, testAddr, 0)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.True(t, decimal.NewFromFloat(5.0).Equal(txs[0].Balance), "balance %s", txs[0].Balance)
	assert.True(t, decimal.RequireFromString("0.00001").Equal(txs[0].Fee), "fee %s", txs[0].Fee)
	assert.True(t, time.Unix(1700000000, 0).Equal(txs[0].Timestamp))
}

func TestSync_WindowCappedAtTen(t *testing.T) {
	s, fake, stores := newTestSynchronizer(t)
	fake.Set(testAddr, &models.RawLedgerData{Transactions: history(25)})

	res, err := s.Sync(context.Background(), "satoshi", testAddr)
	require.NoError(t, err)
	assert.Equal(t, 10, res.Stored)
	assert.Equal(t, 25, res.Available)

	n, err := stores.Transactions.CountByAddress(testAddr)
	require.NoError(t, err)
	assert.Equal(t, 10, n)
}

func TestSync_FewerThanWindow(t *testing.T) {
	s, fake, _ := newTestSynchronizer(t)
	fake.Set(testAddr, &models.RawLedgerData{Transactions: history(3)})

	res, err := s.Sync(context.Background(), "satoshi", testAddr)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Stored)
}

func TestSync_ConfiguredWindow(t *testing.T) {
	s, fake, _ := newTestSynchronizer(t, WithWindow(4))
	fake.Set(testAddr, &models.RawLedgerData{Transactions: history(8)})

	res, err := s.Sync(context.Background(), "satoshi", testAddr)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Stored)
}

func TestSync_StopsAtFirstIncompleteEntry(t *testing.T) {
	s, fake, stores := newTestSynchronizer(t)
	txs := history(6)
	txs[2].Fee = nil // third entry lacks a fee
	fake.Set(testAddr, &models.RawLedgerData{Transactions: txs})

	res, err := s.Sync(context.Background(), "satoshi", testAddr)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Stored)
	assert.True(t, res.Truncated)

	n, err := stores.Transactions.CountByAddress(testAddr)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "entries after the gap must not be stored")

	state, err := s.State(context.Background(), testAddr)
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.True(t, state.Truncated)
	assert.Equal(t, 2, state.Stored)
}

func TestSync_FirstEntryIncomplete(t *testing.T) {
	s, fake, _ := newTestSynchronizer(t)
	txs := history(3)
	txs[0].Time = nil
	fake.Set(testAddr, &models.RawLedgerData{Transactions: txs})

	res, err := s.Sync(context.Background(), "satoshi", testAddr)
	require.NoError(t, err)
	assert.Zero(t, res.Stored)
	assert.True(t, res.Truncated)
}

func TestSync_NoTransactionList(t *testing.T) {
	s, fake, _ := newTestSynchronizer(t)
	fake.Set(testAddr, &models.RawLedgerData{FinalBalance: ledgertest.Int(0)})

	res, err := s.Sync(context.Background(), "satoshi", testAddr)
	assert.Nil(t, res)
	require.Error(t, err)
	assert.Equal(t, models.KindDataIntegrity, models.KindOf(err))
	assert.ErrorIs(t, err, models.ErrNoTransactionList)
}

func TestSync_EmptyTransactionList(t *testing.T) {
	s, fake, _ := newTestSynchronizer(t)
	fake.SetBalance(testAddr, 0)

	res, err := s.Sync(context.Background(), "satoshi", testAddr)
	require.NoError(t, err)
	assert.Zero(t, res.Stored)
	assert.False(t, res.Truncated)
}

func TestSync_InvalidAddressHasNoSideEffects(t *testing.T) {
	s, fake, _ := newTestSynchronizer(t)

	_, err := s.Sync(context.Background(), "satoshi", "invalidaddress")
	require.Error(t, err)
	assert.Equal(t, models.KindValidation, models.KindOf(err))
	assert.Zero(t, fake.Calls("invalidaddress"))

	state, err := s.State(context.Background(), "invalidaddress")
	require.NoError(t, err)
	assert.Nil(t, state)
}

func TestSync_LedgerFailure(t *testing.T) {
	s, fake, _ := newTestSynchronizer(t)
	fake.Set(testAddr, &models.RawLedgerData{Transactions: history(2)})
	fake.FailFetch(testAddr, true)

	_, err := s.Sync(context.Background(), "satoshi", testAddr)
	require.Error(t, err)
	assert.Equal(t, models.KindExternalService, models.KindOf(err))
}

func TestSync_ResyncIsIdempotent(t *testing.T) {
	s, fake, stores := newTestSynchronizer(t)
	ctx := context.Background()
	txs := history(5)
	fake.Set(testAddr, &models.RawLedgerData{Transactions: txs})

	_, err := s.Sync(ctx, "satoshi", testAddr)
	require.NoError(t, err)

	// A new transaction shifts every upstream position by one.
	shifted := append([]models.RawTransaction{ledgertest.Tx(1700000600, 777, 1)}, txs...)
	fake.Set(testAddr, &models.RawLedgerData{Transactions: shifted})
	_, err = s.Sync(ctx, "satoshi", testAddr)
	require.NoError(t, err)

	n, err := stores.Transactions.CountByAddress(testAddr)
	require.NoError(t, err)
	assert.Equal(t, 6, n, "existing transactions are overwritten, not duplicated")
}

func TestSyncAll(t *testing.T) {
	s, fake, _ := newTestSynchronizer(t, WithWorkers(3))
	fake.Set("addrA", &models.RawLedgerData{Transactions: history(2)})
	fake.Set("addrB", &models.RawLedgerData{Transactions: history(12)})
	fake.Set("addrC", &models.RawLedgerData{})

	outcomes := s.SyncAll(context.Background(), "satoshi", []string{"addrA", "addrB", "nope", "addrC"})
	require.Len(t, outcomes, 4)

	assert.Equal(t, "addrA", outcomes[0].Address)
	require.NoError(t, outcomes[0].Err)
	assert.Equal(t, 2, outcomes[0].Result.Stored)

	require.NoError(t, outcomes[1].Err)
	assert.Equal(t, 10, outcomes[1].Result.Stored)

	assert.Equal(t, models.KindValidation, models.KindOf(outcomes[2].Err))
	assert.Equal(t, models.KindDataIntegrity, models.KindOf(outcomes[3].Err))
}

func TestReadTransactions_LimitAndConversion(t *testing.T) {
	s, fake, _ := newTestSynchronizer(t)
	ctx := context.Background()
	fake.Set(testAddr, &models.RawLedgerData{Transactions: history(10)})
	_, err := s.Sync(ctx, "satoshi", testAddr)
	require.NoError(t, err)

	txs, err := s.ReadTransactions(ctx, testAddr, 3)
	require.NoError(t, err)
	require.Len(t, txs, 3)
	// Newest first: history(10)[0] has balance 1000 sat.
	assert.True(t, decimal.RequireFromString("0.00001").Equal(txs[0].Balance))
	assert.True(t, decimal.RequireFromString("0.0000001").Equal(txs[0].Fee))

	all, err := s.ReadTransactions(ctx, testAddr, 0)
	require.NoError(t, err)
	assert.Len(t, all, 10)

	none, err := s.ReadTransactions(ctx, "unknown", 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestResync_BypassesCache(t *testing.T) {
	db, err := storage.NewMemPebbleDB()
	require.NoError(t, err)
	stores := storage.NewStores(db)
	t.Cleanup(func() { stores.Close() })

	fake := ledgertest.New()
	cached := ledger.NewCachingSource(fake, time.Minute)
	s := NewSynchronizer(cached, stores.Transactions, stores.SyncState, logger.Discard())
	ctx := context.Background()

	fake.Set(testAddr, &models.RawLedgerData{Transactions: history(2)})
	res, err := s.Sync(ctx, "satoshi", testAddr)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Stored)

	fake.Set(testAddr, &models.RawLedgerData{Transactions: history(4)})
	res, err = s.Sync(ctx, "satoshi", testAddr)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Stored, "served from cache")

	res, err = s.Resync(ctx, "satoshi", testAddr)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Stored)
	assert.Equal(t, 2, fake.Calls(testAddr))
}
