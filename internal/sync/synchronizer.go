package sync

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/thanhnp/coin-tracker/internal/config"
	"github.com/thanhnp/coin-tracker/internal/ledger"
	"github.com/thanhnp/coin-tracker/internal/metrics"
	"github.com/thanhnp/coin-tracker/internal/models"
	"github.com/thanhnp/coin-tracker/internal/storage"
)

// DefaultReadLimit is the number of stored transactions returned when no limit is given
const DefaultReadLimit = 20

// Synchronizer pulls the leading window of an address's ledger history and
// persists it as transaction records.
type Synchronizer struct {
	source    ledger.Source
	txStore   *storage.TxStore
	syncStore *storage.SyncStore
	window    int
	workers   int
	log       *slog.Logger
	now       func() time.Time
}

// Option customizes a Synchronizer
type Option func(*Synchronizer)

// WithWindow sets the sync window. Values outside 1..config.MaxSyncWindow use the maximum.
func WithWindow(n int) Option {
	return func(s *Synchronizer) {
		if n > 0 && n <= config.MaxSyncWindow {
			s.window = n
		}
	}
}

// WithWorkers bounds the fan-out of SyncAll
func WithWorkers(n int) Option {
	return func(s *Synchronizer) {
		if n > 0 {
			s.workers = n
		}
	}
}

// NewSynchronizer creates a Synchronizer
func NewSynchronizer(source ledger.Source, txStore *storage.TxStore, syncStore *storage.SyncStore, logger *slog.Logger, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		source:    source,
		txStore:   txStore,
		syncStore: syncStore,
		window:    config.MaxSyncWindow,
		workers:   1,
		log:       logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sync stores up to the window's worth of the address's most recent ledger
// transactions, in source order. The first entry missing time, balance or fee
// ends the window: entries before it are kept and the result is marked
// Truncated. The records of one call are written in a single batch.
func (s *Synchronizer) Sync(ctx context.Context, username, address string) (*models.SyncResult, error) {
	const op = "sync.Sync"

	if err := s.source.ValidateAddress(ctx, address); err != nil {
		metrics.SyncsTotal.WithLabelValues("failed").Inc()
		return nil, models.E(op, models.KindOf(err), err)
	}

	raw, err := s.source.FetchRaw(ctx, address)
	if err != nil {
		s.log.Warn("failed to fetch ledger data", "address", address, "error", err)
		metrics.SyncsTotal.WithLabelValues("failed").Inc()
		return nil, models.E(op, models.KindOf(err), err)
	}
	if raw.Transactions == nil {
		s.log.Info("insufficient data: no transaction list", "address", address)
		metrics.SyncsTotal.WithLabelValues("no_history").Inc()
		return nil, models.E(op, models.KindDataIntegrity, models.ErrNoTransactionList)
	}

	result := &models.SyncResult{
		Address:   address,
		Available: len(raw.Transactions),
	}

	n := min(s.window, len(raw.Transactions))
	syncedAt := s.now()
	recs := make([]*models.TransactionRecord, 0, n)
	for i := 0; i < n; i++ {
		tx := raw.Transactions[i]
		if !tx.Complete() {
			s.log.Info("insufficient data, stopping window", "address", address, "index", i)
			result.Truncated = true
			break
		}
		recs = append(recs, &models.TransactionRecord{
			Key:       storage.TxContentKey(address, *tx.Time, *tx.Balance, *tx.Fee),
			Owner:     username,
			Address:   address,
			Index:     i + 1,
			Timestamp: time.Unix(*tx.Time, 0).UTC(),
			Balance:   *tx.Balance,
			Fee:       *tx.Fee,
			SyncedAt:  syncedAt,
		})
	}

	if err := s.txStore.SaveBatch(recs); err != nil {
		s.log.Error("failed to store transactions", "address", address, "error", err)
		metrics.SyncsTotal.WithLabelValues("failed").Inc()
		return nil, models.E(op, models.KindPersistence, err)
	}
	result.Stored = len(recs)
	metrics.TransactionsStored.Add(float64(len(recs)))

	state := &models.SyncState{
		Address:      address,
		LastSyncedAt: syncedAt,
		Available:    result.Available,
		Stored:       result.Stored,
		Truncated:    result.Truncated,
	}
	if err := s.syncStore.SetState(state); err != nil {
		// The records are already durable; only the bookkeeping is lost.
		s.log.Warn("failed to record sync state", "address", address, "error", err)
	}

	outcome := "ok"
	if result.Truncated {
		outcome = "truncated"
	}
	metrics.SyncsTotal.WithLabelValues(outcome).Inc()
	s.log.Info("synced address", "address", address, "user", username,
		"stored", result.Stored, "available", result.Available, "truncated", result.Truncated)
	return result, nil
}

// invalidator is implemented by sources that cache ledger answers
type invalidator interface {
	Invalidate(address string)
}

// Resync drops any cached ledger answer for address, then syncs it
func (s *Synchronizer) Resync(ctx context.Context, username, address string) (*models.SyncResult, error) {
	if inv, ok := s.source.(invalidator); ok {
		inv.Invalidate(address)
	}
	return s.Sync(ctx, username, address)
}

// SyncOutcome is the result of syncing one address within SyncAll
type SyncOutcome struct {
	Address string
	Result  *models.SyncResult
	Err     error
}

// SyncAll syncs every address concurrently, at most workers at a time. A
// failure for one address does not stop the others. Outcomes are in input order.
func (s *Synchronizer) SyncAll(ctx context.Context, username string, addresses []string) []SyncOutcome {
	outcomes := make([]SyncOutcome, len(addresses))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, address := range addresses {
		i, address := i, address
		g.Go(func() error {
			res, err := s.Sync(ctx, username, address)
			outcomes[i] = SyncOutcome{Address: address, Result: res, Err: err}
			return nil
		})
	}
	g.Wait()

	return outcomes
}

// ReadTransactions returns up to limit stored transactions of address,
// converted to BTC, in store scan order (newest first). A limit <= 0 uses
// DefaultReadLimit.
func (s *Synchronizer) ReadTransactions(ctx context.Context, address string, limit int) ([]models.NormalizedTransaction, error) {
	if limit <= 0 {
		limit = DefaultReadLimit
	}

	recs, err := s.txStore.ListByAddress(address, limit)
	if err != nil {
		s.log.Error("failed to read transactions", "address", address, "error", err)
		return nil, models.E("sync.ReadTransactions", models.KindPersistence, err)
	}

	txs := make([]models.NormalizedTransaction, 0, len(recs))
	for _, rec := range recs {
		txs = append(txs, models.NormalizedTransaction{
			Timestamp: rec.Timestamp,
			Balance:   models.ToBTC(rec.Balance),
			Fee:       models.ToBTC(rec.Fee),
		})
	}
	return txs, nil
}

// State returns the last sync state of address, or nil if it was never synced
func (s *Synchronizer) State(ctx context.Context, address string) (*models.SyncState, error) {
	state, err := s.syncStore.GetState(address)
	if err != nil {
		return nil, models.E("sync.State", models.KindPersistence, err)
	}
	return state, nil
}
