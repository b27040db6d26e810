// Package balance aggregates live balances and stored transactions across a
// user's addresses.
package balance

import (
	"context"
	"log/slog"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/thanhnp/coin-tracker/internal/ledger"
	"github.com/thanhnp/coin-tracker/internal/models"
)

// TransactionReader reads stored, converted transactions of an address
type TransactionReader interface {
	ReadTransactions(ctx context.Context, address string, limit int) ([]models.NormalizedTransaction, error)
}

// Aggregator computes balances and feeds over sets of addresses
type Aggregator struct {
	source    ledger.Source
	txs       TransactionReader
	readLimit int
	log       *slog.Logger
}

// NewAggregator creates an Aggregator. readLimit bounds the transactions read
// per address for the merged feed; <= 0 uses the reader's default.
func NewAggregator(source ledger.Source, txs TransactionReader, readLimit int, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		source:    source,
		txs:       txs,
		readLimit: readLimit,
		log:       logger,
	}
}

// CurrentBalance returns the final balance of address in BTC as reported by
// the source. Behind a ledger.CachingSource it can be up to the cache TTL old.
func (a *Aggregator) CurrentBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	const op = "balance.CurrentBalance"

	raw, err := a.source.FetchRaw(ctx, address)
	if err != nil {
		return decimal.Zero, models.E(op, models.KindOf(err), err)
	}
	if raw.FinalBalance == nil {
		a.log.Info("insufficient data: no final balance", "address", address)
		return decimal.Zero, models.E(op, models.KindDataIntegrity, models.ErrNoFinalBalance)
	}
	return models.ToBTC(*raw.FinalBalance), nil
}

// TotalBalance sums the live balances of addresses. The first failure aborts
// the sum.
func (a *Aggregator) TotalBalance(ctx context.Context, addresses []string) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, address := range addresses {
		b, err := a.CurrentBalance(ctx, address)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(b)
	}
	return total, nil
}

// AddressCount returns the number of addresses
func (a *Aggregator) AddressCount(addresses []string) int {
	return len(addresses)
}

// BalancesByAddress returns the live balance of each address, in input order
func (a *Aggregator) BalancesByAddress(ctx context.Context, addresses []string) ([]models.AddressBalance, error) {
	out := make([]models.AddressBalance, 0, len(addresses))
	for _, address := range addresses {
		b, err := a.CurrentBalance(ctx, address)
		if err != nil {
			return nil, err
		}
		out = append(out, models.AddressBalance{Address: address, Balance: b})
	}
	return out, nil
}

// MergedTransactionFeed concatenates the stored transactions of every address
// and orders them newest first. Entries with equal timestamps keep their
// concatenation order.
func (a *Aggregator) MergedTransactionFeed(ctx context.Context, addresses []string) ([]models.FeedEntry, error) {
	feed := make([]models.FeedEntry, 0)
	for _, address := range addresses {
		txs, err := a.txs.ReadTransactions(ctx, address, a.readLimit)
		if err != nil {
			return nil, err
		}
		for _, tx := range txs {
			feed = append(feed, models.FeedEntry{
				Address:   address,
				Balance:   tx.Balance,
				Fee:       tx.Fee,
				Timestamp: tx.Timestamp,
			})
		}
	}

	sort.SliceStable(feed, func(i, j int) bool {
		return feed[i].Timestamp.After(feed[j].Timestamp)
	})
	return feed, nil
}

// Portfolio builds the count, balances, total and merged feed of addresses
func (a *Aggregator) Portfolio(ctx context.Context, addresses []string) (*models.Portfolio, error) {
	balances, err := a.BalancesByAddress(ctx, addresses)
	if err != nil {
		return nil, err
	}

	total := decimal.Zero
	for _, b := range balances {
		total = total.Add(b.Balance)
	}

	feed, err := a.MergedTransactionFeed(ctx, addresses)
	if err != nil {
		return nil, err
	}

	return &models.Portfolio{
		AddressCount: a.AddressCount(addresses),
		Total:        total,
		Balances:     balances,
		Transactions: feed,
	}, nil
}
