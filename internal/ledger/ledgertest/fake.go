// Package ledgertest provides an in-memory ledger source for tests.
package ledgertest

import (
	"context"
	"errors"
	"sync"

	"github.com/thanhnp/coin-tracker/internal/models"
)

// ErrUnavailable is returned for addresses marked as failing
var ErrUnavailable = errors.New("ledger unavailable")

// Fake is a ledger.Source holding canned responses per address.
// Unknown addresses fail validation.
type Fake struct {
	mu      sync.Mutex
	data    map[string]*models.RawLedgerData
	failing map[string]bool
	noFetch map[string]bool
	calls   map[string]int
}

// New creates an empty Fake
func New() *Fake {
	return &Fake{
		data:    make(map[string]*models.RawLedgerData),
		failing: make(map[string]bool),
		noFetch: make(map[string]bool),
		calls:   make(map[string]int),
	}
}

// Set registers the raw data returned for address
func (f *Fake) Set(address string, data *models.RawLedgerData) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[address] = data
}

// SetBalance registers address with a final balance and an empty transaction list
func (f *Fake) SetBalance(address string, satoshi int64) {
	f.Set(address, &models.RawLedgerData{
		Address:      address,
		FinalBalance: Int(satoshi),
		Transactions: []models.RawTransaction{},
	})
}

// Fail makes every call for address return an external service error
func (f *Fake) Fail(address string, failing bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing[address] = failing
}

// FailFetch makes FetchRaw fail for address while validation still passes
func (f *Fake) FailFetch(address string, failing bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.noFetch[address] = failing
}

// Calls returns how many FetchRaw calls were made for address
func (f *Fake) Calls(address string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[address]
}

// ValidateAddress implements ledger.Source
func (f *Fake) ValidateAddress(_ context.Context, address string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing[address] {
		return models.E("ledgertest.ValidateAddress", models.KindExternalService, ErrUnavailable)
	}
	if _, ok := f.data[address]; !ok {
		return models.E("ledgertest.ValidateAddress", models.KindValidation, models.ErrInvalidAddress)
	}
	return nil
}

// FetchRaw implements ledger.Source
func (f *Fake) FetchRaw(_ context.Context, address string) (*models.RawLedgerData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[address]++
	if f.failing[address] || f.noFetch[address] {
		return nil, models.E("ledgertest.FetchRaw", models.KindExternalService, ErrUnavailable)
	}
	data, ok := f.data[address]
	if !ok {
		return nil, models.E("ledgertest.FetchRaw", models.KindValidation, models.ErrInvalidAddress)
	}
	return data, nil
}

// Int returns a pointer to v
func Int(v int64) *int64 { return &v }

// Tx builds a complete raw transaction
func Tx(time, balance, fee int64) models.RawTransaction {
	return models.RawTransaction{Time: Int(time), Balance: Int(balance), Fee: Int(fee)}
}
