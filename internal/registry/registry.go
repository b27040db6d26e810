// Package registry maps Bitcoin addresses to the users that registered them.
package registry

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/thanhnp/coin-tracker/internal/ledger"
	"github.com/thanhnp/coin-tracker/internal/models"
	"github.com/thanhnp/coin-tracker/internal/storage"
)

// Registry owns address ownership records. An address has at most one owner:
// the first successful add wins and later adds by anyone fail with
// models.KindConflict until the address is removed.
type Registry struct {
	source    ledger.Source
	addresses *storage.AddressStore
	log       *slog.Logger
	now       func() time.Time
}

// New creates a Registry
func New(source ledger.Source, addresses *storage.AddressStore, logger *slog.Logger) *Registry {
	return &Registry{
		source:    source,
		addresses: addresses,
		log:       logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// AddAddress registers address for username after validating it against the
// ledger. The cached balance is best effort: a failed fetch stores 0.
func (r *Registry) AddAddress(ctx context.Context, address, username string) error {
	const op = "registry.AddAddress"

	if err := r.source.ValidateAddress(ctx, address); err != nil {
		r.log.Info("rejected address", "address", address, "user", username, "error", err)
		return models.E(op, models.KindOf(err), err)
	}

	existing, err := r.addresses.Get(address)
	if err != nil {
		r.log.Error("address lookup failed", "address", address, "error", err)
		return models.E(op, models.KindPersistence, err)
	}
	if existing != nil {
		return models.E(op, models.KindConflict, models.ErrAddressClaimed)
	}

	var balance int64
	if raw, err := r.source.FetchRaw(ctx, address); err != nil {
		r.log.Warn("could not fetch balance, caching 0", "address", address, "error", err)
	} else if raw.FinalBalance != nil {
		balance = *raw.FinalBalance
	}

	rec := &models.AddressRecord{
		Address:       address,
		Owner:         username,
		AddedAt:       r.now(),
		CachedBalance: balance,
	}
	// The lookup above only short-cuts the common case; Create settles
	// concurrent claims.
	if err := r.addresses.Create(rec); err != nil {
		if errors.Is(err, models.ErrAddressClaimed) {
			r.log.Info("address claimed concurrently", "address", address, "user", username)
			return models.E(op, models.KindConflict, err)
		}
		r.log.Error("failed to save address", "address", address, "error", err)
		return models.E(op, models.KindPersistence, err)
	}

	r.log.Info("added address", "address", address, "user", username)
	return nil
}

// RemoveAddress deletes a registered address. It does not check ownership:
// callers confirm the address belongs to the requesting user first (IsOwnedBy).
func (r *Registry) RemoveAddress(ctx context.Context, address string) error {
	const op = "registry.RemoveAddress"

	if err := r.source.ValidateAddress(ctx, address); err != nil {
		return models.E(op, models.KindOf(err), err)
	}

	if err := r.addresses.Delete(address); err != nil {
		if errors.Is(err, models.ErrAddressNotFound) {
			return models.E(op, models.KindNotFound, err)
		}
		r.log.Error("failed to delete address", "address", address, "error", err)
		return models.E(op, models.KindPersistence, err)
	}

	r.log.Info("removed address", "address", address)
	return nil
}

// ListAddressesForUser returns the distinct addresses owned by username, sorted
func (r *Registry) ListAddressesForUser(ctx context.Context, username string) ([]string, error) {
	addrs, err := r.addresses.ListByOwner(username)
	if err != nil {
		r.log.Error("failed to list addresses", "user", username, "error", err)
		return nil, models.E("registry.ListAddressesForUser", models.KindPersistence, err)
	}
	return dedupe(addrs), nil
}

// IsOwnedBy reports whether address is in username's address set
func (r *Registry) IsOwnedBy(ctx context.Context, address, username string) (bool, error) {
	addrs, err := r.ListAddressesForUser(ctx, username)
	if err != nil {
		return false, err
	}
	i := sort.SearchStrings(addrs, address)
	return i < len(addrs) && addrs[i] == address, nil
}

// Records returns the full address records owned by username, sorted by address
func (r *Registry) Records(ctx context.Context, username string) ([]*models.AddressRecord, error) {
	const op = "registry.Records"

	addrs, err := r.ListAddressesForUser(ctx, username)
	if err != nil {
		return nil, err
	}

	recs := make([]*models.AddressRecord, 0, len(addrs))
	for _, a := range addrs {
		rec, err := r.addresses.Get(a)
		if err != nil {
			return nil, models.E(op, models.KindPersistence, err)
		}
		// The index can point at a record removed concurrently.
		if rec == nil || rec.Owner != username {
			continue
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// ScanAddresses reads every address record and keeps those matching filter
func (r *Registry) ScanAddresses(ctx context.Context, filter func(*models.AddressRecord) bool) ([]*models.AddressRecord, error) {
	recs, err := r.addresses.Scan(filter)
	if err != nil {
		return nil, models.E("registry.ScanAddresses", models.KindPersistence, err)
	}
	return recs, nil
}

// RebuildOwnerIndex regenerates the owner index from the address records
func (r *Registry) RebuildOwnerIndex(ctx context.Context) (int, error) {
	n, err := r.addresses.RebuildOwnerIndex()
	if err != nil {
		return 0, models.E("registry.RebuildOwnerIndex", models.KindPersistence, err)
	}
	r.log.Info("rebuilt owner index", "entries", n)
	return n, nil
}

func dedupe(addrs []string) []string {
	seen := make(map[string]struct{}, len(addrs))
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}
