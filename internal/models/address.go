package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AddressRecord is a Bitcoin address registered by a user
type AddressRecord struct {
	Address       string    `json:"address"`
	Owner         string    `json:"owner"`
	AddedAt       time.Time `json:"added_at"`
	CachedBalance int64     `json:"cached_balance"` // in satoshis, best effort
}

// AddressBalance pairs an address with its live balance in BTC
type AddressBalance struct {
	Address string          `json:"address"`
	Balance decimal.Decimal `json:"balance"`
}

// AddressView is an address record with its last sync state, if any
type AddressView struct {
	*AddressRecord
	Sync *SyncState `json:"sync,omitempty"`
}
