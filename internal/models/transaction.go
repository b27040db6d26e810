package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionRecord is a transaction persisted during a sync
type TransactionRecord struct {
	Key       string    `json:"key"` // content hash of address, timestamp, balance and fee
	Owner     string    `json:"owner"`
	Address   string    `json:"address"`
	Index     int       `json:"index"` // 1-based position in the sync window
	Timestamp time.Time `json:"timestamp"`
	Balance   int64     `json:"balance"` // in satoshis
	Fee       int64     `json:"fee"`     // in satoshis
	SyncedAt  time.Time `json:"synced_at"`
}

// NormalizedTransaction is a stored transaction converted to BTC
type NormalizedTransaction struct {
	Timestamp time.Time       `json:"timestamp"`
	Balance   decimal.Decimal `json:"balance"`
	Fee       decimal.Decimal `json:"fee"`
}

// FeedEntry is one row of the merged transaction feed across addresses
type FeedEntry struct {
	Address   string          `json:"address"`
	Balance   decimal.Decimal `json:"balance"`
	Fee       decimal.Decimal `json:"fee"`
	Timestamp time.Time       `json:"timestamp"`
}

// Portfolio is the aggregated view over a set of addresses
type Portfolio struct {
	AddressCount int              `json:"address_count"`
	Total        decimal.Decimal  `json:"total"`
	Balances     []AddressBalance `json:"balances"`
	Transactions []FeedEntry      `json:"transactions"`
}
