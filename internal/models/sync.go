package models

import "time"

// SyncState records the outcome of the last sync of an address
type SyncState struct {
	Address      string    `json:"address"`
	LastSyncedAt time.Time `json:"last_synced_at"`
	Available    int       `json:"available"`
	Stored       int       `json:"stored"`
	Truncated    bool      `json:"truncated"`
}

// SyncResult is returned by a single sync call
type SyncResult struct {
	Address string `json:"address"`
	// Available is the number of transactions the ledger returned
	Available int `json:"available"`
	// Stored is the number of records written by this call
	Stored int `json:"stored"`
	// Truncated is set when an incomplete entry stopped the window early
	Truncated bool `json:"truncated"`
}
