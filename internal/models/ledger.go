package models

// RawLedgerData is the per-address payload returned by a ledger source.
// Transactions is nil when the source response carried no transaction list.
type RawLedgerData struct {
	Address      string           `json:"address"`
	FinalBalance *int64           `json:"final_balance"`
	TxCount      int              `json:"n_tx"`
	Transactions []RawTransaction `json:"txs"`
}

// RawTransaction is a single ledger transaction entry. Fields the source
// did not send are left nil.
type RawTransaction struct {
	Hash    string `json:"hash"`
	Time    *int64 `json:"time"`
	Balance *int64 `json:"balance"`
	Fee     *int64 `json:"fee"`
}

// Complete reports whether the entry carries time, balance and fee
func (t RawTransaction) Complete() bool {
	return t.Time != nil && t.Balance != nil && t.Fee != nil
}
