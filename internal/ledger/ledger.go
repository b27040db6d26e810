// Package ledger defines the source of address validity and raw transaction
// history, and provides a blockchain.info-backed implementation.
package ledger

import (
	"context"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"

	"github.com/thanhnp/coin-tracker/internal/models"
)

// Source validates addresses and returns their raw ledger data.
//
// ValidateAddress returns nil for an address the ledger knows, an error of
// kind models.KindValidation for one it rejects and models.KindExternalService
// when the ledger could not answer.
type Source interface {
	ValidateAddress(ctx context.Context, address string) error
	FetchRaw(ctx context.Context, address string) (*models.RawLedgerData, error)
}

// CheckFormat decodes address for the given network without contacting any
// ledger.
func CheckFormat(address string, params *chaincfg.Params) error {
	decoded, err := btcutil.DecodeAddress(address, params)
	if err != nil {
		return models.E("ledger.CheckFormat", models.KindValidation, models.ErrInvalidAddress)
	}
	if !decoded.IsForNet(params) {
		return models.E("ledger.CheckFormat", models.KindValidation, models.ErrInvalidAddress)
	}
	return nil
}

// NetParams maps a network name from config to its chain parameters
func NetParams(network string) *chaincfg.Params {
	switch network {
	case "testnet", "testnet3":
		return &chaincfg.TestNet3Params
	case "regtest":
		return &chaincfg.RegressionNetParams
	case "signet":
		return &chaincfg.SigNetParams
	default:
		return &chaincfg.MainNetParams
	}
}
