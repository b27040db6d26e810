package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"

	"github.com/thanhnp/coin-tracker/internal/ledger"
	"github.com/thanhnp/coin-tracker/internal/metrics"
	"github.com/thanhnp/coin-tracker/internal/models"
)

const defaultPageSize = 100

// NodeClient is the subset of rpcclient.Client used by NodeLedger
type NodeClient interface {
	RawRequest(method string, params []json.RawMessage) (json.RawMessage, error)
	SearchRawTransactionsVerbose(address btcutil.Address, skip, count int, includePrevOut, reverse bool, filterAddrs []string) ([]*btcjson.SearchRawTransactionsResult, error)
}

// NodeLedger is a ledger.Source backed by a bitcoin node with an address index
type NodeLedger struct {
	client   NodeClient
	params   *chaincfg.Params
	txLimit  int
	pageSize int
	log      *slog.Logger
}

// NewNodeLedger creates a NodeLedger. txLimit bounds the transactions
// returned per address; the final balance always covers the full history.
func NewNodeLedger(client NodeClient, params *chaincfg.Params, txLimit int, logger *slog.Logger) *NodeLedger {
	if params == nil {
		params = &chaincfg.MainNetParams
	}
	return &NodeLedger{
		client:   client,
		params:   params,
		txLimit:  txLimit,
		pageSize: defaultPageSize,
		log:      logger,
	}
}

// ValidateAddress checks the address format locally, then with the node
func (n *NodeLedger) ValidateAddress(ctx context.Context, address string) error {
	const op = "rpc.ValidateAddress"

	if err := ledger.CheckFormat(address, n.params); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return models.E(op, models.KindExternalService, err)
	}
	param, err := json.Marshal(address)
	if err != nil {
		return models.E(op, models.KindValidation, err)
	}

	start := time.Now()
	reply, err := n.client.RawRequest("validateaddress", []json.RawMessage{param})
	n.observe(start, err)
	if err != nil {
		n.log.Warn("node validateaddress failed", "address", address, "error", err)
		return models.E(op, models.KindExternalService, err)
	}
	var res btcjson.ValidateAddressChainResult
	if err := json.Unmarshal(reply, &res); err != nil {
		return models.E(op, models.KindExternalService, err)
	}
	if !res.IsValid {
		return models.E(op, models.KindValidation, models.ErrInvalidAddress)
	}
	return nil
}

// FetchRaw pages through the address's history, newest first, and returns
// the leading txLimit entries with the balance of the whole history.
func (n *NodeLedger) FetchRaw(ctx context.Context, address string) (*models.RawLedgerData, error) {
	const op = "rpc.FetchRaw"

	addr, err := btcutil.DecodeAddress(address, n.params)
	if err != nil {
		return nil, models.E(op, models.KindValidation, models.ErrInvalidAddress)
	}

	var (
		balance int64
		count   int
	)
	txs := make([]models.RawTransaction, 0)
	for skip := 0; ; skip += n.pageSize {
		if err := ctx.Err(); err != nil {
			return nil, models.E(op, models.KindExternalService, err)
		}

		start := time.Now()
		page, err := n.client.SearchRawTransactionsVerbose(addr, skip, n.pageSize, true, true, nil)
		if isNoTxInfo(err) {
			err = nil
			page = nil
		}
		n.observe(start, err)
		if err != nil {
			n.log.Warn("node searchrawtransactions failed", "address", address, "skip", skip, "error", err)
			return nil, models.E(op, models.KindExternalService, err)
		}

		for _, tx := range page {
			raw, err := toRawTransaction(address, tx)
			if err != nil {
				return nil, models.E(op, models.KindDataIntegrity, err)
			}
			balance += *raw.Balance
			count++
			if n.txLimit <= 0 || len(txs) < n.txLimit {
				txs = append(txs, raw)
			}
		}
		if len(page) < n.pageSize {
			break
		}
	}

	return &models.RawLedgerData{
		Address:      address,
		FinalBalance: &balance,
		TxCount:      count,
		Transactions: txs,
	}, nil
}

func (n *NodeLedger) observe(start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.LedgerRequestDuration.WithLabelValues("node", status).Observe(time.Since(start).Seconds())
}

// isNoTxInfo reports the node's answer for an address with no history
func isNoTxInfo(err error) bool {
	var rpcErr *btcjson.RPCError
	return errors.As(err, &rpcErr) && rpcErr.Code == btcjson.ErrRPCNoTxInfo
}

// toRawTransaction computes the net effect of tx on address and the fee it
// paid. Unconfirmed transactions carry no time.
func toRawTransaction(address string, tx *btcjson.SearchRawTransactionsResult) (models.RawTransaction, error) {
	var received, sent, in, out int64
	coinbase := false
	prevoutsKnown := true

	for _, vout := range tx.Vout {
		amt, err := btcutil.NewAmount(vout.Value)
		if err != nil {
			return models.RawTransaction{}, err
		}
		out += int64(amt)
		if contains(vout.ScriptPubKey.Addresses, address) {
			received += int64(amt)
		}
	}
	for _, vin := range tx.Vin {
		if vin.IsCoinBase() {
			coinbase = true
			continue
		}
		if vin.PrevOut == nil {
			prevoutsKnown = false
			continue
		}
		amt, err := btcutil.NewAmount(vin.PrevOut.Value)
		if err != nil {
			return models.RawTransaction{}, err
		}
		in += int64(amt)
		if contains(vin.PrevOut.Addresses, address) {
			sent += int64(amt)
		}
	}

	balance := received - sent
	raw := models.RawTransaction{
		Hash:    tx.Txid,
		Balance: &balance,
	}
	if !coinbase && prevoutsKnown {
		fee := in - out
		raw.Fee = &fee
	} else if coinbase {
		var zero int64
		raw.Fee = &zero
	}

	ts := tx.Time
	if ts == 0 {
		ts = tx.Blocktime
	}
	if ts != 0 {
		raw.Time = &ts
	}
	return raw, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
