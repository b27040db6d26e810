package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/btcsuite/btcd/chaincfg"

	"github.com/thanhnp/coin-tracker/internal/metrics"
	"github.com/thanhnp/coin-tracker/internal/models"
)

// DefaultBlockchainURL is the public blockchain.info data API
const DefaultBlockchainURL = "https://blockchain.info"

// BlockchainClient is a Source backed by the blockchain.info rawaddr endpoint
type BlockchainClient struct {
	baseURL string
	http    *http.Client
	params  *chaincfg.Params
	txLimit int
	log     *slog.Logger
}

// BlockchainOption customizes a BlockchainClient
type BlockchainOption func(*BlockchainClient)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(c *http.Client) BlockchainOption {
	return func(b *BlockchainClient) { b.http = c }
}

// WithNetParams sets the network used for the local address format check.
// A nil params disables the check.
func WithNetParams(params *chaincfg.Params) BlockchainOption {
	return func(b *BlockchainClient) { b.params = params }
}

// WithTxLimit sets the number of transactions requested per address
func WithTxLimit(n int) BlockchainOption {
	return func(b *BlockchainClient) { b.txLimit = n }
}

// NewBlockchainClient creates a client for baseURL with a request timeout
func NewBlockchainClient(baseURL string, timeout time.Duration, logger *slog.Logger, opts ...BlockchainOption) *BlockchainClient {
	if baseURL == "" {
		baseURL = DefaultBlockchainURL
	}
	c := &BlockchainClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		params:  &chaincfg.MainNetParams,
		log:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *BlockchainClient) rawaddrURL(address string) string {
	u := c.baseURL + "/rawaddr/" + url.PathEscape(address)
	if c.txLimit > 0 {
		u += "?limit=" + strconv.Itoa(c.txLimit)
	}
	return u
}

// ValidateAddress checks the address format locally, then asks the ledger
// whether it knows the address.
func (c *BlockchainClient) ValidateAddress(ctx context.Context, address string) error {
	const op = "ledger.ValidateAddress"

	if c.params != nil {
		if err := CheckFormat(address, c.params); err != nil {
			return err
		}
	}

	resp, err := c.get(ctx, address)
	if err != nil {
		return models.E(op, models.KindExternalService, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if err := classifyStatus(resp.StatusCode); err != nil {
		return models.E(op, models.KindOf(err), err)
	}
	c.log.Debug("validated address", "address", address)
	return nil
}

// FetchRaw returns the balance and recent transactions of an address
func (c *BlockchainClient) FetchRaw(ctx context.Context, address string) (*models.RawLedgerData, error) {
	const op = "ledger.FetchRaw"

	resp, err := c.get(ctx, address)
	if err != nil {
		return nil, models.E(op, models.KindExternalService, err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp.StatusCode); err != nil {
		return nil, models.E(op, models.KindOf(err), err)
	}

	var data models.RawLedgerData
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, models.E(op, models.KindExternalService, fmt.Errorf("failed to decode rawaddr response: %w", err))
	}
	if data.Address == "" {
		data.Address = address
	}
	return &data, nil
}

func (c *BlockchainClient) get(ctx context.Context, address string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.rawaddrURL(address), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	status := "error"
	if err == nil {
		status = strconv.Itoa(resp.StatusCode)
	}
	metrics.LedgerRequestDuration.WithLabelValues("blockchain", status).Observe(time.Since(start).Seconds())
	if err != nil {
		c.log.Warn("ledger request failed", "address", address, "error", err)
		return nil, err
	}
	return resp, nil
}

// classifyStatus maps a rawaddr status code to a classified error
func classifyStatus(code int) error {
	switch {
	case code == http.StatusOK:
		return nil
	case code >= 400 && code < 500 && code != http.StatusTooManyRequests:
		return models.E("", models.KindValidation, fmt.Errorf("%w: ledger returned status %d", models.ErrInvalidAddress, code))
	default:
		return models.E("", models.KindExternalService, fmt.Errorf("ledger returned status %d", code))
	}
}
