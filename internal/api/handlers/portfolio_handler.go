package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/thanhnp/coin-tracker/internal/api/middleware"
	"github.com/thanhnp/coin-tracker/internal/balance"
	"github.com/thanhnp/coin-tracker/internal/registry"
)

// PortfolioHandler serves aggregated views over the caller's addresses
type PortfolioHandler struct {
	registry   *registry.Registry
	aggregator *balance.Aggregator
}

// NewPortfolioHandler creates a new PortfolioHandler
func NewPortfolioHandler(reg *registry.Registry, agg *balance.Aggregator) *PortfolioHandler {
	return &PortfolioHandler{registry: reg, aggregator: agg}
}

// Transactions returns the merged transaction feed, newest first
// GET /api/v1/transactions
func (h *PortfolioHandler) Transactions(c *gin.Context) {
	ctx := c.Request.Context()
	addrs, err := h.registry.ListAddressesForUser(ctx, middleware.Username(c))
	if err != nil {
		writeError(c, err)
		return
	}

	feed, err := h.aggregator.MergedTransactionFeed(ctx, addrs)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count":        len(feed),
		"transactions": feed,
	})
}

// Balances returns the address count, total and per-address live balances
// GET /api/v1/balances
func (h *PortfolioHandler) Balances(c *gin.Context) {
	ctx := c.Request.Context()
	addrs, err := h.registry.ListAddressesForUser(ctx, middleware.Username(c))
	if err != nil {
		writeError(c, err)
		return
	}

	total, err := h.aggregator.TotalBalance(ctx, addrs)
	if err != nil {
		writeError(c, err)
		return
	}
	balances, err := h.aggregator.BalancesByAddress(ctx, addrs)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"address_count": h.aggregator.AddressCount(addrs),
		"total":         total,
		"balances":      balances,
	})
}

// Portfolio returns balances and the merged feed in one response
// GET /api/v1/portfolio
func (h *PortfolioHandler) Portfolio(c *gin.Context) {
	ctx := c.Request.Context()
	addrs, err := h.registry.ListAddressesForUser(ctx, middleware.Username(c))
	if err != nil {
		writeError(c, err)
		return
	}

	p, err := h.aggregator.Portfolio(ctx, addrs)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}
