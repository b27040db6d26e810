package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/thanhnp/coin-tracker/internal/api/middleware"
	"github.com/thanhnp/coin-tracker/internal/models"
	"github.com/thanhnp/coin-tracker/internal/registry"
	"github.com/thanhnp/coin-tracker/internal/sync"
	"github.com/thanhnp/coin-tracker/internal/worker"
)

// Scheduler runs background tasks
type Scheduler interface {
	Submit(task worker.Task) error
}

// AddressHandler handles address-related API requests
type AddressHandler struct {
	registry  *registry.Registry
	syncer    *sync.Synchronizer
	scheduler Scheduler
	readLimit int
	log       *slog.Logger
}

// NewAddressHandler creates a new AddressHandler
func NewAddressHandler(
	reg *registry.Registry,
	syncer *sync.Synchronizer,
	scheduler Scheduler,
	readLimit int,
	logger *slog.Logger,
) *AddressHandler {
	return &AddressHandler{
		registry:  reg,
		syncer:    syncer,
		scheduler: scheduler,
		readLimit: readLimit,
		log:       logger,
	}
}

type addAddressRequest struct {
	Address string `json:"address" binding:"required"`
}

// List returns the caller's address records with their sync state
// GET /api/v1/addresses
func (h *AddressHandler) List(c *gin.Context) {
	ctx := c.Request.Context()
	username := middleware.Username(c)

	recs, err := h.registry.Records(ctx, username)
	if err != nil {
		writeError(c, err)
		return
	}

	views := make([]models.AddressView, 0, len(recs))
	for _, rec := range recs {
		state, err := h.syncer.State(ctx, rec.Address)
		if err != nil {
			writeError(c, err)
			return
		}
		views = append(views, models.AddressView{AddressRecord: rec, Sync: state})
	}

	c.JSON(http.StatusOK, gin.H{
		"count":     len(views),
		"addresses": views,
	})
}

// Add registers an address for the caller and schedules its first sync
// POST /api/v1/addresses
func (h *AddressHandler) Add(c *gin.Context) {
	var req addAddressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "address is required"})
		return
	}

	username := middleware.Username(c)
	if err := h.registry.AddAddress(c.Request.Context(), req.Address, username); err != nil {
		writeError(c, err)
		return
	}

	scheduled := h.scheduleSync(username, req.Address)
	c.JSON(http.StatusCreated, gin.H{
		"address":        req.Address,
		"owner":          username,
		"sync_scheduled": scheduled,
	})
}

func (h *AddressHandler) scheduleSync(username, address string) bool {
	if h.scheduler == nil {
		return false
	}
	err := h.scheduler.Submit(func(ctx context.Context) {
		if _, err := h.syncer.Sync(ctx, username, address); err != nil {
			h.log.Warn("background sync failed", "address", address, "user", username, "error", err)
		}
	})
	if err != nil {
		h.log.Warn("could not schedule sync", "address", address, "error", err)
		return false
	}
	return true
}

// Remove deletes one of the caller's addresses
// DELETE /api/v1/addresses/:address
func (h *AddressHandler) Remove(c *gin.Context) {
	address, ok := h.requireOwned(c)
	if !ok {
		return
	}

	if err := h.registry.RemoveAddress(c.Request.Context(), address); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Sync synchronizes one of the caller's addresses against fresh ledger data
// and returns the outcome
// POST /api/v1/addresses/:address/sync
func (h *AddressHandler) Sync(c *gin.Context) {
	address, ok := h.requireOwned(c)
	if !ok {
		return
	}

	res, err := h.syncer.Resync(c.Request.Context(), middleware.Username(c), address)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GetTransactions returns stored transactions of one of the caller's addresses
// GET /api/v1/addresses/:address/transactions?limit=
func (h *AddressHandler) GetTransactions(c *gin.Context) {
	address, ok := h.requireOwned(c)
	if !ok {
		return
	}

	limit := h.readLimit
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	txs, err := h.syncer.ReadTransactions(c.Request.Context(), address, limit)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"address":      address,
		"count":        len(txs),
		"transactions": txs,
	})
}

// requireOwned writes a 404 unless the address belongs to the caller
func (h *AddressHandler) requireOwned(c *gin.Context) (string, bool) {
	address := c.Param("address")
	owned, err := h.registry.IsOwnedBy(c.Request.Context(), address, middleware.Username(c))
	if err != nil {
		writeError(c, err)
		return "", false
	}
	if !owned {
		c.JSON(http.StatusNotFound, gin.H{"error": "Address not found"})
		return "", false
	}
	return address, true
}
