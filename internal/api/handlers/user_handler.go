package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/thanhnp/coin-tracker/internal/models"
)

// Registrar creates user accounts
type Registrar interface {
	Register(ctx context.Context, username, password string) (*models.User, error)
}

// UserHandler handles account registration
type UserHandler struct {
	users Registrar
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(users Registrar) *UserHandler {
	return &UserHandler{users: users}
}

type registerRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Register creates a user
// POST /api/v1/users
func (h *UserHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}

	user, err := h.users.Register(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, user)
}
