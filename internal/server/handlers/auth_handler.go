package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"vendgate/pkg/clients/storefront"
)

// AuthHandler exposes storefront session management to the admin UI.
type AuthHandler struct {
	client storefront.Client
	logger *zap.Logger
}

// NewAuthHandler constructs the HTTP handler adapter.
func NewAuthHandler(client storefront.Client, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{client: client, logger: logger}
}

// Login establishes a storefront session with the configured credentials.
func (h *AuthHandler) Login(c *gin.Context) {
	if err := h.client.Login(c.Request.Context()); err != nil {
		h.logger.Warn("storefront login failed", zap.Error(err))

		status := http.StatusBadGateway
		if errors.Is(err, storefront.ErrNotAuthenticated) {
			status = http.StatusUnauthorized
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"authenticated": true})
}

// Logout drops the storefront session.
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.client.Logout(c.Request.Context()); err != nil {
		if errors.Is(err, storefront.ErrNotAuthenticated) {
			// Nothing to log out of.
			c.Status(http.StatusNoContent)
			return
		}
		h.logger.Warn("storefront logout failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.Status(http.StatusNoContent)
}
