package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"vendgate/internal/domain/models"
	"vendgate/internal/service/allocation"
	"vendgate/pkg/clients/storefront"
)

// AllocationHandler exposes device listing and the allocation edit flow to
// the admin UI.
type AllocationHandler struct {
	client storefront.Client
	svc    *allocation.Service
	logger *zap.Logger
}

// NewAllocationHandler constructs the HTTP handler adapter.
func NewAllocationHandler(client storefront.Client, svc *allocation.Service, logger *zap.Logger) *AllocationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AllocationHandler{client: client, svc: svc, logger: logger}
}

// ListDevices returns the devices registered under the account.
func (h *AllocationHandler) ListDevices(c *gin.Context) {
	devices, err := h.client.ListDevices(c.Request.Context())
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rows": devices})
}

// Open fetches a fresh stock snapshot and starts an allocation edit session
// for the device.
func (h *AllocationHandler) Open(c *gin.Context) {
	deviceID, ok := h.deviceID(c)
	if !ok {
		return
	}

	lines, err := h.svc.Open(c.Request.Context(), deviceID)
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, stateResponse(lines, seedProposals(lines)))
}

// State returns the current snapshot and proposed quantities for an open
// edit session.
func (h *AllocationHandler) State(c *gin.Context) {
	deviceID, ok := h.deviceID(c)
	if !ok {
		return
	}

	lines, proposed, err := h.svc.State(deviceID)
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, stateResponse(lines, proposed))
}

type setQuantityRequest struct {
	// Raw user input; digits are kept, anything else is dropped, empty
	// means zero.
	Quantity string `json:"quantity"`
}

// SetQuantity proposes a quantity for one product of an open edit session.
func (h *AllocationHandler) SetQuantity(c *gin.Context) {
	deviceID, ok := h.deviceID(c)
	if !ok {
		return
	}

	productID, err := strconv.ParseInt(c.Param("productId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product id"})
		return
	}

	var req setQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.svc.SetQuantityInput(deviceID, productID, req.Quantity); err != nil {
		h.renderError(c, err)
		return
	}

	max, err := h.svc.MaxAssignable(deviceID, productID)
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"invoice_product_id": productID,
		"quantity":           allocation.CoerceQuantity(req.Quantity),
		"max_assignable":     max,
	})
}

// Submit validates the whole proposal, sends it to the storefront and
// returns the authoritative post-mutation snapshot.
func (h *AllocationHandler) Submit(c *gin.Context) {
	deviceID, ok := h.deviceID(c)
	if !ok {
		return
	}

	lines, err := h.svc.Submit(c.Request.Context(), deviceID)
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, stateResponse(lines, seedProposals(lines)))
}

// Close discards the edit session without submitting anything.
func (h *AllocationHandler) Close(c *gin.Context) {
	deviceID, ok := h.deviceID(c)
	if !ok {
		return
	}

	h.svc.Close(deviceID)
	c.Status(http.StatusNoContent)
}

func (h *AllocationHandler) deviceID(c *gin.Context) (int64, bool) {
	deviceID, err := strconv.ParseInt(c.Param("deviceId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid device id"})
		return 0, false
	}
	return deviceID, true
}

// renderError maps the service and client error taxonomy onto HTTP statuses.
// Over-allocations carry the numeric breakdown so the UI can explain the
// bound instead of silently clamping.
func (h *AllocationHandler) renderError(c *gin.Context, err error) {
	var over *allocation.OverAllocationError
	if errors.As(err, &over) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":               over.Error(),
			"invoice_product_id":  over.ProductID,
			"requested":           over.Requested,
			"max_assignable":      over.MaxAssignable,
			"warehouse_remaining": over.WarehouseRemaining,
			"assigned_to_device":  over.AssignedToDevice,
		})
		return
	}

	var validation *allocation.ValidationError
	if errors.As(err, &validation) {
		violations := make([]gin.H, 0, len(validation.Violations))
		for _, v := range validation.Violations {
			violations = append(violations, gin.H{
				"invoice_product_id": v.ProductID,
				"proposed":           v.Proposed,
				"max_assignable":     v.MaxAssignable,
			})
		}
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":      validation.Error(),
			"violations": violations,
		})
		return
	}

	var unknown *allocation.UnknownProductError
	switch {
	case errors.As(err, &unknown):
		c.JSON(http.StatusNotFound, gin.H{"error": unknown.Error()})
	case errors.Is(err, allocation.ErrNegativeQuantity):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, allocation.ErrNoEditSession):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, allocation.ErrStaleSnapshot):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, storefront.ErrNotAuthenticated):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	default:
		var network *storefront.NetworkError
		var server *storefront.ServerError
		switch {
		case errors.As(err, &network):
			c.JSON(http.StatusGatewayTimeout, gin.H{"error": network.Error()})
		case errors.As(err, &server):
			c.JSON(http.StatusBadGateway, gin.H{"error": server.Error(), "reason": server.Reason})
		default:
			h.logger.Error("unhandled allocation error", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
	}
}

func stateResponse(lines []models.StockLine, proposed map[int64]int) gin.H {
	return gin.H{"rows": lines, "proposed": proposed}
}

// seedProposals mirrors what a fresh editor proposes: each line's current
// assignment.
func seedProposals(lines []models.StockLine) map[int64]int {
	proposed := make(map[int64]int, len(lines))
	for _, line := range lines {
		proposed[line.ProductID] = line.AssignedQuantity
	}
	return proposed
}
