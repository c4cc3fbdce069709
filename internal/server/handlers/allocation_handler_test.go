package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vendgate/internal/domain/models"
	"vendgate/internal/service/allocation"
)

type fakeStorefront struct {
	lines  []models.StockLine
	assign func(items []models.AllocationItem) error
}

func (f *fakeStorefront) Login(context.Context) error  { return nil }
func (f *fakeStorefront) Logout(context.Context) error { return nil }
func (f *fakeStorefront) HasSession() bool             { return true }

func (f *fakeStorefront) ListDevices(context.Context) ([]models.Device, error) {
	return []models.Device{{ID: 1, Machid: "M-001", Name: "Lobby"}}, nil
}

func (f *fakeStorefront) FetchAllocatable(context.Context, int64) ([]models.StockLine, error) {
	return f.lines, nil
}

func (f *fakeStorefront) AssignProducts(_ context.Context, _ int64, items []models.AllocationItem) error {
	if f.assign != nil {
		return f.assign(items)
	}
	return nil
}

func newTestRouter(client *fakeStorefront) http.Handler {
	gin.SetMode(gin.TestMode)

	svc := allocation.NewService(client, nil)
	alloc := NewAllocationHandler(client, svc, nil)

	r := gin.New()
	r.POST("/devices/:deviceId/allocation/open", alloc.Open)
	r.GET("/devices/:deviceId/allocation", alloc.State)
	r.PUT("/devices/:deviceId/allocation/items/:productId", alloc.SetQuantity)
	r.POST("/devices/:deviceId/allocation/submit", alloc.Submit)
	r.DELETE("/devices/:deviceId/allocation", alloc.Close)
	return r
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var payload map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	}
	return rec, payload
}

func TestAllocationFlow(t *testing.T) {
	client := &fakeStorefront{
		lines: []models.StockLine{
			{ProductID: 7, NameRU: "Кофе", AvailableQuantity: 5, AssignedQuantity: 3},
		},
	}
	router := newTestRouter(client)

	rec, payload := doJSON(t, router, http.MethodPost, "/devices/1/allocation/open", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, payload["rows"], 1)

	rec, payload = doJSON(t, router, http.MethodPut, "/devices/1/allocation/items/7", `{"quantity":"8"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(8), payload["quantity"])
	assert.Equal(t, float64(8), payload["max_assignable"])

	var sent []models.AllocationItem
	client.assign = func(items []models.AllocationItem) error {
		sent = items
		return nil
	}

	rec, _ = doJSON(t, router, http.MethodPost, "/devices/1/allocation/submit", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []models.AllocationItem{{ProductID: 7, Quantity: 8}}, sent)
}

func TestSetQuantityOverAllocationBreakdown(t *testing.T) {
	client := &fakeStorefront{
		lines: []models.StockLine{
			{ProductID: 7, AvailableQuantity: 5, AssignedQuantity: 3},
		},
	}
	router := newTestRouter(client)

	rec, _ := doJSON(t, router, http.MethodPost, "/devices/1/allocation/open", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec, payload := doJSON(t, router, http.MethodPut, "/devices/1/allocation/items/7", `{"quantity":"9"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	// The UI needs the split to explain the bound, not just a message.
	assert.Equal(t, float64(9), payload["requested"])
	assert.Equal(t, float64(8), payload["max_assignable"])
	assert.Equal(t, float64(5), payload["warehouse_remaining"])
	assert.Equal(t, float64(3), payload["assigned_to_device"])

	// The rejected edit did not stick.
	rec, payload = doJSON(t, router, http.MethodGet, "/devices/1/allocation", "")
	require.Equal(t, http.StatusOK, rec.Code)
	proposed, ok := payload["proposed"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(3), proposed["7"])
}

func TestSetQuantityWithoutOpenSession(t *testing.T) {
	router := newTestRouter(&fakeStorefront{})

	rec, _ := doJSON(t, router, http.MethodPut, "/devices/1/allocation/items/7", `{"quantity":"1"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSetQuantityUnknownProduct(t *testing.T) {
	client := &fakeStorefront{
		lines: []models.StockLine{{ProductID: 7, AvailableQuantity: 5}},
	}
	router := newTestRouter(client)

	rec, _ := doJSON(t, router, http.MethodPost, "/devices/1/allocation/open", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = doJSON(t, router, http.MethodPut, "/devices/1/allocation/items/404", `{"quantity":"1"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCloseDiscardsSession(t *testing.T) {
	client := &fakeStorefront{
		lines: []models.StockLine{{ProductID: 7, AvailableQuantity: 5}},
	}
	router := newTestRouter(client)

	rec, _ := doJSON(t, router, http.MethodPost, "/devices/1/allocation/open", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = doJSON(t, router, http.MethodDelete, "/devices/1/allocation", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec, _ = doJSON(t, router, http.MethodGet, "/devices/1/allocation", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
