package storefront

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vendgate/internal/config"
	"vendgate/internal/domain/models"
)

const testSession = "sess-123"

// fakeStorefront mimics the remote storefront API closely enough to drive
// the client: form login, session id in the path, rows envelopes, OK/error
// assignment responses.
type fakeStorefront struct {
	server   *httptest.Server
	requests atomic.Int64

	lines        []models.StockLine
	assignBodies []map[string]any
	assignReply  gin.H
	fetchStatus  int
}

func newFakeStorefront(t *testing.T) *fakeStorefront {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &fakeStorefront{
		assignReply: gin.H{"OK": true},
		fetchStatus: http.StatusOK,
	}

	r := gin.New()
	r.Use(func(c *gin.Context) {
		f.requests.Add(1)
		c.Next()
	})

	r.POST("/", func(c *gin.Context) {
		if c.PostForm("username") != "admin" || c.PostForm("password") != "secret" {
			c.JSON(http.StatusUnauthorized, gin.H{"detail": "неверный логин или пароль"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"session_id": testSession})
	})

	r.GET("/logout/:session", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	r.POST("/devices/list/:account/:session", func(c *gin.Context) {
		if c.Param("session") != testSession {
			c.JSON(http.StatusForbidden, gin.H{"detail": "session expired"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"rows": []models.Device{
			{ID: 1, Machid: "M-001", Name: "Lobby", Address: "Abay 10"},
		}})
	})

	r.GET("/devices/:deviceId/available-products/:session", func(c *gin.Context) {
		if c.Param("session") != testSession {
			c.JSON(http.StatusForbidden, gin.H{"detail": "session expired"})
			return
		}
		if f.fetchStatus != http.StatusOK {
			c.JSON(f.fetchStatus, gin.H{"detail": "склад недоступен"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"rows": f.lines})
	})

	r.POST("/devices/:deviceId/assign-products/:session", func(c *gin.Context) {
		if c.Param("session") != testSession {
			c.JSON(http.StatusForbidden, gin.H{"detail": "session expired"})
			return
		}
		var body map[string]any
		require.NoError(t, c.ShouldBindJSON(&body))
		f.assignBodies = append(f.assignBodies, body)
		c.JSON(http.StatusOK, f.assignReply)
	})

	f.server = httptest.NewServer(r)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeStorefront) client(t *testing.T) *APIClient {
	t.Helper()
	return NewClient(config.StorefrontConfig{
		BaseURL:   f.server.URL,
		AccountID: "42",
		Username:  "admin",
		Password:  "secret",
		Timeout:   5 * time.Second,
	}, nil)
}

func TestClient_LoginStoresSession(t *testing.T) {
	fake := newFakeStorefront(t)
	client := fake.client(t)

	assert.False(t, client.HasSession())
	require.NoError(t, client.Login(context.Background()))
	assert.True(t, client.HasSession())
}

func TestClient_LoginBadCredentials(t *testing.T) {
	fake := newFakeStorefront(t)
	client := NewClient(config.StorefrontConfig{
		BaseURL:   fake.server.URL,
		AccountID: "42",
		Username:  "admin",
		Password:  "wrong",
		Timeout:   5 * time.Second,
	}, nil)

	err := client.Login(context.Background())
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	assert.Contains(t, err.Error(), "неверный логин или пароль")
	assert.False(t, client.HasSession())
}

func TestClient_FetchWithoutSessionFailsFast(t *testing.T) {
	fake := newFakeStorefront(t)
	client := fake.client(t)

	_, err := client.FetchAllocatable(context.Background(), 1)
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	assert.Zero(t, fake.requests.Load(), "no network call without a session")
}

func TestClient_FetchAllocatable(t *testing.T) {
	fake := newFakeStorefront(t)
	fake.lines = []models.StockLine{
		{ProductID: 7, NameRU: "Кофе", NameKZ: "Кофе", Category: "drinks", AvailableQuantity: 5, AssignedQuantity: 3},
		{ProductID: 2, NameRU: "Чай", AvailableQuantity: 0, AssignedQuantity: 4},
	}

	client := fake.client(t)
	require.NoError(t, client.Login(context.Background()))

	lines, err := client.FetchAllocatable(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, fake.lines, lines)
}

func TestClient_FetchEmptyListIsNotAnError(t *testing.T) {
	fake := newFakeStorefront(t)
	client := fake.client(t)
	require.NoError(t, client.Login(context.Background()))

	lines, err := client.FetchAllocatable(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestClient_AuthFailureClearsSession(t *testing.T) {
	fake := newFakeStorefront(t)
	client := fake.client(t)
	require.NoError(t, client.Login(context.Background()))

	// Force a session the server no longer recognizes.
	client.setSession("stale")

	_, err := client.FetchAllocatable(context.Background(), 1)
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	assert.False(t, client.HasSession(), "401/403 drops the local session")
}

func TestClient_ServerErrorCarriesReason(t *testing.T) {
	fake := newFakeStorefront(t)
	fake.fetchStatus = http.StatusInternalServerError

	client := fake.client(t)
	require.NoError(t, client.Login(context.Background()))

	_, err := client.FetchAllocatable(context.Background(), 1)
	var server *ServerError
	require.ErrorAs(t, err, &server)
	assert.Equal(t, http.StatusInternalServerError, server.Status)
	assert.Equal(t, "склад недоступен", server.Reason)
}

func TestClient_AssignProductsPayload(t *testing.T) {
	fake := newFakeStorefront(t)
	client := fake.client(t)
	require.NoError(t, client.Login(context.Background()))

	err := client.AssignProducts(context.Background(), 1, []models.AllocationItem{
		{ProductID: 7, Quantity: 8},
		{ProductID: 2, Quantity: 0},
	})
	require.NoError(t, err)

	require.Len(t, fake.assignBodies, 1)
	products, ok := fake.assignBodies[0]["products"].([]any)
	require.True(t, ok)
	require.Len(t, products, 2)

	// The explicit zero must survive serialization: it means "unassign".
	second, ok := products[1].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(2), second["invoice_product_id"])
	assert.Equal(t, float64(0), second["quantity"])
}

func TestClient_AssignProductsRejected(t *testing.T) {
	fake := newFakeStorefront(t)
	fake.assignReply = gin.H{"OK": false, "error": "недостаточно товара на складе"}

	client := fake.client(t)
	require.NoError(t, client.Login(context.Background()))

	err := client.AssignProducts(context.Background(), 1, []models.AllocationItem{{ProductID: 7, Quantity: 8}})
	var server *ServerError
	require.ErrorAs(t, err, &server)
	assert.Equal(t, "недостаточно товара на складе", server.Reason)
}

func TestClient_ListDevices(t *testing.T) {
	fake := newFakeStorefront(t)
	client := fake.client(t)
	require.NoError(t, client.Login(context.Background()))

	devices, err := client.ListDevices(context.Background())
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, "M-001", devices[0].Machid)
}

func TestClient_NetworkFailure(t *testing.T) {
	client := NewClient(config.StorefrontConfig{
		BaseURL:   "http://127.0.0.1:1",
		AccountID: "42",
		Username:  "admin",
		Password:  "secret",
		Timeout:   time.Second,
	}, nil)
	client.setSession(testSession)

	_, err := client.FetchAllocatable(context.Background(), 1)
	var network *NetworkError
	assert.ErrorAs(t, err, &network)
}
