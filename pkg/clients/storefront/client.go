package storefront

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"vendgate/internal/config"
	"vendgate/internal/domain/models"
)

// Client exposes the storefront cloud API operations used by the application.
type Client interface {
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	ListDevices(ctx context.Context) ([]models.Device, error)
	FetchAllocatable(ctx context.Context, deviceID int64) ([]models.StockLine, error)
	AssignProducts(ctx context.Context, deviceID int64, items []models.AllocationItem) error
	HasSession() bool
}

// APIClient is a resty-backed implementation of Client. The session id is
// held in-process and attached to request paths; the server clears it on
// our side by answering 401 or 403.
type APIClient struct {
	httpClient *resty.Client
	accountID  string
	username   string
	password   string
	logger     *zap.Logger

	mu        sync.RWMutex
	sessionID string
}

// NewClient builds a storefront API client using the provided configuration values.
func NewClient(cfg config.StorefrontConfig, logger *zap.Logger) *APIClient {
	if logger == nil {
		logger = zap.NewNop()
	}

	restyClient := resty.New()
	restyClient.
		SetBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout)

	return &APIClient{
		httpClient: restyClient,
		accountID:  cfg.AccountID,
		username:   cfg.Username,
		password:   cfg.Password,
		logger:     logger,
	}
}

type loginResponse struct {
	SessionID string `json:"session_id"`
}

type rowsResponse[T any] struct {
	Rows []T `json:"rows"`
}

type assignResponse struct {
	OK    bool   `json:"OK"`
	Error string `json:"error"`
}

// apiError mirrors the storefront error payload. Some endpoints use
// "detail", others "error".
type apiError struct {
	Detail string `json:"detail"`
	Error  string `json:"error"`
}

func (e *apiError) reason() string {
	if e == nil {
		return ""
	}
	if e.Detail != "" {
		return e.Detail
	}
	return e.Error
}

// Login authenticates with the configured credentials and stores the
// returned session id for subsequent calls.
func (c *APIClient) Login(ctx context.Context) error {
	result := new(loginResponse)
	apiErr := new(apiError)

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/x-www-form-urlencoded").
		SetFormData(map[string]string{
			"username": c.username,
			"password": c.password,
		}).
		SetResult(result).
		SetError(apiErr).
		Post("/")
	if err != nil {
		return &NetworkError{Op: "login", Err: err}
	}

	if resp.StatusCode() >= http.StatusBadRequest {
		if isAuthStatus(resp.StatusCode()) {
			return notAuthenticated(apiErr.reason())
		}
		return &ServerError{Status: resp.StatusCode(), Reason: apiErr.reason()}
	}

	if result.SessionID == "" {
		return &ServerError{Status: resp.StatusCode(), Reason: "login response carried no session id"}
	}

	c.setSession(result.SessionID)
	c.logger.Info("storefront session established")
	return nil
}

// Logout invalidates the current session on the server and forgets it locally.
func (c *APIClient) Logout(ctx context.Context) error {
	sid, err := c.currentSession()
	if err != nil {
		return err
	}

	resp, err := c.httpClient.R().
		SetContext(ctx).
		Get(fmt.Sprintf("/logout/%s", sid))

	// The local session is gone regardless of what the server answered.
	c.clearSession()

	if err != nil {
		return &NetworkError{Op: "logout", Err: err}
	}
	if resp.StatusCode() >= http.StatusBadRequest && !isAuthStatus(resp.StatusCode()) {
		return &ServerError{Status: resp.StatusCode()}
	}
	return nil
}

// ListDevices returns the devices registered under the configured account.
func (c *APIClient) ListDevices(ctx context.Context) ([]models.Device, error) {
	sid, err := c.currentSession()
	if err != nil {
		return nil, err
	}

	payload := map[string]any{
		"order":  nil,
		"offset": 0,
		"limit":  1000,
		"search": nil,
	}

	result := new(rowsResponse[models.Device])
	apiErr := new(apiError)

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		SetResult(result).
		SetError(apiErr).
		Post(fmt.Sprintf("/devices/list/%s/%s", c.accountID, sid))
	if err != nil {
		return nil, &NetworkError{Op: "list devices", Err: err}
	}
	if err := c.checkStatus(resp, apiErr); err != nil {
		return nil, err
	}

	return result.Rows, nil
}

// FetchAllocatable returns the invoice products that can be allocated to the
// device, with warehouse-remaining and currently-assigned quantities. The
// result is never cached; every call establishes a fresh allocation ceiling.
// An empty list is a valid answer.
func (c *APIClient) FetchAllocatable(ctx context.Context, deviceID int64) ([]models.StockLine, error) {
	sid, err := c.currentSession()
	if err != nil {
		return nil, err
	}

	result := new(rowsResponse[models.StockLine])
	apiErr := new(apiError)

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetResult(result).
		SetError(apiErr).
		Get(fmt.Sprintf("/devices/%d/available-products/%s", deviceID, sid))
	if err != nil {
		return nil, &NetworkError{Op: fmt.Sprintf("fetch allocatable products for device %d", deviceID), Err: err}
	}
	if err := c.checkStatus(resp, apiErr); err != nil {
		return nil, err
	}

	return result.Rows, nil
}

// AssignProducts submits the allocation mutation for the device in a single
// request. Zero quantities are sent as-is: they instruct the server to
// unassign the product. The server re-derives warehouse remainders across
// all devices atomically and is the sole arbiter of the final quantities.
func (c *APIClient) AssignProducts(ctx context.Context, deviceID int64, items []models.AllocationItem) error {
	sid, err := c.currentSession()
	if err != nil {
		return err
	}

	result := new(assignResponse)
	apiErr := new(apiError)

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]any{"products": items}).
		SetResult(result).
		SetError(apiErr).
		Post(fmt.Sprintf("/devices/%d/assign-products/%s", deviceID, sid))
	if err != nil {
		return &NetworkError{Op: fmt.Sprintf("assign products to device %d", deviceID), Err: err}
	}
	if err := c.checkStatus(resp, apiErr); err != nil {
		return err
	}

	if !result.OK {
		return &ServerError{Status: resp.StatusCode(), Reason: result.Error}
	}
	return nil
}

// HasSession reports whether a session id is currently held.
func (c *APIClient) HasSession() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessionID != ""
}

func (c *APIClient) currentSession() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.sessionID == "" {
		return "", ErrNotAuthenticated
	}
	return c.sessionID, nil
}

func (c *APIClient) setSession(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessionID = sessionID
}

func (c *APIClient) clearSession() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessionID = ""
}

// checkStatus translates HTTP failures into the client error taxonomy.
// Auth failures drop the stored session so the next call fails fast.
func (c *APIClient) checkStatus(resp *resty.Response, apiErr *apiError) error {
	status := resp.StatusCode()
	if status < http.StatusBadRequest {
		return nil
	}

	if isAuthStatus(status) {
		c.clearSession()
		c.logger.Warn("storefront session invalidated", zap.Int("status", status))
		return notAuthenticated(apiErr.reason())
	}

	return &ServerError{Status: status, Reason: apiErr.reason()}
}

func isAuthStatus(status int) bool {
	return status == http.StatusUnauthorized || status == http.StatusForbidden
}

func notAuthenticated(reason string) error {
	if reason == "" {
		return ErrNotAuthenticated
	}
	return fmt.Errorf("%w: %s", ErrNotAuthenticated, reason)
}

