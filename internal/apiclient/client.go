package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/flexicms/tenant-gateway/internal/config"
	"github.com/flexicms/tenant-gateway/internal/domain"
)

var (
	ErrUnauthorized = errors.New("backend rejected credentials")
	ErrNotFound     = errors.New("backend resource not found")
	ErrConflict     = errors.New("backend resource already exists")
	ErrUnavailable  = errors.New("backend unavailable")
)

// APIError carries an unexpected backend status.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.Status, e.Body)
}

// Client calls the external API server. Authenticated calls take the caller's
// session explicitly; the client holds no credentials of its own.
type Client struct {
	baseURL string
	timeout time.Duration
	logger  *zap.Logger
}

// New constructs a client from backend config.
func New(cfg config.BackendConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		timeout: cfg.Timeout(),
		logger:  logger,
	}
}

// BackendUser is the identity the backend reports after login.
type BackendUser struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	Tenant string `json:"tenant,omitempty"`
}

// LoginResult is the backend's answer to a credential exchange.
type LoginResult struct {
	AccessToken string      `json:"access_token"`
	User        BackendUser `json:"user"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Tenant   string `json:"tenant,omitempty"`
}

// Login exchanges credentials for a backend access token.
func (c *Client) Login(ctx context.Context, email, password, tenant string) (*LoginResult, error) {
	var out LoginResult
	err := c.do(ctx, http.MethodPost, "/auth/login", nil, loginRequest{Email: email, Password: password, Tenant: tenant}, &out)
	if err != nil {
		return nil, err
	}
	if out.AccessToken == "" {
		return nil, &APIError{Status: http.StatusOK, Body: "login response without access_token"}
	}
	return &out, nil
}

// OwnerRegistration creates the first owner account of a new tenant.
type OwnerRegistration struct {
	TenantID  string `json:"tenant_id"`
	Subdomain string `json:"tenant"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Role      string `json:"role"`
}

// RegisterOwner creates the tenant owner in the backend.
func (c *Client) RegisterOwner(ctx context.Context, reg OwnerRegistration) error {
	if reg.Role == "" {
		reg.Role = string(domain.RoleOwner)
	}
	return c.do(ctx, http.MethodPost, "/auth/register", nil, reg, nil)
}

// Logout invalidates the backend token behind session.
func (c *Client) Logout(ctx context.Context, session *domain.Session) error {
	if session == nil || session.APIToken == "" {
		return nil
	}
	return c.do(ctx, http.MethodPost, "/auth/logout", session, nil, nil)
}

// Me returns the backend's view of the session owner.
func (c *Client) Me(ctx context.Context, session *domain.Session) (*BackendUser, error) {
	if session == nil || session.APIToken == "" {
		return nil, ErrUnauthorized
	}
	var out BackendUser
	if err := c.do(ctx, http.MethodGet, "/auth/me", session, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, session *domain.Session, body, out interface{}) error {
	timeout, err := c.deadline(ctx)
	if err != nil {
		return err
	}

	url := c.baseURL + path
	var agent *fiber.Agent
	switch method {
	case http.MethodGet:
		agent = fiber.Get(url)
	case http.MethodPost:
		agent = fiber.Post(url)
	default:
		return fmt.Errorf("unsupported method %s", method)
	}
	agent.Timeout(timeout)
	agent.Set(fiber.HeaderAccept, fiber.MIMEApplicationJSON)
	if session != nil && session.APIToken != "" {
		agent.Set(fiber.HeaderAuthorization, "Bearer "+session.APIToken)
	}
	if body != nil {
		agent.JSON(body)
	}

	start := time.Now()
	status, respBody, errs := agent.Bytes()
	if len(errs) > 0 {
		c.logger.Warn("backend call failed", zap.String("method", method), zap.String("path", path), zap.Errors("errors", errs))
		return fmt.Errorf("%w: %v", ErrUnavailable, errors.Join(errs...))
	}
	c.logger.Debug("backend call",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", status),
		zap.Duration("latency", time.Since(start)))

	switch {
	case status >= 200 && status < 300:
		if out == nil || len(respBody) == 0 {
			return nil
		}
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decode %s response: %w", path, err)
		}
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrUnauthorized
	case status == http.StatusNotFound:
		return ErrNotFound
	case status == http.StatusConflict:
		return ErrConflict
	default:
		return &APIError{Status: status, Body: truncate(string(respBody), 256)}
	}
}

// deadline picks the per-call timeout, shortened by any context deadline.
func (c *Client) deadline(ctx context.Context) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	timeout := c.timeout
	if dl, ok := ctx.Deadline(); ok {
		remaining := time.Until(dl)
		if remaining <= 0 {
			return 0, context.DeadlineExceeded
		}
		if remaining < timeout {
			timeout = remaining
		}
	}
	return timeout, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
