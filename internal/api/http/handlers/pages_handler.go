package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/proxy"
	"go.uber.org/zap"

	"github.com/flexicms/tenant-gateway/internal/config"
	"github.com/flexicms/tenant-gateway/internal/routing"
	"github.com/flexicms/tenant-gateway/internal/service"
	apperrors "github.com/flexicms/tenant-gateway/pkg/util"
)

// Headers added to proxied tenant requests.
const (
	HeaderTenantSubdomain = "X-Tenant-Subdomain"
	HeaderTenantID        = "X-Tenant-ID"
)

// PagesHandler forwards page requests to the renderer.
type PagesHandler struct {
	renderer  string
	timeout   time.Duration
	directory *service.TenantDirectory
	logger    *zap.Logger
}

// NewPagesHandler constructs handler.
func NewPagesHandler(cfg config.RendererConfig, directory *service.TenantDirectory, logger *zap.Logger) *PagesHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PagesHandler{
		renderer:  strings.TrimRight(cfg.URL, "/"),
		timeout:   cfg.Timeout(),
		directory: directory,
		logger:    logger,
	}
}

// Tenant handles /s/:subdomain/*. Only requests rewritten by the tenancy
// middleware reach a tenant; a literal /s/... path from a client does not.
func (h *PagesHandler) Tenant(c *fiber.Ctx) error {
	sub := strings.ToLower(c.Params("subdomain"))
	rewritten, ok := routing.RewrittenTenant(c)
	if !ok || rewritten != sub {
		return apperrors.NewNotFound("page", nil)
	}

	tenant, err := h.directory.Lookup(c.UserContext(), sub)
	switch {
	case errors.Is(err, service.ErrTenantNotFound):
		return apperrors.NewNotFound("tenant", map[string]any{"subdomain": sub})
	case errors.Is(err, service.ErrRegistryUnavailable):
		return apperrors.NewDomainError("REGISTRY_UNAVAILABLE", "tenant registry unavailable", http.StatusServiceUnavailable, nil)
	case err != nil:
		return err
	}
	if !tenant.Active() {
		return apperrors.NewNotFound("tenant", map[string]any{"subdomain": sub})
	}

	c.Request().Header.Set(HeaderTenantSubdomain, tenant.Subdomain)
	c.Request().Header.Set(HeaderTenantID, tenant.ID)
	return h.forward(c)
}

// Site handles every other page path.
func (h *PagesHandler) Site(c *fiber.Ctx) error {
	c.Request().Header.Del(HeaderTenantSubdomain)
	c.Request().Header.Del(HeaderTenantID)
	return h.forward(c)
}

func (h *PagesHandler) forward(c *fiber.Ctx) error {
	if h.renderer == "" {
		return apperrors.NewBadGateway("RENDERER_UNAVAILABLE", "page renderer not configured", nil)
	}

	target := h.renderer + c.Path()
	if q := c.Request().URI().QueryString(); len(q) > 0 {
		target += "?" + string(q)
	}
	c.Request().Header.Set(fiber.HeaderXForwardedHost, string(c.Request().Host()))

	if err := proxy.DoTimeout(c, target, h.timeout); err != nil {
		h.logger.Warn("renderer request failed", zap.String("target", target), zap.Error(err))
		return apperrors.NewBadGateway("RENDERER_UNAVAILABLE", "page renderer unreachable", err)
	}
	c.Response().Header.Del(fiber.HeaderServer)
	return nil
}
