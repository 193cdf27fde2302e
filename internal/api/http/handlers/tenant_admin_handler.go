package handlers

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/flexicms/tenant-gateway/internal/api/dto"
	"github.com/flexicms/tenant-gateway/internal/domain"
	"github.com/flexicms/tenant-gateway/internal/service"
	apperrors "github.com/flexicms/tenant-gateway/pkg/util"
)

// TenantAdminHandler exposes operator actions on registered tenants.
type TenantAdminHandler struct {
	directory *service.TenantDirectory
}

// NewTenantAdminHandler constructs handler.
func NewTenantAdminHandler(directory *service.TenantDirectory) *TenantAdminHandler {
	return &TenantAdminHandler{directory: directory}
}

// UpdateStatus handles PATCH /api/tenants/:subdomain/status.
func (h *TenantAdminHandler) UpdateStatus(c *fiber.Ctx) error {
	var req dto.UpdateTenantStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	status, ok := domain.ParseTenantStatus(req.Status)
	if !ok {
		return apperrors.NewValidationError("unknown tenant status", map[string]any{
			"status":  req.Status,
			"allowed": []domain.TenantStatus{domain.TenantStatusActive, domain.TenantStatusSuspended},
		})
	}

	sub := service.NormalizeSubdomain(c.Params("subdomain"))
	tenant, err := h.directory.SetStatus(c.UserContext(), sub, status)
	switch {
	case errors.Is(err, service.ErrTenantNotFound):
		return apperrors.NewNotFound("tenant", map[string]any{"subdomain": sub})
	case errors.Is(err, service.ErrRegistryUnavailable):
		return apperrors.NewDomainError("REGISTRY_UNAVAILABLE", "tenant registry unavailable", http.StatusServiceUnavailable, nil)
	case err != nil:
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTenantResponse(tenant)})
}
