package dto

import (
	"time"

	"github.com/flexicms/tenant-gateway/internal/domain"
)

// SignupRequest payload for POST /api/signup.
type SignupRequest struct {
	Name       string `json:"name"`
	Subdomain  string `json:"subdomain"`
	OwnerEmail string `json:"owner_email"`
	Password   string `json:"password"`
}

// UpdateTenantStatusRequest payload for PATCH /api/tenants/:subdomain/status.
type UpdateTenantStatusRequest struct {
	Status string `json:"status"`
}

// TenantResponse is the public tenant view.
type TenantResponse struct {
	ID        string              `json:"id"`
	Subdomain string              `json:"subdomain"`
	Name      string              `json:"name"`
	Status    domain.TenantStatus `json:"status"`
	CreatedAt time.Time           `json:"created_at"`
}

// SignupResponse is returned once a tenant is provisioned.
type SignupResponse struct {
	Tenant TenantResponse `json:"tenant"`
	URL    string         `json:"url"`
}

// AvailabilityResponse answers a subdomain availability check.
type AvailabilityResponse struct {
	Subdomain string `json:"subdomain"`
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}

// NewTenantResponse maps a domain tenant.
func NewTenantResponse(t *domain.Tenant) TenantResponse {
	return TenantResponse{
		ID:        t.ID,
		Subdomain: t.Subdomain,
		Name:      t.Name,
		Status:    t.Status,
		CreatedAt: t.CreatedAt,
	}
}
