package domain

import (
	"strings"
	"time"
)

// TenantStatus represents lifecycle states for a tenant.
type TenantStatus string

const (
	TenantStatusActive    TenantStatus = "ACTIVE"
	TenantStatusSuspended TenantStatus = "SUSPENDED"
)

// Tenant is a customer organization served from its own subdomain.
type Tenant struct {
	ID         string       `json:"id"`
	Subdomain  string       `json:"subdomain"`
	Name       string       `json:"name"`
	OwnerEmail string       `json:"owner_email"`
	Status     TenantStatus `json:"status"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

// Active reports whether the tenant may be served.
func (t *Tenant) Active() bool {
	return t != nil && t.Status == TenantStatusActive
}

// ParseTenantStatus maps a status name, in any case, to a known status.
func ParseTenantStatus(raw string) (TenantStatus, bool) {
	switch status := TenantStatus(strings.ToUpper(strings.TrimSpace(raw))); status {
	case TenantStatusActive, TenantStatusSuspended:
		return status, true
	default:
		return "", false
	}
}
