package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/flexicms/tenant-gateway/internal/domain"
	"github.com/flexicms/tenant-gateway/internal/repository"
)

var (
	ErrTenantNotFound      = errors.New("tenant not found")
	ErrRegistryUnavailable = errors.New("tenant registry unavailable")
)

// TenantDirectory resolves subdomains to registered tenants, fronted by a
// cache that also remembers misses.
type TenantDirectory struct {
	tenants repository.TenantRepository
	cache   repository.TenantCache
	ttl     time.Duration
	logger  *zap.Logger
}

// NewTenantDirectory builds the directory. tenants may be nil when no database
// is configured; every lookup then fails with ErrRegistryUnavailable.
func NewTenantDirectory(tenants repository.TenantRepository, cache repository.TenantCache, ttl time.Duration, logger *zap.Logger) *TenantDirectory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TenantDirectory{tenants: tenants, cache: cache, ttl: ttl, logger: logger}
}

// Lookup returns the tenant registered for subdomain.
func (d *TenantDirectory) Lookup(ctx context.Context, subdomain string) (*domain.Tenant, error) {
	sub := strings.ToLower(strings.TrimSpace(subdomain))
	if sub == "" {
		return nil, ErrTenantNotFound
	}

	if d.cache != nil {
		tenant, hit, err := d.cache.Get(ctx, sub)
		switch {
		case err != nil:
			d.logger.Warn("tenant cache read failed", zap.String("subdomain", sub), zap.Error(err))
		case hit && tenant == nil:
			return nil, ErrTenantNotFound
		case hit:
			return tenant, nil
		}
	}

	if d.tenants == nil {
		return nil, ErrRegistryUnavailable
	}
	tenant, err := d.tenants.GetBySubdomain(ctx, sub)
	if errors.Is(err, pgx.ErrNoRows) {
		d.store(ctx, sub, nil)
		return nil, ErrTenantNotFound
	}
	if err != nil {
		return nil, err
	}
	d.store(ctx, sub, tenant)
	return tenant, nil
}

// SetStatus moves the tenant behind subdomain to status and drops its cache
// entry, so the page proxy picks the change up on the next request.
func (d *TenantDirectory) SetStatus(ctx context.Context, subdomain string, status domain.TenantStatus) (*domain.Tenant, error) {
	if d.tenants == nil {
		return nil, ErrRegistryUnavailable
	}
	sub := strings.ToLower(strings.TrimSpace(subdomain))
	tenant, err := d.tenants.GetBySubdomain(ctx, sub)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTenantNotFound
	}
	if err != nil {
		return nil, err
	}

	if tenant.Status != status {
		if err := d.tenants.UpdateStatus(ctx, tenant.ID, status); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrTenantNotFound
			}
			return nil, err
		}
		d.logger.Info("tenant status changed",
			zap.String("subdomain", sub),
			zap.String("from", string(tenant.Status)),
			zap.String("to", string(status)))
		tenant.Status = status
	}
	d.Invalidate(ctx, sub)
	return tenant, nil
}

// Invalidate drops any cached entry for subdomain.
func (d *TenantDirectory) Invalidate(ctx context.Context, subdomain string) {
	if d.cache == nil {
		return
	}
	sub := strings.ToLower(strings.TrimSpace(subdomain))
	if err := d.cache.Delete(ctx, sub); err != nil {
		d.logger.Warn("tenant cache invalidate failed", zap.String("subdomain", sub), zap.Error(err))
	}
}

func (d *TenantDirectory) store(ctx context.Context, sub string, tenant *domain.Tenant) {
	if d.cache == nil {
		return
	}
	if err := d.cache.Set(ctx, sub, tenant, d.ttl); err != nil {
		d.logger.Warn("tenant cache write failed", zap.String("subdomain", sub), zap.Error(err))
	}
}
