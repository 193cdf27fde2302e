package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flexicms/tenant-gateway/internal/domain"
)

// ErrSubdomainTaken is returned when an insert collides with an existing subdomain.
var ErrSubdomainTaken = errors.New("subdomain already registered")

const uniqueViolation = "23505"

// TenantRepository manages the tenant registry.
type TenantRepository interface {
	Create(ctx context.Context, tenant *domain.Tenant) error
	GetBySubdomain(ctx context.Context, subdomain string) (*domain.Tenant, error)
	ExistsBySubdomain(ctx context.Context, subdomain string) (bool, error)
	UpdateStatus(ctx context.Context, id string, status domain.TenantStatus) error
	Delete(ctx context.Context, id string) error
}

type tenantRepository struct {
	pool *pgxpool.Pool
}

// NewTenantRepository builds the repository.
func NewTenantRepository(pool *pgxpool.Pool) TenantRepository {
	return &tenantRepository{pool: pool}
}

func (r *tenantRepository) Create(ctx context.Context, tenant *domain.Tenant) error {
	const query = `
        INSERT INTO tenants (subdomain, name, owner_email, status)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at, updated_at`
	if tenant.Status == "" {
		tenant.Status = domain.TenantStatusActive
	}
	err := r.pool.QueryRow(ctx, query,
		strings.ToLower(tenant.Subdomain),
		tenant.Name,
		tenant.OwnerEmail,
		tenant.Status,
	).Scan(&tenant.ID, &tenant.CreatedAt, &tenant.UpdatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrSubdomainTaken
	}
	return err
}

func (r *tenantRepository) GetBySubdomain(ctx context.Context, subdomain string) (*domain.Tenant, error) {
	const query = `
        SELECT id, subdomain, name, owner_email, status, created_at, updated_at
        FROM tenants WHERE LOWER(subdomain)=LOWER($1)`
	var t domain.Tenant
	if err := r.pool.QueryRow(ctx, query, subdomain).Scan(
		&t.ID,
		&t.Subdomain,
		&t.Name,
		&t.OwnerEmail,
		&t.Status,
		&t.CreatedAt,
		&t.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *tenantRepository) ExistsBySubdomain(ctx context.Context, subdomain string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM tenants WHERE LOWER(subdomain)=LOWER($1))`
	var exists bool
	if err := r.pool.QueryRow(ctx, query, subdomain).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *tenantRepository) UpdateStatus(ctx context.Context, id string, status domain.TenantStatus) error {
	const query = `UPDATE tenants SET status=$1, updated_at=NOW() WHERE id=$2`
	cmd, err := r.pool.Exec(ctx, query, status, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *tenantRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM tenants WHERE id=$1`
	cmd, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
