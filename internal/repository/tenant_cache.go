package repository

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/flexicms/tenant-gateway/internal/domain"
)

const (
	tenantCachePrefix = "tenant:"
	tenantMissMarker  = "-"
)

// TenantCache holds recent tenant lookups. A hit with a nil tenant is a cached
// miss.
type TenantCache interface {
	Get(ctx context.Context, subdomain string) (tenant *domain.Tenant, hit bool, err error)
	Set(ctx context.Context, subdomain string, tenant *domain.Tenant, ttl time.Duration) error
	Delete(ctx context.Context, subdomain string) error
}

type redisTenantCache struct {
	client *redis.Client
}

// NewRedisTenantCache caches tenants under tenant:<subdomain>. A nil client
// yields a cache that never hits.
func NewRedisTenantCache(client *redis.Client) TenantCache {
	return &redisTenantCache{client: client}
}

func tenantCacheKey(subdomain string) string {
	return tenantCachePrefix + strings.ToLower(subdomain)
}

func (c *redisTenantCache) Get(ctx context.Context, subdomain string) (*domain.Tenant, bool, error) {
	if c.client == nil {
		return nil, false, nil
	}
	raw, err := c.client.Get(ctx, tenantCacheKey(subdomain)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if raw == tenantMissMarker {
		return nil, true, nil
	}
	var t domain.Tenant
	if err := json.Unmarshal([]byte(raw), &t); err != nil {
		return nil, false, err
	}
	return &t, true, nil
}

func (c *redisTenantCache) Set(ctx context.Context, subdomain string, tenant *domain.Tenant, ttl time.Duration) error {
	if c.client == nil || ttl <= 0 {
		return nil
	}
	value := tenantMissMarker
	if tenant != nil {
		raw, err := json.Marshal(tenant)
		if err != nil {
			return err
		}
		value = string(raw)
	}
	return c.client.Set(ctx, tenantCacheKey(subdomain), value, ttl).Err()
}

func (c *redisTenantCache) Delete(ctx context.Context, subdomain string) error {
	if c.client == nil {
		return nil
	}
	return c.client.Del(ctx, tenantCacheKey(subdomain)).Err()
}
