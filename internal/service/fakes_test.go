package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/flexicms/tenant-gateway/internal/apiclient"
	"github.com/flexicms/tenant-gateway/internal/config"
	"github.com/flexicms/tenant-gateway/internal/domain"
	"github.com/flexicms/tenant-gateway/internal/events"
	"github.com/flexicms/tenant-gateway/internal/repository"
)

type memTenants struct {
	mu      sync.Mutex
	rows    map[string]*domain.Tenant
	lookups int
	deleted []string
	err     error
}

func newMemTenants(existing ...string) *memTenants {
	m := &memTenants{rows: map[string]*domain.Tenant{}}
	for _, sub := range existing {
		m.rows[sub] = &domain.Tenant{ID: uuid.NewString(), Subdomain: sub, Name: sub, Status: domain.TenantStatusActive}
	}
	return m
}

func (m *memTenants) Create(_ context.Context, t *domain.Tenant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[t.Subdomain]; ok {
		return repository.ErrSubdomainTaken
	}
	t.ID = uuid.NewString()
	t.CreatedAt = time.Now()
	t.UpdatedAt = t.CreatedAt
	cp := *t
	m.rows[t.Subdomain] = &cp
	return nil
}

func (m *memTenants) GetBySubdomain(_ context.Context, sub string) (*domain.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups++
	if m.err != nil {
		return nil, m.err
	}
	t, ok := m.rows[sub]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *t
	return &cp, nil
}

func (m *memTenants) ExistsBySubdomain(_ context.Context, sub string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	_, ok := m.rows[sub]
	return ok, nil
}

func (m *memTenants) UpdateStatus(_ context.Context, id string, status domain.TenantStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.rows {
		if t.ID == id {
			t.Status = status
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (m *memTenants) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for sub, t := range m.rows {
		if t.ID == id {
			delete(m.rows, sub)
			m.deleted = append(m.deleted, sub)
			return nil
		}
	}
	return pgx.ErrNoRows
}

type cacheEntry struct {
	tenant *domain.Tenant
	ttl    time.Duration
}

type memCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	err     error
}

func newMemCache() *memCache {
	return &memCache{entries: map[string]cacheEntry{}}
}

func (c *memCache) Get(_ context.Context, sub string) (*domain.Tenant, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, false, c.err
	}
	e, ok := c.entries[sub]
	return e.tenant, ok, nil
}

func (c *memCache) Set(_ context.Context, sub string, t *domain.Tenant, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.entries[sub] = cacheEntry{tenant: t, ttl: ttl}
	return nil
}

func (c *memCache) Delete(_ context.Context, sub string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, sub)
	return nil
}

type fakeBackend struct {
	loginResult *apiclient.LoginResult
	loginErr    error
	registerErr error
	logoutErr   error
	meErr       error

	registered []apiclient.OwnerRegistration
	loggedOut  []*domain.Session
}

func (f *fakeBackend) Login(_ context.Context, email, _, tenant string) (*apiclient.LoginResult, error) {
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	if f.loginResult != nil {
		return f.loginResult, nil
	}
	return &apiclient.LoginResult{
		AccessToken: "backend-token",
		User:        apiclient.BackendUser{Email: email, Role: "owner", Tenant: tenant},
	}, nil
}

func (f *fakeBackend) RegisterOwner(_ context.Context, reg apiclient.OwnerRegistration) error {
	f.registered = append(f.registered, reg)
	return f.registerErr
}

func (f *fakeBackend) Logout(_ context.Context, s *domain.Session) error {
	f.loggedOut = append(f.loggedOut, s)
	return f.logoutErr
}

func (f *fakeBackend) Me(_ context.Context, s *domain.Session) (*apiclient.BackendUser, error) {
	if f.meErr != nil {
		return nil, f.meErr
	}
	return &apiclient.BackendUser{Email: s.Email, Role: string(s.Role)}, nil
}

type fakeRevocations struct {
	revoked map[string]time.Time
	err     error
}

func (f *fakeRevocations) Revoke(_ context.Context, id string, until time.Time) error {
	if f.err != nil {
		return f.err
	}
	if f.revoked == nil {
		f.revoked = map[string]time.Time{}
	}
	f.revoked[id] = until
	return nil
}

func (f *fakeRevocations) IsRevoked(_ context.Context, id string) (bool, error) {
	_, ok := f.revoked[id]
	return ok, f.err
}

type capturedEvents struct {
	mu     sync.Mutex
	events []events.Event
}

func capture(d events.Dispatcher, types ...events.EventType) *capturedEvents {
	c := &capturedEvents{}
	for _, et := range types {
		d.Subscribe(et, func(_ context.Context, e events.Event) error {
			c.mu.Lock()
			c.events = append(c.events, e)
			c.mu.Unlock()
			return nil
		})
	}
	return c
}

func (c *capturedEvents) all() []events.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]events.Event(nil), c.events...)
}

type queueRecorder struct {
	events []events.Event
	full   bool
}

func (q *queueRecorder) Enqueue(e events.Event) bool {
	if q.full {
		return false
	}
	q.events = append(q.events, e)
	return true
}

func configWithWebhook(url string) config.NotificationConfig {
	return config.NotificationConfig{WebhookURL: url, QueueSize: 4}
}
