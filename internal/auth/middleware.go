package auth

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/flexicms/tenant-gateway/internal/domain"
)

const sessionKey = "auth_session"

type resolvedSession struct {
	session *domain.Session
}

// SessionLoader resolves the caller's session once per request and keeps the
// result in the request's locals.
type SessionLoader struct {
	resolver   *Resolver
	cookieName string
	timeout    time.Duration
	logger     *zap.Logger
}

// NewSessionLoader constructs a loader. A zero timeout disables the deadline.
func NewSessionLoader(resolver *Resolver, cookieName string, timeout time.Duration, logger *zap.Logger) *SessionLoader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionLoader{resolver: resolver, cookieName: cookieName, timeout: timeout, logger: logger}
}

// CookieName returns the name of the session cookie.
func (l *SessionLoader) CookieName() string {
	return l.cookieName
}

// Load returns the request's session, or nil when there is none. Any failure
// to resolve, including a lookup timeout, is reported as no session.
func (l *SessionLoader) Load(c *fiber.Ctx) *domain.Session {
	if cached, ok := c.Locals(sessionKey).(*resolvedSession); ok {
		return cached.session
	}

	ctx := c.UserContext()
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	session, err := l.resolver.Resolve(ctx, c.Cookies(l.cookieName), c.Get(fiber.HeaderAuthorization))
	if err != nil {
		session = nil
		if !errors.Is(err, ErrNoSession) {
			l.logger.Debug("session rejected", zap.Error(err), zap.String("path", c.Path()))
		}
	}

	c.Locals(sessionKey, &resolvedSession{session: session})
	return session
}

// Forget drops the cached session so the next Load resolves again.
func (l *SessionLoader) Forget(c *fiber.Ctx) {
	c.Locals(sessionKey, nil)
}

// SessionFromContext returns the session already resolved for this request.
func SessionFromContext(c *fiber.Ctx) (*domain.Session, bool) {
	cached, ok := c.Locals(sessionKey).(*resolvedSession)
	if !ok || cached.session == nil {
		return nil, false
	}
	return cached.session, true
}
