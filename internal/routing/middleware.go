package routing

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/flexicms/tenant-gateway/internal/config"
	"github.com/flexicms/tenant-gateway/internal/domain"
	"github.com/flexicms/tenant-gateway/internal/observability"
	apperrors "github.com/flexicms/tenant-gateway/pkg/util"
)

const (
	classificationKey = "routing_classification"
	tenantKey         = "routing_tenant"
)

// SessionSource resolves the session for the current request, returning nil
// when the caller is anonymous or the credential is unusable.
type SessionSource interface {
	Load(c *fiber.Ctx) *domain.Session
}

// Middleware runs classification, gating and rewriting for every request.
type Middleware struct {
	classifier *Classifier
	gate       *Gate
	sessions   SessionSource
	policy     config.UnknownHostPolicy
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// NewMiddleware wires the routing middleware from the tenancy config.
func NewMiddleware(cfg config.TenancyConfig, sessions SessionSource, logger *zap.Logger, metrics *observability.Metrics) *Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Middleware{
		classifier: NewClassifier(cfg.OperatorHosts, cfg.ExemptPrefixes),
		gate: NewGate(GateConfig{
			SignInPath:         cfg.SignInPath,
			UnauthorizedPath:   cfg.UnauthorizedPath,
			EnforceTenantClaim: cfg.EnforceTenantClaim,
		}),
		sessions: sessions,
		policy:   cfg.UnknownHostPolicy,
		logger:   logger,
		metrics:  metrics,
	}
}

// Handle is the fiber handler. The path is decoded and cleaned once up front;
// the gate, the rewrite and every later handler see only that cleaned path.
func (m *Middleware) Handle(c *fiber.Ctx) error {
	path := CleanPath(string(c.Request().URI().Path()))
	cl := m.classifier.Classify(string(c.Request().Host()), path)
	c.Locals(classificationKey, cl)

	if cl.Audience == AudienceUnknown && m.policy == config.UnknownHostDeny {
		m.metrics.RecordDecision(string(cl.Audience), "deny")
		return apperrors.NewDomainError("UNKNOWN_HOST", "unknown host", http.StatusNotFound, nil)
	}

	var session *domain.Session
	if cl.IsAdminPath {
		session = m.sessions.Load(c)
	}

	decision := m.gate.Decide(cl, session, callbackTarget(path, c.Request().URI().QueryString()))
	if !decision.Allow {
		m.metrics.RecordDecision(string(cl.Audience), "redirect")
		m.logger.Debug("gate redirect",
			zap.String("audience", string(cl.Audience)),
			zap.String("subdomain", cl.Subdomain),
			zap.String("path", path),
			zap.String("reason", decision.Reason),
			zap.String("location", decision.Redirect))
		return c.Redirect(decision.Redirect, fiber.StatusTemporaryRedirect)
	}
	m.metrics.RecordDecision(string(cl.Audience), "serve")

	served := RewritePath(cl, path)
	if served != path {
		c.Locals(tenantKey, cl.Subdomain)
	}
	if escaped := escapePath(served); escaped != c.Path() {
		c.Path(escaped)
	}
	return c.Next()
}

// ClassificationFromContext returns the classification computed for this request.
func ClassificationFromContext(c *fiber.Ctx) (Classification, bool) {
	cl, ok := c.Locals(classificationKey).(Classification)
	return cl, ok
}

// RewrittenTenant returns the subdomain this request was rewritten for. Requests
// that arrived with a literal /s/... path never carry one.
func RewrittenTenant(c *fiber.Ctx) (string, bool) {
	sub, ok := c.Locals(tenantKey).(string)
	return sub, ok && sub != ""
}
