package routing

import (
	"net/url"

	"github.com/flexicms/tenant-gateway/internal/auth"
	"github.com/flexicms/tenant-gateway/internal/domain"
)

// CallbackParam carries the originally requested URI to the sign-in page.
const CallbackParam = "callbackUrl"

// TenantRoot is where denied tenant admin requests are sent.
const TenantRoot = "/"

// Decision reasons.
const (
	ReasonExempt           = "exempt"
	ReasonPublic           = "public"
	ReasonAuthorized       = "authorized"
	ReasonNoSession        = "no_session"
	ReasonInsufficientRole = "insufficient_role"
	ReasonTenantMismatch   = "tenant_mismatch"
)

// Decision is the gate verdict: either allow, or redirect to Redirect.
type Decision struct {
	Allow    bool
	Redirect string
	Reason   string
}

// GateConfig configures redirect targets.
type GateConfig struct {
	SignInPath       string
	UnauthorizedPath string
	// EnforceTenantClaim redirects owners whose token names a different tenant.
	EnforceTenantClaim bool
}

// Gate decides whether a classified request may proceed.
type Gate struct {
	cfg GateConfig
}

// NewGate constructs a gate, filling in default redirect paths.
func NewGate(cfg GateConfig) *Gate {
	if cfg.SignInPath == "" {
		cfg.SignInPath = "/sign-in"
	}
	if cfg.UnauthorizedPath == "" {
		cfg.UnauthorizedPath = "/unauthorized"
	}
	return &Gate{cfg: cfg}
}

// Decide applies the access rules. session may be nil; requestURI is the
// original path and query, threaded to the sign-in page as a callback.
func (g *Gate) Decide(cl Classification, session *domain.Session, requestURI string) Decision {
	if cl.Exempt {
		return Decision{Allow: true, Reason: ReasonExempt}
	}
	if !cl.IsAdminPath {
		return Decision{Allow: true, Reason: ReasonPublic}
	}

	switch cl.Audience {
	case AudienceOperator:
		if session == nil {
			return Decision{Redirect: g.signInURL(requestURI), Reason: ReasonNoSession}
		}
		if !auth.IsAuthorized(session.Role, domain.CapOperatorAdmin) {
			return Decision{Redirect: g.cfg.UnauthorizedPath, Reason: ReasonInsufficientRole}
		}
	case AudienceTenant:
		if session == nil {
			return Decision{Redirect: TenantRoot, Reason: ReasonNoSession}
		}
		if !auth.IsAuthorized(session.Role, domain.CapTenantAdmin) {
			return Decision{Redirect: TenantRoot, Reason: ReasonInsufficientRole}
		}
		if g.cfg.EnforceTenantClaim && !auth.IsAuthorized(session.Role, domain.CapOperatorAdmin) &&
			session.TenantContext != "" && session.TenantContext != cl.Subdomain {
			return Decision{Redirect: TenantRoot, Reason: ReasonTenantMismatch}
		}
	default:
		return Decision{Allow: true, Reason: ReasonPublic}
	}
	return Decision{Allow: true, Reason: ReasonAuthorized}
}

func (g *Gate) signInURL(requestURI string) string {
	if requestURI == "" || requestURI == "/" {
		return g.cfg.SignInPath
	}
	return g.cfg.SignInPath + "?" + url.Values{CallbackParam: {requestURI}}.Encode()
}
