package routing

import "strings"

// Audience is who a request is addressed to.
type Audience string

const (
	AudienceOperator  Audience = "operator"
	AudienceTenant    Audience = "tenant"
	AudienceMarketing Audience = "marketing"
	AudienceUnknown   Audience = "unknown"
	// AudienceExempt marks paths that bypass classification entirely.
	AudienceExempt Audience = "exempt"
)

// AdminPrefix is the path subtree that requires an authorized session.
const AdminPrefix = "/admin"

// Classification is the per-request routing verdict. It is never stored.
type Classification struct {
	Audience    Audience
	Subdomain   string
	IsAdminPath bool
	Exempt      bool
}

// Classifier holds the fixed routing table.
type Classifier struct {
	operatorHosts map[string]struct{}
	exempt        []string
}

// NewClassifier builds a classifier from operator hostnames (compared
// verbatim, port included) and exempt path prefixes.
func NewClassifier(operatorHosts, exemptPrefixes []string) *Classifier {
	hosts := make(map[string]struct{}, len(operatorHosts))
	for _, h := range operatorHosts {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			hosts[h] = struct{}{}
		}
	}
	exempt := make([]string, 0, len(exemptPrefixes))
	for _, p := range exemptPrefixes {
		if p = strings.TrimRight(strings.TrimSpace(p), "/"); p != "" {
			exempt = append(exempt, p)
		}
	}
	return &Classifier{operatorHosts: hosts, exempt: exempt}
}

// Classify decides the audience for host and path.
func (c *Classifier) Classify(host, path string) Classification {
	if c.IsExempt(path) {
		return Classification{Audience: AudienceExempt, Exempt: true}
	}

	host = strings.ToLower(strings.TrimSpace(host))
	if _, ok := c.operatorHosts[host]; ok {
		return Classification{Audience: AudienceOperator, IsAdminPath: hasPathPrefix(path, AdminPrefix)}
	}

	label, ok := ParseSubdomain(host)
	switch {
	case !ok:
		return Classification{Audience: AudienceUnknown}
	case label == MarketingLabel:
		return Classification{Audience: AudienceMarketing, Subdomain: label}
	default:
		return Classification{
			Audience:    AudienceTenant,
			Subdomain:   label,
			IsAdminPath: hasPathPrefix(path, AdminPrefix),
		}
	}
}

// IsExempt reports whether path bypasses gating and rewriting.
func (c *Classifier) IsExempt(path string) bool {
	for _, p := range c.exempt {
		if hasPathPrefix(path, p) {
			return true
		}
	}
	return false
}

// hasPathPrefix matches whole segments: "/api" covers "/api" and "/api/x"
// but not "/apiary".
func hasPathPrefix(path, prefix string) bool {
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	return len(path) == len(prefix) || path[len(prefix)] == '/'
}
