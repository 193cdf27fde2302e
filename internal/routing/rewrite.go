package routing

import "strings"

// TenantPrefix namespaces the shared tenant route tree.
const TenantPrefix = "/s/"

// RewritePath returns the path a classified request is served at. Only
// non-exempt tenant requests move, to /s/<subdomain><path>.
func RewritePath(cl Classification, path string) string {
	if cl.Exempt || cl.Audience != AudienceTenant || cl.Subdomain == "" {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return TenantPrefix + cl.Subdomain + path
}
