package routing

import (
	"net"
	"strings"
)

// MarketingLabel is the subdomain reserved for the public marketing site.
const MarketingLabel = "www"

// ParseSubdomain returns the leading label of host when host has at least two
// dot separated segments. Bare IP addresses and single-label hosts such as
// "localhost:3001" have no subdomain. The port, if any, stays on the last
// segment and never reaches the label.
func ParseSubdomain(host string) (string, bool) {
	host = strings.TrimSpace(host)
	if host == "" || isIPHost(host) {
		return "", false
	}

	segments := strings.Split(host, ".")
	if len(segments) < 2 {
		return "", false
	}
	label := strings.ToLower(segments[0])
	if label == "" {
		return "", false
	}
	return label, true
}

func isIPHost(host string) bool {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
	return net.ParseIP(host) != nil
}
