package routing

import (
	"net/url"
	"path"
	"strings"
)

// CleanPath collapses duplicate slashes and resolves dot segments so that
// classification and the renderer see the same path. A trailing slash on the
// input is kept.
func CleanPath(p string) string {
	if p == "" {
		return "/"
	}
	if p[0] != '/' {
		p = "/" + p
	}
	cleaned := path.Clean(p)
	if cleaned != "/" && strings.HasSuffix(p, "/") {
		cleaned += "/"
	}
	return cleaned
}

// escapePath re-encodes a decoded path for use as a request path.
func escapePath(p string) string {
	return (&url.URL{Path: p}).EscapedPath()
}

// callbackTarget is the path and query the caller asked for, in origin form.
func callbackTarget(p string, query []byte) string {
	if len(query) == 0 {
		return p
	}
	return p + "?" + string(query)
}
