package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Routing defaults. Operator hosts are compared verbatim, port included.
var (
	DefaultOperatorHosts      = []string{"flexicms.com", "localhost:3000", "localhost:3001"}
	DefaultExemptPrefixes     = []string{"/auth", "/_next", "/api", "/sign-in", "/sign-out"}
	DefaultReservedSubdomains = []string{"www", "api", "admin", "app", "s"}
)

// MergeFile overlays the tenancy routing table with the keys present in a YAML file.
// Keys missing from the file keep their current values.
func (t *TenancyConfig) MergeFile(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read tenancy file: %w", err)
	}
	if err := yaml.Unmarshal(content, t); err != nil {
		return fmt.Errorf("parse tenancy file %s: %w", path, err)
	}
	return nil
}
