package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the gateway.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Session      SessionConfig
	Tenancy      TenancyConfig
	Backend      BackendConfig
	Renderer     RendererConfig
	Notification NotificationConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines session token parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
}

// SessionConfig controls the session cookie and lookup behavior.
type SessionConfig struct {
	CookieName      string
	CookieDomain    string
	CookieSecure    bool
	LookupTimeoutMS int
}

// UnknownHostPolicy decides what happens to requests whose host cannot be classified.
type UnknownHostPolicy string

const (
	UnknownHostPass UnknownHostPolicy = "pass"
	UnknownHostDeny UnknownHostPolicy = "deny"
)

// TenancyConfig is the fixed routing table for host classification.
type TenancyConfig struct {
	OperatorHosts      []string          `yaml:"operator_hosts"`
	ExemptPrefixes     []string          `yaml:"exempt_prefixes"`
	ReservedSubdomains []string          `yaml:"reserved_subdomains"`
	PublicDomain       string            `yaml:"public_domain"`
	SignInPath         string            `yaml:"sign_in_path"`
	UnauthorizedPath   string            `yaml:"unauthorized_path"`
	UnknownHostPolicy  UnknownHostPolicy `yaml:"unknown_host_policy"`
	EnforceTenantClaim bool              `yaml:"enforce_tenant_claim"`
	TenantCacheTTLSecs int               `yaml:"tenant_cache_ttl_seconds"`
}

// BackendConfig points at the external API server.
type BackendConfig struct {
	BaseURL   string
	TimeoutMS int
}

// RendererConfig points at the upstream page renderer.
type RendererConfig struct {
	URL       string
	TimeoutMS int
}

// NotificationConfig holds notification endpoints.
type NotificationConfig struct {
	WebhookURL string
	QueueSize  int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "flexicms-tenant-gateway"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "3001"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60*24),
		},
		Session: SessionConfig{
			CookieName:      getEnv("SESSION_COOKIE_NAME", "session_token"),
			CookieDomain:    os.Getenv("SESSION_COOKIE_DOMAIN"),
			CookieSecure:    getEnvAsBool("SESSION_COOKIE_SECURE", false),
			LookupTimeoutMS: getEnvAsInt("SESSION_LOOKUP_TIMEOUT_MS", 2000),
		},
		Tenancy: TenancyConfig{
			OperatorHosts:      getEnvAsList("TENANCY_OPERATOR_HOSTS", DefaultOperatorHosts),
			ExemptPrefixes:     getEnvAsList("TENANCY_EXEMPT_PREFIXES", DefaultExemptPrefixes),
			ReservedSubdomains: getEnvAsList("TENANCY_RESERVED_SUBDOMAINS", DefaultReservedSubdomains),
			PublicDomain:       getEnv("TENANCY_PUBLIC_DOMAIN", "flexicms.com"),
			SignInPath:         getEnv("TENANCY_SIGN_IN_PATH", "/sign-in"),
			UnauthorizedPath:   getEnv("TENANCY_UNAUTHORIZED_PATH", "/unauthorized"),
			UnknownHostPolicy:  UnknownHostPolicy(getEnv("TENANCY_UNKNOWN_HOST_POLICY", string(UnknownHostPass))),
			EnforceTenantClaim: getEnvAsBool("TENANCY_ENFORCE_TENANT_CLAIM", false),
			TenantCacheTTLSecs: getEnvAsInt("TENANT_CACHE_TTL_SECONDS", 60),
		},
		Backend: BackendConfig{
			BaseURL:   getEnv("API_BASE_URL", "http://localhost:8080"),
			TimeoutMS: getEnvAsInt("API_TIMEOUT_MS", 5000),
		},
		Renderer: RendererConfig{
			URL:       strings.TrimRight(os.Getenv("RENDERER_URL"), "/"),
			TimeoutMS: getEnvAsInt("RENDERER_TIMEOUT_MS", 10000),
		},
		Notification: NotificationConfig{
			WebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
			QueueSize:  getEnvAsInt("NOTIFY_QUEUE_SIZE", 64),
		},
	}

	if path := os.Getenv("TENANCY_FILE"); path != "" {
		if err := cfg.Tenancy.MergeFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the gateway cannot serve safely.
func (c *Config) Validate() error {
	if len(c.Tenancy.OperatorHosts) == 0 {
		return errors.New("TENANCY_OPERATOR_HOSTS must list at least one host")
	}
	switch c.Tenancy.UnknownHostPolicy {
	case UnknownHostPass, UnknownHostDeny:
	default:
		return fmt.Errorf("invalid TENANCY_UNKNOWN_HOST_POLICY %q", c.Tenancy.UnknownHostPolicy)
	}
	if !c.App.IsDevelopment() && (c.Auth.JWTSecret == "" || c.Auth.JWTSecret == "dev-secret") {
		return errors.New("AUTH_JWT_SECRET must be set outside development")
	}
	return nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// IsDevelopment reports whether the service runs with development defaults.
func (a AppConfig) IsDevelopment() bool {
	return a.Env == "development" || a.Env == "test"
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// LookupTimeout bounds session resolution for a single request.
func (s SessionConfig) LookupTimeout() time.Duration {
	if s.LookupTimeoutMS <= 0 {
		return 0
	}
	return time.Duration(s.LookupTimeoutMS) * time.Millisecond
}

// Timeout returns the per-call deadline for backend API requests.
func (b BackendConfig) Timeout() time.Duration {
	if b.TimeoutMS <= 0 {
		return 5 * time.Second
	}
	return time.Duration(b.TimeoutMS) * time.Millisecond
}

// Timeout returns the deadline for one proxied page request.
func (r RendererConfig) Timeout() time.Duration {
	if r.TimeoutMS <= 0 {
		return 10 * time.Second
	}
	return time.Duration(r.TimeoutMS) * time.Millisecond
}

// TenantCacheTTL returns how long tenant lookups stay cached.
func (t TenancyConfig) TenantCacheTTL() time.Duration {
	if t.TenantCacheTTLSecs <= 0 {
		return 0
	}
	return time.Duration(t.TenantCacheTTLSecs) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

// getEnvAsList splits a comma separated variable, dropping blank entries.
func getEnvAsList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return append([]string(nil), fallback...)
	}
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
