package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/flexicms/tenant-gateway/internal/apiclient"
	"github.com/flexicms/tenant-gateway/internal/config"
	"github.com/flexicms/tenant-gateway/internal/domain"
	"github.com/flexicms/tenant-gateway/internal/events"
	"github.com/flexicms/tenant-gateway/internal/repository"
	apperrors "github.com/flexicms/tenant-gateway/pkg/util"
)

var subdomainPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?$`)

const minPasswordLength = 8

// Availability reasons.
const (
	ReasonInvalid  = "invalid"
	ReasonReserved = "reserved"
	ReasonTaken    = "taken"
)

// OwnerRegistrar creates tenant owner accounts in the backend.
type OwnerRegistrar interface {
	RegisterOwner(ctx context.Context, reg apiclient.OwnerRegistration) error
}

// SignupInput is a new tenant request.
type SignupInput struct {
	Name       string
	Subdomain  string
	OwnerEmail string
	Password   string
}

// SignupResult describes the created tenant.
type SignupResult struct {
	Tenant *domain.Tenant
	URL    string
}

// SignupService registers new tenants.
type SignupService struct {
	tenants      repository.TenantRepository
	owners       OwnerRegistrar
	directory    *TenantDirectory
	dispatcher   events.Dispatcher
	reserved     map[string]struct{}
	publicDomain string
	logger       *zap.Logger
}

// SignupDependencies encapsulates collaborators for the signup flow.
type SignupDependencies struct {
	TenantRepo repository.TenantRepository
	Owners     OwnerRegistrar
	Directory  *TenantDirectory
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// NewSignupService constructs the service.
func NewSignupService(cfg config.TenancyConfig, deps SignupDependencies) *SignupService {
	reserved := make(map[string]struct{}, len(cfg.ReservedSubdomains))
	for _, label := range cfg.ReservedSubdomains {
		reserved[strings.ToLower(strings.TrimSpace(label))] = struct{}{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SignupService{
		tenants:      deps.TenantRepo,
		owners:       deps.Owners,
		directory:    deps.Directory,
		dispatcher:   deps.Dispatcher,
		reserved:     reserved,
		publicDomain: cfg.PublicDomain,
		logger:       logger,
	}
}

// NormalizeSubdomain lowercases and trims a requested label.
func NormalizeSubdomain(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// checkLabel returns the reason a normalized label cannot be used as a
// tenant subdomain, ignoring whether it is already taken.
func (s *SignupService) checkLabel(sub string) string {
	if !subdomainPattern.MatchString(sub) {
		return ReasonInvalid
	}
	if _, ok := s.reserved[sub]; ok {
		return ReasonReserved
	}
	return ""
}

// Availability reports whether a subdomain can be claimed, with a reason when not.
func (s *SignupService) Availability(ctx context.Context, subdomain string) (bool, string, error) {
	sub := NormalizeSubdomain(subdomain)
	if reason := s.checkLabel(sub); reason != "" {
		return false, reason, nil
	}
	if s.tenants == nil {
		return false, "", registryUnavailable()
	}
	taken, err := s.tenants.ExistsBySubdomain(ctx, sub)
	if err != nil {
		return false, "", err
	}
	if taken {
		return false, ReasonTaken, nil
	}
	return true, "", nil
}

// Signup creates the tenant and its owner account.
func (s *SignupService) Signup(ctx context.Context, in SignupInput) (*SignupResult, error) {
	in.Subdomain = NormalizeSubdomain(in.Subdomain)
	in.Name = strings.TrimSpace(in.Name)
	in.OwnerEmail = strings.ToLower(strings.TrimSpace(in.OwnerEmail))
	if err := s.validate(in); err != nil {
		return nil, err
	}
	if s.tenants == nil {
		return nil, registryUnavailable()
	}

	taken, err := s.tenants.ExistsBySubdomain(ctx, in.Subdomain)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, subdomainTaken(in.Subdomain)
	}

	tenant := &domain.Tenant{
		Subdomain:  in.Subdomain,
		Name:       in.Name,
		OwnerEmail: in.OwnerEmail,
		Status:     domain.TenantStatusActive,
	}
	if err := s.tenants.Create(ctx, tenant); err != nil {
		if errors.Is(err, repository.ErrSubdomainTaken) {
			return nil, subdomainTaken(in.Subdomain)
		}
		return nil, err
	}

	err = s.owners.RegisterOwner(ctx, apiclient.OwnerRegistration{
		TenantID:  tenant.ID,
		Subdomain: tenant.Subdomain,
		Name:      tenant.Name,
		Email:     in.OwnerEmail,
		Password:  in.Password,
		Role:      string(domain.RoleOwner),
	})
	if err != nil {
		s.rollback(ctx, tenant)
		return nil, ownerRegistrationError(err)
	}

	if s.directory != nil {
		s.directory.Invalidate(ctx, tenant.Subdomain)
	}

	result := &SignupResult{Tenant: tenant, URL: s.TenantURL(tenant.Subdomain)}
	if s.dispatcher != nil {
		event := events.New(events.EventTenantSignedUp, tenant.Subdomain,
			events.Actor{Email: in.OwnerEmail, Role: domain.RoleOwner},
			events.TenantSignedUpPayload{
				TenantID:   tenant.ID,
				Name:       tenant.Name,
				OwnerEmail: tenant.OwnerEmail,
				URL:        result.URL,
			})
		if err := s.dispatcher.Publish(ctx, event); err != nil {
			s.logger.Warn("tenant_signed_up handlers failed", zap.String("subdomain", tenant.Subdomain), zap.Error(err))
		}
	}
	s.logger.Info("tenant signed up", zap.String("subdomain", tenant.Subdomain), zap.String("tenant_id", tenant.ID))
	return result, nil
}

// TenantURL is the public address of a tenant site.
func (s *SignupService) TenantURL(subdomain string) string {
	return fmt.Sprintf("https://%s.%s", subdomain, s.publicDomain)
}

func (s *SignupService) validate(in SignupInput) error {
	details := map[string]any{}
	switch s.checkLabel(in.Subdomain) {
	case ReasonInvalid:
		details["subdomain"] = "must be 1-63 lowercase letters, digits or inner hyphens"
	case ReasonReserved:
		details["subdomain"] = "is reserved"
	}
	if in.Name == "" {
		details["name"] = "is required"
	}
	if _, err := mail.ParseAddress(in.OwnerEmail); err != nil || in.OwnerEmail == "" {
		details["owner_email"] = "must be a valid email address"
	}
	if len(in.Password) < minPasswordLength {
		details["password"] = fmt.Sprintf("must be at least %d characters", minPasswordLength)
	}
	if len(details) > 0 {
		return apperrors.NewValidationError("invalid signup request", details)
	}
	return nil
}

// rollback removes a tenant row whose owner could not be created. It runs on a
// detached context so a cancelled request still cleans up.
func (s *SignupService) rollback(ctx context.Context, tenant *domain.Tenant) {
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.tenants.Delete(cleanupCtx, tenant.ID); err != nil {
		s.logger.Error("failed to roll back tenant after owner registration failure",
			zap.String("tenant_id", tenant.ID),
			zap.String("subdomain", tenant.Subdomain),
			zap.Error(err))
	}
}

func registryUnavailable() error {
	return apperrors.NewDomainError("REGISTRY_UNAVAILABLE", "tenant registry unavailable", http.StatusServiceUnavailable, nil)
}

func subdomainTaken(sub string) error {
	return apperrors.NewConflict("subdomain already taken", map[string]any{"subdomain": sub})
}

func ownerRegistrationError(err error) error {
	var apiErr *apiclient.APIError
	switch {
	case errors.Is(err, apiclient.ErrConflict):
		return apperrors.NewConflict("owner email already registered", nil)
	case errors.As(err, &apiErr) && apiErr.Status == http.StatusBadRequest:
		return apperrors.NewValidationError("backend rejected owner account", map[string]any{"backend": apiErr.Body})
	default:
		return apperrors.NewBadGateway("BACKEND_UNAVAILABLE", "could not register tenant owner", err)
	}
}
