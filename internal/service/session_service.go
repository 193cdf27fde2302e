package service

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/flexicms/tenant-gateway/internal/apiclient"
	"github.com/flexicms/tenant-gateway/internal/auth"
	"github.com/flexicms/tenant-gateway/internal/domain"
	"github.com/flexicms/tenant-gateway/internal/events"
	apperrors "github.com/flexicms/tenant-gateway/pkg/util"
)

// Authenticator is the credential side of the backend API.
type Authenticator interface {
	Login(ctx context.Context, email, password, tenant string) (*apiclient.LoginResult, error)
	Logout(ctx context.Context, session *domain.Session) error
	Me(ctx context.Context, session *domain.Session) (*apiclient.BackendUser, error)
}

// SignInInput carries the sign-in form.
type SignInInput struct {
	Email       string
	Password    string
	Tenant      string
	CallbackURL string
}

// SignInResult is a freshly minted session.
type SignInResult struct {
	Token    string
	Session  *domain.Session
	Redirect string
}

// SessionService signs users in and out.
type SessionService struct {
	backend     Authenticator
	tokens      *auth.TokenManager
	revocations auth.RevocationStore
	dispatcher  events.Dispatcher
	logger      *zap.Logger
}

// SessionDependencies encapsulates collaborators for session management.
type SessionDependencies struct {
	Backend     Authenticator
	Tokens      *auth.TokenManager
	Revocations auth.RevocationStore
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
}

// NewSessionService constructs the service.
func NewSessionService(deps SessionDependencies) *SessionService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionService{
		backend:     deps.Backend,
		tokens:      deps.Tokens,
		revocations: deps.Revocations,
		dispatcher:  deps.Dispatcher,
		logger:      logger,
	}
}

// SignIn exchanges credentials with the backend and mints a session token.
func (s *SessionService) SignIn(ctx context.Context, in SignInInput) (*SignInResult, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || in.Password == "" {
		return nil, apperrors.NewValidationError("email and password are required", nil)
	}
	tenant := strings.ToLower(strings.TrimSpace(in.Tenant))

	res, err := s.backend.Login(ctx, email, in.Password, tenant)
	switch {
	case errors.Is(err, apiclient.ErrUnauthorized), errors.Is(err, apiclient.ErrNotFound):
		return nil, apperrors.NewUnauthorized("invalid credentials")
	case err != nil:
		return nil, apperrors.NewBadGateway("BACKEND_UNAVAILABLE", "sign-in is temporarily unavailable", err)
	}

	tenantContext := strings.ToLower(res.User.Tenant)
	if tenantContext == "" {
		tenantContext = tenant
	}
	if res.User.Email != "" {
		email = strings.ToLower(res.User.Email)
	}

	token, session, err := s.tokens.Issue(auth.SessionClaims{
		Email:    email,
		Role:     domain.ParseRole(res.User.Role),
		Tenant:   tenantContext,
		APIToken: res.AccessToken,
	})
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	s.logger.Info("session issued",
		zap.String("session_id", session.ID),
		zap.String("role", string(session.Role)),
		zap.String("tenant", session.TenantContext))
	return &SignInResult{Token: token, Session: session, Redirect: SanitizeCallback(in.CallbackURL)}, nil
}

// SignOut revokes the session and tells the backend to drop its token. Only
// the local revocation failing is reported.
func (s *SessionService) SignOut(ctx context.Context, session *domain.Session) error {
	if session == nil {
		return nil
	}
	if s.revocations != nil {
		if err := s.revocations.Revoke(ctx, session.ID, session.ExpiresAt); err != nil {
			return apperrors.NewInternalError(err)
		}
	}
	if s.backend != nil {
		if err := s.backend.Logout(ctx, session); err != nil {
			s.logger.Warn("backend logout failed", zap.String("session_id", session.ID), zap.Error(err))
		}
	}
	if s.dispatcher != nil {
		event := events.New(events.EventSessionSignedOut, session.TenantContext,
			events.Actor{Email: session.Email, Role: session.Role},
			events.SessionSignedOutPayload{SessionID: session.ID})
		if err := s.dispatcher.Publish(ctx, event); err != nil {
			s.logger.Warn("session_signed_out handlers failed", zap.Error(err))
		}
	}
	return nil
}

// Verify confirms the backend still accepts the token carried by session.
func (s *SessionService) Verify(ctx context.Context, session *domain.Session) error {
	if session == nil {
		return apperrors.NewUnauthorized("no session")
	}
	_, err := s.backend.Me(ctx, session)
	switch {
	case errors.Is(err, apiclient.ErrUnauthorized):
		return apperrors.NewUnauthorized("session no longer accepted by backend")
	case err != nil:
		return apperrors.NewBadGateway("BACKEND_UNAVAILABLE", "could not verify session", err)
	}
	return nil
}

// SanitizeCallback keeps only same-origin relative paths, falling back to "/".
func SanitizeCallback(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.Contains(raw, `\`) {
		return "/"
	}
	u, err := url.Parse(raw)
	if err != nil || u.IsAbs() || u.Host != "" {
		return "/"
	}
	return raw
}
