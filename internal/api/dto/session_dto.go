package dto

import (
	"time"

	"github.com/flexicms/tenant-gateway/internal/domain"
)

// SignInRequest payload for POST /auth/sign-in.
type SignInRequest struct {
	Email       string `json:"email" form:"email"`
	Password    string `json:"password" form:"password"`
	Tenant      string `json:"tenant" form:"tenant"`
	CallbackURL string `json:"callbackUrl" form:"callbackUrl"`
}

// SessionUser is the caller identity exposed to the browser.
type SessionUser struct {
	Email  string      `json:"email"`
	Role   domain.Role `json:"role"`
	Tenant string      `json:"tenant,omitempty"`
}

// SessionResponse describes the active session.
type SessionResponse struct {
	User      SessionUser `json:"user"`
	ExpiresAt time.Time   `json:"expires_at"`
	Redirect  string      `json:"redirect,omitempty"`
}

// NewSessionResponse builds the response without leaking the backend token.
func NewSessionResponse(s *domain.Session, redirect string) SessionResponse {
	return SessionResponse{
		User: SessionUser{
			Email:  s.Email,
			Role:   s.Role,
			Tenant: s.TenantContext,
		},
		ExpiresAt: s.ExpiresAt,
		Redirect:  redirect,
	}
}
