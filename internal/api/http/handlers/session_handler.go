package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/flexicms/tenant-gateway/internal/api/dto"
	"github.com/flexicms/tenant-gateway/internal/auth"
	"github.com/flexicms/tenant-gateway/internal/config"
	"github.com/flexicms/tenant-gateway/internal/routing"
	"github.com/flexicms/tenant-gateway/internal/service"
	apperrors "github.com/flexicms/tenant-gateway/pkg/util"
)

// SessionHandler exposes sign-in, sign-out and session introspection.
type SessionHandler struct {
	sessions *service.SessionService
	loader   *auth.SessionLoader
	cookie   config.SessionConfig
	now      func() time.Time
}

// NewSessionHandler constructs handler.
func NewSessionHandler(sessions *service.SessionService, loader *auth.SessionLoader, cookie config.SessionConfig) *SessionHandler {
	return &SessionHandler{sessions: sessions, loader: loader, cookie: cookie, now: time.Now}
}

// SignIn handles POST /auth/sign-in.
func (h *SessionHandler) SignIn(c *fiber.Ctx) error {
	var req dto.SignInRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if req.CallbackURL == "" {
		req.CallbackURL = c.Query(routing.CallbackParam)
	}

	res, err := h.sessions.SignIn(c.UserContext(), service.SignInInput{
		Email:       req.Email,
		Password:    req.Password,
		Tenant:      req.Tenant,
		CallbackURL: req.CallbackURL,
	})
	if err != nil {
		return err
	}

	h.setCookie(c, res.Token, res.Session.ExpiresAt)
	h.loader.Forget(c)
	return c.JSON(fiber.Map{"data": dto.NewSessionResponse(res.Session, res.Redirect)})
}

// SignOut handles POST /auth/sign-out.
func (h *SessionHandler) SignOut(c *fiber.Ctx) error {
	if err := h.signOut(c); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"signed_out": true}})
}

// SignOutRedirect handles GET /sign-out.
func (h *SessionHandler) SignOutRedirect(c *fiber.Ctx) error {
	if err := h.signOut(c); err != nil {
		return err
	}
	return c.Redirect(routing.TenantRoot, fiber.StatusSeeOther)
}

// Current handles GET /auth/session. With ?verify=true the backend is asked
// whether it still honours the session's API token.
func (h *SessionHandler) Current(c *fiber.Ctx) error {
	session := h.loader.Load(c)
	if session == nil {
		return apperrors.NewUnauthorized("no session")
	}
	if verify, _ := strconv.ParseBool(c.Query("verify")); verify {
		if err := h.sessions.Verify(c.UserContext(), session); err != nil {
			return err
		}
	}
	return c.JSON(fiber.Map{"data": dto.NewSessionResponse(session, "")})
}

func (h *SessionHandler) signOut(c *fiber.Ctx) error {
	session := h.loader.Load(c)
	if err := h.sessions.SignOut(c.UserContext(), session); err != nil {
		return err
	}
	h.setCookie(c, "", time.Unix(0, 0))
	h.loader.Forget(c)
	return nil
}

func (h *SessionHandler) setCookie(c *fiber.Ctx, value string, expires time.Time) {
	c.Cookie(&fiber.Cookie{
		Name:     h.loader.CookieName(),
		Value:    value,
		Path:     "/",
		Domain:   h.cookie.CookieDomain,
		Expires:  expires,
		Secure:   h.cookie.CookieSecure,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}
