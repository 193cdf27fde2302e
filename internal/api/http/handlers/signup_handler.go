package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/flexicms/tenant-gateway/internal/api/dto"
	"github.com/flexicms/tenant-gateway/internal/service"
)

// SignupHandler exposes tenant self-service signup.
type SignupHandler struct {
	signup *service.SignupService
}

// NewSignupHandler constructs handler.
func NewSignupHandler(signup *service.SignupService) *SignupHandler {
	return &SignupHandler{signup: signup}
}

// Signup handles POST /api/signup.
func (h *SignupHandler) Signup(c *fiber.Ctx) error {
	var req dto.SignupRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}

	res, err := h.signup.Signup(c.UserContext(), service.SignupInput{
		Name:       req.Name,
		Subdomain:  req.Subdomain,
		OwnerEmail: req.OwnerEmail,
		Password:   req.Password,
	})
	if err != nil {
		return err
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"data": dto.SignupResponse{
			Tenant: dto.NewTenantResponse(res.Tenant),
			URL:    res.URL,
		},
	})
}

// Availability handles GET /api/tenants/:subdomain/availability.
func (h *SignupHandler) Availability(c *fiber.Ctx) error {
	sub := service.NormalizeSubdomain(c.Params("subdomain"))
	available, reason, err := h.signup.Availability(c.UserContext(), sub)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data": dto.AvailabilityResponse{Subdomain: sub, Available: available, Reason: reason},
	})
}
