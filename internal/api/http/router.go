package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/flexicms/tenant-gateway/internal/api/http/handlers"
	"github.com/flexicms/tenant-gateway/internal/auth"
	"github.com/flexicms/tenant-gateway/internal/domain"
	"github.com/flexicms/tenant-gateway/internal/routing"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health      *handlers.HealthHandler
	Sessions    *handlers.SessionHandler
	Signup      *handlers.SignupHandler
	TenantAdmin *handlers.TenantAdminHandler
	Pages       *handlers.PagesHandler
	Tenancy     *routing.Middleware
	Loader      *auth.SessionLoader
}

// RegisterRoutes wires HTTP routes. Health probes are registered ahead of the
// tenancy middleware so they answer on any host; everything after it is
// classified, gated and rewritten first.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/health/metrics", auth.RequireCapability(cfg.Loader, domain.CapOperatorAdmin), cfg.Health.Metrics)

	app.Use(cfg.Tenancy.Handle)

	authGroup := app.Group("/auth")
	authGroup.Post("/sign-in", cfg.Sessions.SignIn)
	authGroup.Post("/sign-out", cfg.Sessions.SignOut)
	authGroup.Get("/session", auth.RequireSession(cfg.Loader), cfg.Sessions.Current)
	app.Get("/sign-out", cfg.Sessions.SignOutRedirect)

	api := app.Group("/api")
	api.Post("/signup", cfg.Signup.Signup)
	api.Get("/tenants/:subdomain/availability", cfg.Signup.Availability)
	api.Patch("/tenants/:subdomain/status", auth.RequireCapability(cfg.Loader, domain.CapOperatorAdmin), cfg.TenantAdmin.UpdateStatus)

	app.All(routing.TenantPrefix+":subdomain/*", cfg.Pages.Tenant)
	app.All("/*", cfg.Pages.Site)
}
