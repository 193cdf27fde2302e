package observability

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	apperrors "github.com/flexicms/tenant-gateway/pkg/util"
)

// RequestIDKey is the fiber locals key populated by the requestid middleware.
const RequestIDKey = "requestid"

// unmatchedRoute keys requests that never reached a registered route.
const unmatchedRoute = "unmatched"

// RouteKey returns the registered route pattern that handled the request,
// never the concrete path, so metric keys stay bounded.
func RouteKey(c *fiber.Ctx) string {
	r := c.Route()
	if r == nil || len(r.Handlers) == 0 || r.Path == "" {
		return unmatchedRoute
	}
	return r.Path
}

// RequestLogger logs one line per request and feeds request metrics.
// It records both the path the client asked for and the path that was served,
// which differ for tenant traffic.
func RequestLogger(logger *zap.Logger, metrics *Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		original := string(c.Request().URI().PathOriginal())

		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			status = apperrors.ToDomainError(err).HTTPStatus
		}
		elapsed := time.Since(start)

		metrics.RecordRequest(RouteKey(c), c.Method(), status, elapsed)

		fields := []zap.Field{
			zap.String("method", c.Method()),
			zap.String("host", string(c.Request().Host())),
			zap.String("path", original),
			zap.Int("status", status),
			zap.Duration("latency", elapsed),
		}
		if served := c.Path(); served != original {
			fields = append(fields, zap.String("served_path", served))
		}
		if id, ok := c.Locals(RequestIDKey).(string); ok && id != "" {
			fields = append(fields, zap.String("request_id", id))
		}
		logger.Info("request", fields...)
		return err
	}
}
