package worker

import (
	"context"

	"github.com/flexicms/tenant-gateway/internal/service"
)

// StartNotificationWorker registers notification handlers and starts webhook
// delivery when a worker is supplied. The returned func stops delivery after
// flushing whatever is queued.
func StartNotificationWorker(ctx context.Context, notificationService *service.NotificationService, webhooks *WebhookWorker) func() {
	if notificationService != nil {
		notificationService.RegisterHandlers()
	}
	if webhooks == nil {
		return func() {}
	}
	webhooks.Start(ctx)
	return webhooks.Stop
}
