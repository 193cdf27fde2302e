package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/flexicms/tenant-gateway/internal/config"
	"github.com/flexicms/tenant-gateway/internal/events"
)

// WebhookQueue accepts events for asynchronous webhook delivery.
type WebhookQueue interface {
	Enqueue(event events.Event) bool
}

// NotificationService handles emitting notifications for domain events.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
	webhooks   WebhookQueue
}

// NewNotificationService creates the service. webhooks may be nil.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig, webhooks WebhookQueue) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
		webhooks:   webhooks,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTenantSignedUp, n.handleTenantSignedUp)
	n.dispatcher.Subscribe(events.EventSessionSignedOut, n.handleSessionSignedOut)
}

func (n *NotificationService) handleTenantSignedUp(ctx context.Context, event events.Event) error {
	n.logger.Info("TenantSignedUp", zap.String("subdomain", event.Subdomain), zap.Any("payload", event.Payload))
	n.sendWebhook(ctx, event)
	return nil
}

func (n *NotificationService) handleSessionSignedOut(ctx context.Context, event events.Event) error {
	n.logger.Info("SessionSignedOut",
		zap.String("subdomain", event.Subdomain),
		zap.String("email", event.Actor.Email),
		zap.Any("payload", event.Payload))
	n.sendWebhook(ctx, event)
	return nil
}

func (n *NotificationService) sendWebhook(_ context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" || n.webhooks == nil {
		return
	}
	if !n.webhooks.Enqueue(event) {
		n.logger.Warn("webhook queue full; dropping event",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)))
	}
}
