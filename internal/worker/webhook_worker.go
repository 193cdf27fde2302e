package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/flexicms/tenant-gateway/internal/config"
	"github.com/flexicms/tenant-gateway/internal/events"
)

const (
	maxDeliveryAttempts = 3
	deliveryTimeout     = 5 * time.Second
)

// Sender posts a JSON body to a webhook endpoint.
type Sender interface {
	Send(ctx context.Context, url string, body []byte) error
}

// FiberSender delivers webhooks with fiber's HTTP agent.
type FiberSender struct {
	Timeout time.Duration
}

// Send posts body to url.
func (s FiberSender) Send(ctx context.Context, url string, body []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = deliveryTimeout
	}
	if dl, ok := ctx.Deadline(); ok && time.Until(dl) < timeout {
		timeout = time.Until(dl)
	}

	agent := fiber.Post(url)
	agent.ContentType(fiber.MIMEApplicationJSON)
	agent.Body(body)
	agent.Timeout(timeout)
	status, resp, errs := agent.Bytes()
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("webhook returned %d: %s", status, resp)
	}
	return nil
}

// WebhookWorker drains a bounded queue of events to the configured webhook.
type WebhookWorker struct {
	url     string
	sender  Sender
	queue   chan events.Event
	stop    chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
	backoff time.Duration
	logger  *zap.Logger
}

// NewWebhookWorker builds a worker; call Start before enqueueing.
func NewWebhookWorker(cfg config.NotificationConfig, sender Sender, logger *zap.Logger) *WebhookWorker {
	size := cfg.QueueSize
	if size <= 0 {
		size = 64
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookWorker{
		url:     cfg.WebhookURL,
		sender:  sender,
		queue:   make(chan events.Event, size),
		stop:    make(chan struct{}),
		backoff: 200 * time.Millisecond,
		logger:  logger,
	}
}

// Enqueue schedules delivery without blocking. It reports false when the queue
// is full or the worker has stopped.
func (w *WebhookWorker) Enqueue(event events.Event) bool {
	if w == nil {
		return false
	}
	select {
	case <-w.stop:
		return false
	default:
	}
	select {
	case w.queue <- event:
		return true
	default:
		return false
	}
}

// Start launches the delivery loop.
func (w *WebhookWorker) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.run(ctx)
}

// Stop flushes queued events and waits for the loop to exit.
func (w *WebhookWorker) Stop() {
	w.once.Do(func() { close(w.stop) })
	w.wg.Wait()
}

func (w *WebhookWorker) run(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			w.drain(ctx)
			return
		case event := <-w.queue:
			w.deliver(ctx, event)
		}
	}
}

func (w *WebhookWorker) drain(ctx context.Context) {
	for {
		select {
		case event := <-w.queue:
			w.deliver(ctx, event)
		default:
			return
		}
	}
}

func (w *WebhookWorker) deliver(ctx context.Context, event events.Event) {
	body, err := json.Marshal(event)
	if err != nil {
		w.logger.Error("encode webhook event", zap.String("event_id", event.ID), zap.Error(err))
		return
	}

	for attempt := 1; attempt <= maxDeliveryAttempts; attempt++ {
		sendCtx, cancel := context.WithTimeout(ctx, deliveryTimeout)
		err = w.sender.Send(sendCtx, w.url, body)
		cancel()
		if err == nil {
			w.logger.Debug("webhook delivered",
				zap.String("event_id", event.ID),
				zap.String("event_type", string(event.Type)),
				zap.Int("attempt", attempt))
			return
		}
		if attempt == maxDeliveryAttempts || ctx.Err() != nil {
			break
		}
		select {
		case <-ctx.Done():
		case <-time.After(w.backoff * time.Duration(attempt)):
		}
	}
	w.logger.Warn("webhook delivery failed",
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)),
		zap.Error(err))
}
