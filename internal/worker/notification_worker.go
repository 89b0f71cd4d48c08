package worker

import (
	"context"
	"log/slog"

	"github.com/aryan0dhankhar/bloodbank/internal/notify"
	"github.com/aryan0dhankhar/bloodbank/internal/observability/metrics"
	"github.com/aryan0dhankhar/bloodbank/internal/reliability/retry"
)

// NotificationWorker emails requesters when an admin moves their request.
type NotificationWorker struct {
	events <-chan notify.Event
	sender notify.Sender
	policy retry.Policy
	logger *slog.Logger
}

// NewNotificationWorker consumes events from an existing hub subscription.
func NewNotificationWorker(events <-chan notify.Event, sender notify.Sender, policy retry.Policy, logger *slog.Logger) *NotificationWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &NotificationWorker{
		events: events,
		sender: sender,
		policy: policy,
		logger: logger.With(slog.String("component", "notification_worker")),
	}
}

// Start processes events until ctx is done or the subscription closes.
func (w *NotificationWorker) Start(ctx context.Context) {
	w.logger.Info("notification worker started")
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("notification worker stopped")
			return
		case e, ok := <-w.events:
			if !ok {
				w.logger.Info("notification worker stopped, subscription closed")
				return
			}
			w.handle(ctx, e)
		}
	}
}

func (w *NotificationWorker) handle(ctx context.Context, e notify.Event) {
	if e.Type != notify.RequestStatusChanged || e.Request == nil || e.Request.Email == "" {
		return
	}
	req := *e.Request

	msg, err := notify.StatusMessage(req)
	if err != nil {
		w.logger.Error("failed to render notification",
			slog.String("request_id", req.ID),
			slog.String("error", err.Error()),
		)
		metrics.ObserveNotification("render_error")
		return
	}

	id, err := retry.Do(ctx, w.policy, w.logger, "send status email", func(ctx context.Context) (string, error) {
		return w.sender.Send(ctx, msg)
	})
	if err != nil {
		w.logger.Error("failed to send status notification",
			slog.String("request_id", req.ID),
			slog.String("status", string(req.Status)),
			slog.String("error", err.Error()),
		)
		metrics.ObserveNotification("failure")
		return
	}

	w.logger.Info("status notification sent",
		slog.String("request_id", req.ID),
		slog.String("status", string(req.Status)),
		slog.String("message_id", id),
	)
	metrics.ObserveNotification("success")
}
