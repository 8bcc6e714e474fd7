// Package notify delivers job status-change notifications. Delivery is
// fire-and-forget: publishing happens in the background, and a failed
// notification is logged and never blocks or rolls back a state
// transition.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/printhub/printhub-be/shared/rabbitmq"
)

// publishTimeout bounds a single background publish attempt.
const publishTimeout = 5 * time.Second

// Notifier is the notification sink consumed by the core. Notify must
// not block the caller on broker I/O; callers invoke it while holding
// per-job locks.
type Notifier interface {
	Notify(ctx context.Context, jobID, status, message string)
}

// Notification is the payload published for downstream push/email
// transports.
type Notification struct {
	JobID   string    `json:"job_id"`
	Status  string    `json:"status"`
	Message string    `json:"message"`
	SentAt  time.Time `json:"sent_at"`
}

// publisher is the slice of the RabbitMQ client the notifier uses.
type publisher interface {
	PublishTo(ctx context.Context, routingKey string, body []byte, contentType string) error
}

// RabbitNotifier publishes notifications to a dedicated routing key on
// the jobs exchange.
type RabbitNotifier struct {
	client     publisher
	routingKey string
	logger     *slog.Logger
}

// NewRabbitNotifier creates a RabbitNotifier.
func NewRabbitNotifier(client *rabbitmq.Client, routingKey string, logger *slog.Logger) *RabbitNotifier {
	return &RabbitNotifier{
		client:     client,
		routingKey: routingKey,
		logger:     logger,
	}
}

// Notify serializes the notification and publishes it from a goroutine
// so the caller returns immediately. The publish runs on its own
// timeout context; the caller's context is usually request-scoped and
// ends before the broker round-trip would.
func (n *RabbitNotifier) Notify(ctx context.Context, jobID, status, message string) {
	body, err := json.Marshal(Notification{
		JobID:   jobID,
		Status:  status,
		Message: message,
		SentAt:  time.Now(),
	})
	if err != nil {
		n.logger.Error("Failed to marshal notification",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		return
	}

	go func() {
		pubCtx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()

		if err := n.client.PublishTo(pubCtx, n.routingKey, body, "application/json"); err != nil {
			n.logger.Warn("Failed to publish notification",
				slog.String("job_id", jobID),
				slog.String("status", status),
				slog.String("error", err.Error()),
			)
		}
	}()
}
