package handler

import (
	"log/slog"

	"github.com/printhub/printhub-be/internal/api/storage"
	"github.com/printhub/printhub-be/internal/notify"
	"github.com/printhub/printhub-be/shared/postgresql"
	"github.com/printhub/printhub-be/shared/rabbitmq"
)

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger       *slog.Logger
	DBClient     *postgresql.Client
	RabbitClient *rabbitmq.Client
	Notifier     notify.Notifier
}

// JobHandler handles job-related HTTP requests
type JobHandler struct {
	logger       *slog.Logger
	storage      *storage.Storage
	rabbitClient *rabbitmq.Client
	notifier     notify.Notifier
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		logger:       deps.Logger,
		storage:      storage.NewStorage(deps.DBClient),
		rabbitClient: deps.RabbitClient,
		notifier:     deps.Notifier,
	}
}
