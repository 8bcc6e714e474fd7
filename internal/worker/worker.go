// Package worker hosts the asynchronous half of the marketplace: the
// match-request consumer, the offer dispatcher with its acceptance
// timers, the auto-progression scheduler, and the restart
// reconciliation pass.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/printhub/printhub-be/internal/domain"
	"github.com/printhub/printhub-be/internal/matching"
	"github.com/printhub/printhub-be/internal/notify"
	"github.com/printhub/printhub-be/shared/rabbitmq"
)

// JobStore is the job persistence the worker depends on. The worker
// treats Job as the unit of persistence and requires atomic
// read-modify-write per job (the status-guarded update).
type JobStore interface {
	GetJobByID(ctx context.Context, jobID string) (*domain.Job, error)
	ApplyTransition(ctx context.Context, job *domain.Job, fromStatus string) error
	ListJobsByStatus(ctx context.Context, status string) ([]*domain.Job, error)
}

// VendorMatcher selects the best vendor for a job.
type VendorMatcher interface {
	Match(ctx context.Context, job *domain.Job, excluded []string) (*matching.Result, error)
}

// SchedulerSettings holds auto-progression timing parameters.
type SchedulerSettings struct {
	TickInterval     time.Duration
	SecondsPerPage   time.Duration
	MinPrintDuration time.Duration
	MaxPrintDuration time.Duration
	ReadyDwell       time.Duration
}

// Config holds worker configuration
type Config struct {
	Logger           *slog.Logger
	Store            JobStore
	Matcher          VendorMatcher
	Notifier         notify.Notifier
	RabbitClient     *rabbitmq.Client
	WorkerID         string
	Concurrency      int
	PrefetchCount    int
	AcceptanceWindow time.Duration
	Scheduler        SchedulerSettings
}

// Worker represents the background matching and lifecycle worker
type Worker struct {
	logger       *slog.Logger
	store        JobStore
	matcher      VendorMatcher
	notifier     notify.Notifier
	rabbitClient *rabbitmq.Client

	workerID      string
	concurrency   int
	prefetchCount int
	window        time.Duration
	sched         SchedulerSettings

	offers   *offerRegistry
	locks    *jobLocks
	jobsChan chan *domain.JobMessage
	wg       sync.WaitGroup
	stopChan chan struct{}
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	window := cfg.AcceptanceWindow
	if window <= 0 {
		window = 90 * time.Second
	}

	return &Worker{
		logger:        cfg.Logger,
		store:         cfg.Store,
		matcher:       cfg.Matcher,
		notifier:      cfg.Notifier,
		rabbitClient:  cfg.RabbitClient,
		workerID:      cfg.WorkerID,
		concurrency:   cfg.Concurrency,
		prefetchCount: cfg.PrefetchCount,
		window:        window,
		sched:         cfg.Scheduler,
		offers:        newOfferRegistry(),
		locks:         newJobLocks(),
		jobsChan:      make(chan *domain.JobMessage, cfg.Concurrency),
		stopChan:      make(chan struct{}),
	}
}

// Start reconciles state left over from a previous run, then begins
// consuming messages and ticking the auto-progression scheduler. Blocks
// until the context is canceled.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker",
		slog.String("worker_id", w.workerID),
		slog.Int("concurrency", w.concurrency),
		slog.Duration("acceptance_window", w.window),
	)

	if err := w.reconcile(ctx); err != nil {
		return err
	}

	deliveries, err := w.setupConsumer(ctx)
	if err != nil {
		return err
	}

	w.spawnWorkerPool(ctx)

	w.wg.Add(1)
	go w.runScheduler(ctx)

	go w.startMessageDispatcher(ctx, deliveries)

	<-ctx.Done()
	w.logger.Info("Worker context canceled, stopping...")

	return nil
}

// Stop gracefully stops the worker
func (w *Worker) Stop() {
	w.logger.Info("Stopping worker...")
	close(w.stopChan)
	w.offers.stopAll()
	w.wg.Wait()
	w.logger.Info("Worker stopped")
}
