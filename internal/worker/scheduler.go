package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/printhub/printhub-be/internal/domain"
	"github.com/printhub/printhub-be/internal/lifecycle"
)

// runScheduler ticks the auto-progression pass until shutdown.
func (w *Worker) runScheduler(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.sched.TickInterval)
	defer ticker.Stop()

	w.logger.Info("Auto-progression scheduler started",
		slog.Duration("tick_interval", w.sched.TickInterval),
		slog.Duration("ready_dwell", w.sched.ReadyDwell),
	)

	for {
		select {
		case <-w.stopChan:
			w.logger.Info("Auto-progression scheduler stopping - stopChan closed")
			return
		case <-ctx.Done():
			w.logger.Info("Auto-progression scheduler stopping - context canceled")
			return
		case <-ticker.C:
			w.schedulerPass(ctx)
		}
	}
}

// schedulerPass advances jobs whose time has come: PRINTING jobs past
// their estimated print duration become READY, READY jobs past the
// pickup dwell become COMPLETED. Both run through normal lifecycle
// validation.
func (w *Worker) schedulerPass(ctx context.Context) {
	printing, err := w.store.ListJobsByStatus(ctx, domain.JobStatusPrinting)
	if err != nil {
		w.logger.Error("Failed to list printing jobs",
			slog.String("error", err.Error()),
		)
	} else {
		for _, job := range printing {
			if job.PrintingAt == nil {
				continue
			}
			if time.Since(*job.PrintingAt) >= w.estimatePrintDuration(job) {
				w.autoAdvance(ctx, job.JobID, domain.JobStatusPrinting, domain.JobStatusReady,
					"Your prints are ready for pickup")
			}
		}
	}

	ready, err := w.store.ListJobsByStatus(ctx, domain.JobStatusReady)
	if err != nil {
		w.logger.Error("Failed to list ready jobs",
			slog.String("error", err.Error()),
		)
		return
	}
	for _, job := range ready {
		if job.ReadyAt == nil {
			continue
		}
		if time.Since(*job.ReadyAt) >= w.sched.ReadyDwell {
			w.autoAdvance(ctx, job.JobID, domain.JobStatusReady, domain.JobStatusCompleted,
				"Print job completed")
		}
	}
}

// estimatePrintDuration estimates how long a vendor needs to print a
// job, growing with sheet count and clamped to the configured range.
// The curve is a tunable heuristic, not a contract.
func (w *Worker) estimatePrintDuration(job *domain.Job) time.Duration {
	d := time.Duration(job.PageCount*job.Copies) * w.sched.SecondsPerPage
	if d < w.sched.MinPrintDuration {
		return w.sched.MinPrintDuration
	}
	if d > w.sched.MaxPrintDuration {
		return w.sched.MaxPrintDuration
	}
	return d
}

// autoAdvance applies one time-driven transition under the job lock,
// re-reading the status first so a stale listing never produces a
// transition from an outdated snapshot.
func (w *Worker) autoAdvance(ctx context.Context, jobID, expectedStatus, to, message string) {
	unlock := w.locks.Lock(jobID)
	defer unlock()

	job, err := w.store.GetJobByID(ctx, jobID)
	if err != nil {
		w.logger.Error("Failed to load job for auto-progression",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		return
	}

	if job.Status != expectedStatus {
		// Manual override or cancellation beat the tick.
		return
	}

	if err := lifecycle.Transition(job, to, time.Now()); err != nil {
		w.logger.Error("Auto-progression rejected by lifecycle",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		return
	}

	if err := w.store.ApplyTransition(ctx, job, expectedStatus); err != nil {
		if !errors.Is(err, domain.ErrStatusConflict) {
			w.logger.Error("Failed to persist auto-progression",
				slog.String("job_id", jobID),
				slog.String("error", err.Error()),
			)
		}
		return
	}

	w.logger.Info("Job auto-progressed",
		slog.String("job_id", jobID),
		slog.String("from_status", expectedStatus),
		slog.String("to_status", to),
	)

	w.notifier.Notify(ctx, jobID, to, message)
}
