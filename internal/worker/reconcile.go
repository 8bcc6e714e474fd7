package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/printhub/printhub-be/internal/domain"
)

// reconcile recovers jobs whose in-flight state was lost to a process
// restart. Offers live only in memory, so every job persisted in
// AWAITING_ACCEPTANCE either gets its timer re-armed for the remaining
// window or, if the window already elapsed, is treated as a vendor
// timeout and re-entered into matching. Jobs orphaned in PROCESSING
// are matched again from scratch, and jobs stranded in a transient
// VENDOR_REJECTED or VENDOR_TIMEOUT status (crash between persisting
// the transient state and persisting the re-offer) re-enter the match
// cycle so they always end in AWAITING_ACCEPTANCE or
// NO_VENDORS_AVAILABLE.
func (w *Worker) reconcile(ctx context.Context) error {
	now := time.Now()

	awaiting, err := w.store.ListJobsByStatus(ctx, domain.JobStatusAwaitingAcceptance)
	if err != nil {
		return fmt.Errorf("failed to list awaiting jobs for reconciliation: %w", err)
	}

	var rearmed, expired int
	for _, job := range awaiting {
		if job.VendorID == nil || job.OfferedAt == nil {
			w.logger.Warn("Awaiting job missing offer data, re-matching",
				slog.String("job_id", job.JobID),
			)
			w.reconcileExpiredOffer(ctx, job.JobID)
			continue
		}

		deadline := job.OfferedAt.Add(w.window)
		if now.Before(deadline) {
			offer := &activeOffer{
				offerID:   uuid.New().String(),
				jobID:     job.JobID,
				vendorID:  *job.VendorID,
				createdAt: *job.OfferedAt,
				expiresAt: deadline,
			}
			w.armOffer(offer, deadline.Sub(now))
			rearmed++
			continue
		}

		w.reconcileExpiredOffer(ctx, job.JobID)
		expired++
	}

	processing, err := w.store.ListJobsByStatus(ctx, domain.JobStatusProcessing)
	if err != nil {
		return fmt.Errorf("failed to list processing jobs for reconciliation: %w", err)
	}

	for _, job := range processing {
		unlock := w.locks.Lock(job.JobID)
		if err := w.runMatchCycle(ctx, job); err != nil {
			w.logger.Error("Failed to re-match orphaned job",
				slog.String("job_id", job.JobID),
				slog.String("error", err.Error()),
			)
		}
		unlock()
	}

	var stranded int
	for _, status := range []string{domain.JobStatusVendorRejected, domain.JobStatusVendorTimeout} {
		jobs, err := w.store.ListJobsByStatus(ctx, status)
		if err != nil {
			return fmt.Errorf("failed to list %s jobs for reconciliation: %w", status, err)
		}

		for _, job := range jobs {
			unlock := w.locks.Lock(job.JobID)
			if err := w.runMatchCycle(ctx, job); err != nil {
				w.logger.Error("Failed to recover stranded job",
					slog.String("job_id", job.JobID),
					slog.String("status", status),
					slog.String("error", err.Error()),
				)
			}
			unlock()
		}
		stranded += len(jobs)
	}

	w.logger.Info("Reconciliation complete",
		slog.Int("offers_rearmed", rearmed),
		slog.Int("offers_expired", expired),
		slog.Int("orphaned_rematched", len(processing)),
		slog.Int("stranded_recovered", stranded),
	)

	return nil
}

// reconcileExpiredOffer treats a persisted offer whose window elapsed
// while the process was down as a vendor timeout.
func (w *Worker) reconcileExpiredOffer(ctx context.Context, jobID string) {
	unlock := w.locks.Lock(jobID)
	defer unlock()

	job, err := w.store.GetJobByID(ctx, jobID)
	if err != nil {
		w.logger.Error("Failed to load job for offer reconciliation",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		return
	}

	if job.Status != domain.JobStatusAwaitingAcceptance {
		return
	}

	vendorID := ""
	if job.VendorID != nil {
		vendorID = *job.VendorID
	}

	if err := w.resolveNegatively(ctx, job, vendorID, domain.JobStatusVendorTimeout); err != nil {
		w.logger.Error("Failed to reconcile expired offer",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
	}
}
