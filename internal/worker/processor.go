package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/printhub/printhub-be/internal/domain"
	"github.com/printhub/printhub-be/internal/lifecycle"
	"github.com/printhub/printhub-be/internal/matching"
)

// timeoutHandlerBudget bounds the database work done inside a timer
// callback, which has no request context of its own.
const timeoutHandlerBudget = 30 * time.Second

// processMessage routes a consumed message to the matching pipeline or
// the offer dispatcher.
func (w *Worker) processMessage(ctx context.Context, msg *domain.JobMessage) error {
	switch msg.Kind {
	case domain.MessageKindMatchRequest:
		return w.processMatchRequest(ctx, msg.JobID)
	case domain.MessageKindOfferResponse:
		return w.processOfferResponse(ctx, msg)
	default:
		return fmt.Errorf("unknown message kind: %s", msg.Kind)
	}
}

// processMatchRequest moves a freshly uploaded job into PROCESSING and
// runs the match cycle for it.
func (w *Worker) processMatchRequest(ctx context.Context, jobID string) error {
	unlock := w.locks.Lock(jobID)
	defer unlock()

	job, err := w.store.GetJobByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			return fmt.Errorf("match request for unknown job: %w", err)
		}
		return domain.NewRetryableError(fmt.Errorf("failed to load job: %w", err))
	}

	switch job.Status {
	case domain.JobStatusUploaded:
		from := job.Status
		if err := lifecycle.Transition(job, domain.JobStatusProcessing, time.Now()); err != nil {
			return err
		}
		if err := w.store.ApplyTransition(ctx, job, from); err != nil {
			if errors.Is(err, domain.ErrStatusConflict) {
				w.logger.Warn("Job moved before matching started, skipping",
					slog.String("job_id", jobID),
				)
				return nil
			}
			return domain.NewRetryableError(err)
		}
	case domain.JobStatusProcessing:
		// Re-delivery or crash recovery: matching starts over.
	default:
		w.logger.Info("Match request for job no longer matchable, skipping",
			slog.String("job_id", jobID),
			slog.String("status", job.Status),
		)
		return nil
	}

	return w.runMatchCycle(ctx, job)
}

// runMatchCycle matches the job against the current vendor snapshot
// and either dispatches an offer or exhausts the job to
// NO_VENDORS_AVAILABLE. The caller holds the job lock; the job is in
// PROCESSING, VENDOR_REJECTED, or VENDOR_TIMEOUT. Matching failures
// are recovered locally and never propagate out of the cycle.
func (w *Worker) runMatchCycle(ctx context.Context, job *domain.Job) error {
	result, err := w.matcher.Match(ctx, job, job.ExcludedVendorIDs)
	if err != nil {
		if !errors.Is(err, domain.ErrNoEligibleVendor) {
			w.logger.Error("Matching failed, exhausting job",
				slog.String("job_id", job.JobID),
				slog.String("error", err.Error()),
			)
		}
		return w.exhaustJob(ctx, job)
	}

	return w.dispatchOffer(ctx, job, result)
}

// dispatchOffer assigns the matched vendor, transitions the job to
// AWAITING_ACCEPTANCE, notifies the vendor, and arms the acceptance
// timer.
func (w *Worker) dispatchOffer(ctx context.Context, job *domain.Job, result *matching.Result) error {
	from := job.Status
	now := time.Now()

	vendorID := result.Vendor.VendorID
	job.VendorID = &vendorID
	job.PricePerPage = result.PricePerPage
	job.TotalPrice = result.TotalPrice

	if err := lifecycle.Transition(job, domain.JobStatusAwaitingAcceptance, now); err != nil {
		return err
	}
	if err := w.store.ApplyTransition(ctx, job, from); err != nil {
		return err
	}

	offer := &activeOffer{
		offerID:   uuid.New().String(),
		jobID:     job.JobID,
		vendorID:  vendorID,
		createdAt: now,
		expiresAt: now.Add(w.window),
	}
	w.armOffer(offer, w.window)

	w.logger.Info("Offer dispatched",
		slog.String("job_id", job.JobID),
		slog.String("vendor_id", vendorID),
		slog.String("offer_id", offer.offerID),
		slog.Time("expires_at", offer.expiresAt),
	)

	w.notifier.Notify(ctx, job.JobID, job.Status, "New print job offered, awaiting acceptance")
	return nil
}

// armOffer registers the offer and starts its expiry timer.
func (w *Worker) armOffer(offer *activeOffer, window time.Duration) {
	w.offers.put(offer)
	timer := time.AfterFunc(window, func() {
		w.handleOfferTimeout(offer.jobID, offer.offerID)
	})
	w.offers.setTimer(offer.jobID, offer.offerID, timer)
}

// handleOfferTimeout fires when an acceptance window elapses with no
// vendor response: the vendor is excluded and the job re-enters the
// match cycle. A timer that lost the race against a response is a
// no-op.
func (w *Worker) handleOfferTimeout(jobID, offerID string) {
	offer, err := w.offers.resolveTimeout(jobID, offerID)
	if err != nil {
		w.logger.Debug("Offer timer fired for resolved offer, ignoring",
			slog.String("job_id", jobID),
			slog.String("offer_id", offerID),
			slog.String("reason", err.Error()),
		)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeoutHandlerBudget)
	defer cancel()

	unlock := w.locks.Lock(jobID)
	defer unlock()

	// Re-read the current status under the lock; the job may have been
	// cancelled or completed while the timer was pending.
	job, err := w.store.GetJobByID(ctx, jobID)
	if err != nil {
		w.logger.Error("Failed to load job for offer timeout",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		return
	}

	if job.Status != domain.JobStatusAwaitingAcceptance ||
		job.VendorID == nil || *job.VendorID != offer.vendorID {
		w.logger.Info("Stale offer timer, job moved on",
			slog.String("job_id", jobID),
			slog.String("status", job.Status),
		)
		return
	}

	w.logger.Info("Offer timed out",
		slog.String("job_id", jobID),
		slog.String("vendor_id", offer.vendorID),
	)

	if err := w.resolveNegatively(ctx, job, offer.vendorID, domain.JobStatusVendorTimeout); err != nil {
		w.logger.Error("Failed to process offer timeout",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
	}
}

// processOfferResponse applies a vendor's accept or decline. The
// persisted job is the authority: it is re-read under the lock, and a
// response for a job that moved on is an idempotent no-op. The registry
// entry is claimed to stop the acceptance timer, but a missing entry
// alone never drops the response - an earlier delivery may have claimed
// it and then failed before persisting anything, in which case the
// redelivery must still land.
func (w *Worker) processOfferResponse(ctx context.Context, msg *domain.JobMessage) error {
	unlock := w.locks.Lock(msg.JobID)
	defer unlock()

	job, err := w.store.GetJobByID(ctx, msg.JobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			return fmt.Errorf("offer response for unknown job: %w", err)
		}
		return domain.NewRetryableError(fmt.Errorf("failed to load job for offer response: %w", err))
	}

	if job.Status != domain.JobStatusAwaitingAcceptance ||
		job.VendorID == nil || *job.VendorID != msg.VendorID {
		w.logger.Info("Offer response for job that moved on, ignoring",
			slog.String("job_id", msg.JobID),
			slog.String("vendor_id", msg.VendorID),
			slog.String("status", job.Status),
		)
		return nil
	}

	if _, err := w.offers.resolveResponse(msg.JobID, msg.VendorID); err != nil {
		w.logger.Debug("No live offer entry for response, proceeding from persisted state",
			slog.String("job_id", msg.JobID),
			slog.String("vendor_id", msg.VendorID),
		)
	}

	if msg.Outcome == domain.OfferOutcomeAccept {
		from := job.Status
		if err := lifecycle.Transition(job, domain.JobStatusAccepted, time.Now()); err != nil {
			return err
		}
		if err := w.store.ApplyTransition(ctx, job, from); err != nil {
			if errors.Is(err, domain.ErrStatusConflict) {
				w.logger.Info("Job moved while persisting acceptance, ignoring",
					slog.String("job_id", job.JobID),
				)
				return nil
			}
			return domain.NewRetryableError(err)
		}

		w.logger.Info("Offer accepted",
			slog.String("job_id", job.JobID),
			slog.String("vendor_id", msg.VendorID),
		)
		w.notifier.Notify(ctx, job.JobID, job.Status, "Vendor accepted your print job")
		return nil
	}

	w.logger.Info("Offer declined",
		slog.String("job_id", job.JobID),
		slog.String("vendor_id", msg.VendorID),
	)

	return w.resolveNegatively(ctx, job, msg.VendorID, domain.JobStatusVendorRejected)
}

// resolveNegatively records a declined or timed-out offer: the vendor
// joins the job's excluded set (it only grows, so the re-offer loop
// terminates) and the match cycle runs again against the remaining
// pool. Caller holds the job lock.
func (w *Worker) resolveNegatively(ctx context.Context, job *domain.Job, vendorID, transientStatus string) error {
	from := job.Status
	if err := lifecycle.Transition(job, transientStatus, time.Now()); err != nil {
		return err
	}

	if vendorID != "" && !job.IsExcluded(vendorID) {
		job.ExcludedVendorIDs = append(job.ExcludedVendorIDs, vendorID)
	}
	job.VendorID = nil
	job.PricePerPage = 0
	job.TotalPrice = 0

	if err := w.store.ApplyTransition(ctx, job, from); err != nil {
		return err
	}

	w.notifier.Notify(ctx, job.JobID, job.Status, "Vendor did not take the job, searching for another print shop")

	return w.runMatchCycle(ctx, job)
}

// exhaustJob transitions a job with no remaining candidates to the
// terminal NO_VENDORS_AVAILABLE status. A legitimate customer-visible
// outcome, not an error.
func (w *Worker) exhaustJob(ctx context.Context, job *domain.Job) error {
	from := job.Status
	if err := lifecycle.Transition(job, domain.JobStatusNoVendorsAvailable, time.Now()); err != nil {
		return err
	}
	if err := w.store.ApplyTransition(ctx, job, from); err != nil {
		return err
	}

	w.logger.Info("Job exhausted, no vendors available",
		slog.String("job_id", job.JobID),
		slog.Int("excluded", len(job.ExcludedVendorIDs)),
	)

	w.notifier.Notify(ctx, job.JobID, job.Status, "No print shops are available for your job right now")
	return nil
}
