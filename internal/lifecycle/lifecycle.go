// Package lifecycle owns the canonical job status set and the legal
// transition table. Every status change in the system, manual or
// automatic, is validated here; the table is the single source of
// truth for terminal and cancellable states as well.
package lifecycle

import (
	"time"

	"github.com/printhub/printhub-be/internal/domain"
)

// transitions maps each status to the set of statuses it may move to.
var transitions = map[string][]string{
	domain.JobStatusUploaded: {
		domain.JobStatusProcessing,
		domain.JobStatusCancelled,
	},
	domain.JobStatusProcessing: {
		domain.JobStatusAwaitingAcceptance,
		domain.JobStatusNoVendorsAvailable,
		domain.JobStatusCancelled,
	},
	domain.JobStatusAwaitingAcceptance: {
		domain.JobStatusAccepted,
		domain.JobStatusVendorRejected,
		domain.JobStatusVendorTimeout,
		domain.JobStatusCancelled,
	},
	domain.JobStatusVendorRejected: {
		domain.JobStatusAwaitingAcceptance,
		domain.JobStatusNoVendorsAvailable,
	},
	domain.JobStatusVendorTimeout: {
		domain.JobStatusAwaitingAcceptance,
		domain.JobStatusNoVendorsAvailable,
	},
	domain.JobStatusAccepted: {
		domain.JobStatusPrinting,
	},
	domain.JobStatusPrinting: {
		domain.JobStatusReady,
	},
	domain.JobStatusReady: {
		domain.JobStatusCompleted,
	},
	domain.JobStatusCompleted:          {},
	domain.JobStatusCancelled:          {},
	domain.JobStatusNoVendorsAvailable: {},
}

// CanTransition reports whether the table allows from -> to.
func CanTransition(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a status admits no further transitions.
// VENDOR_REJECTED and VENDOR_TIMEOUT are transient: they are always
// immediately followed by a re-offer or NO_VENDORS_AVAILABLE.
func IsTerminal(status string) bool {
	switch status {
	case domain.JobStatusCompleted,
		domain.JobStatusCancelled,
		domain.JobStatusNoVendorsAvailable:
		return true
	}
	return false
}

// CanBeCancelled reports whether a customer may still cancel a job in
// the given status. Cancellation is refused once a vendor has accepted.
func CanBeCancelled(status string) bool {
	switch status {
	case domain.JobStatusUploaded,
		domain.JobStatusProcessing,
		domain.JobStatusAwaitingAcceptance:
		return true
	}
	return false
}

// Transition validates the requested status change against the table
// and applies it to the job, stamping the timestamp for the state
// reached. On an illegal transition the job is left unchanged.
func Transition(job *domain.Job, to string, now time.Time) error {
	if !CanTransition(job.Status, to) {
		return domain.NewIllegalTransition(job.Status, to)
	}

	job.Status = to
	job.UpdatedAt = now

	switch to {
	case domain.JobStatusProcessing:
		job.MatchedAt = &now
	case domain.JobStatusAwaitingAcceptance:
		job.OfferedAt = &now
	case domain.JobStatusAccepted:
		job.AcceptedAt = &now
	case domain.JobStatusPrinting:
		job.PrintingAt = &now
	case domain.JobStatusReady:
		job.ReadyAt = &now
	case domain.JobStatusCompleted:
		job.CompletedAt = &now
	}

	return nil
}

// Statuses returns the canonical status set, for validation of
// filter parameters.
func Statuses() []string {
	return []string{
		domain.JobStatusUploaded,
		domain.JobStatusProcessing,
		domain.JobStatusAwaitingAcceptance,
		domain.JobStatusAccepted,
		domain.JobStatusPrinting,
		domain.JobStatusReady,
		domain.JobStatusCompleted,
		domain.JobStatusCancelled,
		domain.JobStatusVendorRejected,
		domain.JobStatusVendorTimeout,
		domain.JobStatusNoVendorsAvailable,
	}
}
