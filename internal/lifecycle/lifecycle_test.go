package lifecycle

import (
	"testing"
	"time"

	"github.com/printhub/printhub-be/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// allowed mirrors the transition table; the tests walk the full
// (from, to) grid against it so any table edit must show up here too.
var allowed = map[string]map[string]bool{
	domain.JobStatusUploaded: {
		domain.JobStatusProcessing: true,
		domain.JobStatusCancelled:  true,
	},
	domain.JobStatusProcessing: {
		domain.JobStatusAwaitingAcceptance: true,
		domain.JobStatusNoVendorsAvailable: true,
		domain.JobStatusCancelled:          true,
	},
	domain.JobStatusAwaitingAcceptance: {
		domain.JobStatusAccepted:       true,
		domain.JobStatusVendorRejected: true,
		domain.JobStatusVendorTimeout:  true,
		domain.JobStatusCancelled:      true,
	},
	domain.JobStatusVendorRejected: {
		domain.JobStatusAwaitingAcceptance: true,
		domain.JobStatusNoVendorsAvailable: true,
	},
	domain.JobStatusVendorTimeout: {
		domain.JobStatusAwaitingAcceptance: true,
		domain.JobStatusNoVendorsAvailable: true,
	},
	domain.JobStatusAccepted: {
		domain.JobStatusPrinting: true,
	},
	domain.JobStatusPrinting: {
		domain.JobStatusReady: true,
	},
	domain.JobStatusReady: {
		domain.JobStatusCompleted: true,
	},
}

func TestCanTransition_FullGrid(t *testing.T) {
	statuses := Statuses()
	require.Len(t, statuses, 11)

	for _, from := range statuses {
		for _, to := range statuses {
			want := allowed[from][to]
			assert.Equal(t, want, CanTransition(from, to),
				"transition %s -> %s", from, to)
		}
	}
}

func TestTransition_IllegalLeavesJobUnchanged(t *testing.T) {
	statuses := Statuses()
	for _, from := range statuses {
		for _, to := range statuses {
			if allowed[from][to] {
				continue
			}

			job := &domain.Job{JobID: "job-1", Status: from}
			err := Transition(job, to, time.Now())

			var illegal *domain.IllegalTransitionError
			require.ErrorAs(t, err, &illegal, "transition %s -> %s", from, to)
			assert.Equal(t, from, illegal.From)
			assert.Equal(t, to, illegal.To)
			assert.Equal(t, from, job.Status, "job must be left unchanged")
			assert.Nil(t, job.AcceptedAt)
		}
	}
}

func TestTransition_StampsTimestamps(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		from  string
		to    string
		stamp func(j *domain.Job) *time.Time
	}{
		{"matching started", domain.JobStatusUploaded, domain.JobStatusProcessing, func(j *domain.Job) *time.Time { return j.MatchedAt }},
		{"offer dispatched", domain.JobStatusProcessing, domain.JobStatusAwaitingAcceptance, func(j *domain.Job) *time.Time { return j.OfferedAt }},
		{"vendor accepted", domain.JobStatusAwaitingAcceptance, domain.JobStatusAccepted, func(j *domain.Job) *time.Time { return j.AcceptedAt }},
		{"printing started", domain.JobStatusAccepted, domain.JobStatusPrinting, func(j *domain.Job) *time.Time { return j.PrintingAt }},
		{"prints ready", domain.JobStatusPrinting, domain.JobStatusReady, func(j *domain.Job) *time.Time { return j.ReadyAt }},
		{"picked up", domain.JobStatusReady, domain.JobStatusCompleted, func(j *domain.Job) *time.Time { return j.CompletedAt }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := &domain.Job{JobID: "job-1", Status: tt.from}
			require.NoError(t, Transition(job, tt.to, now))

			assert.Equal(t, tt.to, job.Status)
			assert.Equal(t, now, job.UpdatedAt)
			require.NotNil(t, tt.stamp(job))
			assert.Equal(t, now, *tt.stamp(job))
		})
	}
}

func TestIsTerminal(t *testing.T) {
	terminal := []string{
		domain.JobStatusCompleted,
		domain.JobStatusCancelled,
		domain.JobStatusNoVendorsAvailable,
	}
	for _, s := range terminal {
		assert.True(t, IsTerminal(s), s)
	}

	// VENDOR_REJECTED and VENDOR_TIMEOUT are transient, not terminal.
	transient := []string{
		domain.JobStatusVendorRejected,
		domain.JobStatusVendorTimeout,
	}
	for _, s := range transient {
		assert.False(t, IsTerminal(s), s)
	}

	assert.False(t, IsTerminal(domain.JobStatusUploaded))
	assert.False(t, IsTerminal(domain.JobStatusPrinting))
}

func TestCanBeCancelled(t *testing.T) {
	cancellable := []string{
		domain.JobStatusUploaded,
		domain.JobStatusProcessing,
		domain.JobStatusAwaitingAcceptance,
	}
	for _, s := range cancellable {
		assert.True(t, CanBeCancelled(s), s)
	}

	// Once a vendor has accepted, cancellation is refused.
	for _, s := range []string{
		domain.JobStatusAccepted,
		domain.JobStatusPrinting,
		domain.JobStatusReady,
		domain.JobStatusCompleted,
		domain.JobStatusCancelled,
	} {
		assert.False(t, CanBeCancelled(s), s)
	}
}
