package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/printhub/printhub-be/internal/domain"
	"github.com/printhub/printhub-be/internal/matching"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore is an in-memory JobStore with the same status-guarded
// update semantics as the Postgres storage.
type fakeStore struct {
	mu   sync.Mutex
	jobs map[string]*domain.Job
}

func newFakeStore(jobs ...*domain.Job) *fakeStore {
	s := &fakeStore{jobs: make(map[string]*domain.Job)}
	for _, j := range jobs {
		s.jobs[j.JobID] = copyJob(j)
	}
	return s
}

func copyJob(j *domain.Job) *domain.Job {
	c := *j
	c.ExcludedVendorIDs = append([]string(nil), j.ExcludedVendorIDs...)
	if j.VendorID != nil {
		v := *j.VendorID
		c.VendorID = &v
	}
	return &c
}

func (s *fakeStore) GetJobByID(ctx context.Context, jobID string) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[jobID]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	return copyJob(j), nil
}

func (s *fakeStore) ApplyTransition(ctx context.Context, job *domain.Job, fromStatus string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.jobs[job.JobID]
	if !ok {
		return domain.ErrJobNotFound
	}
	if stored.Status != fromStatus {
		return domain.ErrStatusConflict
	}
	s.jobs[job.JobID] = copyJob(job)
	return nil
}

func (s *fakeStore) ListJobsByStatus(ctx context.Context, status string) ([]*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*domain.Job
	for _, j := range s.jobs {
		if j.Status == status {
			out = append(out, copyJob(j))
		}
	}
	return out, nil
}

func (s *fakeStore) status(t *testing.T, jobID string) string {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[jobID]
	require.True(t, ok, "job %s not in store", jobID)
	return j.Status
}

func (s *fakeStore) snapshot(t *testing.T, jobID string) *domain.Job {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[jobID]
	require.True(t, ok, "job %s not in store", jobID)
	return copyJob(j)
}

// fakeMatcher hands out vendors from a fixed pool in order, honoring
// the excluded set.
type fakeMatcher struct {
	vendors []domain.Vendor
	err     error
}

func (m *fakeMatcher) Match(ctx context.Context, job *domain.Job, excluded []string) (*matching.Result, error) {
	if m.err != nil {
		return nil, m.err
	}

	excludedSet := make(map[string]struct{}, len(excluded))
	for _, id := range excluded {
		excludedSet[id] = struct{}{}
	}

	for _, v := range m.vendors {
		if _, ok := excludedSet[v.VendorID]; ok {
			continue
		}
		rate := v.PricePerPage(job.Color, job.Duplex)
		return &matching.Result{
			Vendor:       v,
			PricePerPage: rate,
			TotalPrice:   domain.TotalPrice(rate, job.PageCount, job.Copies),
		}, nil
	}
	return nil, domain.ErrNoEligibleVendor
}

type fakeNotifier struct {
	mu       sync.Mutex
	statuses []string
}

func (n *fakeNotifier) Notify(ctx context.Context, jobID, status, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.statuses = append(n.statuses, status)
}

func (n *fakeNotifier) sent() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.statuses...)
}

func newTestWorker(store JobStore, matcher VendorMatcher, window time.Duration) (*Worker, *fakeNotifier) {
	notifier := &fakeNotifier{}
	w := NewWorker(&Config{
		Logger:           slog.New(slog.NewTextHandler(io.Discard, nil)),
		Store:            store,
		Matcher:          matcher,
		Notifier:         notifier,
		WorkerID:         "test-worker",
		Concurrency:      1,
		AcceptanceWindow: window,
		Scheduler: SchedulerSettings{
			TickInterval:     time.Second,
			SecondsPerPage:   10 * time.Second,
			MinPrintDuration: 2 * time.Minute,
			MaxPrintDuration: 30 * time.Minute,
			ReadyDwell:       24 * time.Hour,
		},
	})
	return w, notifier
}

func printVendor(id string, rate float64) domain.Vendor {
	return domain.Vendor{
		VendorID:      id,
		Name:          "Shop " + id,
		Active:        true,
		StoreOpen:     true,
		EmailVerified: true,
		PriceBWSingle: rate,
	}
}

func uploadedJob(id string) *domain.Job {
	return &domain.Job{
		JobID:     id,
		PaperSize: domain.PaperSizeA4,
		Copies:    2,
		PageCount: 5,
		Status:    domain.JobStatusUploaded,
	}
}

func currentOffer(w *Worker, jobID string) *activeOffer {
	w.offers.mu.Lock()
	defer w.offers.mu.Unlock()
	return w.offers.offers[jobID]
}

func TestProcessMatchRequest_DispatchesOffer(t *testing.T) {
	store := newFakeStore(uploadedJob("job-1"))
	matcher := &fakeMatcher{vendors: []domain.Vendor{printVendor("v-1", 2.50)}}
	w, notifier := newTestWorker(store, matcher, time.Hour)
	defer w.offers.stopAll()

	err := w.processMessage(context.Background(), &domain.JobMessage{
		Kind:  domain.MessageKindMatchRequest,
		JobID: "job-1",
	})
	require.NoError(t, err)

	job := store.snapshot(t, "job-1")
	assert.Equal(t, domain.JobStatusAwaitingAcceptance, job.Status)
	require.NotNil(t, job.VendorID)
	assert.Equal(t, "v-1", *job.VendorID)
	assert.Equal(t, 2.50, job.PricePerPage)
	assert.Equal(t, 25.00, job.TotalPrice)
	assert.NotNil(t, job.MatchedAt)
	assert.NotNil(t, job.OfferedAt)

	assert.Equal(t, 1, w.offers.size())
	assert.Contains(t, notifier.sent(), domain.JobStatusAwaitingAcceptance)
}

func TestProcessMatchRequest_NoVendorsExhausts(t *testing.T) {
	store := newFakeStore(uploadedJob("job-1"))
	w, notifier := newTestWorker(store, &fakeMatcher{}, time.Hour)

	err := w.processMatchRequest(context.Background(), "job-1")
	require.NoError(t, err)

	assert.Equal(t, domain.JobStatusNoVendorsAvailable, store.status(t, "job-1"))
	assert.Equal(t, 0, w.offers.size())
	assert.Contains(t, notifier.sent(), domain.JobStatusNoVendorsAvailable)
}

func TestProcessMatchRequest_UnknownJob(t *testing.T) {
	w, _ := newTestWorker(newFakeStore(), &fakeMatcher{}, time.Hour)

	err := w.processMatchRequest(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrJobNotFound)
}

func TestProcessMatchRequest_JobNoLongerMatchable(t *testing.T) {
	job := uploadedJob("job-1")
	job.Status = domain.JobStatusCancelled
	store := newFakeStore(job)
	w, _ := newTestWorker(store, &fakeMatcher{vendors: []domain.Vendor{printVendor("v-1", 1.00)}}, time.Hour)

	err := w.processMatchRequest(context.Background(), "job-1")
	require.NoError(t, err)

	assert.Equal(t, domain.JobStatusCancelled, store.status(t, "job-1"))
	assert.Equal(t, 0, w.offers.size())
}

func TestProcessOfferResponse_Accept(t *testing.T) {
	store := newFakeStore(uploadedJob("job-1"))
	matcher := &fakeMatcher{vendors: []domain.Vendor{printVendor("v-1", 2.00)}}
	w, notifier := newTestWorker(store, matcher, time.Hour)
	defer w.offers.stopAll()

	require.NoError(t, w.processMatchRequest(context.Background(), "job-1"))
	offer := currentOffer(w, "job-1")
	require.NotNil(t, offer)

	err := w.processOfferResponse(context.Background(), &domain.JobMessage{
		Kind:     domain.MessageKindOfferResponse,
		JobID:    "job-1",
		VendorID: "v-1",
		Outcome:  domain.OfferOutcomeAccept,
	})
	require.NoError(t, err)

	job := store.snapshot(t, "job-1")
	assert.Equal(t, domain.JobStatusAccepted, job.Status)
	assert.NotNil(t, job.AcceptedAt)
	assert.Equal(t, 0, w.offers.size())
	assert.Contains(t, notifier.sent(), domain.JobStatusAccepted)

	// The timer losing the race is a strict no-op.
	w.handleOfferTimeout("job-1", offer.offerID)
	assert.Equal(t, domain.JobStatusAccepted, store.status(t, "job-1"))
}

func TestProcessOfferResponse_DeclineReoffersNextVendor(t *testing.T) {
	store := newFakeStore(uploadedJob("job-1"))
	matcher := &fakeMatcher{vendors: []domain.Vendor{
		printVendor("v-1", 2.00),
		printVendor("v-2", 3.00),
	}}
	w, _ := newTestWorker(store, matcher, time.Hour)
	defer w.offers.stopAll()

	require.NoError(t, w.processMatchRequest(context.Background(), "job-1"))

	err := w.processOfferResponse(context.Background(), &domain.JobMessage{
		Kind:     domain.MessageKindOfferResponse,
		JobID:    "job-1",
		VendorID: "v-1",
		Outcome:  domain.OfferOutcomeDecline,
	})
	require.NoError(t, err)

	job := store.snapshot(t, "job-1")
	assert.Equal(t, domain.JobStatusAwaitingAcceptance, job.Status)
	require.NotNil(t, job.VendorID)
	assert.Equal(t, "v-2", *job.VendorID)
	assert.Equal(t, 3.00, job.PricePerPage)
	assert.Equal(t, []string{"v-1"}, job.ExcludedVendorIDs)
	assert.Equal(t, 1, w.offers.size())
}

func TestProcessOfferResponse_DeclineLastVendorExhausts(t *testing.T) {
	store := newFakeStore(uploadedJob("job-1"))
	matcher := &fakeMatcher{vendors: []domain.Vendor{printVendor("v-1", 2.00)}}
	w, _ := newTestWorker(store, matcher, time.Hour)

	require.NoError(t, w.processMatchRequest(context.Background(), "job-1"))

	err := w.processOfferResponse(context.Background(), &domain.JobMessage{
		Kind:     domain.MessageKindOfferResponse,
		JobID:    "job-1",
		VendorID: "v-1",
		Outcome:  domain.OfferOutcomeDecline,
	})
	require.NoError(t, err)

	job := store.snapshot(t, "job-1")
	assert.Equal(t, domain.JobStatusNoVendorsAvailable, job.Status)
	assert.Equal(t, []string{"v-1"}, job.ExcludedVendorIDs)
	assert.Nil(t, job.VendorID)
	assert.Equal(t, 0.0, job.TotalPrice)
}

func TestProcessOfferResponse_WrongVendorIgnored(t *testing.T) {
	store := newFakeStore(uploadedJob("job-1"))
	matcher := &fakeMatcher{vendors: []domain.Vendor{printVendor("v-1", 2.00)}}
	w, _ := newTestWorker(store, matcher, time.Hour)
	defer w.offers.stopAll()

	require.NoError(t, w.processMatchRequest(context.Background(), "job-1"))

	err := w.processOfferResponse(context.Background(), &domain.JobMessage{
		Kind:     domain.MessageKindOfferResponse,
		JobID:    "job-1",
		VendorID: "v-intruder",
		Outcome:  domain.OfferOutcomeAccept,
	})
	require.NoError(t, err)

	// Offer stays live for the real vendor.
	assert.Equal(t, domain.JobStatusAwaitingAcceptance, store.status(t, "job-1"))
	assert.Equal(t, 1, w.offers.size())
}

// flakyStore fails a fixed number of reads before recovering, like a
// database blip during message processing.
type flakyStore struct {
	*fakeStore
	failGets int
}

func (s *flakyStore) GetJobByID(ctx context.Context, jobID string) (*domain.Job, error) {
	if s.failGets > 0 {
		s.failGets--
		return nil, errors.New("read tcp 10.0.0.1:5432: connection reset by peer")
	}
	return s.fakeStore.GetJobByID(ctx, jobID)
}

func TestProcessOfferResponse_TransientLoadFailureIsRetryable(t *testing.T) {
	store := newFakeStore(uploadedJob("job-1"))
	matcher := &fakeMatcher{vendors: []domain.Vendor{printVendor("v-1", 2.00)}}
	w, _ := newTestWorker(store, matcher, time.Hour)
	defer w.offers.stopAll()

	require.NoError(t, w.processMatchRequest(context.Background(), "job-1"))

	flaky := &flakyStore{fakeStore: store, failGets: 1}
	w.store = flaky

	accept := &domain.JobMessage{
		Kind:     domain.MessageKindOfferResponse,
		JobID:    "job-1",
		VendorID: "v-1",
		Outcome:  domain.OfferOutcomeAccept,
	}

	err := w.processOfferResponse(context.Background(), accept)
	require.Error(t, err)
	assert.True(t, w.shouldRequeue(err), "transient load failure must requeue")

	// The failed delivery must not consume the offer: the timer stays
	// armed so the acceptance window still applies.
	assert.Equal(t, 1, w.offers.size())
	assert.Equal(t, domain.JobStatusAwaitingAcceptance, store.status(t, "job-1"))

	// The broker redelivers and the accept lands.
	require.NoError(t, w.processOfferResponse(context.Background(), accept))
	assert.Equal(t, domain.JobStatusAccepted, store.status(t, "job-1"))
	assert.Equal(t, 0, w.offers.size())
}

func TestProcessOfferResponse_AppliesWithoutRegistryEntry(t *testing.T) {
	store := newFakeStore(uploadedJob("job-1"))
	matcher := &fakeMatcher{vendors: []domain.Vendor{printVendor("v-1", 2.00)}}
	w, notifier := newTestWorker(store, matcher, time.Hour)
	defer w.offers.stopAll()

	require.NoError(t, w.processMatchRequest(context.Background(), "job-1"))

	// A prior delivery claimed the offer entry but died before
	// persisting anything. The persisted job is still waiting on v-1.
	_, err := w.offers.resolveResponse("job-1", "v-1")
	require.NoError(t, err)
	require.Equal(t, 0, w.offers.size())

	err = w.processOfferResponse(context.Background(), &domain.JobMessage{
		Kind:     domain.MessageKindOfferResponse,
		JobID:    "job-1",
		VendorID: "v-1",
		Outcome:  domain.OfferOutcomeAccept,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.JobStatusAccepted, store.status(t, "job-1"))
	assert.Contains(t, notifier.sent(), domain.JobStatusAccepted)
}

func TestOfferTimeout_ExcludesVendorAndExhausts(t *testing.T) {
	store := newFakeStore(uploadedJob("job-1"))
	matcher := &fakeMatcher{vendors: []domain.Vendor{printVendor("v-1", 2.00)}}
	w, _ := newTestWorker(store, matcher, 20*time.Millisecond)

	require.NoError(t, w.processMatchRequest(context.Background(), "job-1"))

	require.Eventually(t, func() bool {
		return store.status(t, "job-1") == domain.JobStatusNoVendorsAvailable
	}, 2*time.Second, 10*time.Millisecond)

	job := store.snapshot(t, "job-1")
	assert.Equal(t, []string{"v-1"}, job.ExcludedVendorIDs)

	// A late accept after the timeout changes nothing.
	err := w.processOfferResponse(context.Background(), &domain.JobMessage{
		Kind:     domain.MessageKindOfferResponse,
		JobID:    "job-1",
		VendorID: "v-1",
		Outcome:  domain.OfferOutcomeAccept,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusNoVendorsAvailable, store.status(t, "job-1"))
}

func TestProcessMessage_UnknownKind(t *testing.T) {
	w, _ := newTestWorker(newFakeStore(), &fakeMatcher{}, time.Hour)

	err := w.processMessage(context.Background(), &domain.JobMessage{Kind: "bogus"})
	assert.Error(t, err)
}
