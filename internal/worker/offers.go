package worker

import (
	"sync"
	"time"

	"github.com/printhub/printhub-be/internal/domain"
)

// activeOffer is one outstanding time-boxed proposal of a job to a
// vendor. Offers live only in memory for the duration of the
// acceptance window; a process restart loses them and the startup
// reconciliation pass recovers from the persisted offer timestamps.
type activeOffer struct {
	offerID   string
	jobID     string
	vendorID  string
	createdAt time.Time
	expiresAt time.Time
	timer     *time.Timer
	resolved  bool
}

// offerRegistry tracks at most one active offer per job. Created at
// service start, torn down at shutdown. The resolve step is the
// idempotent guard that makes vendor response and timer expiry
// mutually exclusive: whichever reaches the registry first wins, the
// other becomes a no-op.
type offerRegistry struct {
	mu     sync.Mutex
	offers map[string]*activeOffer
}

func newOfferRegistry() *offerRegistry {
	return &offerRegistry{
		offers: make(map[string]*activeOffer),
	}
}

// put registers a fresh offer for a job, replacing any previous entry.
// The caller guarantees the previous offer, if any, was resolved.
func (r *offerRegistry) put(o *activeOffer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.offers[o.jobID] = o
}

// resolveResponse claims the current offer for a vendor's accept or
// decline. Returns ErrOfferAlreadyResolved when there is no live offer
// for this (job, vendor) pair.
func (r *offerRegistry) resolveResponse(jobID, vendorID string) (*activeOffer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.offers[jobID]
	if !ok || o.resolved || o.vendorID != vendorID {
		return nil, domain.ErrOfferAlreadyResolved
	}

	o.resolved = true
	if o.timer != nil {
		o.timer.Stop()
	}
	delete(r.offers, jobID)
	return o, nil
}

// setTimer attaches the expiry timer to an offer after it has been
// registered. If the offer was already resolved in the gap, the timer
// is stopped immediately.
func (r *offerRegistry) setTimer(jobID, offerID string, t *time.Timer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.offers[jobID]
	if !ok || o.offerID != offerID || o.resolved {
		t.Stop()
		return
	}
	o.timer = t
}

// resolveTimeout claims the offer on behalf of its expiry timer. Only
// the exact offer the timer was armed for may be claimed; a timer
// firing after the offer was replaced or resolved gets ErrStaleTimer.
func (r *offerRegistry) resolveTimeout(jobID, offerID string) (*activeOffer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.offers[jobID]
	if !ok || o.offerID != offerID {
		return nil, domain.ErrStaleTimer
	}
	if o.resolved {
		return nil, domain.ErrOfferAlreadyResolved
	}

	o.resolved = true
	delete(r.offers, jobID)
	return o, nil
}

// stopAll cancels every pending timer. Called on shutdown.
func (r *offerRegistry) stopAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for jobID, o := range r.offers {
		o.resolved = true
		if o.timer != nil {
			o.timer.Stop()
		}
		delete(r.offers, jobID)
	}
}

// size reports the number of outstanding offers.
func (r *offerRegistry) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.offers)
}
