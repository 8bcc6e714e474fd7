package notify

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePublisher blocks every publish until released, recording the
// payloads it eventually receives.
type fakePublisher struct {
	mu       sync.Mutex
	release  chan struct{}
	payloads []published
}

type published struct {
	routingKey string
	body       []byte
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{release: make(chan struct{})}
}

func (p *fakePublisher) PublishTo(ctx context.Context, routingKey string, body []byte, contentType string) error {
	select {
	case <-p.release:
	case <-ctx.Done():
		return ctx.Err()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.payloads = append(p.payloads, published{routingKey: routingKey, body: body})
	return nil
}

func (p *fakePublisher) sent() []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]published(nil), p.payloads...)
}

func TestRabbitNotifier_DoesNotBlockCaller(t *testing.T) {
	pub := newFakePublisher()
	n := &RabbitNotifier{
		client:     pub,
		routingKey: "print.notifications",
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	done := make(chan struct{})
	go func() {
		n.Notify(context.Background(), "job-1", "ACCEPTED", "Vendor accepted your print job")
		close(done)
	}()

	// Notify must return while the broker publish is still blocked.
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Notify blocked on the publish")
	}
	assert.Empty(t, pub.sent())

	close(pub.release)

	require.Eventually(t, func() bool {
		return len(pub.sent()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	got := pub.sent()[0]
	assert.Equal(t, "print.notifications", got.routingKey)

	var payload Notification
	require.NoError(t, json.Unmarshal(got.body, &payload))
	assert.Equal(t, "job-1", payload.JobID)
	assert.Equal(t, "ACCEPTED", payload.Status)
	assert.Equal(t, "Vendor accepted your print job", payload.Message)
	assert.False(t, payload.SentAt.IsZero())
}
