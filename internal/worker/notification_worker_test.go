package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aryan0dhankhar/bloodbank/internal/domain"
	"github.com/aryan0dhankhar/bloodbank/internal/notify"
	"github.com/aryan0dhankhar/bloodbank/internal/reliability/retry"
)

type fakeSender struct {
	mu       sync.Mutex
	sent     []notify.Message
	failures int
}

func (f *fakeSender) Send(_ context.Context, msg notify.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return "", errors.New("smtp unavailable")
	}
	f.sent = append(f.sent, msg)
	return "msg-1", nil
}

func (f *fakeSender) messages() []notify.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]notify.Message(nil), f.sent...)
}

func testPolicy() retry.Policy {
	return retry.Policy{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, BackoffMultiplier: 1}
}

func runWorker(t *testing.T, sender notify.Sender, events ...notify.Event) {
	t.Helper()
	ch := make(chan notify.Event, len(events))
	for _, e := range events {
		ch <- e
	}
	close(ch)

	done := make(chan struct{})
	go func() {
		NewNotificationWorker(ch, sender, testPolicy(), nil).Start(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop after subscription closed")
	}
}

func approved(email string) *domain.BloodRequest {
	return &domain.BloodRequest{
		ID:            "req-1",
		RequesterName: "Jane Doe",
		BloodGroup:    domain.ONegative,
		City:          "Metro",
		Email:         email,
		UnitsNeeded:   2,
		Status:        domain.StatusApproved,
	}
}

func TestNotificationWorkerSendsStatusEmails(t *testing.T) {
	sender := &fakeSender{failures: 1}
	runWorker(t, sender,
		notify.Event{Type: notify.RequestStatusChanged, Request: approved("jane@example.com")},
	)

	sent := sender.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, []string{"jane@example.com"}, sent[0].To)
	assert.Contains(t, sent[0].Subject, "approved")
}

func TestNotificationWorkerSkipsIrrelevantEvents(t *testing.T) {
	sender := &fakeSender{}
	runWorker(t, sender,
		notify.Event{Type: notify.RequestSubmitted, Request: approved("jane@example.com")},
		notify.Event{Type: notify.RequestStatusChanged, Request: approved("")},
		notify.Event{Type: notify.DonorRegistered, Donor: &domain.Donor{ID: "d-1"}},
	)
	assert.Empty(t, sender.messages())
}

func TestNotificationWorkerStopsOnContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan notify.Event)
	done := make(chan struct{})
	go func() {
		NewNotificationWorker(ch, &fakeSender{}, testPolicy(), nil).Start(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop on cancel")
	}
}
