package service

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
	"github.com/aryan0dhankhar/bloodbank/internal/reliability/circuitbreaker"
	"github.com/aryan0dhankhar/bloodbank/internal/reliability/retry"
	"github.com/aryan0dhankhar/bloodbank/internal/repository"
)

var errCommitReset = errors.New("connection reset during commit")

// lostAckRequests commits the first n updates and then reports a transport
// error, the way a dropped connection looks after COMMIT reached the server.
type lostAckRequests struct {
	domain.RequestRepository
	mu    sync.Mutex
	drops int
	calls int
}

func (r *lostAckRequests) Update(ctx context.Context, id string, fn func(*domain.BloodRequest) error) (domain.BloodRequest, error) {
	r.mu.Lock()
	r.calls++
	drop := r.drops > 0
	if drop {
		r.drops--
	}
	r.mu.Unlock()

	updated, err := r.RequestRepository.Update(ctx, id, fn)
	if err != nil {
		return domain.BloodRequest{}, err
	}
	if drop {
		return domain.BloodRequest{}, errCommitReset
	}
	return updated, nil
}

func resilientRequests(next domain.RequestRepository) domain.RequestRepository {
	g := repository.NewResilience(
		retry.Policy{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, BackoffMultiplier: 1},
		circuitbreaker.Settings{FailureThreshold: 10, OpenTimeout: time.Minute},
		nil,
	)
	store := repository.WithResilience(&repository.Store{
		Donors:   repository.NewMemoryDonorRepository(),
		Requests: next,
	}, g)
	return store.Requests
}

func TestSubmitRejectsInvalidUnitsWithoutWriting(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	for _, units := range []int{0, -1} {
		in := janeDoe()
		in.UnitsNeeded = units
		_, err := f.requests.Submit(ctx, in)

		var verr *domain.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "unitsNeeded", verr.Field)
	}

	all, err := f.store.Requests.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.Empty(t, f.events.types())
}

func TestTransitionCommittedBeforeLostAckSucceeds(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	flaky := &lostAckRequests{RequestRepository: store.Requests, drops: 1}
	events := &recordingPublisher{}
	svc := NewRequestService(resilientRequests(flaky), events, nil)
	svc.now = stepClock()

	req, err := svc.Submit(ctx, janeDoe())
	require.NoError(t, err)

	approved, err := svc.Approve(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, approved.Status)
	assert.Equal(t, "Request approved by admin", approved.AdminNotes)
	assert.Equal(t, 2, flaky.calls)

	stored, err := store.Requests.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, stored.Status)
	assert.Equal(t, "Request approved by admin", stored.AdminNotes)

	require.Equal(t, []notify.EventType{notify.RequestSubmitted, notify.RequestStatusChanged}, events.types())
	assert.Equal(t, domain.StatusPending, events.events[1].FromStatus)
}

func TestRetriedRejectionKeepsLifecycleRules(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	flaky := &lostAckRequests{RequestRepository: store.Requests, drops: 1}
	svc := NewRequestService(resilientRequests(flaky), nil, nil)

	req, err := svc.Submit(ctx, janeDoe())
	require.NoError(t, err)
	rejected, err := svc.Reject(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, rejected.Status)

	_, err = svc.Approve(ctx, req.ID)
	var terr *domain.InvalidTransitionError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, domain.StatusRejected, terr.From)

	stored, err := store.Requests.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, stored.Status)
}

func TestStatusChangedEventUsesTransitionStamp(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	req, err := f.requests.Submit(ctx, janeDoe())
	require.NoError(t, err)
	_, err = f.requests.Approve(ctx, req.ID)
	require.NoError(t, err)
	fulfilled, err := f.requests.Fulfill(ctx, req.ID)
	require.NoError(t, err)
	require.NotNil(t, fulfilled.FulfilledDate)

	f.events.mu.Lock()
	last := f.events.events[len(f.events.events)-1]
	f.events.mu.Unlock()
	assert.Equal(t, *fulfilled.FulfilledDate, last.At)
}

// blockingRequests parks updates of one id until release is closed.
type blockingRequests struct {
	domain.RequestRepository
	blockID string
	entered chan struct{}
	release chan struct{}
}

func (r *blockingRequests) Update(ctx context.Context, id string, fn func(*domain.BloodRequest) error) (domain.BloodRequest, error) {
	if id == r.blockID {
		close(r.entered)
		<-r.release
	}
	return r.RequestRepository.Update(ctx, id, fn)
}

func TestSlowTransitionDoesNotStallOtherRequests(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	slow := &blockingRequests{
		RequestRepository: store.Requests,
		entered:           make(chan struct{}),
		release:           make(chan struct{}),
	}
	svc := NewRequestService(slow, nil, nil)

	a, err := svc.Submit(ctx, janeDoe())
	require.NoError(t, err)
	b, err := svc.Submit(ctx, janeDoe())
	require.NoError(t, err)
	slow.blockID = a.ID

	done := make(chan error, 1)
	go func() {
		_, err := svc.Approve(ctx, a.ID)
		done <- err
	}()
	<-slow.entered

	approved, err := svc.Approve(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, approved.Status)

	close(slow.release)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("blocked transition never finished")
	}
}
