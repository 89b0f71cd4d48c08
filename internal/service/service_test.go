package service

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aryan0dhankhar/bloodbank/internal/domain"
	"github.com/aryan0dhankhar/bloodbank/internal/notify"
	"github.com/aryan0dhankhar/bloodbank/internal/repository"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []notify.Event
}

func (p *recordingPublisher) Publish(e notify.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *recordingPublisher) types() []notify.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]notify.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

// stepClock advances one minute per call so ordering is deterministic.
func stepClock() func() time.Time {
	var n atomic.Int64
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		return base.Add(time.Duration(n.Add(1)) * time.Minute)
	}
}

type fixture struct {
	store    *repository.Store
	events   *recordingPublisher
	donors   *DonorService
	requests *RequestService
	stats    *StatsService
}

func newFixture() *fixture {
	store := repository.NewMemoryStore()
	events := &recordingPublisher{}
	clock := stepClock()

	donors := NewDonorService(store.Donors, events, nil)
	donors.now = clock
	requests := NewRequestService(store.Requests, events, nil)
	requests.now = clock

	return &fixture{
		store:    store,
		events:   events,
		donors:   donors,
		requests: requests,
		stats:    NewStatsService(store.Donors, store.Requests, nil),
	}
}

func donorInput(name, group, city string) domain.DonorInput {
	return domain.DonorInput{Name: name, Age: 30, BloodGroup: group, City: city, Contact: "9876543210"}
}

func janeDoe() domain.RequestInput {
	return domain.RequestInput{
		RequesterName: "Jane Doe",
		RequesterType: "patient",
		BloodGroup:    "O-",
		UrgencyLevel:  "critical",
		City:          "Metro",
		Contact:       "5551234567",
		UnitsNeeded:   2,
	}
}

func TestRegisterAssignsFreshIDs(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	seen := map[string]bool{}
	for i := range 5 {
		d, err := f.donors.Register(ctx, donorInput(fmt.Sprintf("Donor %d", i), "A+", "Pune"))
		require.NoError(t, err)
		assert.NotEmpty(t, d.ID)
		assert.False(t, seen[d.ID], "duplicate id %s", d.ID)
		seen[d.ID] = true
		assert.False(t, d.RegistrationDate.IsZero())
	}
	assert.Len(t, f.events.types(), 5)
}

func TestRegisterRejectsInvalidAgeWithoutWriting(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	for _, age := range []int{17, 66} {
		in := donorInput("Too Young", "A+", "Pune")
		in.Age = age
		_, err := f.donors.Register(ctx, in)

		var verr *domain.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "age", verr.Field)
	}

	all, err := f.store.Donors.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.Empty(t, f.events.types())
}

func TestListByBloodGroup(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	for _, g := range []string{"A+", "A+", "O-", "AB+"} {
		_, err := f.donors.Register(ctx, donorInput("Donor", g, "Pune"))
		require.NoError(t, err)
	}

	counts, err := f.donors.ListByBloodGroup(ctx)
	require.NoError(t, err)
	assert.Len(t, counts, 8)
	assert.Equal(t, 2, counts[domain.APositive])
	assert.Equal(t, 1, counts[domain.ONegative])
	assert.Equal(t, 0, counts[domain.BNegative])

	total := 0
	for _, n := range counts {
		total += n
	}
	assert.Equal(t, 4, total)
}

func TestDonorListFiltersNewestFirst(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	first, err := f.donors.Register(ctx, donorInput("First", "A+", "Pune"))
	require.NoError(t, err)
	_, err = f.donors.Register(ctx, donorInput("Second", "B+", "Mumbai"))
	require.NoError(t, err)
	third, err := f.donors.Register(ctx, donorInput("Third", "A+", "pune"))
	require.NoError(t, err)

	all, err := f.donors.List(ctx, DonorFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "Third", all[0].Name)
	assert.Equal(t, "First", all[2].Name)

	inPune, err := f.donors.List(ctx, DonorFilter{BloodGroup: domain.APositive, City: "PUNE"})
	require.NoError(t, err)
	require.Len(t, inPune, 2)
	assert.Equal(t, third.ID, inPune[0].ID)
	assert.Equal(t, first.ID, inPune[1].ID)
}

func TestRequestLifecycleScenario(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	req, err := f.requests.Submit(ctx, janeDoe())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, req.Status)
	assert.Empty(t, req.AdminNotes)

	approved, err := f.requests.Transition(ctx, req.ID, domain.StatusApproved)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, approved.Status)
	assert.Equal(t, "Request approved by admin", approved.AdminNotes)
	assert.Nil(t, approved.FulfilledDate)

	fulfilled, err := f.requests.Transition(ctx, req.ID, domain.StatusFulfilled)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFulfilled, fulfilled.Status)
	require.NotNil(t, fulfilled.FulfilledDate)
	assert.Equal(t, "Request approved by admin\nRequest marked as fulfilled", fulfilled.AdminNotes)

	_, err = f.requests.Fulfill(ctx, req.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	stored, err := f.requests.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, fulfilled.AdminNotes, stored.AdminNotes)
	assert.True(t, fulfilled.FulfilledDate.Equal(*stored.FulfilledDate))

	assert.Equal(t, []notify.EventType{
		notify.RequestSubmitted,
		notify.RequestStatusChanged,
		notify.RequestStatusChanged,
	}, f.events.types())
}

func TestStatusChangedEventCarriesPreviousStatus(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	req, err := f.requests.Submit(ctx, janeDoe())
	require.NoError(t, err)
	_, err = f.requests.Reject(ctx, req.ID)
	require.NoError(t, err)

	f.events.mu.Lock()
	last := f.events.events[len(f.events.events)-1]
	f.events.mu.Unlock()
	assert.Equal(t, notify.RequestStatusChanged, last.Type)
	assert.Equal(t, domain.StatusPending, last.FromStatus)
	require.NotNil(t, last.Request)
	assert.Equal(t, domain.StatusRejected, last.Request.Status)
}

func TestRejectRejectedLeavesStoreUnchanged(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	req, err := f.requests.Submit(ctx, janeDoe())
	require.NoError(t, err)
	rejected, err := f.requests.Reject(ctx, req.ID)
	require.NoError(t, err)

	_, err = f.requests.Reject(ctx, req.ID)
	var terr *domain.InvalidTransitionError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, domain.StatusRejected, terr.From)
	assert.Equal(t, domain.StatusRejected, terr.To)

	stored, err := f.requests.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, rejected.AdminNotes, stored.AdminNotes)
	assert.Equal(t, domain.StatusRejected, stored.Status)
}

func TestTransitionErrors(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.requests.Approve(ctx, "missing")
	var nerr *domain.NotFoundError
	require.ErrorAs(t, err, &nerr)
	assert.Equal(t, "missing", nerr.ID)

	req, err := f.requests.Submit(ctx, janeDoe())
	require.NoError(t, err)

	_, err = f.requests.Fulfill(ctx, req.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = f.requests.Transition(ctx, req.ID, domain.Status("archived"))
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = f.requests.Transition(ctx, req.ID, domain.StatusPending)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	stored, err := f.requests.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, stored.Status)
	assert.Empty(t, stored.AdminNotes)
}

func TestConcurrentTransitionsApplyOnce(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	req, err := f.requests.Submit(ctx, janeDoe())
	require.NoError(t, err)

	var (
		wg        sync.WaitGroup
		successes atomic.Int32
	)
	for i := range 20 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			to := domain.StatusApproved
			if i%2 == 1 {
				to = domain.StatusRejected
			}
			if _, err := f.requests.Transition(ctx, req.ID, to); err == nil {
				successes.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), successes.Load())
	stored, err := f.requests.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Contains(t, []domain.Status{domain.StatusApproved, domain.StatusRejected}, stored.Status)
	assert.NotContains(t, stored.AdminNotes, "\n")
}

func TestRequestListFiltersNewestFirst(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	older, err := f.requests.Submit(ctx, janeDoe())
	require.NoError(t, err)

	in := janeDoe()
	in.RequesterName = "City Hospital"
	in.UrgencyLevel = "low"
	in.BloodGroup = "A+"
	newer, err := f.requests.Submit(ctx, in)
	require.NoError(t, err)
	_, err = f.requests.Approve(ctx, newer.ID)
	require.NoError(t, err)

	seq, err := f.requests.List(ctx, RequestFilter{})
	require.NoError(t, err)
	all := slices.Collect(seq)
	require.Len(t, all, 2)
	assert.Equal(t, newer.ID, all[0].ID)
	assert.Equal(t, older.ID, all[1].ID)

	seq, err = f.requests.List(ctx, RequestFilter{Status: domain.StatusPending, Urgency: domain.UrgencyCritical, City: "metro"})
	require.NoError(t, err)
	pending := slices.Collect(seq)
	require.Len(t, pending, 1)
	assert.Equal(t, older.ID, pending[0].ID)

	seq, err = f.requests.List(ctx, RequestFilter{BloodGroup: domain.BPositive})
	require.NoError(t, err)
	assert.Empty(t, slices.Collect(seq))
}

func TestRequestListIsSnapshot(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.requests.Submit(ctx, janeDoe())
	require.NoError(t, err)
	seq, err := f.requests.List(ctx, RequestFilter{})
	require.NoError(t, err)

	_, err = f.requests.Submit(ctx, janeDoe())
	require.NoError(t, err)

	assert.Len(t, slices.Collect(seq), 1)
	assert.Len(t, slices.Collect(seq), 1, "sequence can be iterated again")
}

func TestStatsCompute(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.donors.Register(ctx, donorInput("A", "O+", "Pune"))
	require.NoError(t, err)
	_, err = f.donors.Register(ctx, donorInput("B", "O+", "Pune"))
	require.NoError(t, err)

	_, err = f.requests.Submit(ctx, janeDoe())
	require.NoError(t, err)
	done, err := f.requests.Submit(ctx, janeDoe())
	require.NoError(t, err)
	_, err = f.requests.Approve(ctx, done.ID)
	require.NoError(t, err)
	_, err = f.requests.Fulfill(ctx, done.ID)
	require.NoError(t, err)

	stats, err := f.stats.Compute(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalDonors)
	assert.Equal(t, 2, stats.TotalRequests)
	assert.Equal(t, 1, stats.PendingRequests)
	assert.Equal(t, 1, stats.FulfilledRequests)
	assert.Equal(t, 1, stats.CriticalPending)
	assert.Len(t, stats.DonorsByBloodGroup, 8)
	assert.Equal(t, 2, stats.DonorsByBloodGroup[domain.OPositive])
}

func TestSeedSampleData(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	seeded, err := SeedSampleData(ctx, f.donors, f.requests, nil)
	require.NoError(t, err)
	assert.True(t, seeded)

	stats, err := f.stats.Compute(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalDonors)
	assert.Equal(t, 2, stats.TotalRequests)
	assert.Equal(t, 1, stats.ApprovedRequests)
	assert.Equal(t, 1, stats.PendingRequests)

	seeded, err = SeedSampleData(ctx, f.donors, f.requests, nil)
	require.NoError(t, err)
	assert.False(t, seeded)

	stats, err = f.stats.Compute(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalDonors)
}
