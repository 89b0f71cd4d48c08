package service

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/aryan0dhankhar/bloodbank/internal/domain"
	"github.com/aryan0dhankhar/bloodbank/internal/notify"
	"github.com/aryan0dhankhar/bloodbank/internal/observability/metrics"
	"github.com/aryan0dhankhar/bloodbank/internal/observability/tracing"
)

// RequestService owns the blood request lifecycle.
type RequestService struct {
	repo   domain.RequestRepository
	events notify.Publisher
	logger *slog.Logger
	now    func() time.Time
	newID  func() string

	// serializes transitions per request within this process; backends add
	// their own atomicity for multi-instance deployments
	locks requestLocks
}

// requestLocks hands out one mutex per request id and forgets it once no
// caller holds it.
type requestLocks struct {
	mu   sync.Mutex
	byID map[string]*requestLock
}

type requestLock struct {
	sync.Mutex
	refs int
}

func (l *requestLocks) lock(id string) func() {
	l.mu.Lock()
	if l.byID == nil {
		l.byID = make(map[string]*requestLock)
	}
	rl, ok := l.byID[id]
	if !ok {
		rl = &requestLock{}
		l.byID[id] = rl
	}
	rl.refs++
	l.mu.Unlock()

	rl.Lock()
	return func() {
		rl.Unlock()
		l.mu.Lock()
		rl.refs--
		if rl.refs == 0 {
			delete(l.byID, id)
		}
		l.mu.Unlock()
	}
}

// RequestFilter narrows List. Zero fields match everything.
type RequestFilter struct {
	Status     domain.Status
	BloodGroup domain.BloodGroup
	Urgency    domain.Urgency
	City       string
}

func (f RequestFilter) match(r domain.BloodRequest) bool {
	switch {
	case f.Status != "" && r.Status != f.Status:
		return false
	case f.BloodGroup != "" && r.BloodGroup != f.BloodGroup:
		return false
	case f.Urgency != "" && r.UrgencyLevel != f.Urgency:
		return false
	case f.City != "" && !strings.EqualFold(r.City, strings.TrimSpace(f.City)):
		return false
	}
	return true
}

// NewRequestService creates a new request service
func NewRequestService(repo domain.RequestRepository, events notify.Publisher, logger *slog.Logger) *RequestService {
	if logger == nil {
		logger = slog.Default()
	}
	if events == nil {
		events = discard{}
	}
	return &RequestService{
		repo:   repo,
		events: events,
		logger: logger,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// Submit validates in and stores a pending request.
func (s *RequestService) Submit(ctx context.Context, in domain.RequestInput) (domain.BloodRequest, error) {
	ctx, span := tracing.Tracer().Start(ctx, "RequestService.Submit")
	defer span.End()

	req, err := domain.NewBloodRequest(s.newID(), in, s.now().UTC())
	if err != nil {
		metrics.ObserveSubmission(strings.TrimSpace(in.UrgencyLevel), "invalid")
		span.SetStatus(codes.Error, err.Error())
		return domain.BloodRequest{}, err
	}
	span.SetAttributes(
		attribute.String("request.id", req.ID),
		attribute.String("request.urgency", string(req.UrgencyLevel)),
	)

	if err := s.repo.Create(ctx, req); err != nil {
		metrics.ObserveSubmission(string(req.UrgencyLevel), "error")
		span.RecordError(err)
		span.SetStatus(codes.Error, "store failed")
		return domain.BloodRequest{}, fmt.Errorf("failed to save request: %w", err)
	}

	metrics.ObserveSubmission(string(req.UrgencyLevel), "success")
	s.logger.Info("blood request submitted",
		slog.String("request_id", req.ID),
		slog.String("blood_group", string(req.BloodGroup)),
		slog.String("urgency", string(req.UrgencyLevel)),
		slog.Int("units", req.UnitsNeeded),
	)

	r := req
	s.events.Publish(notify.Event{Type: notify.RequestSubmitted, At: req.RequestDate, Request: &r})
	return req, nil
}

// Get returns one request by id.
func (s *RequestService) Get(ctx context.Context, id string) (domain.BloodRequest, error) {
	req, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.BloodRequest{}, err
		}
		return domain.BloodRequest{}, fmt.Errorf("failed to get request: %w", err)
	}
	return req, nil
}

// Transition moves request id to status to. Only edges of the lifecycle
// graph are accepted; anything else leaves the stored request unchanged.
func (s *RequestService) Transition(ctx context.Context, id string, to domain.Status) (domain.BloodRequest, error) {
	ctx, span := tracing.Tracer().Start(ctx, "RequestService.Transition")
	defer span.End()
	span.SetAttributes(
		attribute.String("request.id", id),
		attribute.String("request.to_status", string(to)),
	)

	start := time.Now()
	at := s.now().UTC()
	unlock := s.locks.lock(id)
	var (
		from    domain.Status
		applied bool
	)
	updated, err := s.repo.Update(ctx, id, func(r *domain.BloodRequest) error {
		// fn reruns when the store retries; an earlier run may already have
		// been committed even though its attempt reported an error.
		if applied && r.Status == to {
			return nil
		}
		from = r.Status
		if err := r.Transition(to, at); err != nil {
			return err
		}
		applied = true
		return nil
	})
	unlock()

	if err != nil {
		result := "error"
		switch {
		case errors.Is(err, domain.ErrNotFound):
			result = "not_found"
		case errors.Is(err, domain.ErrInvalidTransition):
			result = "invalid"
		default:
			span.RecordError(err)
			err = fmt.Errorf("failed to update request: %w", err)
		}
		metrics.ObserveTransition(string(to), result, time.Since(start))
		span.SetStatus(codes.Error, err.Error())
		s.logger.Warn("request transition refused",
			slog.String("request_id", id),
			slog.String("to", string(to)),
			slog.String("error", err.Error()),
		)
		return domain.BloodRequest{}, err
	}

	metrics.ObserveTransition(string(to), "success", time.Since(start))
	s.logger.Info("request status changed",
		slog.String("request_id", id),
		slog.String("from", string(from)),
		slog.String("to", string(to)),
	)

	r := updated
	s.events.Publish(notify.Event{
		Type:       notify.RequestStatusChanged,
		At:         at,
		Request:    &r,
		FromStatus: from,
	})
	return updated, nil
}

func (s *RequestService) Approve(ctx context.Context, id string) (domain.BloodRequest, error) {
	return s.Transition(ctx, id, domain.StatusApproved)
}

func (s *RequestService) Reject(ctx context.Context, id string) (domain.BloodRequest, error) {
	return s.Transition(ctx, id, domain.StatusRejected)
}

func (s *RequestService) Fulfill(ctx context.Context, id string) (domain.BloodRequest, error) {
	return s.Transition(ctx, id, domain.StatusFulfilled)
}

// List reads a fresh snapshot and yields matching requests newest first.
// The sequence is finite and holds no reference to the store.
func (s *RequestService) List(ctx context.Context, f RequestFilter) (iter.Seq[domain.BloodRequest], error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}

	matched := all[:0:0]
	for _, r := range all {
		if f.match(r) {
			matched = append(matched, r)
		}
	}
	slices.SortStableFunc(matched, func(a, b domain.BloodRequest) int {
		if c := b.RequestDate.Compare(a.RequestDate); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return slices.Values(matched), nil
}
