package repository

import (
	"context"
	"errors"
	"log/slog"

	"github.com/aryan0dhankhar/bloodbank/internal/domain"
	"github.com/aryan0dhankhar/bloodbank/internal/reliability/circuitbreaker"
	"github.com/aryan0dhankhar/bloodbank/internal/reliability/retry"
)

// Transient reports whether err may succeed on another attempt. Domain
// outcomes and cancellation are final.
func Transient(err error) bool {
	switch {
	case err == nil,
		errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, ErrDuplicate),
		errors.Is(err, circuitbreaker.ErrOpen),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return false
	}
	return true
}

// Resilience guards a backend with retries and a circuit breaker.
type Resilience struct {
	policy  retry.Policy
	breaker *circuitbreaker.Breaker
	logger  *slog.Logger
}

// NewResilience builds the guard shared by a store's repositories.
func NewResilience(policy retry.Policy, settings circuitbreaker.Settings, logger *slog.Logger) *Resilience {
	if logger == nil {
		logger = slog.Default()
	}
	policy.Retryable = Transient
	settings.IsFailure = Transient
	return &Resilience{
		policy:  policy,
		breaker: circuitbreaker.New(settings),
		logger:  logger,
	}
}

// ping goes through the breaker: it fails with ErrOpen while the breaker is
// open and acts as the trial call once the open timeout has passed.
func (g *Resilience) ping(next func(ctx context.Context) error) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return g.breaker.Execute(func() error {
			if next == nil {
				return nil
			}
			return next(ctx)
		})
	}
}

func guard[T any](ctx context.Context, g *Resilience, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	return retry.Do(ctx, g.policy, g.logger, op, func(ctx context.Context) (T, error) {
		var out T
		err := g.breaker.Execute(func() error {
			var err error
			out, err = fn(ctx)
			return err
		})
		return out, err
	})
}

func guardRun(ctx context.Context, g *Resilience, op string, fn func(ctx context.Context) error) error {
	return retry.Run(ctx, g.policy, g.logger, op, func(ctx context.Context) error {
		return g.breaker.Execute(func() error { return fn(ctx) })
	})
}

// ResilientDonorRepository decorates a DonorRepository.
type ResilientDonorRepository struct {
	next  domain.DonorRepository
	guard *Resilience
}

func (r *ResilientDonorRepository) Create(ctx context.Context, donor domain.Donor) error {
	return guardRun(ctx, r.guard, "donors.create", func(ctx context.Context) error {
		return r.next.Create(ctx, donor)
	})
}

func (r *ResilientDonorRepository) List(ctx context.Context) ([]domain.Donor, error) {
	return guard(ctx, r.guard, "donors.list", r.next.List)
}

// ResilientRequestRepository decorates a RequestRepository.
type ResilientRequestRepository struct {
	next  domain.RequestRepository
	guard *Resilience
}

func (r *ResilientRequestRepository) Create(ctx context.Context, request domain.BloodRequest) error {
	return guardRun(ctx, r.guard, "requests.create", func(ctx context.Context) error {
		return r.next.Create(ctx, request)
	})
}

func (r *ResilientRequestRepository) Get(ctx context.Context, id string) (domain.BloodRequest, error) {
	return guard(ctx, r.guard, "requests.get", func(ctx context.Context) (domain.BloodRequest, error) {
		return r.next.Get(ctx, id)
	})
}

func (r *ResilientRequestRepository) List(ctx context.Context) ([]domain.BloodRequest, error) {
	return guard(ctx, r.guard, "requests.list", r.next.List)
}

// Update retries the whole read-modify-write, so fn may run more than once.
// A failed attempt may still have committed; fn sees that state on the next run.
func (r *ResilientRequestRepository) Update(ctx context.Context, id string, fn func(*domain.BloodRequest) error) (domain.BloodRequest, error) {
	return guard(ctx, r.guard, "requests.update", func(ctx context.Context) (domain.BloodRequest, error) {
		return r.next.Update(ctx, id, fn)
	})
}

// WithResilience returns a copy of s whose repositories go through g.
func WithResilience(s *Store, g *Resilience) *Store {
	return &Store{
		Backend:  s.Backend,
		Donors:   &ResilientDonorRepository{next: s.Donors, guard: g},
		Requests: &ResilientRequestRepository{next: s.Requests, guard: g},
		ping:     g.ping(s.ping),
		close:    s.close,
	}
}
