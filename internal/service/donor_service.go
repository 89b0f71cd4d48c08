package service

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/aryan0dhankhar/bloodbank/internal/domain"
	"github.com/aryan0dhankhar/bloodbank/internal/notify"
	"github.com/aryan0dhankhar/bloodbank/internal/observability/metrics"
	"github.com/aryan0dhankhar/bloodbank/internal/observability/tracing"
)

// DonorService registers donors and answers availability queries.
type DonorService struct {
	repo   domain.DonorRepository
	events notify.Publisher
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

// DonorFilter narrows List. Zero fields match everything.
type DonorFilter struct {
	BloodGroup domain.BloodGroup
	City       string
}

// NewDonorService creates a new donor service
func NewDonorService(repo domain.DonorRepository, events notify.Publisher, logger *slog.Logger) *DonorService {
	if logger == nil {
		logger = slog.Default()
	}
	if events == nil {
		events = discard{}
	}
	return &DonorService{
		repo:   repo,
		events: events,
		logger: logger,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// Register validates in and stores a new donor. Validation failures leave
// the store untouched.
func (s *DonorService) Register(ctx context.Context, in domain.DonorInput) (domain.Donor, error) {
	ctx, span := tracing.Tracer().Start(ctx, "DonorService.Register")
	defer span.End()

	donor, err := domain.NewDonor(s.newID(), in, s.now().UTC())
	if err != nil {
		metrics.ObserveRegistration(in.BloodGroup, "invalid")
		span.SetStatus(codes.Error, err.Error())
		return domain.Donor{}, err
	}
	span.SetAttributes(
		attribute.String("donor.id", donor.ID),
		attribute.String("donor.blood_group", string(donor.BloodGroup)),
	)

	if err := s.repo.Create(ctx, donor); err != nil {
		metrics.ObserveRegistration(string(donor.BloodGroup), "error")
		span.RecordError(err)
		span.SetStatus(codes.Error, "store failed")
		return domain.Donor{}, fmt.Errorf("failed to save donor: %w", err)
	}

	metrics.ObserveRegistration(string(donor.BloodGroup), "success")
	s.logger.Info("donor registered",
		slog.String("donor_id", donor.ID),
		slog.String("blood_group", string(donor.BloodGroup)),
		slog.String("city", donor.City),
	)

	d := donor
	s.events.Publish(notify.Event{Type: notify.DonorRegistered, At: donor.RegistrationDate, Donor: &d})
	return donor, nil
}

// ListByBloodGroup returns a count for every blood group, zeros included.
func (s *DonorService) ListByBloodGroup(ctx context.Context) (map[domain.BloodGroup]int, error) {
	donors, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list donors: %w", err)
	}
	return domain.CountByBloodGroup(donors), nil
}

// List returns matching donors, newest registration first.
func (s *DonorService) List(ctx context.Context, f DonorFilter) ([]domain.Donor, error) {
	donors, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list donors: %w", err)
	}

	out := donors[:0:0]
	for _, d := range donors {
		if f.BloodGroup != "" && d.BloodGroup != f.BloodGroup {
			continue
		}
		if f.City != "" && !strings.EqualFold(d.City, strings.TrimSpace(f.City)) {
			continue
		}
		out = append(out, d)
	}
	slices.SortStableFunc(out, func(a, b domain.Donor) int {
		if c := b.RegistrationDate.Compare(a.RegistrationDate); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

type discard struct{}

func (discard) Publish(notify.Event) {}
