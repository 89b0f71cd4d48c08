package service

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/aryan0dhankhar/bloodbank/internal/domain"
	"github.com/aryan0dhankhar/bloodbank/internal/observability/metrics"
)

// StatsService recomputes the registry summary on every call.
type StatsService struct {
	donors   domain.DonorRepository
	requests domain.RequestRepository
	logger   *slog.Logger
}

func NewStatsService(donors domain.DonorRepository, requests domain.RequestRepository, logger *slog.Logger) *StatsService {
	if logger == nil {
		logger = slog.Default()
	}
	return &StatsService{donors: donors, requests: requests, logger: logger}
}

// Compute loads both record sets concurrently and aggregates them.
// It also refreshes the registry gauges.
func (s *StatsService) Compute(ctx context.Context) (domain.Stats, error) {
	var (
		donors   []domain.Donor
		requests []domain.BloodRequest
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		donors, err = s.donors.List(gctx)
		if err != nil {
			return fmt.Errorf("failed to list donors: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		requests, err = s.requests.List(gctx)
		if err != nil {
			return fmt.Errorf("failed to list requests: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return domain.Stats{}, err
	}

	stats := domain.ComputeStats(donors, requests)

	metrics.SetRequestsByStatus(map[string]int{
		string(domain.StatusPending):   stats.PendingRequests,
		string(domain.StatusApproved):  stats.ApprovedRequests,
		string(domain.StatusRejected):  stats.RejectedRequests,
		string(domain.StatusFulfilled): stats.FulfilledRequests,
	})
	byGroup := make(map[string]int, len(stats.DonorsByBloodGroup))
	for group, n := range stats.DonorsByBloodGroup {
		byGroup[string(group)] = n
	}
	metrics.SetDonorsByGroup(byGroup)

	return stats, nil
}
