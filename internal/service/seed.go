package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/aryan0dhankhar/bloodbank/internal/domain"
)

var sampleDonors = []domain.DonorInput{
	{Name: "John Smith", Age: 28, BloodGroup: "O+", City: "New York", Contact: "+1-555-0123", Email: "john@example.com"},
	{Name: "Sarah Johnson", Age: 32, BloodGroup: "A+", City: "Los Angeles", Contact: "+1-555-0124", Email: "sarah@example.com"},
	{Name: "Mike Wilson", Age: 25, BloodGroup: "B+", City: "Chicago", Contact: "+1-555-0125", Email: "mike@example.com"},
}

var sampleRequests = []struct {
	input   domain.RequestInput
	approve bool
}{
	{input: domain.RequestInput{
		RequesterName: "City General Hospital", RequesterType: domain.RequesterHospital,
		BloodGroup: "O+", UrgencyLevel: "high", City: "New York",
		Contact: "+1-555-0200", Email: "emergency@citygeneral.com", UnitsNeeded: 3,
	}},
	{input: domain.RequestInput{
		RequesterName: "Jennifer Brown", RequesterType: domain.RequesterPatient,
		BloodGroup: "A+", UrgencyLevel: "critical", City: "Los Angeles",
		Contact: "+1-555-0201", Email: "jennifer@example.com", UnitsNeeded: 2,
	}, approve: true},
}

// SeedSampleData fills an empty registry with demo donors and requests.
// It reports whether anything was written.
func SeedSampleData(ctx context.Context, donors *DonorService, requests *RequestService, logger *slog.Logger) (bool, error) {
	if logger == nil {
		logger = slog.Default()
	}

	existing, err := donors.List(ctx, DonorFilter{})
	if err != nil {
		return false, err
	}
	reqs, err := requests.List(ctx, RequestFilter{})
	if err != nil {
		return false, err
	}
	if len(existing) > 0 || len(slices.Collect(reqs)) > 0 {
		return false, nil
	}

	for _, in := range sampleDonors {
		if _, err := donors.Register(ctx, in); err != nil {
			return false, fmt.Errorf("failed to seed donor %s: %w", in.Name, err)
		}
	}
	for _, s := range sampleRequests {
		req, err := requests.Submit(ctx, s.input)
		if err != nil {
			return false, fmt.Errorf("failed to seed request %s: %w", s.input.RequesterName, err)
		}
		if s.approve {
			if _, err := requests.Approve(ctx, req.ID); err != nil {
				return false, fmt.Errorf("failed to approve seeded request: %w", err)
			}
		}
	}

	logger.Info("sample data seeded",
		slog.Int("donors", len(sampleDonors)),
		slog.Int("requests", len(sampleRequests)),
	)
	return true, nil
}
