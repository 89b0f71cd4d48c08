package repository

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aryan0dhankhar/bloodbank/internal/domain"
)

// runStoreContract exercises behaviour every backend must share. newStore
// must return an empty store.
func runStoreContract(t *testing.T, newStore func(t *testing.T) *Store) {
	t.Run("donors round trip", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		given := baseTime().Add(-24 * time.Hour)
		first := sampleDonor("Asha", domain.OPositive, baseTime())
		first.LastDonationDate = &given
		second := sampleDonor("Bilal", domain.ABNegative, baseTime().Add(time.Minute))

		require.NoError(t, s.Donors.Create(ctx, first))
		require.NoError(t, s.Donors.Create(ctx, second))

		donors, err := s.Donors.List(ctx)
		require.NoError(t, err)
		require.Len(t, donors, 2)

		byID := map[string]domain.Donor{}
		for _, d := range donors {
			byID[d.ID] = d
		}
		assertSameDonor(t, first, byID[first.ID])
		assertSameDonor(t, second, byID[second.ID])
	})

	t.Run("duplicate donor id", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		d := sampleDonor("Asha", domain.OPositive, baseTime())
		require.NoError(t, s.Donors.Create(ctx, d))
		assert.ErrorIs(t, s.Donors.Create(ctx, d), ErrDuplicate)
	})

	t.Run("request get and list", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		req := sampleRequest(baseTime())
		require.NoError(t, s.Requests.Create(ctx, req))

		got, err := s.Requests.Get(ctx, req.ID)
		require.NoError(t, err)
		assertSameRequest(t, req, got)

		all, err := s.Requests.List(ctx)
		require.NoError(t, err)
		require.Len(t, all, 1)
		assertSameRequest(t, req, all[0])
	})

	t.Run("missing request", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		_, err := s.Requests.Get(ctx, uuid.NewString())
		assert.ErrorIs(t, err, domain.ErrNotFound)

		called := false
		_, err = s.Requests.Update(ctx, uuid.NewString(), func(*domain.BloodRequest) error {
			called = true
			return nil
		})
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.False(t, called)
	})

	t.Run("update persists transition", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		req := sampleRequest(baseTime())
		require.NoError(t, s.Requests.Create(ctx, req))

		doneAt := baseTime().Add(time.Hour)
		_, err := s.Requests.Update(ctx, req.ID, func(r *domain.BloodRequest) error {
			return r.Transition(domain.StatusApproved, doneAt)
		})
		require.NoError(t, err)
		updated, err := s.Requests.Update(ctx, req.ID, func(r *domain.BloodRequest) error {
			return r.Transition(domain.StatusFulfilled, doneAt)
		})
		require.NoError(t, err)
		assert.Equal(t, domain.StatusFulfilled, updated.Status)

		stored, err := s.Requests.Get(ctx, req.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusFulfilled, stored.Status)
		assert.Equal(t, "Request approved by admin\nRequest marked as fulfilled", stored.AdminNotes)
		require.NotNil(t, stored.FulfilledDate)
		assert.True(t, doneAt.Equal(*stored.FulfilledDate))
	})

	t.Run("failed update writes nothing", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		req := sampleRequest(baseTime())
		require.NoError(t, s.Requests.Create(ctx, req))

		_, err := s.Requests.Update(ctx, req.ID, func(r *domain.BloodRequest) error {
			r.AdminNotes = "scribbled"
			return r.Transition(domain.StatusFulfilled, baseTime())
		})
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)

		stored, err := s.Requests.Get(ctx, req.ID)
		require.NoError(t, err)
		assertSameRequest(t, req, stored)
	})

	t.Run("concurrent updates serialize", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		req := sampleRequest(baseTime())
		require.NoError(t, s.Requests.Create(ctx, req))

		const writers = 16
		var wg sync.WaitGroup
		errs := make(chan error, writers)
		for i := range writers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.Requests.Update(ctx, req.ID, func(r *domain.BloodRequest) error {
					if r.AdminNotes != "" {
						r.AdminNotes += "\n"
					}
					r.AdminNotes += fmt.Sprintf("note %d", i)
					return nil
				})
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		stored, err := s.Requests.Get(ctx, req.ID)
		require.NoError(t, err)
		assert.Len(t, strings.Split(stored.AdminNotes, "\n"), writers)
	})
}

func baseTime() time.Time {
	return time.Date(2024, 5, 14, 8, 30, 0, 123456000, time.UTC)
}

func sampleDonor(name string, group domain.BloodGroup, at time.Time) domain.Donor {
	return domain.Donor{
		ID:               uuid.NewString(),
		Name:             name,
		Age:              34,
		BloodGroup:       group,
		City:             "Chennai",
		Contact:          "9840012345",
		Email:            strings.ToLower(name) + "@example.org",
		RegistrationDate: at,
	}
}

func sampleRequest(at time.Time) domain.BloodRequest {
	return domain.BloodRequest{
		ID:            uuid.NewString(),
		RequesterName: "Jane Doe",
		RequesterType: domain.RequesterPatient,
		BloodGroup:    domain.ONegative,
		UrgencyLevel:  domain.UrgencyCritical,
		City:          "Metro",
		Contact:       "5551234567",
		UnitsNeeded:   2,
		RequestDate:   at,
		Status:        domain.StatusPending,
	}
}

func assertSameDonor(t *testing.T, want, got domain.Donor) {
	t.Helper()
	assert.True(t, want.RegistrationDate.Equal(got.RegistrationDate), "registration date")
	if want.LastDonationDate == nil {
		assert.Nil(t, got.LastDonationDate)
	} else if assert.NotNil(t, got.LastDonationDate) {
		assert.True(t, want.LastDonationDate.Equal(*got.LastDonationDate), "last donation date")
	}
	want.RegistrationDate, got.RegistrationDate = time.Time{}, time.Time{}
	want.LastDonationDate, got.LastDonationDate = nil, nil
	assert.Equal(t, want, got)
}

func assertSameRequest(t *testing.T, want, got domain.BloodRequest) {
	t.Helper()
	assert.True(t, want.RequestDate.Equal(got.RequestDate), "request date")
	if want.FulfilledDate == nil {
		assert.Nil(t, got.FulfilledDate)
	} else if assert.NotNil(t, got.FulfilledDate) {
		assert.True(t, want.FulfilledDate.Equal(*got.FulfilledDate), "fulfilled date")
	}
	want.RequestDate, got.RequestDate = time.Time{}, time.Time{}
	want.FulfilledDate, got.FulfilledDate = nil, nil
	assert.Equal(t, want, got)
}
