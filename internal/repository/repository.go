package repository

import (
	"context"
	"errors"

	"github.com/aryan0dhankhar/bloodbank/internal/domain"
)

// ErrDuplicate is returned by Create when the id is already stored.
var ErrDuplicate = errors.New("record already exists")

// Store bundles the repositories of one backend with its lifecycle hooks.
type Store struct {
	Backend  string
	Donors   domain.DonorRepository
	Requests domain.RequestRepository

	ping  func(ctx context.Context) error
	close func() error
}

// Ping checks that the backend is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if s.ping == nil {
		return nil
	}
	return s.ping(ctx)
}

// Close releases the backend connection.
func (s *Store) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

func notFound(id string) error {
	return &domain.NotFoundError{ID: id}
}
