package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/aryan0dhankhar/bloodbank/internal/domain"
)

// MemoryDonorRepository keeps donors in process memory.
type MemoryDonorRepository struct {
	mu     sync.RWMutex
	donors map[string]domain.Donor
}

// NewMemoryDonorRepository creates an empty donor repository
func NewMemoryDonorRepository() *MemoryDonorRepository {
	return &MemoryDonorRepository{donors: map[string]domain.Donor{}}
}

func (r *MemoryDonorRepository) Create(_ context.Context, donor domain.Donor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.donors[donor.ID]; exists {
		return fmt.Errorf("donor %s: %w", donor.ID, ErrDuplicate)
	}
	r.donors[donor.ID] = donor
	return nil
}

func (r *MemoryDonorRepository) List(_ context.Context) ([]domain.Donor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Donor, 0, len(r.donors))
	for _, d := range r.donors {
		out = append(out, d)
	}
	return out, nil
}

// MemoryRequestRepository keeps blood requests in process memory.
type MemoryRequestRepository struct {
	mu       sync.RWMutex
	requests map[string]domain.BloodRequest
}

// NewMemoryRequestRepository creates an empty request repository
func NewMemoryRequestRepository() *MemoryRequestRepository {
	return &MemoryRequestRepository{requests: map[string]domain.BloodRequest{}}
}

func (r *MemoryRequestRepository) Create(_ context.Context, request domain.BloodRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.requests[request.ID]; exists {
		return fmt.Errorf("request %s: %w", request.ID, ErrDuplicate)
	}
	r.requests[request.ID] = request
	return nil
}

func (r *MemoryRequestRepository) Get(_ context.Context, id string) (domain.BloodRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	req, ok := r.requests[id]
	if !ok {
		return domain.BloodRequest{}, notFound(id)
	}
	return req, nil
}

func (r *MemoryRequestRepository) List(_ context.Context) ([]domain.BloodRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.BloodRequest, 0, len(r.requests))
	for _, req := range r.requests {
		out = append(out, req)
	}
	return out, nil
}

// Update applies fn to a copy under the write lock and stores it only on success.
func (r *MemoryRequestRepository) Update(_ context.Context, id string, fn func(*domain.BloodRequest) error) (domain.BloodRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[id]
	if !ok {
		return domain.BloodRequest{}, notFound(id)
	}
	if err := fn(&req); err != nil {
		return domain.BloodRequest{}, err
	}
	r.requests[id] = req
	return req, nil
}

// NewMemoryStore returns a Store backed by process memory.
func NewMemoryStore() *Store {
	return &Store{
		Backend:  "memory",
		Donors:   NewMemoryDonorRepository(),
		Requests: NewMemoryRequestRepository(),
	}
}
