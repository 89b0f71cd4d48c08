package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aryan0dhankhar/bloodbank/internal/domain"
	"github.com/aryan0dhankhar/bloodbank/internal/infrastructure/redis"
)

const (
	donorKeyPrefix   = "donor:"
	requestKeyPrefix = "request:"

	// watchRetries bounds optimistic retries for one Update.
	watchRetries = 10
)

// RedisDonorRepository implements domain.DonorRepository using Redis
type RedisDonorRepository struct {
	redis  *redis.Client
	logger *slog.Logger
}

// NewRedisDonorRepository creates a new donor repository
func NewRedisDonorRepository(client *redis.Client, logger *slog.Logger) *RedisDonorRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisDonorRepository{redis: client, logger: logger}
}

// Create stores a donor under donor:{id}
func (r *RedisDonorRepository) Create(ctx context.Context, donor domain.Donor) error {
	data, err := json.Marshal(donor)
	if err != nil {
		return fmt.Errorf("failed to marshal donor: %w", err)
	}

	stored, err := r.redis.SetNX(ctx, donorKeyPrefix+donor.ID, string(data), 0)
	if err != nil {
		return fmt.Errorf("failed to store donor: %w", err)
	}
	if !stored {
		return fmt.Errorf("donor %s: %w", donor.ID, ErrDuplicate)
	}

	r.logger.Debug("donor saved", slog.String("donor_id", donor.ID))
	return nil
}

// List returns all donors
func (r *RedisDonorRepository) List(ctx context.Context) ([]domain.Donor, error) {
	values, err := loadAll(ctx, r.redis, donorKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list donors: %w", err)
	}

	donors := make([]domain.Donor, 0, len(values))
	for key, raw := range values {
		var d domain.Donor
		if err := json.Unmarshal([]byte(raw), &d); err != nil {
			r.logger.Error("failed to unmarshal donor", slog.String("key", key), slog.String("error", err.Error()))
			continue
		}
		if d.ID == "" {
			d.ID = strings.TrimPrefix(key, donorKeyPrefix)
		}
		donors = append(donors, d)
	}
	return donors, nil
}

// RedisRequestRepository implements domain.RequestRepository using Redis
type RedisRequestRepository struct {
	redis  *redis.Client
	logger *slog.Logger
}

// NewRedisRequestRepository creates a new request repository
func NewRedisRequestRepository(client *redis.Client, logger *slog.Logger) *RedisRequestRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisRequestRepository{redis: client, logger: logger}
}

// Create stores a request under request:{id}
func (r *RedisRequestRepository) Create(ctx context.Context, request domain.BloodRequest) error {
	data, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	stored, err := r.redis.SetNX(ctx, requestKeyPrefix+request.ID, string(data), 0)
	if err != nil {
		return fmt.Errorf("failed to store request: %w", err)
	}
	if !stored {
		return fmt.Errorf("request %s: %w", request.ID, ErrDuplicate)
	}

	r.logger.Debug("request saved", slog.String("request_id", request.ID))
	return nil
}

// Get retrieves a request by ID
func (r *RedisRequestRepository) Get(ctx context.Context, id string) (domain.BloodRequest, error) {
	data, err := r.redis.Get(ctx, requestKeyPrefix+id)
	if err != nil {
		if errors.Is(err, redis.ErrNil) {
			return domain.BloodRequest{}, notFound(id)
		}
		return domain.BloodRequest{}, fmt.Errorf("failed to get request: %w", err)
	}

	var req domain.BloodRequest
	if err := json.Unmarshal([]byte(data), &req); err != nil {
		return domain.BloodRequest{}, fmt.Errorf("failed to unmarshal request: %w", err)
	}
	return req, nil
}

// List returns all requests
func (r *RedisRequestRepository) List(ctx context.Context) ([]domain.BloodRequest, error) {
	values, err := loadAll(ctx, r.redis, requestKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}

	requests := make([]domain.BloodRequest, 0, len(values))
	for key, raw := range values {
		var req domain.BloodRequest
		if err := json.Unmarshal([]byte(raw), &req); err != nil {
			r.logger.Error("failed to unmarshal request", slog.String("key", key), slog.String("error", err.Error()))
			continue
		}
		if req.ID == "" {
			req.ID = strings.TrimPrefix(key, requestKeyPrefix)
		}
		requests = append(requests, req)
	}
	return requests, nil
}

// Update applies fn inside a WATCH/MULTI transaction on request:{id}.
func (r *RedisRequestRepository) Update(ctx context.Context, id string, fn func(*domain.BloodRequest) error) (domain.BloodRequest, error) {
	var updated domain.BloodRequest
	err := r.redis.Update(ctx, requestKeyPrefix+id, watchRetries, func(current string, getErr error) (string, error) {
		if errors.Is(getErr, redis.ErrNil) {
			return "", notFound(id)
		}
		var req domain.BloodRequest
		if err := json.Unmarshal([]byte(current), &req); err != nil {
			return "", fmt.Errorf("failed to unmarshal request: %w", err)
		}
		if err := fn(&req); err != nil {
			return "", err
		}
		data, err := json.Marshal(req)
		if err != nil {
			return "", fmt.Errorf("failed to marshal request: %w", err)
		}
		updated = req
		return string(data), nil
	})
	if err != nil {
		return domain.BloodRequest{}, err
	}
	return updated, nil
}

func loadAll(ctx context.Context, client *redis.Client, prefix string) (map[string]string, error) {
	keys, err := client.Scan(ctx, prefix+"*")
	if err != nil {
		return nil, err
	}
	vals, oks, err := client.MGet(ctx, keys...)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(keys))
	for i, key := range keys {
		if oks[i] {
			out[key] = vals[i]
		}
	}
	return out, nil
}

// NewRedisStore returns a Store keeping JSON documents in Redis.
func NewRedisStore(client *redis.Client, logger *slog.Logger) *Store {
	return &Store{
		Backend:  "redis",
		Donors:   NewRedisDonorRepository(client, logger),
		Requests: NewRedisRequestRepository(client, logger),
		ping:     client.Ping,
		close:    client.Close,
	}
}
