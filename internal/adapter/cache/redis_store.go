package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/engageautomations/ghl-api-backend/internal/domain"
	"github.com/engageautomations/ghl-api-backend/internal/repository"
)

const (
	locationTokenPrefix = "ghl:loctoken:"
	installStatePrefix  = "ghl:install:state:"
)

// RedisLocationTokenStore implements LocationTokenStore backed by Redis so
// all serving instances share one cache slot per installation.
type RedisLocationTokenStore struct {
	client redis.UniversalClient
}

var _ repository.LocationTokenStore = (*RedisLocationTokenStore)(nil)

// NewRedisLocationTokenStore constructs a Redis-backed location token cache.
func NewRedisLocationTokenStore(client redis.UniversalClient) *RedisLocationTokenStore {
	return &RedisLocationTokenStore{client: client}
}

// Save stores the converted token with TTL. Last write wins when two
// conversions race; conversion is idempotent so that is acceptable.
func (s *RedisLocationTokenStore) Save(ctx context.Context, token domain.LocationToken, ttl time.Duration) error {
	payload, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("marshal location token: %w", err)
	}
	if err := s.client.Set(ctx, locationTokenKey(token.InstallationID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("persist location token: %w", err)
	}
	return nil
}

// Get loads and decodes the cached token; nil, nil when absent.
func (s *RedisLocationTokenStore) Get(ctx context.Context, installationID int64) (*domain.LocationToken, error) {
	bytes, err := s.client.Get(ctx, locationTokenKey(installationID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("load location token: %w", err)
	}
	var token domain.LocationToken
	if err := json.Unmarshal(bytes, &token); err != nil {
		return nil, fmt.Errorf("decode location token: %w", err)
	}
	return &token, nil
}

// Delete removes the cache entry; no-op if absent.
func (s *RedisLocationTokenStore) Delete(ctx context.Context, installationID int64) error {
	if err := s.client.Del(ctx, locationTokenKey(installationID)).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("delete location token: %w", err)
	}
	return nil
}

func locationTokenKey(installationID int64) string {
	return locationTokenPrefix + strconv.FormatInt(installationID, 10)
}

// RedisInstallStateStore implements InstallStateStore backed by Redis.
type RedisInstallStateStore struct {
	client redis.UniversalClient
}

var _ repository.InstallStateStore = (*RedisInstallStateStore)(nil)

// NewRedisInstallStateStore constructs a Redis-backed install state store.
func NewRedisInstallStateStore(client redis.UniversalClient) *RedisInstallStateStore {
	return &RedisInstallStateStore{client: client}
}

// SaveState stores the encoded state payload with TTL.
func (s *RedisInstallStateStore) SaveState(ctx context.Context, state domain.InstallState, ttl time.Duration) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	if err := s.client.Set(ctx, installStatePrefix+state.State, payload, ttl).Err(); err != nil {
		return fmt.Errorf("persist state: %w", err)
	}
	return nil
}

// TakeState loads and deletes the state payload in one round trip.
func (s *RedisInstallStateStore) TakeState(ctx context.Context, state string) (*domain.InstallState, error) {
	bytes, err := s.client.GetDel(ctx, installStatePrefix+state).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("load state: %w", err)
	}
	var payload domain.InstallState
	if err := json.Unmarshal(bytes, &payload); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	return &payload, nil
}
