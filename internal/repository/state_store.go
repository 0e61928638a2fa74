package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	appErrors "github.com/noah-isme/crm-bridge/pkg/errors"
)

const stateKeyPrefix = "oauth:state:"

// StateStore issues and consumes one-time OAuth state values used to
// bind an authorize redirect to its callback.
type StateStore interface {
	Issue(ctx context.Context) (string, error)
	Consume(ctx context.Context, state string) error
}

// MemoryStateStore keeps pending states in process memory.
type MemoryStateStore struct {
	ttl time.Duration

	mu     sync.Mutex
	states map[string]time.Time
}

// NewMemoryStateStore constructs an in-memory state store.
func NewMemoryStateStore(ttl time.Duration) *MemoryStateStore {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &MemoryStateStore{ttl: ttl, states: make(map[string]time.Time)}
}

// Issue generates a state value valid for the configured TTL.
func (s *MemoryStateStore) Issue(ctx context.Context) (string, error) {
	state := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for existing, deadline := range s.states {
		if now.After(deadline) {
			delete(s.states, existing)
		}
	}
	s.states[state] = now.Add(s.ttl)
	return state, nil
}

// Consume validates and invalidates a state value in one step.
func (s *MemoryStateStore) Consume(ctx context.Context, state string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	deadline, ok := s.states[state]
	if !ok {
		return appErrors.Clone(appErrors.ErrValidation, "unknown oauth state")
	}
	delete(s.states, state)
	if time.Now().After(deadline) {
		return appErrors.Clone(appErrors.ErrValidation, "expired oauth state")
	}
	return nil
}

// RedisStateStore keeps pending states in Redis so callbacks can land on
// any bridge instance.
type RedisStateStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStateStore constructs a Redis-backed state store.
func NewRedisStateStore(client *redis.Client, ttl time.Duration) *RedisStateStore {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisStateStore{client: client, ttl: ttl}
}

// Issue generates a state value valid for the configured TTL.
func (s *RedisStateStore) Issue(ctx context.Context) (string, error) {
	state := uuid.NewString()
	if err := s.client.Set(ctx, stateKeyPrefix+state, "1", s.ttl).Err(); err != nil {
		return "", fmt.Errorf("redis set oauth state: %w", err)
	}
	return state, nil
}

// Consume validates and invalidates a state value in one step.
func (s *RedisStateStore) Consume(ctx context.Context, state string) error {
	deleted, err := s.client.Del(ctx, stateKeyPrefix+state).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redis delete oauth state: %w", err)
	}
	if deleted == 0 {
		return appErrors.Clone(appErrors.ErrValidation, "unknown or expired oauth state")
	}
	return nil
}
