package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/crm-bridge/internal/models"
	appErrors "github.com/noah-isme/crm-bridge/pkg/errors"
)

const credentialKeyPrefix = "portal:credential:"

// RedisCredentialStore persists credentials in Redis as JSON payloads,
// letting multiple bridge instances share one credential set.
type RedisCredentialStore struct {
	client *redis.Client
}

// NewRedisCredentialStore constructs a Redis-backed credential store.
func NewRedisCredentialStore(client *redis.Client) *RedisCredentialStore {
	return &RedisCredentialStore{client: client}
}

func credentialKey(portalID string) string {
	return credentialKeyPrefix + portalID
}

// Get unmarshals the stored record or returns ErrNoCredential.
func (s *RedisCredentialStore) Get(ctx context.Context, portalID string) (*models.CredentialRecord, error) {
	raw, err := s.client.Get(ctx, credentialKey(portalID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, appErrors.ErrNoCredential
		}
		return nil, fmt.Errorf("redis get credential %s: %w", portalID, err)
	}

	record := &models.CredentialRecord{}
	if err := json.Unmarshal(raw, record); err != nil {
		return nil, fmt.Errorf("unmarshal credential %s: %w", portalID, err)
	}
	return record, nil
}

// Put stores the record unconditionally. Records carry their own expiry
// semantics, so no Redis TTL is applied.
func (s *RedisCredentialStore) Put(ctx context.Context, portalID string, record *models.CredentialRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal credential %s: %w", portalID, err)
	}
	if err := s.client.Set(ctx, credentialKey(portalID), payload, 0).Err(); err != nil {
		return fmt.Errorf("redis set credential %s: %w", portalID, err)
	}
	return nil
}

// CompareAndSwap performs the guarded replacement inside a WATCH
// transaction so concurrent refreshes cannot clobber each other.
func (s *RedisCredentialStore) CompareAndSwap(ctx context.Context, portalID string, old, updated *models.CredentialRecord) (bool, error) {
	key := credentialKey(portalID)
	swapped := false

	txn := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
			if old != nil {
				return nil
			}
		case err != nil:
			return fmt.Errorf("redis get credential %s: %w", portalID, err)
		default:
			if old == nil {
				return nil
			}
			current := &models.CredentialRecord{}
			if err := json.Unmarshal(raw, current); err != nil {
				return fmt.Errorf("unmarshal credential %s: %w", portalID, err)
			}
			if current.AccessToken != old.AccessToken {
				return nil
			}
		}

		payload, err := json.Marshal(updated)
		if err != nil {
			return fmt.Errorf("marshal credential %s: %w", portalID, err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, 0)
			return nil
		})
		if err != nil {
			return err
		}
		swapped = true
		return nil
	}

	if err := s.client.Watch(ctx, txn, key); err != nil {
		if errors.Is(err, redis.TxFailedErr) {
			return false, nil
		}
		return false, err
	}
	return swapped, nil
}

// Delete removes the record. Deleting an absent portal is not an error.
func (s *RedisCredentialStore) Delete(ctx context.Context, portalID string) error {
	if err := s.client.Del(ctx, credentialKey(portalID)).Err(); err != nil {
		return fmt.Errorf("redis delete credential %s: %w", portalID, err)
	}
	return nil
}
