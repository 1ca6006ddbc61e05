package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const claimPrefix = "claim:"

// ClaimStore maps (owner, idempotency key) pairs to conversation IDs
type ClaimStore struct {
	client *Client
	ttl    time.Duration
}

// NewClaimStore creates a claim store whose entries expire after ttl
func NewClaimStore(client *Client, ttl time.Duration) *ClaimStore {
	return &ClaimStore{client: client, ttl: ttl}
}

// Lookup returns the claimed conversation ID, or "" if the key is unclaimed
func (s *ClaimStore) Lookup(ctx context.Context, owner, key string) (string, error) {
	id, err := s.client.rdb.Get(ctx, claimKey(owner, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up claim: %w", err)
	}
	return id, nil
}

// Claim stores conversationID under the key unless another request got there
// first, and returns whichever ID holds the claim afterwards.
func (s *ClaimStore) Claim(ctx context.Context, owner, key, conversationID string) (string, error) {
	fullKey := claimKey(owner, key)

	won, err := s.client.rdb.SetNX(ctx, fullKey, conversationID, s.ttl).Result()
	if err != nil {
		return "", fmt.Errorf("failed to claim key: %w", err)
	}
	if won {
		return conversationID, nil
	}

	existing, err := s.client.rdb.Get(ctx, fullKey).Result()
	if errors.Is(err, redis.Nil) {
		// expired between SETNX and GET, retry once
		if err := s.client.rdb.Set(ctx, fullKey, conversationID, s.ttl).Err(); err != nil {
			return "", fmt.Errorf("failed to claim key: %w", err)
		}
		return conversationID, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read claim: %w", err)
	}
	return existing, nil
}

func claimKey(owner, key string) string {
	return fmt.Sprintf("%s%s:%s", claimPrefix, owner, key)
}
