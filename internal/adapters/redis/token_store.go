package redis

// Package redis provides Redis-based adapters for the portal.

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/target/mmk-portal/internal/ports"
)

// DefaultPrefix namespaces portal keys inside a shared Redis.
const DefaultPrefix = "portal:"

var _ ports.TokenStore = (*TokenStore)(nil)

// TokenStore keeps the session token under a single Redis key.
// Keys never expire on their own; expiry is decided from the token's claims.
type TokenStore struct {
	client redis.UniversalClient
	key    string
}

// NewTokenStore creates a Redis-backed slot named slot.
func NewTokenStore(client redis.UniversalClient, slot string) *TokenStore {
	return NewTokenStoreWithPrefix(client, DefaultPrefix, slot)
}

// NewTokenStoreWithPrefix creates a Redis-backed slot with a custom key prefix.
func NewTokenStoreWithPrefix(client redis.UniversalClient, prefix, slot string) *TokenStore {
	return &TokenStore{
		client: client,
		key:    prefix + slot,
	}
}

func (s *TokenStore) Load(ctx context.Context) (string, bool, error) {
	token, err := s.client.Get(ctx, s.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("redis get: %w", err)
	}
	if token == "" {
		return "", false, nil
	}
	return token, true, nil
}

func (s *TokenStore) Save(ctx context.Context, token string) error {
	if token == "" {
		return errors.New("token cannot be empty")
	}
	if err := s.client.Set(ctx, s.key, token, 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *TokenStore) Delete(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
