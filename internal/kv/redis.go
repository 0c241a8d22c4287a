package kv

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// Redis stores every key as a field of one hash, so a prefix isolates deployments.
type Redis struct {
	client *redis.Client
	hash   string
}

// NewRedis wraps an existing client. The hash key defaults to "trueface:kv".
func NewRedis(client *redis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = "trueface"
	}
	return &Redis{client: client, hash: prefix + ":kv"}
}

// Get returns the field value for key.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := r.client.HGet(ctx, r.hash, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

// Set writes the field value for key.
func (r *Redis) Set(ctx context.Context, key string, value []byte) error {
	return r.client.HSet(ctx, r.hash, key, value).Err()
}

// Delete removes the given fields.
func (r *Redis) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return r.client.HDel(ctx, r.hash, keys...).Err()
}

// Close closes the underlying client.
func (r *Redis) Close() error {
	return r.client.Close()
}
