// Package credentials resolves API keys to the coach they act for.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"

	"github.com/redis/go-redis/v9"
)

// ErrLookup wraps backend failures, as opposed to an unknown credential.
var ErrLookup = errors.New("credential lookup failed")

// Resolver maps a credential to a coach id. ok is false for unknown
// credentials; err is reserved for backend failures.
type Resolver interface {
	Resolve(ctx context.Context, credential string) (coachID string, ok bool, err error)
}

// Static resolves from a fixed table.
type Static struct {
	keys map[string]string
}

// NewStatic copies keys into a Static resolver.
func NewStatic(keys map[string]string) *Static {
	return &Static{keys: maps.Clone(keys)}
}

// Resolve implements Resolver.
func (s *Static) Resolve(_ context.Context, credential string) (string, bool, error) {
	if credential == "" {
		return "", false, nil
	}
	coach, ok := s.keys[credential]
	if !ok || coach == "" {
		return "", false, nil
	}
	return coach, true, nil
}

// hashGetter is the slice of the redis client Redis needs.
type hashGetter interface {
	HGet(ctx context.Context, key, field string) *redis.StringCmd
}

// Redis resolves with HGET <hashKey> <credential>.
type Redis struct {
	client  hashGetter
	hashKey string
}

// NewRedis returns a resolver over client.
func NewRedis(client hashGetter, hashKey string) *Redis {
	return &Redis{client: client, hashKey: hashKey}
}

// Resolve implements Resolver.
func (r *Redis) Resolve(ctx context.Context, credential string) (string, bool, error) {
	if credential == "" {
		return "", false, nil
	}
	coach, err := r.client.HGet(ctx, r.hashKey, credential).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: %w", ErrLookup, err)
	}
	coach = strings.TrimSpace(coach)
	if coach == "" {
		return "", false, nil
	}
	return coach, true, nil
}
