// Package cache provides the short-lived, opportunistic cache used for
// federation state and the published key-set document. It is never required
// for correctness: callers treat every error as a miss.
package cache

import (
	"context"
	"time"
)

// Store is a minimal TTL'd key-value store.
type Store interface {
	// Get returns the value for key and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set stores value under key for at most ttl.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}
