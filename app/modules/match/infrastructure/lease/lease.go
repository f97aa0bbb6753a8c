// Package lease provides time-boxed advisory leases keyed by match ID.
//
// A lease that is not released expires after its TTL so a crashed holder can
// never stall a match forever. Two holders may overlap after expiry; callers
// must tolerate that.
package lease

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store grants and releases leases.
type Store interface {
	// Acquire returns a token when the lease on key was granted.
	Acquire(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	// Release frees the lease if token still holds it.
	Release(ctx context.Context, key, token string) error
}

// Backend names accepted by configuration.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

func newToken() string {
	return uuid.NewString()
}
