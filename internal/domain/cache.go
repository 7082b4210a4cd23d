package domain

import (
	"context"
	"time"
)

// Cache is the injected TTL cache used to absorb repeated metric reads.
// Implementations must expire entries on their own; callers never delete.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string, ttl time.Duration)
}
