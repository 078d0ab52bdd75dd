package port

import "time"

// RateLimiter decides whether a client may issue another request.
// Implementations must make the check-then-increment atomic per client.
type RateLimiter interface {
	Allow(clientID string) (allowed bool, resetAt time.Time)
}
