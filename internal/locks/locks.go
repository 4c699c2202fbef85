// Package locks serializes override requests per doctor with a Redis lease.
// Two concurrent overrides for the same doctor could otherwise interleave
// slot blocking and task cancellation; the lease turns the second request
// into an immediate busy error instead of a race.
package locks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLocked is returned when another holder owns the lease.
var ErrLocked = errors.New("locks: doctor lease already held")

// DoctorLocker grants short-lived exclusive leases keyed by doctor.
type DoctorLocker interface {
	// Acquire takes the lease and returns a release function. Release is
	// best-effort; an expired lease releases itself via the TTL.
	Acquire(ctx context.Context, doctorID string) (release func(), err error)
}

// releaseScript deletes the lease only if the caller still owns it, so a
// slow holder cannot drop a lease that already expired and was re-acquired.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// RedisLocker implements DoctorLocker on a shared Redis instance.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisLocker creates a locker. The TTL bounds how long a crashed holder
// can keep other overrides waiting.
func NewRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisLocker{client: client, ttl: ttl}
}

// Acquire implements DoctorLocker.
func (l *RedisLocker) Acquire(ctx context.Context, doctorID string) (func(), error) {
	key := leaseKey(doctorID)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("locks: acquire lease for doctor %s: %w", doctorID, err)
	}
	if !ok {
		return nil, ErrLocked
	}

	release := func() {
		// Detached context: releasing must still work when the request
		// context is already cancelled.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err()
	}
	return release, nil
}

func leaseKey(doctorID string) string {
	return "practice:override-lease:" + doctorID
}
