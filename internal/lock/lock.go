package lock

import "context"

// ReleaseFunc releases a previously acquired lock. It is safe to call more
// than once.
type ReleaseFunc func(ctx context.Context) error

// Locker provides mutual exclusion across concurrently running batch workers.
// Acquire returns false when the key is already held by another owner.
type Locker interface {
	Acquire(ctx context.Context, key string) (ReleaseFunc, bool, error)
}
