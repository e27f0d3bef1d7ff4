package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
)

func TestRedisLockerAcquireAndRelease(t *testing.T) {
	t.Parallel()

	rdb := newTestRedisClient(t)

	locker, err := NewRedisLocker(rdb, time.Minute)
	if err != nil {
		t.Fatalf("NewRedisLocker() error = %v", err)
	}

	release, acquired, err := locker.Acquire(context.Background(), "invoicing:lock:division:d1:2025-03")
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if !acquired {
		t.Fatal("first acquire should succeed")
	}

	_, acquired, err = locker.Acquire(context.Background(), "invoicing:lock:division:d1:2025-03")
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if acquired {
		t.Fatal("second acquire on held key should fail")
	}

	if err := release(context.Background()); err != nil {
		t.Fatalf("release() error = %v", err)
	}

	release, acquired, err = locker.Acquire(context.Background(), "invoicing:lock:division:d1:2025-03")
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if !acquired {
		t.Fatal("acquire after release should succeed")
	}
	if err := release(context.Background()); err != nil {
		t.Fatalf("release() error = %v", err)
	}
}

func TestRedisLockerIndependentKeys(t *testing.T) {
	t.Parallel()

	rdb := newTestRedisClient(t)

	locker, err := NewRedisLocker(rdb, time.Minute)
	if err != nil {
		t.Fatalf("NewRedisLocker() error = %v", err)
	}

	_, acquired, err := locker.Acquire(context.Background(), "invoicing:lock:financer:f1:2025-03")
	if err != nil || !acquired {
		t.Fatalf("Acquire(f1) = %v, %v", acquired, err)
	}

	_, acquired, err = locker.Acquire(context.Background(), "invoicing:lock:financer:f2:2025-03")
	if err != nil || !acquired {
		t.Fatalf("Acquire(f2) = %v, %v", acquired, err)
	}
}

func TestRedisLockerReleaseDoesNotStealForeignLock(t *testing.T) {
	t.Parallel()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run() error = %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
	})

	locker, err := NewRedisLocker(rdb, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("NewRedisLocker() error = %v", err)
	}

	release, acquired, err := locker.Acquire(context.Background(), "invoicing:lock:division:d9:2025-03")
	if err != nil || !acquired {
		t.Fatalf("Acquire() = %v, %v", acquired, err)
	}

	// Simulate expiry followed by another worker taking the lock.
	mr.FastForward(time.Second)
	_, acquired, err = locker.Acquire(context.Background(), "invoicing:lock:division:d9:2025-03")
	if err != nil || !acquired {
		t.Fatalf("re-acquire after expiry = %v, %v", acquired, err)
	}

	if err := release(context.Background()); err != nil {
		t.Fatalf("release() error = %v", err)
	}

	if !mr.Exists("invoicing:lock:division:d9:2025-03") {
		t.Fatal("stale release should not delete a lock held by another owner")
	}
}

func TestRedisLockerValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewRedisLocker(nil, time.Minute); err == nil {
		t.Fatal("NewRedisLocker(nil) should fail")
	}

	rdb := newTestRedisClient(t)
	locker, err := NewRedisLocker(rdb, 0)
	if err != nil {
		t.Fatalf("NewRedisLocker() error = %v", err)
	}
	if locker.ttl != defaultLockTTL {
		t.Fatalf("ttl = %v, want %v", locker.ttl, defaultLockTTL)
	}

	if _, _, err := locker.Acquire(context.Background(), "  "); err == nil {
		t.Fatal("Acquire with empty key should fail")
	}
}

func newTestRedisClient(t *testing.T) *goredis.Client {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run() error = %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := goredis.NewClient(&goredis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() {
		_ = rdb.Close()
	})

	return rdb
}
