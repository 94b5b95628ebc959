package redis

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrPoolClosed    = errors.New("redis: pool closed")
	ErrPoolExhausted = errors.New("redis: pool exhausted")
)

// Pool bounds the number of live connections to one server and hands them out
// one caller at a time.
//
// Connections are created lazily, up to the maximum size. Acquire blocks until
// a connection is available or the context ends, in which case it fails with
// an error wrapping both ErrPoolExhausted and the context error.
type Pool interface {
	Acquire(ctx context.Context) (Resource, error)

	// AcquireAllIdle checks out every idle connection without creating any.
	// Used by the health checker.
	AcquireAllIdle() []Resource

	// Close closes idle and checked-out connections and rejects further
	// Acquire calls with ErrPoolClosed.
	Close()

	Stats() PoolStats
}

// Resource is a checked-out connection. Exactly one of Release,
// ReleaseUnused or Destroy must be called.
type Resource interface {
	Value() *Connection

	// Release returns the connection to the pool. A connection that is not
	// Idle (closed, or with unread replies) is destroyed instead.
	Release()

	// ReleaseUnused is Release without refreshing the last-used time.
	ReleaseUnused()

	// Destroy closes the connection and frees its slot.
	Destroy()

	CreationTime() time.Time
	IdleDuration() time.Duration
}

// Constructor opens a new connection for a pool.
type Constructor func(ctx context.Context) (*Connection, error)

// PoolFactory builds a Pool. NewChannelPool and NewPuddlePool are the two
// implementations.
type PoolFactory func(constructor Constructor, maxSize int32) (Pool, error)

// AcquireTimeout acquires from pool, waiting at most timeout. With a zero or
// negative timeout only an idle connection can be acquired.
func AcquireTimeout(ctx context.Context, pool Pool, timeout time.Duration) (Resource, error) {
	ctx, cancel := context.WithTimeout(ctx, max(timeout, 0))
	defer cancel()
	return pool.Acquire(ctx)
}

func exhausted(ctxErr error) error {
	return fmt.Errorf("%w: %w", ErrPoolExhausted, ctxErr)
}
