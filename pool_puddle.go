package redis

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/jackc/puddle/v2"
	"github.com/puzpuzpuz/xsync/v3"
)

// NewPuddlePool creates a puddle-based connection pool.
func NewPuddlePool(constructor Constructor, maxSize int32) (Pool, error) {
	if maxSize < 1 {
		maxSize = 1
	}
	p := &puddlePool{
		checkedOut: xsync.NewMapOf[*puddle.Resource[*Connection], *Connection](),
	}

	poolConfig := &puddle.Config[*Connection]{
		Constructor: func(ctx context.Context) (*Connection, error) {
			conn, err := constructor(ctx)
			if err == nil {
				p.createdConns.Add(1)
			}
			return conn, err
		},
		Destructor: func(c *Connection) {
			p.destroyedConns.Add(1)
			_ = c.Close()
		},
		MaxSize: maxSize,
	}

	pool, err := puddle.NewPool(poolConfig)
	if err != nil {
		return nil, err
	}
	p.pool = pool
	return p, nil
}

// puddlePool wraps puddle.Pool to implement our Pool interface.
type puddlePool struct {
	pool           *puddle.Pool[*Connection]
	checkedOut     *xsync.MapOf[*puddle.Resource[*Connection], *Connection]
	closed         atomic.Bool
	createdConns   atomic.Int64
	destroyedConns atomic.Int64
	acquireErrors  atomic.Int64
}

func (p *puddlePool) Acquire(ctx context.Context) (Resource, error) {
	if p.closed.Load() {
		return nil, ErrPoolClosed
	}
	if ctx.Err() != nil {
		return p.acquireIdle(ctx)
	}

	res, err := p.pool.Acquire(ctx)
	if err != nil {
		switch {
		case errors.Is(err, puddle.ErrClosedPool):
			return nil, ErrPoolClosed
		case ctx.Err() != nil:
			return nil, exhausted(ctx.Err())
		default:
			return nil, err
		}
	}
	return p.checkout(res), nil
}

// acquireIdle serves a context that is already done from the idle
// connections only. TryAcquire would otherwise start a new connection in the
// background.
func (p *puddlePool) acquireIdle(ctx context.Context) (Resource, error) {
	if p.pool.Stat().IdleResources() > 0 {
		res, err := p.pool.TryAcquire(ctx)
		switch {
		case err == nil:
			return p.checkout(res), nil
		case errors.Is(err, puddle.ErrClosedPool):
			return nil, ErrPoolClosed
		}
	}
	p.acquireErrors.Add(1)
	return nil, exhausted(ctx.Err())
}

func (p *puddlePool) checkout(res *puddle.Resource[*Connection]) *puddleResource {
	p.checkedOut.Store(res, res.Value())
	return &puddleResource{res: res, pool: p}
}

func (p *puddlePool) AcquireAllIdle() []Resource {
	idle := p.pool.AcquireAllIdle()
	resources := make([]Resource, len(idle))
	for i, res := range idle {
		resources[i] = p.checkout(res)
	}
	return resources
}

// Close destroys idle connections and closes checked-out ones. puddle waits
// for every checked-out resource to come back before finishing, so that part
// runs in the background.
func (p *puddlePool) Close() {
	if p.closed.Swap(true) {
		return
	}

	for _, res := range p.pool.AcquireAllIdle() {
		res.Destroy()
	}

	p.checkedOut.Range(func(_ *puddle.Resource[*Connection], conn *Connection) bool {
		_ = conn.Close()
		return true
	})

	go p.pool.Close()
}

// Stats returns a snapshot of pool statistics by converting puddle's stats to our format.
func (p *puddlePool) Stats() PoolStats {
	s := p.pool.Stat()

	return PoolStats{
		TotalConns:        s.TotalResources(),
		IdleConns:         s.IdleResources(),
		ActiveConns:       s.AcquiredResources(),
		AcquireCount:      uint64(s.AcquireCount()),
		AcquireWaitCount:  uint64(s.EmptyAcquireCount()),
		CreatedConns:      uint64(p.createdConns.Load()),
		DestroyedConns:    uint64(p.destroyedConns.Load()),
		AcquireErrors:     uint64(s.CanceledAcquireCount() + p.acquireErrors.Load()),
		AcquireWaitTimeNs: uint64(s.EmptyAcquireWaitTime().Nanoseconds()),
	}
}

type puddleResource struct {
	res      *puddle.Resource[*Connection]
	pool     *puddlePool
	returned atomic.Bool
}

func (r *puddleResource) Value() *Connection {
	return r.res.Value()
}

func (r *puddleResource) Release() {
	r.release(r.res.Release)
}

func (r *puddleResource) ReleaseUnused() {
	r.release(r.res.ReleaseUnused)
}

func (r *puddleResource) release(fn func()) {
	if r.returned.Swap(true) {
		return
	}
	r.pool.checkedOut.Delete(r.res)
	if r.res.Value().State() != ConnIdle || r.pool.closed.Load() {
		r.res.Destroy()
		return
	}
	fn()
}

func (r *puddleResource) Destroy() {
	if r.returned.Swap(true) {
		return
	}
	r.pool.checkedOut.Delete(r.res)
	r.res.Destroy()
}

func (r *puddleResource) CreationTime() time.Time {
	return r.res.CreationTime()
}

func (r *puddleResource) IdleDuration() time.Duration {
	return r.res.IdleDuration()
}
