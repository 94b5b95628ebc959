package redis

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/pior/redis/internal/coarsetime"
)

// NewChannelPool creates a channel-based connection pool.
// This is the default pool implementation.
//
// Live connections are counted with a semaphore channel and idle ones wait in
// a buffered channel, so a waiter wakes up on either a release or a freed
// slot.
func NewChannelPool(constructor Constructor, maxSize int32) (Pool, error) {
	if maxSize < 1 {
		maxSize = 1
	}
	return &channelPool{
		constructor: constructor,
		slots:       make(chan struct{}, maxSize),
		idle:        make(chan *channelResource, maxSize),
		done:        make(chan struct{}),
		checkedOut:  xsync.NewMapOf[*channelResource, struct{}](),
	}, nil
}

// channelResource implements Resource for channel pool.
type channelResource struct {
	conn         *Connection
	pool         *channelPool
	creationTime time.Time
	lastUsedTime time.Time
	returned     atomic.Bool
}

func (r *channelResource) Value() *Connection {
	return r.conn
}

func (r *channelResource) Release() {
	if r.returned.Swap(true) {
		return
	}
	r.lastUsedTime = coarsetime.Now()
	r.pool.put(r)
}

func (r *channelResource) ReleaseUnused() {
	if r.returned.Swap(true) {
		return
	}
	r.pool.put(r)
}

func (r *channelResource) Destroy() {
	if r.returned.Swap(true) {
		return
	}
	r.pool.destroy(r)
}

func (r *channelResource) CreationTime() time.Time {
	return r.creationTime
}

func (r *channelResource) IdleDuration() time.Duration {
	return coarsetime.Since(r.lastUsedTime)
}

type channelPool struct {
	constructor Constructor

	slots chan struct{}          // one token per live connection
	idle  chan *channelResource // never closed
	done  chan struct{}         // closed by Close

	mu     sync.Mutex
	closed bool

	checkedOut *xsync.MapOf[*channelResource, struct{}]

	stats poolStatsCollector
}

func (p *channelPool) Acquire(ctx context.Context) (Resource, error) {
	p.stats.recordAcquire()

	select {
	case <-p.done:
		p.stats.recordAcquireError()
		return nil, ErrPoolClosed
	default:
	}

	// Fast path: an idle connection.
	select {
	case res := <-p.idle:
		return p.checkout(res), nil
	default:
	}

	if err := ctx.Err(); err != nil {
		p.stats.recordAcquireError()
		return nil, exhausted(err)
	}

	waitStart := time.Now()
	select {
	case res := <-p.idle:
		p.stats.recordAcquireWait(time.Since(waitStart))
		return p.checkout(res), nil

	case p.slots <- struct{}{}:
		return p.create(ctx)

	case <-p.done:
		p.stats.recordAcquireError()
		return nil, ErrPoolClosed

	case <-ctx.Done():
		p.stats.recordAcquireError()
		return nil, exhausted(ctx.Err())
	}
}

// create opens a connection in a slot already taken by the caller.
func (p *channelPool) create(ctx context.Context) (Resource, error) {
	conn, err := p.constructor(ctx)
	if err != nil {
		<-p.slots
		p.stats.recordAcquireError()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, exhausted(ctxErr)
		}
		return nil, err
	}
	p.stats.recordCreate()

	now := coarsetime.Now()
	res := &channelResource{
		conn:         conn,
		pool:         p,
		creationTime: now,
		lastUsedTime: now,
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		_ = conn.Close()
		<-p.slots
		p.stats.recordDestroy()
		return nil, ErrPoolClosed
	}
	p.checkedOut.Store(res, struct{}{})
	return res, nil
}

func (p *channelPool) checkout(res *channelResource) *channelResource {
	res.returned.Store(false)
	p.checkedOut.Store(res, struct{}{})
	return res
}

func (p *channelPool) put(res *channelResource) {
	if res.conn.State() != ConnIdle {
		p.destroy(res)
		return
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.destroy(res)
		return
	}
	p.checkedOut.Delete(res)
	// Never blocks: idle holds at most one entry per slot.
	p.idle <- res
	p.mu.Unlock()
}

func (p *channelPool) destroy(res *channelResource) {
	p.checkedOut.Delete(res)
	_ = res.conn.Close()
	<-p.slots
	p.stats.recordDestroy()
}

func (p *channelPool) AcquireAllIdle() []Resource {
	var idle []Resource
	for {
		select {
		case res := <-p.idle:
			idle = append(idle, p.checkout(res))
		default:
			return idle
		}
	}
}

func (p *channelPool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.done)
	p.mu.Unlock()

	for {
		select {
		case res := <-p.idle:
			res.returned.Store(true)
			p.destroy(res)
			continue
		default:
		}
		break
	}

	// Checked-out connections are closed now; their slot is freed when the
	// holder releases them.
	p.checkedOut.Range(func(res *channelResource, _ struct{}) bool {
		_ = res.conn.Close()
		return true
	})
}

// Stats returns a snapshot of pool statistics.
func (p *channelPool) Stats() PoolStats {
	s := p.stats.snapshot()
	s.TotalConns = int32(len(p.slots))
	s.IdleConns = int32(len(p.idle))
	s.ActiveConns = int32(p.checkedOut.Size())
	return s
}
