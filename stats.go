package redis

import (
	"sync/atomic"
	"time"
)

// PoolStats contains statistics about a connection pool.
//
// For Prometheus integration, expose these as:
//   - Gauges: TotalConns, IdleConns, ActiveConns
//   - Counters: AcquireCount, AcquireWaitCount, CreatedConns, DestroyedConns, AcquireErrors
//   - Histogram: AcquireWaitDuration (use AcquireWaitCount and AcquireWaitTimeNs to calculate)
//
// RegisterMetrics does this for a Client.
type PoolStats struct {
	// Lifetime counters
	AcquireCount      uint64 // Total acquire attempts
	AcquireWaitCount  uint64 // Acquires that had to wait
	CreatedConns      uint64 // Total connections created
	DestroyedConns    uint64 // Total connections destroyed
	AcquireErrors     uint64 // Failed acquire attempts
	AcquireWaitTimeNs uint64 // Total nanoseconds spent waiting

	// Current state gauges
	TotalConns  int32 // Total connections in pool (active + idle)
	IdleConns   int32 // Idle connections available
	ActiveConns int32 // Connections currently in use
}

// ClientStats contains statistics about client operations.
type ClientStats struct {
	Commands     uint64 // Commands executed, pipelined ones included
	Pipelines    uint64 // Pipelines executed
	Gets         uint64 // Get operations
	GetHits      uint64 // Get operations that found the key
	ServerErrors uint64 // Error replies from the server
	Errors       uint64 // Failed executions: acquire, transport, protocol
}

// poolStatsCollector holds the lifetime counters of a pool. Gauges are
// computed by the pool itself from its current state.
type poolStatsCollector struct {
	acquireCount      atomic.Uint64
	acquireWaitCount  atomic.Uint64
	createdConns      atomic.Uint64
	destroyedConns    atomic.Uint64
	acquireErrors     atomic.Uint64
	acquireWaitTimeNs atomic.Uint64
}

func (c *poolStatsCollector) recordAcquire() {
	c.acquireCount.Add(1)
}

func (c *poolStatsCollector) recordAcquireWait(duration time.Duration) {
	c.acquireWaitCount.Add(1)
	c.acquireWaitTimeNs.Add(uint64(duration.Nanoseconds()))
}

func (c *poolStatsCollector) recordCreate() {
	c.createdConns.Add(1)
}

func (c *poolStatsCollector) recordDestroy() {
	c.destroyedConns.Add(1)
}

func (c *poolStatsCollector) recordAcquireError() {
	c.acquireErrors.Add(1)
}

func (c *poolStatsCollector) snapshot() PoolStats {
	return PoolStats{
		AcquireCount:      c.acquireCount.Load(),
		AcquireWaitCount:  c.acquireWaitCount.Load(),
		CreatedConns:      c.createdConns.Load(),
		DestroyedConns:    c.destroyedConns.Load(),
		AcquireErrors:     c.acquireErrors.Load(),
		AcquireWaitTimeNs: c.acquireWaitTimeNs.Load(),
	}
}

type clientStatsCollector struct {
	commands     atomic.Uint64
	pipelines    atomic.Uint64
	gets         atomic.Uint64
	getHits      atomic.Uint64
	serverErrors atomic.Uint64
	errors       atomic.Uint64
}

func (c *clientStatsCollector) recordCommands(n int) {
	c.commands.Add(uint64(n))
}

func (c *clientStatsCollector) recordPipeline() {
	c.pipelines.Add(1)
}

func (c *clientStatsCollector) recordGet(found bool) {
	c.gets.Add(1)
	if found {
		c.getHits.Add(1)
	}
}

func (c *clientStatsCollector) recordServerError() {
	c.serverErrors.Add(1)
}

func (c *clientStatsCollector) recordError() {
	c.errors.Add(1)
}

func (c *clientStatsCollector) snapshot() ClientStats {
	return ClientStats{
		Commands:     c.commands.Load(),
		Pipelines:    c.pipelines.Load(),
		Gets:         c.gets.Load(),
		GetHits:      c.getHits.Load(),
		ServerErrors: c.serverErrors.Load(),
		Errors:       c.errors.Load(),
	}
}
