package redis

import (
	"fmt"

	"github.com/VictoriaMetrics/metrics"
)

// RegisterMetrics exposes the pool and client statistics of c on set, labeled
// with the server address. Values are read from the stats snapshots at scrape
// time.
//
// It panics when metrics for the same address are already registered on set.
func RegisterMetrics(set *metrics.Set, c *Client) {
	label := fmt.Sprintf("addr=%q", c.Address())

	pool := func(f func(PoolStats) float64) func() float64 {
		return func() float64 { return f(c.serverPool.pool.Stats()) }
	}
	client := func(f func(ClientStats) float64) func() float64 {
		return func() float64 { return f(c.Stats()) }
	}

	gauges := map[string]func() float64{
		"redis_pool_connections_total":     pool(func(s PoolStats) float64 { return float64(s.TotalConns) }),
		"redis_pool_connections_idle":      pool(func(s PoolStats) float64 { return float64(s.IdleConns) }),
		"redis_pool_connections_active":    pool(func(s PoolStats) float64 { return float64(s.ActiveConns) }),
		"redis_pool_acquires_total":        pool(func(s PoolStats) float64 { return float64(s.AcquireCount) }),
		"redis_pool_acquire_waits_total":   pool(func(s PoolStats) float64 { return float64(s.AcquireWaitCount) }),
		"redis_pool_acquire_errors_total":  pool(func(s PoolStats) float64 { return float64(s.AcquireErrors) }),
		"redis_pool_acquire_wait_seconds":  pool(func(s PoolStats) float64 { return float64(s.AcquireWaitTimeNs) / 1e9 }),
		"redis_pool_connections_created":   pool(func(s PoolStats) float64 { return float64(s.CreatedConns) }),
		"redis_pool_connections_destroyed": pool(func(s PoolStats) float64 { return float64(s.DestroyedConns) }),
		"redis_client_commands_total":      client(func(s ClientStats) float64 { return float64(s.Commands) }),
		"redis_client_pipelines_total":     client(func(s ClientStats) float64 { return float64(s.Pipelines) }),
		"redis_client_gets_total":          client(func(s ClientStats) float64 { return float64(s.Gets) }),
		"redis_client_get_hits_total":      client(func(s ClientStats) float64 { return float64(s.GetHits) }),
		"redis_client_server_errors_total": client(func(s ClientStats) float64 { return float64(s.ServerErrors) }),
		"redis_client_errors_total":        client(func(s ClientStats) float64 { return float64(s.Errors) }),
	}

	for name, f := range gauges {
		set.NewGauge(name+"{"+label+"}", f)
	}

	set.NewGauge("redis_circuit_breaker_state{"+label+"}", func() float64 {
		return float64(c.PoolStats().CircuitBreakerState)
	})
}
