package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"

	"github.com/pior/redis/resp"
)

// NewServerPool creates the pool of connections to addr. config is completed
// with defaults.
func NewServerPool(addr string, config Config) (*ServerPool, error) {
	config = config.withDefaults()
	logger := config.Logger.WithField("addr", addr)

	constructor := config.constructor
	if constructor == nil {
		constructor = func(ctx context.Context) (*Connection, error) {
			return connect(ctx, addr, config, logger)
		}
	}

	pool, err := config.Pool(constructor, config.MaxSize)
	if err != nil {
		return nil, err
	}

	sp := &ServerPool{
		addr:           addr,
		pool:           pool,
		acquireTimeout: config.AcquireTimeout,
		logger:         logger,
	}
	if config.CircuitBreaker != nil {
		sp.circuitBreaker = newCircuitBreaker(addr, *config.CircuitBreaker, logger)
	}
	return sp, nil
}

// connect dials addr and runs the connection setup: AUTH when a password is
// configured, SELECT when a database is.
func connect(ctx context.Context, addr string, config Config, logger logrus.FieldLogger) (*Connection, error) {
	if config.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, config.DialTimeout)
		defer cancel()
	}

	conn, err := Dial(ctx, config.Dialer, addr, config.connectionConfig())
	if err != nil {
		logger.WithError(err).Warn("redis: dial failed")
		return nil, err
	}

	var setup []Cmd
	if config.Password != "" {
		setup = append(setup, Auth(config.Username, config.Password))
	}
	if config.Database != 0 {
		setup = append(setup, Select(config.Database))
	}
	if len(setup) == 0 {
		logger.Debug("redis: connection established")
		return conn, nil
	}

	frames, err := conn.Pipeline(ctx, setup)
	if err == nil {
		for i, f := range frames {
			if _, err = resp.ParseOK(f); err != nil {
				err = fmt.Errorf("redis: connection setup %s: %w", setup[i].Name(), err)
				break
			}
		}
	}
	if err != nil {
		_ = conn.Close()
		logger.WithError(err).Warn("redis: connection setup failed")
		return nil, err
	}

	logger.Debug("redis: connection established")
	return conn, nil
}

// ServerPool wraps a pool, a circuit breaker with its server address.
type ServerPool struct {
	addr           string
	pool           Pool
	acquireTimeout time.Duration
	circuitBreaker *gobreaker.CircuitBreaker[[]resp.Frame]
	logger         logrus.FieldLogger
}

func (sp *ServerPool) Address() string {
	return sp.addr
}

func (sp *ServerPool) Pool() Pool {
	return sp.pool
}

// ServerPoolStats contains stats for a single server pool
type ServerPoolStats struct {
	Addr                 string
	PoolStats            PoolStats
	CircuitBreakerState  gobreaker.State
	CircuitBreakerCounts gobreaker.Counts
}

func (sp *ServerPool) Stats() ServerPoolStats {
	stats := ServerPoolStats{
		Addr:      sp.addr,
		PoolStats: sp.pool.Stats(),
	}
	if sp.circuitBreaker != nil {
		stats.CircuitBreakerState = sp.circuitBreaker.State()
		stats.CircuitBreakerCounts = sp.circuitBreaker.Counts()
	}
	return stats
}

// Execute sends one command on a pooled connection and returns its reply.
// An Error reply is returned as a frame, not as an error.
func (sp *ServerPool) Execute(ctx context.Context, cmd Cmd) (resp.Frame, error) {
	frames, err := sp.ExecuteBatch(ctx, []Cmd{cmd})
	if err != nil {
		return resp.Frame{}, err
	}
	return frames[0], nil
}

// ExecuteBatch pipelines cmds on a single pooled connection and returns the
// replies in order.
//
// Both Execute and ExecuteBatch go through the circuit breaker when one is
// configured. The connection is released when it is still usable and
// destroyed otherwise.
func (sp *ServerPool) ExecuteBatch(ctx context.Context, cmds []Cmd) ([]resp.Frame, error) {
	if len(cmds) == 0 {
		return nil, nil
	}

	if sp.circuitBreaker == nil {
		return sp.execDirect(ctx, cmds)
	}

	return sp.circuitBreaker.Execute(func() ([]resp.Frame, error) {
		return sp.execDirect(ctx, cmds)
	})
}

func (sp *ServerPool) execDirect(ctx context.Context, cmds []Cmd) ([]resp.Frame, error) {
	resource, err := sp.acquire(ctx)
	if err != nil {
		return nil, err
	}

	conn := resource.Value()
	frames, err := conn.Pipeline(ctx, cmds)

	if conn.State() != ConnIdle {
		sp.logger.WithError(err).Warn("redis: discarding connection")
		resource.Destroy()
	} else {
		resource.Release()
	}

	return frames, err
}

func (sp *ServerPool) acquire(ctx context.Context) (Resource, error) {
	if sp.acquireTimeout > 0 {
		return AcquireTimeout(ctx, sp.pool, sp.acquireTimeout)
	}
	return sp.pool.Acquire(ctx)
}

func (sp *ServerPool) Close() {
	sp.pool.Close()
}
