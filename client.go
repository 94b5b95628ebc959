package redis

import (
	"context"
	"io"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"

	"github.com/pior/redis/objectmap"
	"github.com/pior/redis/resp"
)

const (
	DefaultMaxSize     = 10
	DefaultMaxPipeline = 128
	DefaultDialTimeout = 5 * time.Second
)

// Config holds configuration for the client connection pool.
type Config struct {
	// MaxSize is the maximum number of connections in the pool.
	// Defaults to DefaultMaxSize.
	MaxSize int32

	// AcquireTimeout bounds the wait for a pooled connection. Zero means the
	// wait is bounded only by the caller's context.
	AcquireTimeout time.Duration

	// DialTimeout bounds connection establishment, setup commands included.
	// Defaults to DefaultDialTimeout.
	DialTimeout time.Duration

	// ReadTimeout and WriteTimeout bound each socket read and write.
	// Zero means no limit other than the caller's context.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// MaxPipeline is the number of commands written before their replies are
	// read. Defaults to DefaultMaxPipeline.
	MaxPipeline int

	// MaxConnLifetime is the maximum duration a connection can be reused.
	// Zero means no limit.
	MaxConnLifetime time.Duration

	// MaxConnIdleTime is the maximum duration a connection can be idle before being closed.
	// Zero means no limit.
	MaxConnIdleTime time.Duration

	// HealthCheckInterval is how often idle connections are checked against
	// MaxConnLifetime and MaxConnIdleTime and pinged.
	// Zero disables health checks.
	HealthCheckInterval time.Duration

	// Username and Password are sent with AUTH on every new connection when
	// Password is set.
	Username string
	Password string

	// Database is selected on every new connection when non-zero.
	Database int

	// Dialer is the net.Dialer used to create new connections.
	// If nil, the default net.Dialer is used.
	Dialer *net.Dialer

	// Pool is the connection pool factory function.
	// If nil, uses NewChannelPool. NewPuddlePool is the alternative.
	Pool PoolFactory

	// CircuitBreaker enables a circuit breaker on the server when set.
	// See NewCircuitBreakerSettings.
	CircuitBreaker *gobreaker.Settings

	// Logger receives connection lifecycle events. Defaults to discarding them.
	Logger logrus.FieldLogger

	// Deserializer decodes hashes for Load. Defaults to objectmap with its
	// default options.
	Deserializer resp.Deserializer

	// for testing purposes only
	constructor Constructor
}

func (c Config) withDefaults() Config {
	if c.MaxSize <= 0 {
		c.MaxSize = DefaultMaxSize
	}
	if c.MaxPipeline <= 0 {
		c.MaxPipeline = DefaultMaxPipeline
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = DefaultDialTimeout
	}
	if c.Dialer == nil {
		c.Dialer = &net.Dialer{}
	}
	if c.Pool == nil {
		c.Pool = NewChannelPool
	}
	if c.Logger == nil {
		logger := logrus.New()
		logger.SetOutput(io.Discard)
		c.Logger = logger
	}
	if c.Deserializer == nil {
		c.Deserializer = objectmap.New(objectmap.Options{})
	}
	return c
}

func (c Config) connectionConfig() ConnectionConfig {
	return ConnectionConfig{
		ReadTimeout:  c.ReadTimeout,
		WriteTimeout: c.WriteTimeout,
		MaxPipeline:  c.MaxPipeline,
	}
}

// Client is a pooled client for a single server.
//
// Client implements Querier through the embedded Commands, and Executor, so
// any Command can be run with Do and any group of commands with a Pipeline.
type Client struct {
	*Commands

	serverPool *ServerPool
	config     Config

	// Health check management
	stopHealthCheck chan struct{}
	healthCheckDone sync.WaitGroup
	closeOnce       sync.Once

	stats *clientStatsCollector
}

var (
	_ Querier  = (*Client)(nil)
	_ Executor = (*Client)(nil)
)

// NewClient creates a client for the server at addr. No connection is opened
// until the first command.
func NewClient(addr string, config Config) (*Client, error) {
	config = config.withDefaults()

	serverPool, err := NewServerPool(addr, config)
	if err != nil {
		return nil, err
	}

	client := &Client{
		serverPool:      serverPool,
		config:          config,
		stopHealthCheck: make(chan struct{}),
		stats:           &clientStatsCollector{},
	}
	client.Commands = &Commands{
		executor:     client,
		deserializer: config.Deserializer,
		stats:        client.stats,
	}

	// Start health check goroutine if enabled
	if config.HealthCheckInterval > 0 {
		client.healthCheckDone.Add(1)
		go client.healthCheckLoop()
	}

	return client, nil
}

// Close stops the health checker and closes every connection, checked out or
// not. Commands issued afterwards fail with ErrPoolClosed.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.stopHealthCheck)
		c.healthCheckDone.Wait()
		c.serverPool.Close()
	})
}

// Execute runs one command. Error replies are returned as frames.
func (c *Client) Execute(ctx context.Context, cmd Cmd) (resp.Frame, error) {
	frames, err := c.ExecuteBatch(ctx, []Cmd{cmd})
	if err != nil {
		return resp.Frame{}, err
	}
	return frames[0], nil
}

// ExecuteBatch pipelines cmds on one connection.
func (c *Client) ExecuteBatch(ctx context.Context, cmds []Cmd) ([]resp.Frame, error) {
	if len(cmds) == 0 {
		return nil, nil
	}
	if len(cmds) > 1 {
		c.stats.recordPipeline()
	}
	c.stats.recordCommands(len(cmds))

	frames, err := c.serverPool.ExecuteBatch(ctx, cmds)
	if err != nil {
		c.stats.recordError()
		return nil, err
	}
	for _, f := range frames {
		if f.Kind == resp.Error {
			c.stats.recordServerError()
		}
	}
	return frames, nil
}

// Pipeline returns an empty pipeline bound to this client.
func (c *Client) Pipeline() *Pipeline {
	return NewPipeline(c)
}

// Stats returns a snapshot of client statistics.
func (c *Client) Stats() ClientStats {
	return c.stats.snapshot()
}

// PoolStats returns the stats of the server pool.
func (c *Client) PoolStats() ServerPoolStats {
	return c.serverPool.Stats()
}

func (c *Client) Address() string {
	return c.serverPool.Address()
}

// healthCheckLoop periodically checks idle connections for health and lifecycle limits.
func (c *Client) healthCheckLoop() {
	defer c.healthCheckDone.Done()

	ticker := time.NewTicker(c.config.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopHealthCheck:
			return
		case <-ticker.C:
			c.checkPoolConnections(c.serverPool.Pool())
		}
	}
}

// checkPoolConnections checks all idle connections in a pool and destroys those that are stale or unhealthy.
func (c *Client) checkPoolConnections(pool Pool) {
	now := time.Now()
	logger := c.serverPool.logger

	for _, res := range pool.AcquireAllIdle() {
		// Check max connection lifetime
		if c.config.MaxConnLifetime > 0 && now.Sub(res.CreationTime()) > c.config.MaxConnLifetime {
			logger.Debug("redis: closing connection past its lifetime")
			res.Destroy()
			continue
		}

		// Check max idle time
		if c.config.MaxConnIdleTime > 0 && res.IdleDuration() > c.config.MaxConnIdleTime {
			logger.Debug("redis: closing idle connection")
			res.Destroy()
			continue
		}

		if err := c.healthCheck(res.Value()); err != nil {
			logger.WithError(err).Debug("redis: health check failed")
			res.Destroy()
			continue
		}

		res.ReleaseUnused()
	}
}

// healthCheck pings a connection.
func (c *Client) healthCheck(conn *Connection) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.config.DialTimeout)
	defer cancel()

	cmd := Ping()
	frame, err := conn.Do(ctx, cmd)
	if err != nil {
		return err
	}
	_, err = cmd.Parse(frame)
	return err
}
