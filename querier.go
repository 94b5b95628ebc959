package redis

import (
	"context"
	"time"

	"github.com/pior/redis/resp"
)

type Item struct {
	Key   string
	Value []byte
	TTL   time.Duration
	Found bool // indicates whether the key was found
}

type Querier interface {
	Ping(ctx context.Context) error
	Get(ctx context.Context, key string) (Item, error)
	Set(ctx context.Context, item Item) error
	Add(ctx context.Context, item Item) (bool, error)
	Delete(ctx context.Context, keys ...string) (int64, error)
	Increment(ctx context.Context, key string, delta int64) (int64, error)
	HGetAll(ctx context.Context, key string) (resp.Pairs[string], error)
	Load(ctx context.Context, key string, dst any) (bool, error)
}

// Executor runs commands and returns their raw reply frames. Error replies
// are returned as frames; only transport, protocol and pool failures are
// returned as errors.
//
// Client and ServerPool implement it.
type Executor interface {
	Execute(ctx context.Context, cmd Cmd) (resp.Frame, error)
	ExecuteBatch(ctx context.Context, cmds []Cmd) ([]resp.Frame, error)
}

// Do runs cmd on e and parses its reply.
//
//	n, err := redis.Do(ctx, client, redis.Incr("visits"))
func Do[T any](ctx context.Context, e Executor, cmd *Command[T]) (T, error) {
	frame, err := e.Execute(ctx, cmd)
	if err != nil {
		var zero T
		return zero, err
	}
	return cmd.Parse(frame)
}

// Commands provides the common operations on top of an Executor.
// This struct can be used independently with a custom Executor, or embedded
// in Client.
type Commands struct {
	executor     Executor
	deserializer resp.Deserializer
	stats        *clientStatsCollector
}

var _ Querier = (*Commands)(nil)

// NewCommands creates a Commands instance. d is used by Load.
func NewCommands(executor Executor, d resp.Deserializer) *Commands {
	return &Commands{
		executor:     executor,
		deserializer: d,
		stats:        &clientStatsCollector{},
	}
}

func (c *Commands) Ping(ctx context.Context) error {
	_, err := Do(ctx, c.executor, Ping())
	return err
}

// Get retrieves a single item.
func (c *Commands) Get(ctx context.Context, key string) (Item, error) {
	v, err := Do(ctx, c.executor, Get(key))
	if err != nil {
		return Item{}, err
	}
	c.stats.recordGet(v.Found)
	return Item{Key: key, Value: v.Value, Found: v.Found}, nil
}

// Set stores an item. A zero TTL stores it without expiration.
func (c *Commands) Set(ctx context.Context, item Item) error {
	_, err := Do(ctx, c.executor, Set(item.Key, item.Value, item.TTL))
	return err
}

// Add stores an item only if the key doesn't already exist. It reports
// whether the item was stored.
func (c *Commands) Add(ctx context.Context, item Item) (bool, error) {
	return Do(ctx, c.executor, SetNX(item.Key, item.Value, item.TTL))
}

// Delete removes keys and returns how many existed.
func (c *Commands) Delete(ctx context.Context, keys ...string) (int64, error) {
	return Do(ctx, c.executor, Del(keys...))
}

// Increment adds delta to the counter at key, creating it at zero first when
// missing, and returns the new value.
func (c *Commands) Increment(ctx context.Context, key string, delta int64) (int64, error) {
	return Do(ctx, c.executor, IncrBy(key, delta))
}

// HGetAll returns the fields of a hash in server order. A missing key is an
// empty hash.
func (c *Commands) HGetAll(ctx context.Context, key string) (resp.Pairs[string], error) {
	v, err := Do(ctx, c.executor, HGetAll(key))
	return v.Value, err
}

// Load decodes the hash at key into dst, a pointer to a struct or a map.
// It reports false, leaving dst untouched, when the hash is empty or missing.
func (c *Commands) Load(ctx context.Context, key string, dst any) (bool, error) {
	return Do(ctx, c.executor, LoadInto(key, c.deserializer, dst))
}
