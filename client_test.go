package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pior/redis/internal/testutils"
	"github.com/pior/redis/resp"
)

func newTestClient(t *testing.T, handler testutils.Handler, config Config) (*Client, *testutils.Server) {
	t.Helper()
	server := testutils.NewServer(t, handler)
	client, err := NewClient(server.Addr, config)
	require.NoError(t, err)
	t.Cleanup(client.Close)
	return client, server
}

func TestClient_Strings(t *testing.T) {
	kv := testutils.NewKV()
	client, _ := newTestClient(t, kv.Handle, Config{})
	ctx := context.Background()

	require.NoError(t, client.Ping(ctx))

	item, err := client.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, item.Found)

	require.NoError(t, client.Set(ctx, Item{Key: "k", Value: []byte("v1"), TTL: time.Minute}))

	item, err = client.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, Item{Key: "k", Value: []byte("v1"), Found: true}, item)

	stored, err := client.Add(ctx, Item{Key: "k", Value: []byte("v2")})
	require.NoError(t, err)
	assert.False(t, stored)

	stored, err = client.Add(ctx, Item{Key: "other", Value: []byte("v2")})
	require.NoError(t, err)
	assert.True(t, stored)

	n, err := client.Delete(ctx, "k", "other", "missing")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestClient_Increment(t *testing.T) {
	kv := testutils.NewKV()
	client, _ := newTestClient(t, kv.Handle, Config{})
	ctx := context.Background()

	n, err := client.Increment(ctx, "counter", 5)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	n, err = client.Increment(ctx, "counter", -2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	require.NoError(t, client.Set(ctx, Item{Key: "text", Value: []byte("abc")}))
	_, err = client.Increment(ctx, "text", 1)
	assert.True(t, resp.IsServerError(err, "ERR"))
	assert.False(t, resp.ShouldCloseConnection(err))
}

func TestClient_Hashes(t *testing.T) {
	kv := testutils.NewKV()
	client, _ := newTestClient(t, kv.Handle, Config{})
	ctx := context.Background()

	fields, err := client.HGetAll(ctx, "user:1")
	require.NoError(t, err)
	assert.Empty(t, fields)

	added, err := Do(ctx, client, HSet("user:1", resp.Pairs[[]byte]{
		{Key: "name", Value: []byte("Ada")},
		{Key: "age", Value: []byte("36")},
		{Key: "ttl", Value: []byte("1m30s")},
	}))
	require.NoError(t, err)
	assert.Equal(t, int64(3), added)

	fields, err = client.HGetAll(ctx, "user:1")
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "age", "ttl"}, fields.Keys())

	var user struct {
		Name string
		Age  int
		TTL  time.Duration
	}
	found, err := client.Load(ctx, "user:1", &user)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "Ada", user.Name)
	assert.Equal(t, 36, user.Age)
	assert.Equal(t, 90*time.Second, user.TTL)

	found, err = client.Load(ctx, "user:2", &user)
	require.NoError(t, err)
	assert.False(t, found)

	name, err := Do(ctx, client, HGet("user:1", "name"))
	require.NoError(t, err)
	assert.Equal(t, resp.Some("Ada"), name)
}

func TestClient_LoadDeserializeError(t *testing.T) {
	kv := testutils.NewKV()
	client, _ := newTestClient(t, kv.Handle, Config{})
	ctx := context.Background()

	_, err := Do(ctx, client, HSet("h", resp.Pairs[[]byte]{{Key: "age", Value: []byte("old")}}))
	require.NoError(t, err)

	var dst struct{ Age int }
	_, err = client.Load(ctx, "h", &dst)
	var de *resp.DeserializeError
	require.ErrorAs(t, err, &de)
	assert.False(t, resp.ShouldCloseConnection(err))
}

func TestClient_Pipeline(t *testing.T) {
	kv := testutils.NewKV()
	client, server := newTestClient(t, kv.Handle, Config{MaxPipeline: 2})
	ctx := context.Background()

	p := client.Pipeline()
	set := Queue(p, Set("a", []byte("1"), NoTTL))
	incr := Queue(p, Incr("a"))
	incr2 := Queue(p, Incr("a"))
	mget := Queue(p, MGet("a", "b"))
	unknown := Queue(p, MustCommand(resp.ParseOK, "NOPE"))
	assert.Equal(t, 5, p.Len())

	require.NoError(t, p.Exec(ctx))
	assert.Equal(t, 0, p.Len())

	_, err := set.Result()
	require.NoError(t, err)

	n, err := incr.Result()
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = incr2.Result()
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	values, err := mget.Result()
	require.NoError(t, err)
	assert.Equal(t, []resp.Maybe[string]{resp.Some("3"), {}}, values)

	_, err = unknown.Result()
	assert.True(t, resp.IsServerError(err, "ERR"))

	assert.Equal(t, 1, server.Accepted())
	assert.Equal(t, []string{"SET", "INCR", "INCR", "MGET", "NOPE"}, kv.Received())
}

func TestClient_AuthAndSelectOnConnect(t *testing.T) {
	kv := testutils.NewKV()
	kv.Password = "secret"
	client, _ := newTestClient(t, kv.Handle, Config{Username: "app", Password: "secret", Database: 3})

	require.NoError(t, client.Ping(context.Background()))
	require.NoError(t, client.Ping(context.Background()))
	assert.Equal(t, []string{"AUTH", "SELECT", "PING", "PING"}, kv.Received())
}

func TestClient_WrongPassword(t *testing.T) {
	kv := testutils.NewKV()
	kv.Password = "secret"
	client, server := newTestClient(t, kv.Handle, Config{Password: "nope"})

	err := client.Ping(context.Background())
	require.Error(t, err)
	assert.True(t, resp.IsServerError(err, "WRONGPASS"))
	assert.Contains(t, err.Error(), "connection setup AUTH")

	require.Eventually(t, func() bool { return server.Connected() == 0 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(0), client.PoolStats().PoolStats.TotalConns)
}

func TestClient_ProtocolViolationIsolation(t *testing.T) {
	kv := testutils.NewKV()
	handler := func(args []string) []byte {
		if args[0] == "BAD" {
			return []byte("?garbage\r\n")
		}
		return kv.Handle(args)
	}
	client, server := newTestClient(t, handler, Config{})
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, Item{Key: "k", Value: []byte("v")}))

	_, err := client.Execute(ctx, MustCommand(resp.ParseFrame, "BAD"))
	var pe *resp.ProtocolError
	require.ErrorAs(t, err, &pe)

	item, err := client.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", string(item.Value))

	stats := client.PoolStats().PoolStats
	assert.Equal(t, uint64(1), stats.DestroyedConns)
	assert.Equal(t, 2, server.Accepted())
}

func TestClient_ServerErrorKeepsConnection(t *testing.T) {
	kv := testutils.NewKV()
	client, server := newTestClient(t, kv.Handle, Config{})
	ctx := context.Background()

	_, err := Do(ctx, client, MustCommand(resp.ParseOK, "FLUSHALL"))
	assert.True(t, resp.IsServerError(err, "ERR"))

	require.NoError(t, client.Ping(ctx))
	assert.Equal(t, 1, server.Accepted())
	assert.Equal(t, uint64(0), client.PoolStats().PoolStats.DestroyedConns)
}

func TestClient_AcquireTimeout(t *testing.T) {
	kv := testutils.NewKV()
	client, _ := newTestClient(t, kv.Handle, Config{MaxSize: 1, AcquireTimeout: 20 * time.Millisecond})

	held, err := client.serverPool.Pool().Acquire(context.Background())
	require.NoError(t, err)
	defer held.Release()

	start := time.Now()
	err = client.Ping(context.Background())
	assert.ErrorIs(t, err, ErrPoolExhausted)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, uint64(1), client.Stats().Errors)
}

func TestClient_DialFailure(t *testing.T) {
	server := testutils.NewServer(t, testutils.NewKV().Handle)
	addr := server.Addr
	server.Close()

	client, err := NewClient(addr, Config{})
	require.NoError(t, err)
	defer client.Close()

	err = client.Ping(context.Background())
	var ce *resp.ConnectionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "dial", ce.Op)
}

func TestClient_HealthCheckEvictsIdle(t *testing.T) {
	kv := testutils.NewKV()
	client, server := newTestClient(t, kv.Handle, Config{
		MaxConnIdleTime:     10 * time.Millisecond,
		HealthCheckInterval: 20 * time.Millisecond,
	})

	require.NoError(t, client.Ping(context.Background()))
	assert.Equal(t, int32(1), client.PoolStats().PoolStats.TotalConns)

	require.Eventually(t, func() bool {
		return client.PoolStats().PoolStats.TotalConns == 0 && server.Connected() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestClient_HealthCheckEvictsBroken(t *testing.T) {
	kv := testutils.NewKV()
	client, server := newTestClient(t, kv.Handle, Config{HealthCheckInterval: 20 * time.Millisecond})

	require.NoError(t, client.Ping(context.Background()))
	server.DropConnections()

	require.Eventually(t, func() bool {
		return client.PoolStats().PoolStats.TotalConns == 0
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, client.Ping(context.Background()))
}

func TestClient_Stats(t *testing.T) {
	kv := testutils.NewKV()
	client, _ := newTestClient(t, kv.Handle, Config{})
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, Item{Key: "k", Value: []byte("v")}))
	_, _ = client.Get(ctx, "k")
	_, _ = client.Get(ctx, "missing")
	_, _ = client.Execute(ctx, MustCommand(resp.ParseFrame, "NOPE"))

	_, err := Do(ctx, client, MustCommand(resp.ParseInt64, "GET", "k"))
	var tm *resp.TypeMismatchError
	require.ErrorAs(t, err, &tm)

	p := client.Pipeline()
	Queue(p, Ping())
	Queue(p, Ping())
	require.NoError(t, p.Exec(ctx))

	// A reply the parser rejects is not a client error.
	assert.Equal(t, ClientStats{
		Commands:     7,
		Pipelines:    1,
		Gets:         2,
		GetHits:      1,
		ServerErrors: 1,
	}, client.Stats())
}

func TestClient_Close(t *testing.T) {
	kv := testutils.NewKV()
	client, server := newTestClient(t, kv.Handle, Config{HealthCheckInterval: time.Hour})

	require.NoError(t, client.Ping(context.Background()))
	client.Close()
	client.Close()

	assert.ErrorIs(t, client.Ping(context.Background()), ErrPoolClosed)
	require.Eventually(t, func() bool { return server.Connected() == 0 }, time.Second, 5*time.Millisecond)
}

func TestClient_PuddlePool(t *testing.T) {
	kv := testutils.NewKV()
	client, server := newTestClient(t, kv.Handle, Config{Pool: NewPuddlePool, MaxSize: 2})
	ctx := context.Background()

	for range 10 {
		_, err := client.Increment(ctx, "n", 1)
		require.NoError(t, err)
	}
	item, err := client.Get(ctx, "n")
	require.NoError(t, err)
	assert.Equal(t, "10", string(item.Value))
	assert.Equal(t, 1, server.Accepted())
}

func TestClient_WithMockConstructor(t *testing.T) {
	mock := testutils.NewConnectionMock("+PONG\r\n")
	client, err := NewClient("mock:6379", Config{
		constructor: func(ctx context.Context) (*Connection, error) {
			return NewConnection(mock, ConnectionConfig{}), nil
		},
	})
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Ping(context.Background()))
	assert.Equal(t, "*1\r\n$4\r\nPING\r\n", mock.GetWrittenRequest())
	assert.Equal(t, "mock:6379", client.Address())
}
