// Package redis is a pooled client for servers speaking the RESP protocol.
//
// The wire format lives in the resp subpackage. This package adds
// connections, bounded pools, pipelining and typed commands on top of it.
//
// # Commands
//
// A Command pairs the encoded arguments with the parser of its reply, so the
// result type is known at compile time:
//
//	client, err := redis.NewClient("localhost:6379", redis.Config{MaxSize: 16})
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	n, err := redis.Do(ctx, client, redis.Incr("visits"))
//	v, err := redis.Do(ctx, client, redis.Get("greeting")) // v.Found, v.Value
//
//	cmd, err := redis.NewCommand(resp.ParseInt64, "ZCARD", "leaderboard")
//
// # Pipelining
//
// Commands queued on a Pipeline are written together on one connection and
// their replies matched by position:
//
//	p := client.Pipeline()
//	a := redis.Queue(p, redis.Incr("a"))
//	b := redis.Queue(p, redis.Get("b"))
//	err := p.Exec(ctx)
//
// # Errors
//
// Error replies are returned as *resp.ServerError and leave the connection in
// the pool. Transport and protocol failures destroy the connection they
// happened on; no command is retried. Use resp.IsRetryable to decide.
//
// When no connection becomes available in time, commands fail with an error
// matching ErrPoolExhausted.
package redis
