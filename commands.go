package redis

import (
	"time"

	"github.com/pior/redis/resp"
)

// NoTTL stores a key without expiration.
const NoTTL = 0

// Ping returns the PONG status.
func Ping() *Command[string] {
	return MustCommand(resp.ParseStatus, "PING")
}

func Echo(message string) *Command[resp.Maybe[string]] {
	return MustCommand(resp.ParseString, "ECHO", message)
}

// Get returns the value of key, or Found == false for a missing key.
func Get(key string) *Command[resp.Maybe[[]byte]] {
	return MustCommand(resp.ParseBytes, "GET", key)
}

// Set stores value under key. A positive ttl sets the expiration, in
// milliseconds when ttl is not a whole number of seconds.
func Set(key string, value []byte, ttl time.Duration) *Command[struct{}] {
	return MustCommand(resp.ParseOK, "SET", appendTTL([]any{key, value}, ttl)...)
}

// SetNX stores value only if key does not exist. It reports whether the value
// was stored.
func SetNX(key string, value []byte, ttl time.Duration) *Command[bool] {
	return MustCommand(parseSetNX, "SET", appendTTL([]any{key, value, "NX"}, ttl)...)
}

func appendTTL(args []any, ttl time.Duration) []any {
	switch {
	case ttl <= 0:
		return args
	case ttl%time.Second == 0:
		return append(args, "EX", int64(ttl/time.Second))
	default:
		return append(args, "PX", max(int64(ttl/time.Millisecond), 1))
	}
}

// parseSetNX reads the reply of SET ... NX: +OK when stored, a null bulk
// string when the key already existed.
func parseSetNX(f resp.Frame) (bool, error) {
	if f.Kind == resp.BulkString && f.Null {
		return false, nil
	}
	_, err := resp.ParseOK(f)
	return err == nil, err
}

// Del returns the number of keys removed.
func Del(keys ...string) *Command[int64] {
	return MustCommand(resp.ParseInt64, "DEL", stringArgs(keys)...)
}

// Exists returns how many of the keys exist.
func Exists(keys ...string) *Command[int64] {
	return MustCommand(resp.ParseInt64, "EXISTS", stringArgs(keys)...)
}

func Incr(key string) *Command[int64] {
	return MustCommand(resp.ParseInt64, "INCR", key)
}

func IncrBy(key string, delta int64) *Command[int64] {
	return MustCommand(resp.ParseInt64, "INCRBY", key, delta)
}

// Expire sets a timeout in whole seconds. It reports whether the key exists.
func Expire(key string, ttl time.Duration) *Command[bool] {
	return MustCommand(resp.ParseBool, "EXPIRE", key, ttl)
}

// HSet sets fields of the hash at key and returns the number of fields added.
func HSet(key string, fields resp.Pairs[[]byte]) *Command[int64] {
	args := make([]any, 0, 1+2*len(fields))
	args = append(args, key)
	for _, kv := range fields {
		args = append(args, kv.Key, kv.Value)
	}
	return MustCommand(resp.ParseInt64, "HSET", args...)
}

func HGet(key, field string) *Command[resp.Maybe[string]] {
	return MustCommand(resp.ParseString, "HGET", key, field)
}

// HGetAll returns the fields of the hash at key in server order.
// A missing key is an empty, found hash.
func HGetAll(key string) *Command[resp.Maybe[resp.Pairs[string]]] {
	return MustCommand(resp.ParseStringMap, "HGETALL", key)
}

func HGetAllBytes(key string) *Command[resp.Maybe[resp.Pairs[[]byte]]] {
	return MustCommand(resp.ParseBytesMap, "HGETALL", key)
}

// HGetAllInto decodes the hash at key into a T through d.
func HGetAllInto[T any](key string, d resp.Deserializer) *Command[resp.Maybe[T]] {
	return MustCommand(resp.ParseObject[T](d), "HGETALL", key)
}

// LoadInto decodes the hash at key into dst through d. The result is false
// when the hash is empty or missing.
func LoadInto(key string, d resp.Deserializer, dst any) *Command[bool] {
	return MustCommand(resp.ParseObjectInto(d, dst), "HGETALL", key)
}

// MGet returns one entry per key, Found == false for missing keys.
func MGet(keys ...string) *Command[[]resp.Maybe[string]] {
	return MustCommand(resp.ParseStrings, "MGET", stringArgs(keys)...)
}

func Select(db int) *Command[struct{}] {
	return MustCommand(resp.ParseOK, "SELECT", db)
}

// Auth authenticates the connection. An empty username uses the legacy
// single-password form.
func Auth(username, password string) *Command[struct{}] {
	if username == "" {
		return MustCommand(resp.ParseOK, "AUTH", password)
	}
	return MustCommand(resp.ParseOK, "AUTH", username, password)
}

func stringArgs(s []string) []any {
	args := make([]any, len(s))
	for i, v := range s {
		args[i] = v
	}
	return args
}
