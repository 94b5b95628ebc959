package resp

import (
	"fmt"
	"strconv"
)

// Parser turns one reply frame into a typed result.
//
// Parsers are pure: they do not keep the frame and never touch the
// connection. An Error frame always yields a *ServerError; a frame of an
// unexpected kind yields a *TypeMismatchError.
type Parser[T any] func(Frame) (T, error)

// Maybe holds a result that may be absent: a null bulk string or a null
// array decodes to Found == false, which is not an error.
type Maybe[T any] struct {
	Value T
	Found bool
}

// Some returns a present value.
func Some[T any](v T) Maybe[T] {
	return Maybe[T]{Value: v, Found: true}
}

// Pair is one field/value entry of a flat map reply.
type Pair[V any] struct {
	Key   string
	Value V
}

// Pairs is an ordered field/value sequence, in the order the server sent it.
// Duplicate keys are kept as sent.
type Pairs[V any] []Pair[V]

// Map returns the pairs as a Go map. When a key appears more than once the
// last occurrence wins.
func (p Pairs[V]) Map() map[string]V {
	m := make(map[string]V, len(p))
	for _, kv := range p {
		m[kv.Key] = kv.Value
	}
	return m
}

// Get returns the value of the last pair with the given key.
func (p Pairs[V]) Get(key string) (V, bool) {
	for i := len(p) - 1; i >= 0; i-- {
		if p[i].Key == key {
			return p[i].Value, true
		}
	}
	var zero V
	return zero, false
}

// Keys returns the keys in wire order.
func (p Pairs[V]) Keys() []string {
	keys := make([]string, len(p))
	for i, kv := range p {
		keys[i] = kv.Key
	}
	return keys
}

// Deserializer materializes a user-defined type from the field/value pairs of
// a flat map reply. dst is a non-nil pointer to the target value.
//
// How fields map to members (name casing, missing or extra fields) is
// entirely up to the implementation.
type Deserializer interface {
	Deserialize(fields Pairs[[]byte], dst any) error
}

// DeserializerFunc adapts a function to the Deserializer interface.
type DeserializerFunc func(fields Pairs[[]byte], dst any) error

func (f DeserializerFunc) Deserialize(fields Pairs[[]byte], dst any) error {
	return f(fields, dst)
}

func expect(f Frame, kinds ...Kind) error {
	if f.Kind == Error {
		return f.Err()
	}
	for _, k := range kinds {
		if f.Kind == k {
			return nil
		}
	}
	return &TypeMismatchError{Expected: kinds, Got: f.Kind}
}

// ParseFrame returns the frame unchanged, Error frames included.
func ParseFrame(f Frame) (Frame, error) {
	return f, nil
}

// ParseStatus accepts a simple string reply such as +OK or +PONG.
// A non-null bulk string is accepted too.
func ParseStatus(f Frame) (string, error) {
	if err := expect(f, SimpleString, BulkString); err != nil {
		return "", err
	}
	if f.Kind == BulkString {
		if f.Null {
			return "", &TypeMismatchError{Expected: []Kind{SimpleString}, Got: BulkString}
		}
		return string(f.Bulk), nil
	}
	return f.Str, nil
}

// ParseOK succeeds only on the +OK status reply.
func ParseOK(f Frame) (struct{}, error) {
	s, err := ParseStatus(f)
	if err != nil {
		return struct{}{}, err
	}
	if s != "OK" {
		return struct{}{}, &UnexpectedStatusError{Expected: "OK", Got: s}
	}
	return struct{}{}, nil
}

func ParseInt64(f Frame) (int64, error) {
	if err := expect(f, Integer); err != nil {
		return 0, err
	}
	return f.Int, nil
}

// ParseBool reads an integer reply: 0 is false, anything else is true.
func ParseBool(f Frame) (bool, error) {
	n, err := ParseInt64(f)
	return n != 0, err
}

// ParseString reads a bulk string as UTF-8 text. A null bulk string is a
// miss. Simple strings are accepted as present values.
func ParseString(f Frame) (Maybe[string], error) {
	if err := expect(f, BulkString, SimpleString); err != nil {
		return Maybe[string]{}, err
	}
	if f.Kind == SimpleString {
		return Some(f.Str), nil
	}
	if f.Null {
		return Maybe[string]{}, nil
	}
	return Some(string(f.Bulk)), nil
}

// ParseBytes reads a bulk string as raw bytes. A null bulk string is a miss.
func ParseBytes(f Frame) (Maybe[[]byte], error) {
	if err := expect(f, BulkString); err != nil {
		return Maybe[[]byte]{}, err
	}
	if f.Null {
		return Maybe[[]byte]{}, nil
	}
	return Some(f.Bulk), nil
}

// ParseInt64String reads an integer carried in a bulk string, as returned by
// GET on a counter key.
func ParseInt64String(f Frame) (Maybe[int64], error) {
	s, err := ParseString(f)
	if err != nil || !s.Found {
		return Maybe[int64]{}, err
	}
	n, err := strconv.ParseInt(s.Value, 10, 64)
	if err != nil {
		return Maybe[int64]{}, fmt.Errorf("resp: parse integer reply: %w", err)
	}
	return Some(n), nil
}

// ParseStringMap reads a flat array of alternating key and value bulk
// strings. A null array is a miss; an empty array is an empty, found map.
func ParseStringMap(f Frame) (Maybe[Pairs[string]], error) {
	return parseMap(f, func(b []byte) string { return string(b) })
}

// ParseBytesMap is ParseStringMap keeping values as raw bytes.
func ParseBytesMap(f Frame) (Maybe[Pairs[[]byte]], error) {
	return parseMap(f, func(b []byte) []byte { return b })
}

func parseMap[V any](f Frame, value func([]byte) V) (Maybe[Pairs[V]], error) {
	if err := expect(f, Array); err != nil {
		return Maybe[Pairs[V]]{}, err
	}
	if f.Null {
		return Maybe[Pairs[V]]{}, nil
	}
	if len(f.Array)%2 != 0 {
		return Maybe[Pairs[V]]{}, &MapParityError{Message: fmt.Sprintf("odd element count %d", len(f.Array))}
	}

	pairs := make(Pairs[V], 0, len(f.Array)/2)
	for i := 0; i < len(f.Array); i += 2 {
		k, v := f.Array[i], f.Array[i+1]
		if k.Kind != BulkString || k.Null {
			return Maybe[Pairs[V]]{}, &MapParityError{Message: fmt.Sprintf("key %d is %s, want non-null bulk-string", i/2, k.Kind)}
		}
		if v.Kind != BulkString || v.Null {
			return Maybe[Pairs[V]]{}, &MapParityError{Message: fmt.Sprintf("value %d is %s, want non-null bulk-string", i/2, v.Kind)}
		}
		pairs = append(pairs, Pair[V]{Key: string(k.Bulk), Value: value(v.Bulk)})
	}
	return Some(pairs), nil
}

// ParseObject materializes a flat map reply into T through d.
// A null array is a miss; an empty array still invokes d with no fields.
func ParseObject[T any](d Deserializer) Parser[Maybe[T]] {
	return func(f Frame) (Maybe[T], error) {
		var v T
		found, err := decodeObject(d, f, &v)
		if err != nil || !found {
			return Maybe[T]{}, err
		}
		return Some(v), nil
	}
}

// ParseObjectInto decodes a map reply into dst through d. It reports false,
// leaving dst untouched, when the reply is null or holds no field.
func ParseObjectInto(d Deserializer, dst any) Parser[bool] {
	return func(f Frame) (bool, error) {
		if f.Kind == Array && !f.Null && len(f.Array) == 0 {
			return false, nil
		}
		return decodeObject(d, f, dst)
	}
}

func decodeObject(d Deserializer, f Frame, dst any) (bool, error) {
	fields, err := ParseBytesMap(f)
	if err != nil || !fields.Found {
		return false, err
	}
	if err := d.Deserialize(fields.Value, dst); err != nil {
		return false, &DeserializeError{Err: err}
	}
	return true, nil
}

// ParseFrames returns the elements of an array reply as they are, for
// replies whose elements have mixed kinds.
func ParseFrames(f Frame) (Maybe[[]Frame], error) {
	if err := expect(f, Array); err != nil {
		return Maybe[[]Frame]{}, err
	}
	if f.Null {
		return Maybe[[]Frame]{}, nil
	}
	return Some(f.Array), nil
}

// ParseStrings reads an array of bulk strings where each element may be null,
// as returned by MGET or HMGET. A null array yields nil.
func ParseStrings(f Frame) ([]Maybe[string], error) {
	if err := expect(f, Array); err != nil {
		return nil, err
	}
	if f.Null {
		return nil, nil
	}
	out := make([]Maybe[string], len(f.Array))
	for i, e := range f.Array {
		v, err := ParseString(e)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
