package redis

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pior/redis/resp"
)

var (
	ErrEmptyCommandName = errors.New("redis: empty command name")
	ErrNilParser        = errors.New("redis: nil reply parser")
)

// Cmd is the untyped view of a command: what a Connection needs to put it on
// the wire.
type Cmd interface {
	Name() string
	Args() [][]byte
}

// Command is an immutable command paired with the parser of its reply.
//
// Arguments are converted to bytes once, at construction. A Command can be
// sent any number of times, on any connection.
type Command[T any] struct {
	name  string
	args  [][]byte
	parse resp.Parser[T]
}

// ArgumentError reports an argument that cannot be encoded.
type ArgumentError struct {
	Command string
	Index   int
	Value   any
}

func (e *ArgumentError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("redis: %s: argument %d is nil", e.Command, e.Index)
	}
	return fmt.Sprintf("redis: %s: unsupported argument %d of type %T", e.Command, e.Index, e.Value)
}

// NewCommand builds a command.
//
// Supported argument types:
//   - string and []byte, sent as is (a nil []byte is an empty string)
//   - signed and unsigned integers, floats, in decimal
//   - bool, as 1 or 0
//   - time.Duration, as whole seconds
//
// An untyped nil or any other type fails with *ArgumentError.
func NewCommand[T any](parser resp.Parser[T], name string, args ...any) (*Command[T], error) {
	if name == "" {
		return nil, ErrEmptyCommandName
	}
	if parser == nil {
		return nil, ErrNilParser
	}

	encoded := make([][]byte, len(args))
	for i, arg := range args {
		b, ok := encodeArg(arg)
		if !ok {
			return nil, &ArgumentError{Command: name, Index: i, Value: arg}
		}
		encoded[i] = b
	}

	return &Command[T]{name: name, args: encoded, parse: parser}, nil
}

// MustCommand is like NewCommand but panics on error. It is meant for
// commands built from constants.
func MustCommand[T any](parser resp.Parser[T], name string, args ...any) *Command[T] {
	cmd, err := NewCommand(parser, name, args...)
	if err != nil {
		panic(err)
	}
	return cmd
}

func encodeArg(arg any) ([]byte, bool) {
	switch v := arg.(type) {
	case string:
		return []byte(v), true
	case []byte:
		if v == nil {
			return []byte{}, true
		}
		return bytes.Clone(v), true
	case int:
		return strconv.AppendInt(nil, int64(v), 10), true
	case int8:
		return strconv.AppendInt(nil, int64(v), 10), true
	case int16:
		return strconv.AppendInt(nil, int64(v), 10), true
	case int32:
		return strconv.AppendInt(nil, int64(v), 10), true
	case int64:
		return strconv.AppendInt(nil, v, 10), true
	case uint:
		return strconv.AppendUint(nil, uint64(v), 10), true
	case uint8:
		return strconv.AppendUint(nil, uint64(v), 10), true
	case uint16:
		return strconv.AppendUint(nil, uint64(v), 10), true
	case uint32:
		return strconv.AppendUint(nil, uint64(v), 10), true
	case uint64:
		return strconv.AppendUint(nil, v, 10), true
	case float32:
		return strconv.AppendFloat(nil, float64(v), 'f', -1, 32), true
	case float64:
		return strconv.AppendFloat(nil, v, 'f', -1, 64), true
	case bool:
		if v {
			return []byte("1"), true
		}
		return []byte("0"), true
	case time.Duration:
		return strconv.AppendInt(nil, int64(v/time.Second), 10), true
	default:
		return nil, false
	}
}

func (c *Command[T]) Name() string {
	return c.name
}

// Args returns the encoded arguments. The slice must not be modified.
func (c *Command[T]) Args() [][]byte {
	return c.args
}

// Parse converts the reply frame of this command into its result.
func (c *Command[T]) Parse(f resp.Frame) (T, error) {
	return c.parse(f)
}

// String renders the command for logs, with arguments quoted.
func (c *Command[T]) String() string {
	var sb strings.Builder
	sb.WriteString(c.name)
	for _, a := range c.args {
		sb.WriteByte(' ')
		sb.WriteString(strconv.Quote(string(a)))
	}
	return sb.String()
}
