package resp

import (
	"strconv"
	"strings"
)

// Frame is one decoded unit of the wire protocol.
//
// Frame is a tagged variant: Kind selects which payload field is meaningful.
//
//   - SimpleString, Error: Str
//   - Integer: Int
//   - BulkString: Bulk, or Null for the absent value ($-1)
//   - Array: Array, or Null for the null array (*-1)
//
// A non-null Array with no elements is a valid empty result and is distinct
// from the null array.
type Frame struct {
	Kind  Kind
	Str   string
	Int   int64
	Bulk  []byte
	Array []Frame
	Null  bool
}

func SimpleStringFrame(s string) Frame { return Frame{Kind: SimpleString, Str: s} }

func ErrorFrame(msg string) Frame { return Frame{Kind: Error, Str: msg} }

func IntegerFrame(n int64) Frame { return Frame{Kind: Integer, Int: n} }

// BulkFrame returns a non-null bulk string. A nil slice is encoded as an
// empty bulk string, not as null; use NullBulkFrame for the absent value.
func BulkFrame(b []byte) Frame {
	if b == nil {
		b = []byte{}
	}
	return Frame{Kind: BulkString, Bulk: b}
}

func NullBulkFrame() Frame { return Frame{Kind: BulkString, Null: true} }

// ArrayFrame returns a non-null array holding elems.
func ArrayFrame(elems ...Frame) Frame {
	if elems == nil {
		elems = []Frame{}
	}
	return Frame{Kind: Array, Array: elems}
}

func NullArrayFrame() Frame { return Frame{Kind: Array, Null: true} }

// IsNull reports whether f is a null bulk string or a null array.
func (f Frame) IsNull() bool {
	return f.Null && (f.Kind == BulkString || f.Kind == Array)
}

// Err returns the ServerError carried by an Error frame, or nil.
func (f Frame) Err() error {
	if f.Kind != Error {
		return nil
	}
	return NewServerError(f.Str)
}

// String returns a compact, human readable rendering of the frame intended
// for logs and test failure messages.
func (f Frame) String() string {
	var sb strings.Builder
	f.format(&sb)
	return sb.String()
}

func (f Frame) format(sb *strings.Builder) {
	switch f.Kind {
	case SimpleString:
		sb.WriteString(f.Str)
	case Error:
		sb.WriteString("(error) ")
		sb.WriteString(f.Str)
	case Integer:
		sb.WriteString(strconv.FormatInt(f.Int, 10))
	case BulkString:
		if f.Null {
			sb.WriteString("(nil)")
			return
		}
		sb.WriteString(strconv.Quote(string(f.Bulk)))
	case Array:
		if f.Null {
			sb.WriteString("(nil array)")
			return
		}
		sb.WriteByte('[')
		for i, e := range f.Array {
			if i > 0 {
				sb.WriteByte(' ')
			}
			e.format(sb)
		}
		sb.WriteByte(']')
	default:
		sb.WriteString("(invalid)")
	}
}
