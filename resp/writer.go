package resp

import (
	"bufio"
	"io"
	"strconv"

	"github.com/pior/redis/internal"
)

// Typical command is well under 256 bytes.
var bufferPool = internal.NewBufferPool(256)

// AppendCommand appends the wire form of a command to dst and returns the
// extended slice.
//
// Format: *<argc>\r\n followed by $<len>\r\n<bytes>\r\n for the name and
// every argument. The name counts as argument 0.
func AppendCommand(dst []byte, name string, args [][]byte) []byte {
	dst = appendHeader(dst, Array, int64(len(args)+1))
	dst = appendHeader(dst, BulkString, int64(len(name)))
	dst = append(dst, name...)
	dst = append(dst, CRLF...)
	for _, arg := range args {
		dst = appendHeader(dst, BulkString, int64(len(arg)))
		dst = append(dst, arg...)
		dst = append(dst, CRLF...)
	}
	return dst
}

func appendHeader(dst []byte, kind Kind, n int64) []byte {
	dst = append(dst, byte(kind))
	dst = strconv.AppendInt(dst, n, 10)
	return append(dst, CRLF...)
}

// WriteCommand serializes a command and writes it to w.
//
// When w is a *bufio.Writer the bytes are written into its buffer and NOT
// flushed, so several commands can be pipelined before a single Flush.
// Other writers receive the whole command in one Write call.
func WriteCommand(w io.Writer, name string, args [][]byte) error {
	if bw, ok := w.(*bufio.Writer); ok {
		return writeCommandBuffered(bw, name, args)
	}

	buf := bufferPool.Get()
	defer bufferPool.Put(buf)

	b := AppendCommand(buf.AvailableBuffer(), name, args)
	_, err := w.Write(b)
	return err
}

// writeCommandBuffered writes headers through the bufio.Writer scratch space
// and payloads directly, so large arguments are never copied twice.
func writeCommandBuffered(bw *bufio.Writer, name string, args [][]byte) error {
	if _, err := bw.Write(appendHeader(bw.AvailableBuffer(), Array, int64(len(args)+1))); err != nil {
		return err
	}
	if _, err := bw.Write(appendHeader(bw.AvailableBuffer(), BulkString, int64(len(name)))); err != nil {
		return err
	}
	bw.WriteString(name)
	if _, err := bw.WriteString(CRLF); err != nil {
		return err
	}

	for _, arg := range args {
		if _, err := bw.Write(appendHeader(bw.AvailableBuffer(), BulkString, int64(len(arg)))); err != nil {
			return err
		}
		bw.Write(arg)
		if _, err := bw.WriteString(CRLF); err != nil {
			return err
		}
	}
	return nil
}

// AppendFrame appends the wire form of any frame to dst.
func AppendFrame(dst []byte, f Frame) []byte {
	switch f.Kind {
	case SimpleString, Error:
		dst = append(dst, byte(f.Kind))
		dst = append(dst, f.Str...)
		return append(dst, CRLF...)
	case Integer:
		return appendHeader(dst, Integer, f.Int)
	case BulkString:
		if f.Null {
			return appendHeader(dst, BulkString, NullLength)
		}
		dst = appendHeader(dst, BulkString, int64(len(f.Bulk)))
		dst = append(dst, f.Bulk...)
		return append(dst, CRLF...)
	case Array:
		if f.Null {
			return appendHeader(dst, Array, NullLength)
		}
		dst = appendHeader(dst, Array, int64(len(f.Array)))
		for _, e := range f.Array {
			dst = AppendFrame(dst, e)
		}
		return dst
	default:
		return dst
	}
}

// WriteFrame serializes f and writes it to w in one Write call.
// It is mostly useful for servers and test doubles.
func WriteFrame(w io.Writer, f Frame) error {
	buf := bufferPool.Get()
	defer bufferPool.Put(buf)

	_, err := w.Write(AppendFrame(buf.AvailableBuffer(), f))
	return err
}
