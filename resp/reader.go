package resp

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
)

var crlfBytes = []byte(CRLF)

var errInvalidNumber = errors.New("invalid number")

// ReadFrame reads exactly one frame from r, recursing into arrays.
//
// Go errors returned indicate the connection can no longer be used:
//   - ConnectionError: the stream failed or was closed before the frame began
//   - ProtocolError: malformed or truncated frame
//
// An Error frame sent by the server is NOT a Go error here: it is returned as
// a Frame of Kind Error and left to the reply parser.
//
// Performance considerations:
//   - Header lines are read with ReadSlice and parsed in place
//   - Bulk payload and its CRLF are read in a single ReadFull
func ReadFrame(r *bufio.Reader) (Frame, error) {
	return readFrame(r, false)
}

func readFrame(r *bufio.Reader, nested bool) (Frame, error) {
	line, err := readLine(r, nested)
	if err != nil {
		return Frame{}, err
	}

	if len(line) == 0 {
		return Frame{}, &ProtocolError{Message: "empty header line"}
	}

	kind := Kind(line[0])
	payload := line[1:]

	switch kind {
	case SimpleString, Error:
		return Frame{Kind: kind, Str: string(payload)}, nil

	case Integer:
		n, err := parseInt(payload)
		if err != nil {
			return Frame{}, &ProtocolError{Message: fmt.Sprintf("invalid integer %q", payload), Err: err}
		}
		return Frame{Kind: Integer, Int: n}, nil

	case BulkString:
		n, err := parseLength(payload, "bulk length", MaxBulkLength)
		if err != nil {
			return Frame{}, err
		}
		if n == NullLength {
			return NullBulkFrame(), nil
		}
		return readBulk(r, int(n))

	case Array:
		n, err := parseLength(payload, "array length", MaxArrayLength)
		if err != nil {
			return Frame{}, err
		}
		if n == NullLength {
			return NullArrayFrame(), nil
		}
		elems := make([]Frame, 0, min(int(n), arrayPreallocLimit))
		for i := int64(0); i < n; i++ {
			elem, err := readFrame(r, true)
			if err != nil {
				return Frame{}, err
			}
			elems = append(elems, elem)
		}
		return Frame{Kind: Array, Array: elems}, nil

	default:
		return Frame{}, &ProtocolError{Message: fmt.Sprintf("unknown type tag %q", line[0])}
	}
}

// readLine returns the next header line without its CRLF.
// The returned slice is only valid until the next read on r.
func readLine(r *bufio.Reader, nested bool) ([]byte, error) {
	line, err := r.ReadSlice('\n')
	if err == bufio.ErrBufferFull {
		// Line exceeds the buffer: ReadSlice already consumed the head, keep it.
		head := append([]byte(nil), line...)
		var rest []byte
		rest, err = r.ReadBytes('\n')
		line = append(head, rest...)
	}
	if err != nil {
		return nil, readError(err, nested || len(line) > 0)
	}

	if len(line) < 2 || line[len(line)-2] != '\r' {
		return nil, &ProtocolError{Message: "header line not terminated by CRLF"}
	}
	return line[:len(line)-2], nil
}

func readBulk(r *bufio.Reader, n int) (Frame, error) {
	data, err := readPayload(r, n+2)
	if err != nil {
		return Frame{}, readError(err, true)
	}
	if !bytes.HasSuffix(data, crlfBytes) {
		return Frame{}, &ProtocolError{Message: "bulk payload not terminated by CRLF"}
	}
	return Frame{Kind: BulkString, Bulk: data[:n:n]}, nil
}

func readPayload(r *bufio.Reader, size int) ([]byte, error) {
	if size <= bulkPreallocLimit {
		data := make([]byte, size)
		_, err := io.ReadFull(r, data)
		return data, err
	}

	data := make([]byte, 0, bulkPreallocLimit)
	for len(data) < size {
		chunk := min(size-len(data), bulkPreallocLimit)
		data = slices.Grow(data, chunk)
		m, err := io.ReadFull(r, data[len(data):len(data)+chunk])
		data = data[:len(data)+m]
		if err != nil {
			return nil, err
		}
	}
	return data, nil
}

// readError classifies a read failure. End of stream inside a frame means the
// declared lengths cannot be satisfied; end of stream between frames is a
// plain remote close.
func readError(err error, midFrame bool) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		if midFrame {
			return &ProtocolError{Message: "truncated frame", Err: io.ErrUnexpectedEOF}
		}
		return &ConnectionError{Op: "read", Err: io.EOF}
	}
	return &ConnectionError{Op: "read", Err: err}
}

func parseLength(b []byte, what string, limit int64) (int64, error) {
	n, err := parseInt(b)
	if err != nil {
		return 0, &ProtocolError{Message: fmt.Sprintf("invalid %s %q", what, b), Err: err}
	}
	if n < NullLength {
		return 0, &ProtocolError{Message: fmt.Sprintf("negative %s %d", what, n)}
	}
	if n > limit {
		return 0, &ProtocolError{Message: fmt.Sprintf("%s %d exceeds limit %d", what, n, limit)}
	}
	return n, nil
}

// parseInt parses a signed decimal without allocating.
func parseInt(b []byte) (int64, error) {
	if len(b) > 20 {
		// Out of the fast path: let strconv report range or syntax errors.
		return strconv.ParseInt(string(b), 10, 64)
	}

	digits := b
	neg := false
	if len(digits) > 0 && (digits[0] == '-' || digits[0] == '+') {
		neg = digits[0] == '-'
		digits = digits[1:]
	}
	if len(digits) == 0 {
		return 0, errInvalidNumber
	}
	if len(digits) > 19 {
		return strconv.ParseInt(string(b), 10, 64)
	}

	var n uint64
	for _, c := range digits {
		if c < '0' || c > '9' {
			return 0, errInvalidNumber
		}
		n = n*10 + uint64(c-'0')
	}

	if neg {
		if n > 1<<63 {
			return 0, strconv.ErrRange
		}
		return -int64(n), nil
	}
	if n > 1<<63-1 {
		return 0, strconv.ErrRange
	}
	return int64(n), nil
}
