// Package resp implements the client side of the RESP wire protocol: command
// encoding, frame decoding and typed reply parsing.
//
// The package holds no connection or pooling logic. It is the foundation of
// the pooled client in the parent package and can be used on its own with
// any byte stream.
//
// # Frames
//
// Frame is a closed tagged variant over the five RESP2 kinds: SimpleString,
// Error, Integer, BulkString and Array. A bulk string or an array may be
// null (declared length -1); a null value is distinct from an empty one.
//
// # Encoding and Decoding
//
// WriteCommand serializes a command as an array of bulk strings:
//
//	err := resp.WriteCommand(w, "SET", [][]byte{[]byte("k"), []byte("v")})
//	// *3\r\n$3\r\nSET\r\n$1\r\nk\r\n$1\r\nv\r\n
//
// ReadFrame decodes exactly one frame, recursing into arrays:
//
//	frame, err := resp.ReadFrame(bufio.NewReader(conn))
//	if err != nil {
//	    if resp.ShouldCloseConnection(err) {
//	        conn.Close()
//	    }
//	    return err
//	}
//
// An Error frame from the server is returned as a frame, not as a Go error:
// it is a command-level failure, and the stream is still usable.
//
// # Reply Parsers
//
// A Parser converts a frame into a typed result and rejects frames of the
// wrong shape with a TypeMismatchError:
//
//	n, err := resp.ParseInt64(frame)          // :42
//	v, err := resp.ParseString(frame)         // $5 hello, or $-1 (v.Found == false)
//	m, err := resp.ParseStringMap(frame)      // *4 k1 v1 k2 v2
//	u, err := resp.ParseObject[User](d)(frame)
//
// ParseObject hands the ordered field/value pairs of a flat map reply to a
// Deserializer; this package does not inspect user types.
//
// # Error Handling
//
// Every error type reports whether the connection must be discarded:
//
//   - ProtocolError: malformed stream, CLOSE
//   - ConnectionError: transport failure or timeout, CLOSE
//   - ServerError: error reply from the server, REUSE
//   - TypeMismatchError, MapParityError, UnexpectedStatusError: REUSE
//   - DeserializeError: REUSE
//
// Use ShouldCloseConnection to decide.
package resp
