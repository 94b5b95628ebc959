package resp

// Kind identifies the variant held by a Frame.
type Kind byte

// Type tags. The tag byte is the first byte of every frame header line.
const (
	SimpleString Kind = '+'
	Error        Kind = '-'
	Integer      Kind = ':'
	BulkString   Kind = '$'
	Array        Kind = '*'
)

func (k Kind) String() string {
	switch k {
	case SimpleString:
		return "simple-string"
	case Error:
		return "error"
	case Integer:
		return "integer"
	case BulkString:
		return "bulk-string"
	case Array:
		return "array"
	default:
		return "unknown(" + string(rune(k)) + ")"
	}
}

// Protocol delimiters
const (
	// CRLF terminates every header line and every bulk payload.
	CRLF = "\r\n"
)

// NullLength is the declared length of a null bulk string or a null array.
const NullLength = -1

// Size limits applied while decoding. A declared length above these limits
// is treated as a protocol violation instead of being allocated.
const (
	// MaxBulkLength matches the server's default proto-max-bulk-len (512MB).
	MaxBulkLength = 512 * 1024 * 1024

	// MaxArrayLength bounds the declared element count of a single array.
	MaxArrayLength = 1<<31 - 1

	// arrayPreallocLimit caps the capacity reserved up front for an array;
	// larger arrays grow as elements are actually decoded.
	arrayPreallocLimit = 1024

	// bulkPreallocLimit caps the buffer reserved up front for a bulk string;
	// larger payloads grow as bytes are actually received.
	bulkPreallocLimit = 1 << 20
)
