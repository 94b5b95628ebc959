package resp

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func args(s ...string) [][]byte {
	out := make([][]byte, len(s))
	for i, a := range s {
		out[i] = []byte(a)
	}
	return out
}

func TestWriteCommand(t *testing.T) {
	tests := []struct {
		name     string
		cmd      string
		args     [][]byte
		expected string
	}{
		{
			name:     "no arguments",
			cmd:      "PING",
			expected: "*1\r\n$4\r\nPING\r\n",
		},
		{
			name:     "set",
			cmd:      "SET",
			args:     args("k", "v"),
			expected: "*3\r\n$3\r\nSET\r\n$1\r\nk\r\n$1\r\nv\r\n",
		},
		{
			name:     "empty argument",
			cmd:      "SET",
			args:     args("k", ""),
			expected: "*3\r\n$3\r\nSET\r\n$1\r\nk\r\n$0\r\n\r\n",
		},
		{
			name:     "argument with delimiters",
			cmd:      "ECHO",
			args:     args("a\r\nb"),
			expected: "*2\r\n$4\r\nECHO\r\n$4\r\na\r\nb\r\n",
		},
		{
			name:     "binary argument",
			cmd:      "SET",
			args:     [][]byte{[]byte("k"), {0x00, 0xff, '\n'}},
			expected: "*3\r\n$3\r\nSET\r\n$1\r\nk\r\n$3\r\n\x00\xff\n\r\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, WriteCommand(&buf, tt.cmd, tt.args))
			assert.Equal(t, tt.expected, buf.String())

			// Buffered path must produce the same bytes, and must not flush.
			var out bytes.Buffer
			bw := bufio.NewWriter(&out)
			require.NoError(t, WriteCommand(bw, tt.cmd, tt.args))
			assert.Zero(t, out.Len(), "buffered write should not flush")
			require.NoError(t, bw.Flush())
			assert.Equal(t, tt.expected, out.String())

			assert.Equal(t, tt.expected, string(AppendCommand(nil, tt.cmd, tt.args)))
		})
	}
}

func TestWriteCommand_LargeArgumentThroughSmallBuffer(t *testing.T) {
	payload := bytes.Repeat([]byte("x"), 10_000)

	var out bytes.Buffer
	bw := bufio.NewWriterSize(&out, 16)
	require.NoError(t, WriteCommand(bw, "SET", [][]byte{[]byte("k"), payload}))
	require.NoError(t, bw.Flush())

	f, err := ReadFrame(bufio.NewReader(&out))
	require.NoError(t, err)
	require.Len(t, f.Array, 3)
	assert.Equal(t, payload, f.Array[2].Bulk)
}

func TestAppendFrame(t *testing.T) {
	tests := []struct {
		name     string
		frame    Frame
		expected string
	}{
		{"simple string", SimpleStringFrame("OK"), "+OK\r\n"},
		{"error", ErrorFrame("ERR boom"), "-ERR boom\r\n"},
		{"integer", IntegerFrame(-42), ":-42\r\n"},
		{"bulk", BulkFrame([]byte("hello")), "$5\r\nhello\r\n"},
		{"empty bulk", BulkFrame(nil), "$0\r\n\r\n"},
		{"null bulk", NullBulkFrame(), "$-1\r\n"},
		{"empty array", ArrayFrame(), "*0\r\n"},
		{"null array", NullArrayFrame(), "*-1\r\n"},
		{
			"nested array",
			ArrayFrame(IntegerFrame(1), ArrayFrame(BulkFrame([]byte("a")), NullBulkFrame())),
			"*2\r\n:1\r\n*2\r\n$1\r\na\r\n$-1\r\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, string(AppendFrame(nil, tt.frame)))

			var buf bytes.Buffer
			require.NoError(t, WriteFrame(&buf, tt.frame))
			assert.Equal(t, tt.expected, buf.String())
		})
	}
}

func TestCommandRoundTrip(t *testing.T) {
	cmdArgs := [][]byte{
		[]byte("plain"),
		[]byte(""),
		[]byte("\r\n"),
		[]byte("$3\r\nfoo\r\n"),
		{0, 1, 2, 3, 255},
		bytes.Repeat([]byte("ab\r\n"), 1000),
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCommand(&buf, "RPUSH", cmdArgs))

	f, err := ReadFrame(bufio.NewReader(&buf))
	require.NoError(t, err)
	require.Equal(t, Array, f.Kind)
	require.Len(t, f.Array, len(cmdArgs)+1)
	assert.Equal(t, []byte("RPUSH"), f.Array[0].Bulk)
	for i, arg := range cmdArgs {
		assert.Equal(t, BulkString, f.Array[i+1].Kind)
		assert.Equal(t, arg, f.Array[i+1].Bulk, "argument %d", i)
	}
	assert.Zero(t, buf.Len(), "decoder must consume exactly one frame")
}
