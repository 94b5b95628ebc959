package resp

import (
	"bufio"
	"bytes"
	"testing"
)

func FuzzReadFrame(f *testing.F) {
	seeds := []string{
		"+OK\r\n",
		"-ERR boom\r\n",
		":123\r\n",
		"$3\r\nfoo\r\n",
		"$-1\r\n",
		"*-1\r\n",
		"*0\r\n",
		"*2\r\n$1\r\na\r\n:1\r\n",
		"*1\r\n*1\r\n*1\r\n+deep\r\n",
		"$5\r\nab",
		"?\r\n",
	}
	for _, s := range seeds {
		f.Add([]byte(s))
	}

	f.Fuzz(func(t *testing.T, data []byte) {
		frame, err := ReadFrame(bufio.NewReader(bytes.NewReader(data)))
		if err != nil {
			if !ShouldCloseConnection(err) {
				t.Fatalf("decode error must close the connection: %v", err)
			}
			return
		}

		// Whatever decodes must re-encode to a stream that decodes the same.
		encoded := AppendFrame(nil, frame)
		again, err := ReadFrame(bufio.NewReader(bytes.NewReader(encoded)))
		if err != nil {
			t.Fatalf("re-decode %q: %v", encoded, err)
		}
		if again.String() != frame.String() {
			t.Fatalf("round trip mismatch: %s != %s", again, frame)
		}
	})
}

func FuzzWriteCommand(f *testing.F) {
	f.Add("SET", []byte("key"), []byte("value"))
	f.Add("GET", []byte(""), []byte("\r\n"))

	f.Fuzz(func(t *testing.T, name string, a, b []byte) {
		var buf bytes.Buffer
		if err := WriteCommand(&buf, name, [][]byte{a, b}); err != nil {
			t.Fatal(err)
		}

		frame, err := ReadFrame(bufio.NewReader(&buf))
		if err != nil {
			t.Fatal(err)
		}
		if len(frame.Array) != 3 || string(frame.Array[0].Bulk) != name ||
			!bytes.Equal(frame.Array[1].Bulk, a) || !bytes.Equal(frame.Array[2].Bulk, b) {
			t.Fatalf("decoded %s", frame)
		}
	})
}
