package testutils

import (
	"bufio"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/pior/redis/resp"
)

// Handler answers one command with the raw bytes to write back.
// Returning nil closes the connection without replying.
type Handler func(args []string) []byte

// Server is an in-process RESP server for tests.
type Server struct {
	Addr string

	listener net.Listener
	handler  Handler
	accepted atomic.Int64

	mu    sync.Mutex
	conns map[net.Conn]struct{}
	wg    sync.WaitGroup
}

// NewServer starts a server on a random local port. It is stopped when the
// test ends.
func NewServer(t testing.TB, handler Handler) *Server {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to start test server: %v", err)
	}

	s := &Server{
		Addr:     listener.Addr().String(),
		listener: listener,
		handler:  handler,
		conns:    make(map[net.Conn]struct{}),
	}

	s.wg.Add(1)
	go s.acceptLoop()

	t.Cleanup(s.Close)
	return s
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		s.accepted.Add(1)

		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go s.serve(conn)
	}
}

func (s *Server) serve(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	r := bufio.NewReader(conn)
	for {
		frame, err := resp.ReadFrame(r)
		if err != nil {
			return
		}

		args := make([]string, len(frame.Array))
		for i, a := range frame.Array {
			args[i] = string(a.Bulk)
		}

		reply := s.handler(args)
		if reply == nil {
			return
		}
		if _, err := conn.Write(reply); err != nil {
			return
		}
	}
}

// Accepted returns the number of connections accepted so far.
func (s *Server) Accepted() int {
	return int(s.accepted.Load())
}

// Connected returns the number of connections currently open.
func (s *Server) Connected() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// DropConnections closes every open connection from the server side.
func (s *Server) DropConnections() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		conn.Close()
	}
}

// Close stops accepting, drops open connections and waits for handlers.
func (s *Server) Close() {
	_ = s.listener.Close()
	s.DropConnections()
	s.wg.Wait()
}

// Reply helpers

func Frame(f resp.Frame) []byte { return resp.AppendFrame(nil, f) }

func OK() []byte { return []byte("+OK\r\n") }

func Status(s string) []byte { return Frame(resp.SimpleStringFrame(s)) }

func Err(msg string) []byte { return Frame(resp.ErrorFrame(msg)) }

func Int(n int64) []byte { return Frame(resp.IntegerFrame(n)) }

func Bulk(s string) []byte { return Frame(resp.BulkFrame([]byte(s))) }

func Null() []byte { return Frame(resp.NullBulkFrame()) }

// KV is a minimal in-memory keyspace answering the commands the client
// issues: strings, counters and hashes. Expirations are accepted and ignored.
type KV struct {
	mu       sync.Mutex
	strings  map[string]string
	hashes   map[string][]string // flat field/value list, insertion order
	Password string
	Commands []string // command names received, in order
}

func NewKV() *KV {
	return &KV{
		strings: make(map[string]string),
		hashes:  make(map[string][]string),
	}
}

// Handle implements Handler.
func (kv *KV) Handle(args []string) []byte {
	kv.mu.Lock()
	defer kv.mu.Unlock()

	if len(args) == 0 {
		return Err("ERR empty command")
	}
	name := strings.ToUpper(args[0])
	args = args[1:]
	kv.Commands = append(kv.Commands, name)

	switch name {
	case "PING":
		return Status("PONG")
	case "ECHO":
		return Bulk(args[0])
	case "AUTH":
		if args[len(args)-1] != kv.Password {
			return Err("WRONGPASS invalid username-password pair")
		}
		return OK()
	case "SELECT":
		return OK()
	case "GET":
		v, ok := kv.strings[args[0]]
		if !ok {
			return Null()
		}
		return Bulk(v)
	case "SET":
		_, exists := kv.strings[args[0]]
		for _, opt := range args[2:] {
			if strings.EqualFold(opt, "NX") && exists {
				return Null()
			}
		}
		kv.strings[args[0]] = args[1]
		return OK()
	case "DEL":
		var n int64
		for _, k := range args {
			if _, ok := kv.strings[k]; ok {
				n++
			}
			if _, ok := kv.hashes[k]; ok {
				n++
			}
			delete(kv.strings, k)
			delete(kv.hashes, k)
		}
		return Int(n)
	case "EXISTS":
		var n int64
		for _, k := range args {
			if _, ok := kv.strings[k]; ok {
				n++
			}
		}
		return Int(n)
	case "INCR", "INCRBY":
		delta := int64(1)
		if name == "INCRBY" {
			d, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return Err("ERR value is not an integer or out of range")
			}
			delta = d
		}
		cur, _ := strconv.ParseInt(kv.strings[args[0]], 10, 64)
		if v, ok := kv.strings[args[0]]; ok {
			if _, err := strconv.ParseInt(v, 10, 64); err != nil {
				return Err("ERR value is not an integer or out of range")
			}
		}
		cur += delta
		kv.strings[args[0]] = strconv.FormatInt(cur, 10)
		return Int(cur)
	case "EXPIRE":
		_, ok := kv.strings[args[0]]
		if ok {
			return Int(1)
		}
		return Int(0)
	case "HSET":
		flat := kv.hashes[args[0]]
		var added int64
		for i := 1; i+1 < len(args); i += 2 {
			found := false
			for j := 0; j < len(flat); j += 2 {
				if flat[j] == args[i] {
					flat[j+1] = args[i+1]
					found = true
				}
			}
			if !found {
				flat = append(flat, args[i], args[i+1])
				added++
			}
		}
		kv.hashes[args[0]] = flat
		return Int(added)
	case "HGET":
		flat := kv.hashes[args[0]]
		for j := 0; j < len(flat); j += 2 {
			if flat[j] == args[1] {
				return Bulk(flat[j+1])
			}
		}
		return Null()
	case "HGETALL":
		flat := kv.hashes[args[0]]
		elems := make([]resp.Frame, len(flat))
		for i, s := range flat {
			elems[i] = resp.BulkFrame([]byte(s))
		}
		return Frame(resp.ArrayFrame(elems...))
	case "MGET":
		elems := make([]resp.Frame, len(args))
		for i, k := range args {
			if v, ok := kv.strings[k]; ok {
				elems[i] = resp.BulkFrame([]byte(v))
			} else {
				elems[i] = resp.NullBulkFrame()
			}
		}
		return Frame(resp.ArrayFrame(elems...))
	default:
		return Err("ERR unknown command '" + strings.ToLower(name) + "'")
	}
}

// Received returns a copy of the command names received so far.
func (kv *KV) Received() []string {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	return append([]string(nil), kv.Commands...)
}
