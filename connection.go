package redis

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/pior/redis/internal/coarsetime"
	"github.com/pior/redis/resp"
)

var (
	ErrConnectionClosed = errors.New("redis: connection closed")
	ErrPipelineFull     = errors.New("redis: pipeline full")
	ErrNoPendingCommand = errors.New("redis: no pending command")
	ErrConnectionBusy   = errors.New("redis: connection has outstanding commands")
)

// ConnState is the lifecycle state of a Connection.
type ConnState int32

const (
	// ConnIdle has no outstanding command.
	ConnIdle ConnState = iota
	// ConnBusy has at least one command sent and not yet answered.
	ConnBusy
	// ConnClosed is terminal.
	ConnClosed
)

func (s ConnState) String() string {
	switch s {
	case ConnIdle:
		return "idle"
	case ConnBusy:
		return "busy"
	case ConnClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// deadliner is implemented by net.Conn.
type deadliner interface {
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
}

// ConnectionConfig holds the per-connection I/O settings.
type ConnectionConfig struct {
	// ReadTimeout bounds every read of a reply. Zero means no limit.
	ReadTimeout time.Duration

	// WriteTimeout bounds every write and flush. Zero means no limit.
	WriteTimeout time.Duration

	// MaxPipeline is the number of commands that may be outstanding at once.
	// Values below 1 mean 1.
	MaxPipeline int
}

// Connection is a single RESP stream.
//
// A Connection carries one logical operation at a time and must not be used
// by two goroutines concurrently. The pool hands it to one caller at a time.
// Close may be called from any goroutine and interrupts blocked I/O.
//
// Replies are matched to commands by position: the stream is strictly FIFO.
type Connection struct {
	transport io.ReadWriteCloser
	deadlines deadliner // nil when the transport has no deadlines
	reader    *bufio.Reader
	writer    *bufio.Writer

	readTimeout  time.Duration
	writeTimeout time.Duration
	maxPending   int

	createdAt time.Time

	mu          sync.Mutex
	state       ConnState
	pending     int
	lastUsed    time.Time
	interrupted bool
}

// NewConnection wraps an established stream. When the stream implements
// SetReadDeadline and SetWriteDeadline (as net.Conn does) the configured
// timeouts and context deadlines are applied to the socket.
func NewConnection(transport io.ReadWriteCloser, config ConnectionConfig) *Connection {
	maxPending := config.MaxPipeline
	if maxPending < 1 {
		maxPending = 1
	}

	now := coarsetime.Now()
	c := &Connection{
		transport:    transport,
		reader:       bufio.NewReader(transport),
		writer:       bufio.NewWriter(transport),
		readTimeout:  config.ReadTimeout,
		writeTimeout: config.WriteTimeout,
		maxPending:   maxPending,
		createdAt:    now,
		lastUsed:     now,
	}
	if d, ok := transport.(deadliner); ok {
		c.deadlines = d
	}
	return c
}

// Dial opens a TCP connection to addr.
func Dial(ctx context.Context, dialer *net.Dialer, addr string, config ConnectionConfig) (*Connection, error) {
	if dialer == nil {
		dialer = &net.Dialer{}
	}
	netConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, &resp.ConnectionError{Op: "dial", Err: err}
	}
	return NewConnection(netConn, config), nil
}

// Send encodes cmd into the write buffer without flushing it.
func (c *Connection) Send(cmd Cmd) error {
	return c.send(cmd, time.Time{})
}

// Flush writes buffered commands to the stream.
func (c *Connection) Flush() error {
	return c.flush(time.Time{})
}

// Receive reads the reply of the oldest outstanding command.
//
// An Error frame is a successful read: it is returned with a nil error and
// the connection stays usable.
func (c *Connection) Receive() (resp.Frame, error) {
	return c.receive(time.Time{})
}

// Do sends cmd and waits for its reply.
func (c *Connection) Do(ctx context.Context, cmd Cmd) (resp.Frame, error) {
	frames, err := c.Pipeline(ctx, []Cmd{cmd})
	if err != nil {
		return resp.Frame{}, err
	}
	return frames[0], nil
}

// Pipeline sends cmds and returns one reply frame per command, in order.
//
// Commands are written in windows of MaxPipeline, each window flushed once and
// its replies read before the next window is written. Server errors are
// returned inside the frames. Any transport or protocol failure aborts the
// pipeline and closes the connection.
//
// Cancelling ctx interrupts blocked I/O; the connection is then closed since
// the stream position is unknown.
func (c *Connection) Pipeline(ctx context.Context, cmds []Cmd) ([]resp.Frame, error) {
	if len(cmds) == 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	switch {
	case c.state == ConnClosed:
		c.mu.Unlock()
		return nil, ErrConnectionClosed
	case c.pending > 0:
		c.mu.Unlock()
		return nil, ErrConnectionBusy
	}
	c.interrupted = false
	c.mu.Unlock()

	interrupted := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		defer close(interrupted)
		c.interrupt()
	})
	defer func() {
		if !stop() {
			<-interrupted
		}
		c.mu.Lock()
		c.interrupted = false
		c.mu.Unlock()
	}()

	deadline, _ := ctx.Deadline()
	frames := make([]resp.Frame, 0, len(cmds))

	for start := 0; start < len(cmds); start += c.maxPending {
		window := cmds[start:min(start+c.maxPending, len(cmds))]

		for _, cmd := range window {
			if err := c.send(cmd, deadline); err != nil {
				return nil, c.contextError(ctx, err)
			}
		}
		if err := c.flush(deadline); err != nil {
			return nil, c.contextError(ctx, err)
		}
		for range window {
			frame, err := c.receive(deadline)
			if err != nil {
				return nil, c.contextError(ctx, err)
			}
			frames = append(frames, frame)
		}
	}

	return frames, nil
}

func (c *Connection) send(cmd Cmd, ctxDeadline time.Time) error {
	c.mu.Lock()
	if c.state == ConnClosed {
		c.mu.Unlock()
		return ErrConnectionClosed
	}
	if c.pending >= c.maxPending {
		c.mu.Unlock()
		return ErrPipelineFull
	}
	c.pending++
	c.state = ConnBusy
	c.mu.Unlock()

	// A large command can spill out of the buffer, so the write deadline
	// applies to Send too.
	if err := c.setWriteDeadline(ctxDeadline); err != nil {
		return c.fail(&resp.ConnectionError{Op: "write", Err: err})
	}
	if err := resp.WriteCommand(c.writer, cmd.Name(), cmd.Args()); err != nil {
		return c.fail(&resp.ConnectionError{Op: "write", Err: err})
	}
	return nil
}

func (c *Connection) flush(ctxDeadline time.Time) error {
	if c.State() == ConnClosed {
		return ErrConnectionClosed
	}
	if err := c.setWriteDeadline(ctxDeadline); err != nil {
		return c.fail(&resp.ConnectionError{Op: "flush", Err: err})
	}
	if err := c.writer.Flush(); err != nil {
		return c.fail(&resp.ConnectionError{Op: "flush", Err: err})
	}
	return nil
}

func (c *Connection) receive(ctxDeadline time.Time) (resp.Frame, error) {
	c.mu.Lock()
	if c.state == ConnClosed {
		c.mu.Unlock()
		return resp.Frame{}, ErrConnectionClosed
	}
	if c.pending == 0 {
		c.mu.Unlock()
		return resp.Frame{}, ErrNoPendingCommand
	}
	c.mu.Unlock()

	if err := c.setReadDeadline(ctxDeadline); err != nil {
		return resp.Frame{}, c.fail(&resp.ConnectionError{Op: "read", Err: err})
	}

	frame, err := resp.ReadFrame(c.reader)
	if err != nil {
		// ReadFrame only returns ProtocolError or ConnectionError.
		return resp.Frame{}, c.fail(err)
	}

	c.mu.Lock()
	c.pending--
	if c.pending == 0 && c.state == ConnBusy {
		c.state = ConnIdle
	}
	c.lastUsed = coarsetime.Now()
	c.mu.Unlock()

	return frame, nil
}

func (c *Connection) setReadDeadline(ctxDeadline time.Time) error {
	if c.deadlines == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.interrupted {
		return nil
	}
	return c.deadlines.SetReadDeadline(earliest(ctxDeadline, c.readTimeout))
}

func (c *Connection) setWriteDeadline(ctxDeadline time.Time) error {
	if c.deadlines == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.interrupted {
		return nil
	}
	return c.deadlines.SetWriteDeadline(earliest(ctxDeadline, c.writeTimeout))
}

// earliest returns the earlier of ctxDeadline and now+timeout. The zero time
// means no deadline.
func earliest(ctxDeadline time.Time, timeout time.Duration) time.Time {
	var d time.Time
	if timeout > 0 {
		d = time.Now().Add(timeout)
	}
	if !ctxDeadline.IsZero() && (d.IsZero() || ctxDeadline.Before(d)) {
		d = ctxDeadline
	}
	return d
}

// interrupt unblocks in-flight I/O after the caller's context ended.
func (c *Connection) interrupt() {
	c.mu.Lock()
	c.interrupted = true
	c.mu.Unlock()

	if c.deadlines != nil {
		past := time.Unix(1, 0)
		_ = c.deadlines.SetReadDeadline(past)
		_ = c.deadlines.SetWriteDeadline(past)
		return
	}
	_ = c.Close()
}

// contextError reports the context error instead of the I/O error it caused.
func (c *Connection) contextError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && resp.ShouldCloseConnection(err) {
		var ce *resp.ConnectionError
		op := "read"
		if errors.As(err, &ce) {
			op = ce.Op
		}
		return &resp.ConnectionError{Op: op, Err: ctxErr}
	}
	return err
}

// fail moves the connection to Closed and closes the stream.
func (c *Connection) fail(err error) error {
	c.mu.Lock()
	alreadyClosed := c.state == ConnClosed
	c.state = ConnClosed
	c.pending = 0
	c.mu.Unlock()

	if !alreadyClosed {
		_ = c.transport.Close()
	}
	return err
}

// Close closes the stream. It is safe to call more than once.
func (c *Connection) Close() error {
	c.mu.Lock()
	if c.state == ConnClosed {
		c.mu.Unlock()
		return nil
	}
	c.state = ConnClosed
	c.pending = 0
	c.mu.Unlock()

	return c.transport.Close()
}

func (c *Connection) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// InFlight returns the number of commands sent and not yet answered.
func (c *Connection) InFlight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

func (c *Connection) CreatedAt() time.Time {
	return c.createdAt
}

// LastUsed returns when the last reply was received.
func (c *Connection) LastUsed() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastUsed
}
