package channel

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/TravelModellingGroup/emmebridge/internal/errors"
)

// NamePrefix starts every generated channel name.
const NamePrefix = "emmebridge-"

var (
	// ErrEndOfStream means the peer closed the stream before the requested
	// number of bytes arrived.
	ErrEndOfStream = errors.New("channel: end of stream")

	// ErrListenerClosed is returned by WaitForPeer once the listener has
	// been closed.
	ErrListenerClosed = errors.New("channel: listener closed")
)

// IOError wraps any other transport failure.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("channel %s: %v", e.Op, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// NewName returns a fresh session-unique channel name.
func NewName() string {
	return NamePrefix + uuid.NewString()
}

// Listener is the server side of a channel. It accepts a single peer.
type Listener struct {
	name string
	addr string
	ln   net.Listener

	closeOnce sync.Once
	closeErr  error
	closed    atomic.Bool
}

// Listen creates the endpoint for name and returns without waiting for a
// peer. dir is where Unix sockets are created; it is ignored on Windows and
// defaults to the system temp directory when empty.
func Listen(name, dir string) (*Listener, error) {
	if name == "" {
		return nil, apperrors.NewValidationError("channel name must not be empty").WithField("name")
	}
	addr := Address(name, dir)
	ln, err := listen(addr)
	if err != nil {
		return nil, &IOError{Op: "listen", Err: err}
	}
	return &Listener{name: name, addr: addr, ln: ln}, nil
}

// Name returns the channel name given to Listen.
func (l *Listener) Name() string { return l.name }

// Addr returns the OS-level endpoint path.
func (l *Listener) Addr() string { return l.addr }

type acceptResult struct {
	conn net.Conn
	err  error
}

// WaitForPeer blocks until a peer connects, ctx is done, or timeout elapses.
// A zero timeout waits for ctx alone. The listener is closed when
// WaitForPeer returns, whatever the outcome.
func (l *Listener) WaitForPeer(ctx context.Context, timeout time.Duration) (*Conn, error) {
	if l.closed.Load() {
		return nil, ErrListenerClosed
	}

	results := make(chan acceptResult, 1)
	go func() {
		c, err := l.ln.Accept()
		results <- acceptResult{conn: c, err: err}
	}()

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	// abandon closes the listener, which unblocks Accept, and discards a
	// connection that raced in.
	abandon := func() {
		_ = l.Close()
		if res := <-results; res.conn != nil {
			_ = res.conn.Close()
		}
	}

	select {
	case res := <-results:
		if res.err != nil {
			closedByCaller := l.closed.Load()
			_ = l.Close()
			if closedByCaller {
				return nil, ErrListenerClosed
			}
			return nil, &IOError{Op: "accept", Err: res.err}
		}
		_ = l.Close()
		return newConn(l.name, res.conn), nil
	case <-expired:
		abandon()
		return nil, apperrors.NewTimeoutError(fmt.Sprintf("waiting for peer on channel %s", l.name), timeout)
	case <-ctx.Done():
		abandon()
		return nil, fmt.Errorf("waiting for peer on channel %s: %w", l.name, ctx.Err())
	}
}

// Close releases the endpoint. It is idempotent.
func (l *Listener) Close() error {
	l.closeOnce.Do(func() {
		l.closed.Store(true)
		l.closeErr = l.ln.Close()
	})
	return l.closeErr
}

// Dial connects to the channel name from the peer side.
func Dial(ctx context.Context, name, dir string) (*Conn, error) {
	c, err := dial(ctx, Address(name, dir))
	if err != nil {
		return nil, &IOError{Op: "dial", Err: err}
	}
	return newConn(name, c), nil
}

// Conn is one end of an established channel.
//
// ReadExact is not safe for concurrent use; writes are serialized
// internally. Close may be called from any goroutine and unblocks a
// pending read.
type Conn struct {
	name string
	c    net.Conn
	r    *bufio.Reader

	wmu sync.Mutex
	w   *bufio.Writer

	closeOnce sync.Once
	closeErr  error
	closed    atomic.Bool
}

func newConn(name string, c net.Conn) *Conn {
	return &Conn{
		name: name,
		c:    c,
		r:    bufio.NewReader(c),
		w:    bufio.NewWriter(c),
	}
}

// Name returns the channel name.
func (c *Conn) Name() string { return c.name }

// ReadExact blocks until exactly n bytes have been read.
func (c *Conn) ReadExact(n int) ([]byte, error) {
	buf := make([]byte, n)
	got, err := io.ReadFull(c.r, buf)
	if err == nil {
		return buf, nil
	}
	if c.closed.Load() {
		return nil, &IOError{Op: "read", Err: net.ErrClosed}
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		if got == 0 {
			return nil, ErrEndOfStream
		}
		return nil, fmt.Errorf("%w after %d of %d bytes", ErrEndOfStream, got, n)
	}
	return nil, &IOError{Op: "read", Err: err}
}

// WriteAll writes b and flushes it before returning.
func (c *Conn) WriteAll(b []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return c.writeLocked(b)
}

// TryWriteAll is a best-effort WriteAll bounded by timeout. It gives up
// without writing when another write is in progress, and reports whether
// the bytes were sent.
func (c *Conn) TryWriteAll(b []byte, timeout time.Duration) bool {
	if c.closed.Load() || !c.wmu.TryLock() {
		return false
	}
	defer c.wmu.Unlock()

	if err := c.c.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return false
	}
	defer func() { _ = c.c.SetWriteDeadline(time.Time{}) }()

	return c.writeLocked(b) == nil
}

func (c *Conn) writeLocked(b []byte) error {
	if c.closed.Load() {
		return &IOError{Op: "write", Err: net.ErrClosed}
	}
	if _, err := c.w.Write(b); err != nil {
		c.w.Reset(c.c)
		return &IOError{Op: "write", Err: err}
	}
	if err := c.w.Flush(); err != nil {
		c.w.Reset(c.c)
		return &IOError{Op: "flush", Err: err}
	}
	return nil
}

// Close releases the connection. It is idempotent.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.closeErr = c.c.Close()
	})
	return c.closeErr
}
