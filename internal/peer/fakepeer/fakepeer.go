// Package fakepeer is a scripted modeller peer. It speaks the peer side of
// the wire protocol over a real channel and runs Go functions in place of
// modeller tools. Tests use it to drive the bridge end to end, and the
// fake-peer command uses it for local experiments without EMME.
package fakepeer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/TravelModellingGroup/emmebridge/internal/channel"
	"github.com/TravelModellingGroup/emmebridge/internal/logging"
	"github.com/TravelModellingGroup/emmebridge/internal/protocol"
)

// ErrDisconnect, returned from a Tool, makes the peer drop the connection
// without replying, as a crashing modeller would.
var ErrDisconnect = errors.New("fakepeer: disconnect")

// Tool runs one operation. It may emit side-effect signals and at most one
// terminal signal through w. Returning without a terminal signal completes
// the run with RunComplete; returning an error sends RuntimeError.
type Tool func(w *Writer, req protocol.Request) error

// Exchange records one request and when it was answered. An exchange is
// recorded before its terminal signal is written, so it is visible to
// Exchanges by the time the bridge sees the answer. AnsweredAt is zero for
// requests that were never answered.
type Exchange struct {
	Request    protocol.Request
	ReceivedAt time.Time
	AnsweredAt time.Time
}

// Option configures a Peer.
type Option func(*Peer)

// WithTool registers a tool under namespace.
func WithTool(namespace string, tool Tool) Option {
	return func(p *Peer) {
		p.tools[namespace] = tool
	}
}

// WithTools registers every tool in tools.
func WithTools(tools map[string]Tool) Option {
	return func(p *Peer) {
		for name, tool := range tools {
			p.tools[name] = tool
		}
	}
}

// WithFirstSignal replaces the Start signal sent on connect. A nil signal
// sends nothing.
func WithFirstSignal(s protocol.Signal) Option {
	return func(p *Peer) {
		p.first = s
	}
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(p *Peer) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// Peer is a fake modeller connected to one channel.
type Peer struct {
	conn   *channel.Conn
	tools  map[string]Tool
	first  protocol.Signal
	limits protocol.Limits
	logger *logging.Logger

	mu        sync.Mutex
	exchanges []Exchange
}

// New wraps an established connection.
func New(conn *channel.Conn, opts ...Option) *Peer {
	p := &Peer{
		conn:   conn,
		tools:  make(map[string]Tool),
		first:  protocol.Start{},
		limits: protocol.DefaultLimits(),
		logger: logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Dial connects to the bridge listening on channel name.
func Dial(ctx context.Context, name, dir string, opts ...Option) (*Peer, error) {
	conn, err := channel.Dial(ctx, name, dir)
	if err != nil {
		return nil, err
	}
	return New(conn, opts...), nil
}

// Exchanges returns the requests handled so far, in order.
func (p *Peer) Exchanges() []Exchange {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Exchange, len(p.exchanges))
	copy(out, p.exchanges)
	return out
}

// Close drops the connection.
func (p *Peer) Close() error {
	return p.conn.Close()
}

type incoming struct {
	req protocol.Request
	at  time.Time
	err error
}

// Serve sends the first signal and answers requests until the bridge sends
// Termination, the connection ends, or ctx is done. Requests are read as
// soon as they arrive, independently of how long a tool takes, so
// ReceivedAt reflects when the bridge wrote them. The connection is closed
// when Serve returns. A clean shutdown returns nil.
func (p *Peer) Serve(ctx context.Context) error {
	defer p.conn.Close()

	if p.first != nil {
		if err := p.send(p.first); err != nil {
			return err
		}
	}

	reqs := make(chan incoming)
	stop := make(chan struct{})
	defer close(stop)

	go func() {
		for {
			req, err := protocol.ReadRequest(p.conn, p.limits)
			select {
			case reqs <- incoming{req: req, at: time.Now(), err: err}:
			case <-stop:
				return
			}
			if err != nil {
				return
			}
		}
	}()

	for {
		var in incoming
		select {
		case <-ctx.Done():
			return ctx.Err()
		case in = <-reqs:
		}

		if in.err != nil {
			if errors.Is(in.err, channel.ErrEndOfStream) {
				return nil
			}
			return in.err
		}

		p.logger.Debug("request received", "code", in.req.Code.String(), "operation", in.req.Operation)

		switch in.req.Code {
		case protocol.CodeTermination:
			p.record(in, time.Now())
			return nil

		case protocol.CodeCheckToolExists:
			_, ok := p.tools[in.req.Operation]
			value := "False"
			if ok {
				value = "True"
			}
			p.record(in, time.Now())
			if err := p.send(protocol.RunCompleteWithValue{Value: value}); err != nil {
				return err
			}

		case protocol.CodeStartModuleBinaryParameters:
			w := &Writer{conn: p.conn, answered: func(at time.Time) { p.record(in, at) }}
			stopServing := p.run(w, in.req)
			if !w.terminal {
				p.record(in, time.Time{})
			}
			if w.err != nil {
				return w.err
			}
			if stopServing {
				return nil
			}

		default:
			// The real peer quietly shuts down on requests it does not know.
			_ = p.send(protocol.Termination{})
			return fmt.Errorf("fakepeer: unexpected request %s", in.req.Code)
		}
	}
}

// run executes one tool and reports whether the peer should stop serving.
func (p *Peer) run(w *Writer, req protocol.Request) bool {
	tool, ok := p.tools[req.Operation]
	if !ok {
		w.ToolNotFound("A tool with the following namespace could not be found: " + req.Operation)
		return false
	}

	w.ToolResolved()
	err := tool(w, req)

	switch {
	case errors.Is(err, ErrDisconnect):
		return true
	case w.shutdown:
		return true
	case w.terminal:
		return false
	case err != nil:
		w.RuntimeError(err.Error())
	default:
		w.Complete()
	}
	return false
}

func (p *Peer) send(s protocol.Signal) error {
	b, err := protocol.EncodeSignal(s)
	if err != nil {
		return err
	}
	return p.conn.WriteAll(b)
}

func (p *Peer) record(in incoming, answeredAt time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.exchanges = append(p.exchanges, Exchange{
		Request:    in.req,
		ReceivedAt: in.at,
		AnsweredAt: answeredAt,
	})
}
