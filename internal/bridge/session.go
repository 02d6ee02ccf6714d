package bridge

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"

	"github.com/TravelModellingGroup/emmebridge/internal/channel"
	apperrors "github.com/TravelModellingGroup/emmebridge/internal/errors"
	"github.com/TravelModellingGroup/emmebridge/internal/event"
	"github.com/TravelModellingGroup/emmebridge/internal/logging"
	"github.com/TravelModellingGroup/emmebridge/internal/peer"
	"github.com/TravelModellingGroup/emmebridge/internal/protocol"
)

// State is the lifecycle stage of a Session.
type State int32

const (
	StateUninitialized State = iota
	StateAwaitingHandshake
	StateReady
	StateDisposed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateAwaitingHandshake:
		return "awaiting-handshake"
	case StateReady:
		return "ready"
	case StateDisposed:
		return "disposed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Result is the outcome of a successful operation. Value is nil when the
// peer completed without a value.
type Result struct {
	Success bool
	Value   *string
}

// ValueOr returns the result value, or def when there is none.
func (r Result) ValueOr(def string) string {
	if r.Value == nil {
		return def
	}
	return *r.Value
}

// ProgressFunc receives progress fractions reported by the peer.
type ProgressFunc func(fraction float32)

// Session is a connection to one modeller peer. Create it with New.
type Session struct {
	id      string
	channel string
	opts    options
	logger  *logging.Logger
	bus     *event.Bus

	state atomic.Int32

	// mu is held for the whole of one request: the write and every signal
	// up to the terminal one.
	mu   sync.Mutex
	conn *channel.Conn
	proc *peer.Process

	disposeOnce sync.Once
	reaped      chan struct{}
}

// New creates a channel, starts or waits for the peer, and returns once the
// peer has sent Start. On any failure every resource created so far is
// released and no session is returned.
func New(ctx context.Context, opts ...Option) (*Session, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.validate(); err != nil {
		return nil, err
	}

	name := o.channelName
	if name == "" {
		name = channel.NewName()
	}

	s := &Session{
		id:      uuid.NewString(),
		channel: name,
		opts:    o,
		bus:     o.bus,
		reaped:  make(chan struct{}),
	}
	s.logger = o.logger.WithSession(s.id).WithChannel(name)
	s.state.Store(int32(StateUninitialized))

	l, err := channel.Listen(name, o.channelDir)
	if err != nil {
		return nil, apperrors.NewLaunchError("create channel", err)
	}
	s.state.Store(int32(StateAwaitingHandshake))

	conn, proc, err := s.connect(ctx, l)
	if err != nil {
		s.logger.Error("modeller did not connect", "error", err)
		return nil, err
	}
	s.conn = conn
	s.proc = proc

	if err := s.handshake(ctx); err != nil {
		s.logger.Error("handshake failed", "error", err)
		_ = conn.Close()
		if proc != nil {
			proc.Kill()
		}
		return nil, err
	}

	s.state.Store(int32(StateReady))
	s.logger.Info("session ready", "pid", s.PID(), "attached", o.attach)
	s.bus.Publish(event.NewSessionReadyEvent(s.id, name, s.PID(), o.attach))
	return s, nil
}

// connect waits for the peer and, in launch mode, starts it at the same
// time. If either side fails the other is abandoned: the listener is
// closed and a started process is killed.
func (s *Session) connect(ctx context.Context, l *channel.Listener) (*channel.Conn, *peer.Process, error) {
	var (
		conn      *channel.Conn
		proc      *peer.Process
		connected = make(chan struct{})
	)

	p := pool.New().WithErrors().WithFirstError().WithContext(ctx).WithCancelOnError()

	p.Go(func(ctx context.Context) error {
		c, err := l.WaitForPeer(ctx, s.opts.connectTimeout)
		if err != nil {
			// A slow modeller start may connect on a second attempt.
			return apperrors.NewHandshakeError("waiting for the modeller to connect", err).
				WithChannel(s.channel).
				WithRetryable(apperrors.Is(err, apperrors.ErrTimeout))
		}
		conn = c
		close(connected)
		return nil
	})

	if spec := s.opts.spec; spec != nil {
		p.Go(func(ctx context.Context) error {
			pr, err := peer.Start(*spec, s.channel, s.logger)
			if err != nil {
				return err
			}
			proc = pr
			select {
			case <-connected:
				return nil
			case <-pr.Done():
				return apperrors.NewLaunchError("modeller exited before connecting", pr.Err()).
					WithExecutable(spec.Executable).
					WithPID(pr.PID())
			case <-ctx.Done():
				// The wait side reports why.
				return nil
			}
		})
	}

	if err := p.Wait(); err != nil {
		_ = l.Close()
		if conn != nil {
			_ = conn.Close()
		}
		if proc != nil {
			proc.Kill()
		}
		return nil, nil, err
	}
	return conn, proc, nil
}

// handshake reads the first signal, which must be Start. Canceling ctx
// closes the connection to abandon the read.
func (s *Session) handshake(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { _ = s.conn.Close() })
	defer stop()

	sig, err := protocol.ReadSignal(s.conn, s.opts.limits)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return apperrors.NewHandshakeError("reading the first signal", err).WithChannel(s.channel)
	}
	if _, ok := sig.(protocol.Start); !ok {
		return apperrors.NewHandshakeError("expected Start as the first signal", nil).
			WithChannel(s.channel).
			WithReceived(sig.Code().String())
	}
	return nil
}

// ID returns the session identifier used in logs and events.
func (s *Session) ID() string { return s.id }

// Channel returns the channel name.
func (s *Session) Channel() string { return s.channel }

// State returns the current lifecycle state.
func (s *Session) State() State { return State(s.state.Load()) }

// FailTimeout returns the deadline hint set with WithFailTimeout, or zero.
func (s *Session) FailTimeout() time.Duration { return s.opts.failTimeout }

// PID returns the peer's process ID, or 0 in attach mode.
func (s *Session) PID() int {
	if s.proc == nil {
		return 0
	}
	return s.proc.PID()
}

// Done is closed after Close once the peer process has exited or been
// killed. In attach mode it is closed as soon as the channel is closed.
func (s *Session) Done() <-chan struct{} { return s.reaped }

// Invoke runs operation on the peer and blocks until it finishes. payload
// is passed through verbatim; nil sends an empty string. onProgress may be
// nil.
func (s *Session) Invoke(operation string, payload []byte, level protocol.LogbookLevel, onProgress ProgressFunc) (Result, error) {
	if s.State() == StateDisposed {
		return Result{}, apperrors.ErrSessionDisposed
	}
	if operation == "" {
		return Result{}, apperrors.NewValidationError("operation must not be empty").WithField("operation")
	}
	frame, err := protocol.RunRequest(operation, payload, level).Encode()
	if err != nil {
		return Result{}, apperrors.NewValidationError(err.Error()).WithField("request")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Close may have run while we waited for the lock.
	if s.State() != StateReady {
		return Result{}, apperrors.ErrSessionDisposed
	}

	logger := s.logger.WithOperation(operation)
	start := time.Now()
	logger.Info("operation started", "logbook", level.String(), "payload_bytes", len(payload))
	s.bus.Publish(event.NewOperationStartedEvent(s.id, operation, level.String()))

	res, err := s.roundTrip(frame, operation, logger, onProgress)
	s.report(operation, logger, res, err, time.Since(start))
	return res, err
}

// CheckToolExists asks the peer whether namespace names a tool.
func (s *Session) CheckToolExists(namespace string) (bool, error) {
	if s.State() == StateDisposed {
		return false, apperrors.ErrSessionDisposed
	}
	if namespace == "" {
		return false, apperrors.NewValidationError("namespace must not be empty").WithField("namespace")
	}
	frame, err := protocol.CheckToolRequest(namespace).Encode()
	if err != nil {
		return false, apperrors.NewValidationError(err.Error()).WithField("namespace")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State() != StateReady {
		return false, apperrors.ErrSessionDisposed
	}

	logger := s.logger.WithOperation(namespace)
	res, err := s.roundTrip(frame, namespace, logger, nil)
	if err != nil {
		if apperrors.IsFatal(err) {
			logger.Error("tool check failed", "error", err)
		}
		return false, err
	}

	if res.Value == nil {
		return false, fmt.Errorf("check tool %q: %w: reply carried no value", namespace, apperrors.ErrProtocolViolation)
	}
	exists, err := strconv.ParseBool(*res.Value)
	if err != nil {
		return false, fmt.Errorf("check tool %q: %w: %q is not a boolean", namespace, apperrors.ErrProtocolViolation, *res.Value)
	}
	logger.Debug("tool checked", "exists", exists)
	return exists, nil
}

// roundTrip writes frame and decodes signals until a terminal one. The
// caller holds s.mu. Fatal errors dispose the session before returning.
func (s *Session) roundTrip(frame []byte, operation string, logger *logging.Logger, onProgress ProgressFunc) (Result, error) {
	if err := s.conn.WriteAll(frame); err != nil {
		return Result{}, s.fatal(operation, "lost communication with the modeller peer", err)
	}

	for {
		sig, err := protocol.ReadSignal(s.conn, s.opts.limits)
		if err != nil {
			switch {
			case s.State() == StateDisposed:
				return Result{}, s.fatal(operation, "session closed during the call", apperrors.ErrSessionDisposed)
			case protocol.IsMalformed(err):
				return Result{}, s.fatal(operation, "malformed signal", fmt.Errorf("%w: %w", apperrors.ErrProtocolViolation, err))
			default:
				return Result{}, s.fatal(operation, "lost communication with the modeller peer", err)
			}
		}

		switch v := sig.(type) {
		case protocol.Start:
			logger.Debug("ignoring repeated Start")

		case protocol.ToolExists:
			logger.Debug("tool resolved")
			s.bus.Publish(event.NewToolResolvedEvent(s.id, operation))

		case protocol.PrintMessage:
			s.print(operation, logger, v.Text)

		case protocol.ProgressReport:
			if onProgress != nil {
				onProgress(v.Fraction)
			}
			s.bus.Publish(event.NewOperationProgressEvent(s.id, operation, v.Fraction))

		case protocol.RunComplete:
			return Result{Success: true}, nil

		case protocol.RunCompleteWithValue:
			value := v.Value
			return Result{Success: true, Value: &value}, nil

		case protocol.ParameterError:
			return Result{}, apperrors.NewToolError(apperrors.ToolParameter, v.Message).WithOperation(operation)

		case protocol.RuntimeError:
			return Result{}, apperrors.NewToolError(apperrors.ToolRuntime, v.Message).WithOperation(operation)

		case protocol.ToolNotFound:
			return Result{}, apperrors.NewToolError(apperrors.ToolNotFound, v.Message).WithOperation(operation)

		case protocol.IncompatibleTool:
			return Result{}, apperrors.NewToolError(apperrors.ToolIncompatible, v.Message).WithOperation(operation)

		case protocol.Termination:
			return Result{}, s.fatal(operation, "modeller peer shut down during the call", apperrors.ErrPeerTerminated)

		case protocol.Unknown:
			return Result{}, s.fatal(operation, "unexpected signal "+v.Raw.String(),
				fmt.Errorf("%w: %s", apperrors.ErrProtocolViolation, v.Raw))

		default:
			return Result{}, s.fatal(operation, fmt.Sprintf("unhandled signal %T", sig), apperrors.ErrProtocolViolation)
		}
	}
}

func (s *Session) print(operation string, logger *logging.Logger, text string) {
	logger.Info("modeller message", "text", text)
	if w := s.opts.output; w != nil {
		if _, err := fmt.Fprintln(w, text); err != nil {
			logger.Warn("failed to write modeller message", "error", err)
		}
	}
	s.bus.Publish(event.NewOperationPrintEvent(s.id, operation, text))
}

// fatal disposes the session and returns the connectivity error for the
// call that broke it.
func (s *Session) fatal(operation, msg string, cause error) error {
	err := apperrors.NewConnectivityError(msg, cause).WithSessionID(s.id).WithChannel(s.channel)
	s.dispose(fmt.Sprintf("%s: %s", operation, msg))
	return err
}

func (s *Session) report(operation string, logger *logging.Logger, res Result, err error, elapsed time.Duration) {
	if err == nil {
		logger.Info("operation completed", "duration", elapsed, "has_value", res.Value != nil)
		s.bus.Publish(event.NewOperationCompletedEvent(s.id, operation, res.Value, elapsed))
		return
	}

	kind := "connectivity"
	message := err.Error()
	var toolErr *apperrors.ToolError
	if apperrors.As(err, &toolErr) {
		kind = toolErr.Kind.String()
		message = toolErr.PeerMessage
	}
	fatal := apperrors.IsFatal(err)
	if fatal {
		logger.Error("operation failed", "kind", kind, "error", err, "duration", elapsed)
	} else {
		logger.Warn("operation failed", "kind", kind, "error", err, "duration", elapsed)
	}
	s.bus.Publish(event.NewOperationFailedEvent(s.id, operation, kind, message, fatal, elapsed))
}

// Close disposes the session. It is safe to call more than once and from
// any goroutine, including while Invoke is blocked: the blocked call then
// fails with a connectivity error. Close always returns nil.
func (s *Session) Close() error {
	if s == nil {
		return nil
	}
	s.dispose("closed")
	return nil
}

// dispose sends Termination without waiting for a busy writer, closes the
// channel, and stops the peer in the background.
func (s *Session) dispose(reason string) {
	s.disposeOnce.Do(func() {
		s.state.Store(int32(StateDisposed))

		if s.conn != nil {
			if frame, err := protocol.TerminationRequest().Encode(); err == nil {
				if !s.conn.TryWriteAll(frame, terminationWriteTimeout) {
					s.logger.Debug("termination signal not delivered")
				}
			}
			_ = s.conn.Close()
		}

		if s.proc != nil {
			go func() {
				defer close(s.reaped)
				if s.proc.Stop(s.opts.shutdownGrace) {
					s.logger.Info("modeller exited", "pid", s.proc.PID())
				} else {
					s.logger.Warn("modeller killed after grace period", "pid", s.proc.PID(), "grace", s.opts.shutdownGrace)
				}
			}()
		} else {
			close(s.reaped)
		}

		s.logger.Info("session disposed", "reason", reason)
		s.bus.Publish(event.NewSessionDisposedEvent(s.id, reason))
	})
}
