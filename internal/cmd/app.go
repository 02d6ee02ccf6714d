package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/TravelModellingGroup/emmebridge/internal/bridge"
	"github.com/TravelModellingGroup/emmebridge/internal/config"
	apperrors "github.com/TravelModellingGroup/emmebridge/internal/errors"
	"github.com/TravelModellingGroup/emmebridge/internal/event"
	"github.com/TravelModellingGroup/emmebridge/internal/logging"
	"github.com/TravelModellingGroup/emmebridge/internal/metrics"
	"github.com/TravelModellingGroup/emmebridge/internal/peer"
	"github.com/TravelModellingGroup/emmebridge/internal/protocol"
	"github.com/TravelModellingGroup/emmebridge/internal/tui"
)

// app holds what every modeller command needs: the loaded configuration,
// the logger and the event bus sessions publish to.
type app struct {
	cfg    *config.Config
	logger *logging.Logger
	bus    *event.Bus
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.NewRotatingLogger(cfg.Logging.Dir, cfg.Logging.Level, logging.RotationConfig{
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		Compress:   cfg.Logging.Compress,
	})
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:    cfg,
		logger: logger,
		bus:    event.NewBusWithLogger(logger),
	}, nil
}

func (a *app) close() {
	_ = a.logger.Close()
}

// serveMetrics exposes bridge metrics until ctx is done when metrics.addr
// is configured.
func (a *app) serveMetrics(ctx context.Context) error {
	if a.cfg.Metrics.Addr == "" {
		return nil
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	c := metrics.New()
	if err := c.Register(reg); err != nil {
		return err
	}
	c.Attach(a.bus)

	addr, err := metrics.Serve(ctx, a.cfg.Metrics.Addr, reg)
	if err != nil {
		return fmt.Errorf("serve metrics: %w", err)
	}
	a.logger.Info("serving metrics", "addr", addr)
	return nil
}

// peerSpec converts the peer configuration into a launch description.
func peerSpec(c config.PeerConfig) peer.Spec {
	return peer.Spec{
		Executable:      c.Executable,
		InterpreterArgs: c.InterpreterArgs,
		Script:          c.Script,
		ProjectFile:     c.ProjectFile,
		UserInitials:    c.UserInitials,
		PerformanceMode: c.PerformanceMode,
		WorkingDir:      c.WorkingDir,
	}
}

// sessionOptions builds the bridge options for the configuration. Modeller
// print messages are written to out.
func (a *app) sessionOptions(out io.Writer) []bridge.Option {
	opts := []bridge.Option{
		bridge.WithChannelName(a.cfg.Channel.Name),
		bridge.WithChannelDir(a.cfg.Channel.Dir),
		bridge.WithConnectTimeout(a.cfg.Channel.ConnectTimeout),
		bridge.WithFailTimeout(a.cfg.Session.FailTimeout),
		bridge.WithShutdownGrace(a.cfg.Peer.ShutdownGrace),
		bridge.WithOutput(out),
		bridge.WithLogger(a.logger),
		bridge.WithEventBus(a.bus),
		bridge.WithLimits(protocol.Limits{MaxStringBytes: a.cfg.Session.MaxStringBytes()}),
	}
	if a.cfg.Peer.Attach {
		return append(opts, bridge.WithAttach())
	}
	return append(opts, bridge.WithPeer(peerSpec(a.cfg.Peer)))
}

func (a *app) openSession(ctx context.Context, out io.Writer) (*bridge.Session, error) {
	if a.cfg.Peer.Attach {
		a.logger.Info("waiting for modeller to attach", "channel", a.cfg.Channel.Name)
	}
	return bridge.New(ctx, a.sessionOptions(out)...)
}

// logbookLevel resolves the --logbook flag, falling back to the configured
// default.
func (a *app) logbookLevel(flag string) (protocol.LogbookLevel, error) {
	name := flag
	if name == "" {
		name = a.cfg.Session.LogbookLevel
	}
	level, err := protocol.ParseLogbookLevel(name)
	if err != nil {
		return 0, apperrors.NewValidationError("unknown logbook level").WithField("logbook").WithValue(name)
	}
	return level, nil
}

// withFailTimeout runs call against s. The session is closed when the
// configured fail timeout passes or ctx is done first, which unblocks call.
func withFailTimeout[T any](ctx context.Context, s *bridge.Session, call func() (T, error)) (T, error) {
	type outcome struct {
		v   T
		err error
	}
	ch := make(chan outcome, 1)
	go func() {
		v, err := call()
		ch <- outcome{v, err}
	}()

	var expired <-chan time.Time
	if d := s.FailTimeout(); d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		expired = timer.C
	}

	var zero T
	select {
	case o := <-ch:
		return o.v, o.err
	case <-expired:
		_ = s.Close()
		<-ch
		return zero, apperrors.NewTimeoutError("waiting for the modeller", s.FailTimeout()).
			WithCause(apperrors.ErrSessionDisposed)
	case <-ctx.Done():
		_ = s.Close()
		<-ch
		return zero, ctx.Err()
	}
}

// sessionInvoker applies the fail timeout to every call of a batch.
type sessionInvoker struct {
	ctx     context.Context
	session *bridge.Session
}

func (i sessionInvoker) Invoke(operation string, payload []byte, level protocol.LogbookLevel, onProgress bridge.ProgressFunc) (bridge.Result, error) {
	return withFailTimeout(i.ctx, i.session, func() (bridge.Result, error) {
		return i.session.Invoke(operation, payload, level, onProgress)
	})
}

// newReporter shows progress on stderr, interactively when it is a
// terminal. The command's stdout only carries results.
func newReporter(cmd *cobra.Command, title string, plain bool) tui.Reporter {
	if f, ok := cmd.ErrOrStderr().(*os.File); ok && !plain && term.IsTerminal(int(f.Fd())) {
		return tui.NewInteractive(f, title)
	}
	return tui.NewPlain(cmd.ErrOrStderr())
}
