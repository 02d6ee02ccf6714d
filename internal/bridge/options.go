package bridge

import (
	"io"
	"time"

	"github.com/spf13/afero"

	apperrors "github.com/TravelModellingGroup/emmebridge/internal/errors"
	"github.com/TravelModellingGroup/emmebridge/internal/event"
	"github.com/TravelModellingGroup/emmebridge/internal/logging"
	"github.com/TravelModellingGroup/emmebridge/internal/peer"
	"github.com/TravelModellingGroup/emmebridge/internal/protocol"
)

// DefaultConnectTimeout bounds how long New waits for the peer to connect.
// Loading a large project can take a while.
const DefaultConnectTimeout = 2 * time.Minute

// terminationWriteTimeout bounds the best-effort Termination write in Close.
const terminationWriteTimeout = 250 * time.Millisecond

// Option configures a Session.
type Option func(*options)

type options struct {
	spec           *peer.Spec
	attach         bool
	channelName    string
	channelDir     string
	connectTimeout time.Duration
	failTimeout    time.Duration
	shutdownGrace  time.Duration
	output         io.Writer
	logger         *logging.Logger
	bus            *event.Bus
	fs             afero.Fs
	limits         protocol.Limits
}

func defaultOptions() options {
	return options{
		connectTimeout: DefaultConnectTimeout,
		shutdownGrace:  peer.DefaultShutdownGrace,
		logger:         logging.NopLogger(),
		fs:             afero.NewOsFs(),
		limits:         protocol.DefaultLimits(),
	}
}

// WithPeer launches the peer described by spec.
func WithPeer(spec peer.Spec) Option {
	return func(o *options) {
		o.spec = &spec
	}
}

// WithAttach waits for a peer started out of band. The channel name must
// be set with WithChannelName so the peer knows where to connect.
func WithAttach() Option {
	return func(o *options) {
		o.attach = true
	}
}

// WithChannelName sets the channel name. A random name is generated when
// it is not set.
func WithChannelName(name string) Option {
	return func(o *options) {
		o.channelName = name
	}
}

// WithChannelDir sets the directory holding the socket on platforms
// without named pipes.
func WithChannelDir(dir string) Option {
	return func(o *options) {
		o.channelDir = dir
	}
}

// WithConnectTimeout bounds how long New waits for the peer to connect.
func WithConnectTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.connectTimeout = d
		}
	}
}

// WithFailTimeout records a deadline hint for callers. The session itself
// never cancels a call.
func WithFailTimeout(d time.Duration) Option {
	return func(o *options) {
		o.failTimeout = d
	}
}

// WithShutdownGrace sets how long Close lets the peer exit on its own
// before killing it.
func WithShutdownGrace(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.shutdownGrace = d
		}
	}
}

// WithOutput sets where PrintMessage text is written, one line per message.
func WithOutput(w io.Writer) Option {
	return func(o *options) {
		o.output = w
	}
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithEventBus publishes session and operation events to bus.
func WithEventBus(bus *event.Bus) Option {
	return func(o *options) {
		o.bus = bus
	}
}

// WithFs sets the filesystem used to check the peer's files.
func WithFs(fsys afero.Fs) Option {
	return func(o *options) {
		if fsys != nil {
			o.fs = fsys
		}
	}
}

// WithLimits sets decode limits.
func WithLimits(limits protocol.Limits) Option {
	return func(o *options) {
		if limits.MaxStringBytes > 0 {
			o.limits = limits
		}
	}
}

func (o *options) validate() error {
	switch {
	case o.spec != nil && o.attach:
		return apperrors.NewConfigurationError("a peer to launch and attach mode are mutually exclusive", nil).
			WithField("peer.attach")
	case o.spec == nil && !o.attach:
		return apperrors.NewConfigurationError("no peer to launch and attach mode is off", nil).
			WithField("peer.executable")
	case o.attach && o.channelName == "":
		return apperrors.NewConfigurationError("attach mode needs a channel name", nil).
			WithField("channel.name")
	}
	if o.spec != nil {
		return o.spec.Validate(o.fs)
	}
	return nil
}
