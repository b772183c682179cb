package sunrise

import (
	"errors"
	"net"
	"strings"
	"time"

	"github.com/kukabot/go-fri/fri"
	"github.com/kukabot/go-fri/fritcp"
	"github.com/kukabot/go-fri/logger"
)

// ErrConnConfigNil indicates that a nil ConnectionConfig was provided.
var ErrConnConfigNil = errors.New("sunrise: connection config is nil")

// ConnectionConfig holds the configuration of a command-channel session.
type ConnectionConfig struct {
	// host of the controller's command-channel endpoint.
	host string

	// port of the controller's command-channel endpoint.
	port int

	// replyTimeout bounds the blocking wait for a command reply.
	// Zero means wait indefinitely, which is the default and matches the
	// controller-side behavior; tests set a bound to avoid hanging.
	replyTimeout time.Duration

	// connectTimeout bounds the TCP connection establishment.
	// Defaults to 3 seconds.
	connectTimeout time.Duration

	// transportFactory opens the command-channel transport on every connect.
	// Defaults to dialing TCP via fritcp.
	transportFactory fri.TransportFactory

	// controlEndedHandler is invoked, with no command in flight, when the
	// controller signals that external control ended.
	controlEndedHandler func()

	// friEndedHandler is invoked, with no command in flight, when the
	// controller signals that the cyclic FRI session ended.
	friEndedHandler func()

	// logger for session events and errors.
	logger logger.Logger
}

// NewConnectionConfig creates a command-channel configuration for the
// controller endpoint host:port with the given options applied on top of the
// defaults.
func NewConnectionConfig(host string, port int, opts ...ConnOption) (*ConnectionConfig, error) {
	cfg := &ConnectionConfig{
		replyTimeout:   0,
		connectTimeout: 3 * time.Second,
		logger:         logger.GetLogger(),
	}

	if err := withHost(host).apply(cfg); err != nil {
		return cfg, err
	}

	if err := withPort(port).apply(cfg); err != nil {
		return cfg, err
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return cfg, err
		}
	}

	if cfg.transportFactory == nil {
		cfg.transportFactory = defaultTransportFactory(cfg)
	}

	return cfg, nil
}

// defaultTransportFactory dials the controller over TCP with the config's
// connect timeout and logger.
func defaultTransportFactory(cfg *ConnectionConfig) fri.TransportFactory {
	return func(host string, port int, onData fri.DataHandler, onLost fri.ConnectionLostHandler) (fri.Transport, error) {
		return fritcp.Dial(host, port, onData, onLost,
			fritcp.WithConnectTimeout(cfg.connectTimeout),
			fritcp.WithLogger(cfg.logger),
		)
	}
}

// ConnOption represents a functional option for configuring a ConnectionConfig.
type ConnOption interface {
	apply(*ConnectionConfig) error
}

type connOptFunc struct {
	name      string
	applyFunc func(*ConnectionConfig) error
}

func (c *connOptFunc) apply(cfg *ConnectionConfig) error { return c.applyFunc(cfg) }

func newConnOptFunc(name string, f func(*ConnectionConfig) error) *connOptFunc {
	return &connOptFunc{name: name, applyFunc: f}
}

// withHost sets and validates the controller host.
func withHost(host string) ConnOption {
	return newConnOptFunc("withHost", func(cfg *ConnectionConfig) error {
		if cfg == nil {
			return ErrConnConfigNil
		}

		if ip := net.ParseIP(host); ip != nil {
			cfg.host = host
			return nil
		}

		host = strings.TrimPrefix(host, ".")
		host = strings.TrimSuffix(host, ".")
		if _, err := net.LookupHost(host); err == nil {
			cfg.host = host
			return nil
		}

		return errors.New("invalid host")
	})
}

// withPort sets and validates the controller TCP port.
func withPort(port int) ConnOption {
	return newConnOptFunc("withPort", func(cfg *ConnectionConfig) error {
		if cfg == nil {
			return ErrConnConfigNil
		}

		if port < 1 || port > 65535 {
			return errors.New("port is out of range [1, 65535]")
		}
		cfg.port = port

		return nil
	})
}

// WithReplyTimeout bounds the blocking wait for a command reply. A zero
// duration restores the default of waiting indefinitely.
//
// The controller replies to every well-formed command, so production setups
// usually keep the default; a bound mainly protects against the known gap
// that malformed inbound data is dropped without waking the waiter.
func WithReplyTimeout(d time.Duration) ConnOption {
	return newConnOptFunc("WithReplyTimeout", func(cfg *ConnectionConfig) error {
		if cfg == nil {
			return ErrConnConfigNil
		}

		if d < 0 {
			return errors.New("reply timeout must not be negative")
		}
		cfg.replyTimeout = d

		return nil
	})
}

// WithConnectTimeout sets the timeout for establishing the TCP connection.
// The default is 3 seconds.
func WithConnectTimeout(d time.Duration) ConnOption {
	return newConnOptFunc("WithConnectTimeout", func(cfg *ConnectionConfig) error {
		if cfg == nil {
			return ErrConnConfigNil
		}

		if d < 100*time.Millisecond || d > 30*time.Second {
			return errors.New("connect timeout out of range [0.1s, 30s]")
		}
		cfg.connectTimeout = d

		return nil
	})
}

// WithTransportFactory replaces how the command-channel transport is opened.
// Tests use it to substitute an in-memory transport for the TCP default.
func WithTransportFactory(factory fri.TransportFactory) ConnOption {
	return newConnOptFunc("WithTransportFactory", func(cfg *ConnectionConfig) error {
		if cfg == nil {
			return ErrConnConfigNil
		}

		if factory == nil {
			return errors.New("transport factory is nil")
		}
		cfg.transportFactory = factory

		return nil
	})
}

// WithControlEndedHandler registers the handler invoked when the controller
// ends external control outside of any command exchange. The handler runs on
// a detached goroutine; panics are recovered and logged, and failures inside
// the handler are otherwise unobservable to the session.
func WithControlEndedHandler(handler func()) ConnOption {
	return newConnOptFunc("WithControlEndedHandler", func(cfg *ConnectionConfig) error {
		if cfg == nil {
			return ErrConnConfigNil
		}

		cfg.controlEndedHandler = handler

		return nil
	})
}

// WithFRIEndedHandler registers the handler invoked when the controller ends
// the cyclic FRI session outside of any command exchange. The same dispatch
// rules as WithControlEndedHandler apply.
func WithFRIEndedHandler(handler func()) ConnOption {
	return newConnOptFunc("WithFRIEndedHandler", func(cfg *ConnectionConfig) error {
		if cfg == nil {
			return ErrConnConfigNil
		}

		cfg.friEndedHandler = handler

		return nil
	})
}

// WithLogger sets the logger for the session.
// The default logger is the global logger instance.
func WithLogger(l logger.Logger) ConnOption {
	return newConnOptFunc("WithLogger", func(cfg *ConnectionConfig) error {
		if cfg == nil {
			return ErrConnConfigNil
		}

		cfg.logger = l

		return nil
	})
}
