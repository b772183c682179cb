package friudp

import (
	"errors"
	"time"

	"github.com/kukabot/go-fri/logger"
)

// ErrClientConfigNil indicates that a nil ClientConfig was provided.
var ErrClientConfigNil = errors.New("friudp: client config is nil")

// StateHandler receives every decoded state frame. It runs on the client's
// receive goroutine, so it must not block; panics are recovered and logged.
type StateHandler func(state *RobotState)

// TimeoutHandler is invoked when no state frame arrives within the watchdog
// timeout. It runs on a detached goroutine.
type TimeoutHandler func(elapsed time.Duration)

// ClientConfig holds the configuration of a cyclic UDP client.
type ClientConfig struct {
	// port is the local UDP port the controller sends state frames to.
	port int

	// receiveMultiplier sends one command frame per this many state frames.
	// Defaults to 1.
	receiveMultiplier uint32

	// watchdogTimeout bounds the silence between state frames before the
	// timeout handler fires. Zero disables the watchdog, which is the default.
	watchdogTimeout time.Duration

	// readBufferSize sizes the datagram receive buffer. Defaults to 4096.
	readBufferSize int

	stateHandler   StateHandler
	timeoutHandler TimeoutHandler

	logger logger.Logger
}

// NewClientConfig creates a cyclic client configuration listening on the
// local UDP port with the given options applied on top of the defaults.
func NewClientConfig(port int, opts ...ClientOption) (*ClientConfig, error) {
	cfg := &ClientConfig{
		receiveMultiplier: 1,
		readBufferSize:    4096,
		logger:            logger.GetLogger(),
	}

	if port < 1 || port > 65535 {
		return cfg, errors.New("port is out of range [1, 65535]")
	}
	cfg.port = port

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return cfg, err
		}
	}

	return cfg, nil
}

// ClientOption represents a functional option for configuring a ClientConfig.
type ClientOption interface {
	apply(*ClientConfig) error
}

type clientOptFunc struct {
	name      string
	applyFunc func(*ClientConfig) error
}

func (c *clientOptFunc) apply(cfg *ClientConfig) error { return c.applyFunc(cfg) }

func newClientOptFunc(name string, f func(*ClientConfig) error) *clientOptFunc {
	return &clientOptFunc{name: name, applyFunc: f}
}

// WithReceiveMultiplier sets the initial answer rate: one command frame is
// sent per multiplier state frames. The default is 1.
func WithReceiveMultiplier(multiplier uint32) ClientOption {
	return newClientOptFunc("WithReceiveMultiplier", func(cfg *ClientConfig) error {
		if cfg == nil {
			return ErrClientConfigNil
		}

		if multiplier < 1 {
			return errors.New("receive multiplier must be at least 1")
		}
		cfg.receiveMultiplier = multiplier

		return nil
	})
}

// WithStateHandler registers the handler invoked for every decoded state
// frame.
func WithStateHandler(handler StateHandler) ClientOption {
	return newClientOptFunc("WithStateHandler", func(cfg *ClientConfig) error {
		if cfg == nil {
			return ErrClientConfigNil
		}

		cfg.stateHandler = handler

		return nil
	})
}

// WithWatchdogTimeout enables the frame watchdog: when no state frame arrives
// within d, the timeout handler registered by WithTimeoutHandler fires. Zero
// disables the watchdog.
func WithWatchdogTimeout(d time.Duration) ClientOption {
	return newClientOptFunc("WithWatchdogTimeout", func(cfg *ClientConfig) error {
		if cfg == nil {
			return ErrClientConfigNil
		}

		if d < 0 {
			return errors.New("watchdog timeout must not be negative")
		}
		cfg.watchdogTimeout = d

		return nil
	})
}

// WithTimeoutHandler registers the handler invoked on watchdog expiry.
func WithTimeoutHandler(handler TimeoutHandler) ClientOption {
	return newClientOptFunc("WithTimeoutHandler", func(cfg *ClientConfig) error {
		if cfg == nil {
			return ErrClientConfigNil
		}

		cfg.timeoutHandler = handler

		return nil
	})
}

// WithReadBufferSize sets the datagram receive buffer size in bytes.
// The default is 4096.
func WithReadBufferSize(size int) ClientOption {
	return newClientOptFunc("WithReadBufferSize", func(cfg *ClientConfig) error {
		if cfg == nil {
			return ErrClientConfigNil
		}

		if size < 512 {
			return errors.New("read buffer size must be at least 512")
		}
		cfg.readBufferSize = size

		return nil
	})
}

// WithClientLogger sets the logger for the cyclic client.
// The default logger is the global logger instance.
func WithClientLogger(l logger.Logger) ClientOption {
	return newClientOptFunc("WithClientLogger", func(cfg *ClientConfig) error {
		if cfg == nil {
			return ErrClientConfigNil
		}

		cfg.logger = l

		return nil
	})
}
