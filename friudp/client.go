package friudp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/kukabot/go-fri/fri"
	"github.com/kukabot/go-fri/internal/pool"
	"github.com/kukabot/go-fri/logger"
)

// ErrClientRunning indicates that Run was called on a client that is already
// running.
var ErrClientRunning = errors.New("friudp: client is already running")

// readPollInterval bounds each blocking read so Run can observe context
// cancellation.
const readPollInterval = 100 * time.Millisecond

// Client exchanges cyclic frames with the controller over UDP.
//
// The client binds a local port, decodes every state frame the controller
// sends there, and answers with a command frame at the configured receive
// multiplier rate. Command content is staged through the setters and
// snapshotted at send time, so setters can be called from any goroutine while
// Run owns the socket.
type Client struct {
	cfg    *ClientConfig
	logger logger.Logger

	running atomic.Bool

	// cmdMu guards the staged command content below.
	cmdMu       sync.Mutex
	commandMode fri.ClientCommandModeID
	jointValues [fri.JointCount]float64

	// ioOutputs holds named values sent with every command frame.
	ioOutputs *xsync.MapOf[string, float64]
	// ioInputs holds the named values of the most recent state frame.
	ioInputs *xsync.MapOf[string, float64]

	receiveMultiplier atomic.Uint32

	// lastRecvNano is the wall clock of the last decoded state frame, for the
	// watchdog.
	lastRecvNano atomic.Int64

	metrics ClientMetrics
}

// NewClient creates a cyclic client from the given configuration. No socket
// is opened until Run is called.
func NewClient(cfg *ClientConfig) (*Client, error) {
	if cfg == nil {
		return nil, ErrClientConfigNil
	}

	c := &Client{
		cfg:         cfg,
		logger:      cfg.logger,
		commandMode: fri.PositionCommandMode,
		ioOutputs:   xsync.NewMapOf[string, float64](),
		ioInputs:    xsync.NewMapOf[string, float64](),
	}
	c.receiveMultiplier.Store(cfg.receiveMultiplier)

	return c, nil
}

// GetMetrics returns the metrics of the client.
func (c *Client) GetMetrics() *ClientMetrics {
	return &c.metrics
}

// SetJointPositions stages the commanded joint positions and switches the
// command mode to position control. positions must have exactly one value per
// joint.
func (c *Client) SetJointPositions(positions []float64) error {
	return c.stageJoints(fri.PositionCommandMode, positions)
}

// SetJointTorques stages the commanded joint torque offsets and switches the
// command mode to torque control. torques must have exactly one value per
// joint.
func (c *Client) SetJointTorques(torques []float64) error {
	return c.stageJoints(fri.TorqueCommandMode, torques)
}

func (c *Client) stageJoints(mode fri.ClientCommandModeID, values []float64) error {
	if len(values) != fri.JointCount {
		return fmt.Errorf("%w: got %d values, want %d", fri.ErrInvalidJointCount, len(values), fri.JointCount)
	}

	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()

	c.commandMode = mode
	copy(c.jointValues[:], values)

	return nil
}

// SetReceiveMultiplier changes the answer rate: one command frame is sent per
// multiplier state frames. Takes effect on the next state frame.
func (c *Client) SetReceiveMultiplier(multiplier uint32) error {
	if multiplier < 1 {
		return fmt.Errorf("%w: %d", fri.ErrInvalidMultiplier, multiplier)
	}
	c.receiveMultiplier.Store(multiplier)

	return nil
}

// SetIOValue stages a named output value sent with every command frame.
func (c *Client) SetIOValue(name string, value float64) error {
	if name == "" || len(name) > maxIONameLen {
		return fmt.Errorf("friudp: io name length out of range [1, %d]", maxIONameLen)
	}
	c.ioOutputs.Store(name, value)

	return nil
}

// GetIOValue returns the named input value of the most recent state frame.
func (c *Client) GetIOValue(name string) (float64, bool) {
	return c.ioInputs.Load(name)
}

// Run binds the local port and exchanges frames until ctx is canceled.
// It blocks the calling goroutine and returns nil on cancellation.
func (c *Client) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrClientRunning
	}
	defer c.running.Store(false)

	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: c.cfg.port})
	if err != nil {
		return fmt.Errorf("friudp: listen on port %d: %w", c.cfg.port, err)
	}
	defer conn.Close() //nolint:errcheck

	c.logger.Info("cyclic client listening", "port", c.cfg.port)

	watchdogDone := make(chan struct{})
	if c.cfg.watchdogTimeout > 0 {
		c.lastRecvNano.Store(time.Now().UnixNano())
		go c.watchdogLoop(watchdogDone)
	}
	defer close(watchdogDone)

	buf := make([]byte, c.cfg.readBufferSize)
	var framesSinceReply uint32

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		_ = conn.SetReadDeadline(time.Now().Add(readPollInterval))
		n, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			var nerr net.Error
			if errors.As(err, &nerr) && nerr.Timeout() {
				continue
			}

			return fmt.Errorf("friudp: read: %w", err)
		}

		state, err := DecodeRobotState(buf[:n])
		if err != nil {
			c.metrics.incMalformedRecvCount()
			c.logger.Warn("dropping malformed datagram", "bytes", n, "error", err)

			continue
		}

		c.metrics.incStateRecvCount()
		c.lastRecvNano.Store(time.Now().UnixNano())

		for name, value := range state.IOValues {
			c.ioInputs.Store(name, value)
		}

		c.invokeStateHandler(state)

		framesSinceReply++
		if framesSinceReply >= c.receiveMultiplier.Load() {
			framesSinceReply = 0
			c.sendCommand(conn, addr, state.Sequence)
		}
	}
}

func (c *Client) sendCommand(conn *net.UDPConn, addr *net.UDPAddr, seq uint32) {
	c.cmdMu.Lock()
	cmd := &JointCommand{
		Sequence:    seq,
		Mode:        c.commandMode,
		JointValues: c.jointValues,
	}
	c.cmdMu.Unlock()

	if c.ioOutputs.Size() > 0 {
		cmd.IOValues = make(map[string]float64, c.ioOutputs.Size())
		c.ioOutputs.Range(func(name string, value float64) bool {
			cmd.IOValues[name] = value
			return true
		})
	}

	if _, err := conn.WriteToUDP(EncodeJointCommand(cmd), addr); err != nil {
		c.logger.Warn("failed to send command frame", "seq", seq, "error", err)

		return
	}

	c.metrics.incCommandSendCount()
}

// invokeStateHandler runs the state handler on the receive goroutine with
// panic protection, so a faulty handler cannot kill the cyclic exchange.
func (c *Client) invokeStateHandler(state *RobotState) {
	if c.cfg.stateHandler == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("panic in state handler", "seq", state.Sequence, "panic", r)
		}
	}()

	c.cfg.stateHandler(state)
}

// watchdogLoop polls the last receive time and fires the timeout handler once
// per silence period. A fresh frame rearms the watchdog.
func (c *Client) watchdogLoop(done <-chan struct{}) {
	timeout := c.cfg.watchdogTimeout
	fired := false

	for {
		t := pool.GetTimer(timeout / 4)
		select {
		case <-done:
			pool.PutTimer(t)
			return
		case <-t.C:
			pool.PutTimer(t)
		}

		elapsed := time.Duration(time.Now().UnixNano() - c.lastRecvNano.Load())
		if elapsed < timeout {
			fired = false
			continue
		}

		if fired {
			continue
		}
		fired = true

		c.metrics.incWatchdogTimeoutCount()
		c.logger.Warn("no state frame within watchdog timeout", "elapsed", elapsed)

		if handler := c.cfg.timeoutHandler; handler != nil {
			go func() {
				defer func() {
					if r := recover(); r != nil {
						c.logger.Error("panic in timeout handler", "panic", r)
					}
				}()

				handler(elapsed)
			}()
		}
	}
}
