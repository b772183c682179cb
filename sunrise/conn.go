package sunrise

import (
	"context"
	"fmt"
	"sync"

	"github.com/kukabot/go-fri/fri"
	"github.com/kukabot/go-fri/logger"
)

// Connection is a command-channel session with a Sunrise controller.
//
// It owns the transport for the lifetime of the session: the transport is
// created on Connect, destroyed on Disconnect or fatal transport failure, and
// a reconnect always creates a brand-new instance.
//
// All facade operations block the calling goroutine for the full round trip
// of exactly one in-flight command. The shared session record is mutated only
// by the transport's delivery goroutine (producer) and the blocked caller
// (consumer), both serialized through one mutex and condition variable.
type Connection struct {
	cfg    *ConnectionConfig
	logger logger.Logger

	transportMu sync.Mutex
	transport   fri.Transport

	mu   sync.Mutex
	cond *sync.Cond

	// Session record, guarded by mu. The last* fields are only meaningful
	// between answerReceived turning true and the waiter consuming them.
	lastState      fri.CommandState
	lastID         fri.CommandID
	lastSuccess    fri.CommandSuccess
	answerWanted   bool
	answerReceived bool

	metrics ConnectionMetrics
}

// NewConnection creates a command-channel session from the given
// configuration. No transport is opened until Connect is called.
func NewConnection(cfg *ConnectionConfig) (*Connection, error) {
	if cfg == nil {
		return nil, ErrConnConfigNil
	}

	c := &Connection{
		cfg:         cfg,
		logger:      cfg.logger,
		lastState:   fri.Accepted,
		lastID:      fri.Connect,
		lastSuccess: fri.NoSuccess,
	}
	c.cond = sync.NewCond(&c.mu)

	return c, nil
}

// GetMetrics returns the metrics of the session.
func (c *Connection) GetMetrics() *ConnectionMetrics {
	return &c.metrics
}

// IsConnected reports whether a transport is currently established.
func (c *Connection) IsConnected() bool {
	c.transportMu.Lock()
	defer c.transportMu.Unlock()

	return c.transport != nil
}

// Connect opens a new transport to the controller, replacing any prior one,
// and issues the Connect command. On transport failure no session is created
// and the error is returned; on protocol failure the transport stays open and
// the command error is returned.
func (c *Connection) Connect() error {
	transport, err := c.cfg.transportFactory(c.cfg.host, c.cfg.port, c.handleData, c.handleConnectionLost)
	if err != nil {
		if old := c.swapTransport(nil); old != nil {
			_ = old.Close()
		}
		c.logger.Error("failed to open command channel", "host", c.cfg.host, "port", c.cfg.port, "error", err)

		return fmt.Errorf("open command channel: %w", err)
	}

	if old := c.swapTransport(transport); old != nil {
		_ = old.Close()
	}

	return c.sendCommandAndWait(fri.Connect, nil)
}

// Disconnect issues the Disconnect command and, on success, closes and
// discards the transport. On failure the transport is left in place and the
// error returned; the session is then in an undefined connect state until the
// caller retries. Disconnecting an already-disconnected session is a no-op.
func (c *Connection) Disconnect() error {
	if !c.IsConnected() {
		return nil
	}

	if err := c.sendCommandAndWait(fri.Disconnect, nil); err != nil {
		return err
	}

	if old := c.swapTransport(nil); old != nil {
		_ = old.Close()
	}

	return nil
}

// StartFRI starts the cyclic real-time data exchange on the controller.
func (c *Connection) StartFRI() error {
	return c.sendCommandAndWait(fri.StartFRI, nil)
}

// EndFRI stops the cyclic real-time data exchange on the controller.
func (c *Connection) EndFRI() error {
	return c.sendCommandAndWait(fri.EndFRI, nil)
}

// ActivateControl hands joint command authority to this client.
func (c *Connection) ActivateControl() error {
	return c.sendCommandAndWait(fri.ActivateControl, nil)
}

// DeactivateControl returns joint command authority to the controller.
func (c *Connection) DeactivateControl() error {
	return c.sendCommandAndWait(fri.DeactivateControl, nil)
}

// SetPositionControlMode selects stiff position control.
func (c *Connection) SetPositionControlMode() error {
	return c.sendCommandAndWait(fri.SetControlMode, fri.EncodeControlMode(fri.PositionControlMode, nil, nil))
}

// SetJointImpedanceControlMode selects joint impedance control with the given
// per-joint stiffness and damping vectors.
//
// The vectors must carry fri.JointCount values each; a mismatch is not
// validated here and surfaces as a rejection from the controller.
func (c *Connection) SetJointImpedanceControlMode(stiffness []float64, damping []float64) error {
	return c.sendCommandAndWait(fri.SetControlMode, fri.EncodeControlMode(fri.JointImpedanceControlMode, stiffness, damping))
}

// SetClientCommandMode selects the client command mode of the cyclic channel.
func (c *Connection) SetClientCommandMode(mode fri.ClientCommandModeID) error {
	return c.sendCommandAndWait(fri.SetCommandMode, []byte{byte(mode)})
}

// SetFRIConfig pushes the cyclic channel configuration to the controller:
// the client's UDP port, the send period in milliseconds and the receive
// multiplier.
func (c *Connection) SetFRIConfig(remotePort int, sendPeriodMS int, receiveMultiplier int) error {
	return c.sendCommandAndWait(fri.SetFRIConfig, fri.EncodeFRIConfig(remotePort, sendPeriodMS, receiveMultiplier))
}

// sendCommandAndWait encodes and sends one command and blocks until its reply
// is consumed. It publishes answerWanted before sending, so a reply racing
// the send cannot be misclassified as unsolicited.
func (c *Connection) sendCommandAndWait(id fri.CommandID, payload []byte) error {
	c.transportMu.Lock()
	transport := c.transport
	c.transportMu.Unlock()

	if transport == nil {
		return fri.ErrNotConnected
	}

	var msg []byte
	if len(payload) == 0 {
		msg = fri.EncodeCommand(id)
	} else {
		msg = fri.EncodeCommandWithPayload(id, payload)
	}

	c.mu.Lock()
	c.answerWanted = true
	c.mu.Unlock()

	c.metrics.incCommandSendCount()
	c.logger.Debug("send command", "command", id, "len", len(msg))

	if err := transport.Send(msg); err != nil {
		c.mu.Lock()
		c.answerWanted = false
		c.mu.Unlock()

		c.logger.Error("failed to send command", "command", id, "error", err)

		return fmt.Errorf("send %v: %w", id, err)
	}

	return c.waitReply(id)
}

// waitReply blocks until the delivery goroutine records a reply, then maps
// the recorded session state to the operation result. The wait is unbounded
// unless a reply timeout is configured.
func (c *Connection) waitReply(id fri.CommandID) error {
	ctx := context.Background()
	if c.cfg.replyTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.replyTimeout)
		defer cancel()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	stopFunc := context.AfterFunc(ctx, func() {
		c.cond.Broadcast()
	})
	defer stopFunc()

	for !c.answerReceived {
		select {
		case <-ctx.Done():
			c.answerWanted = false
			c.logger.Warn("command reply timeout", "command", id, "timeout", c.cfg.replyTimeout)

			return fri.ErrReplyTimeout
		default:
			c.cond.Wait()
		}
	}

	c.answerReceived = false
	c.answerWanted = false

	switch c.lastState {
	case fri.Accepted:
		if c.lastID != id {
			return fri.ErrReplyMismatch
		}
		if c.lastSuccess != fri.Success {
			return fri.ErrCommandFailed
		}

		return nil
	case fri.Rejected:
		return fri.ErrCommandRejected
	case fri.ErrorControlEnded:
		return fri.ErrControlEnded
	case fri.ErrorFRIEnded:
		return fri.ErrFRIEnded
	default:
		return fri.ErrCommandUnknown
	}
}

// handleData is the transport's data handler; it runs on the transport's
// delivery goroutine. Malformed input is logged and dropped without touching
// the session record, so a pending waiter stays blocked until a valid reply,
// a reply timeout, or a disconnect.
func (c *Connection) handleData(data []byte) {
	if len(data) == 0 {
		return
	}

	reply, err := fri.DecodeReply(data)
	if err != nil {
		c.metrics.incMalformedRecvCount()
		c.logger.Warn("malformed message dropped", "len", len(data), "error", err)

		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	switch reply.State {
	case fri.Accepted:
		c.metrics.incReplyRecvCount()
		c.lastState = fri.Accepted
		c.lastID = reply.ID
		c.lastSuccess = reply.Success
		c.wakeWaiter()

	case fri.Rejected:
		c.metrics.incReplyRecvCount()
		c.metrics.incRejectCount()
		c.lastState = fri.Rejected
		c.lastID = reply.ID
		c.wakeWaiter()

	case fri.Unknown:
		c.metrics.incReplyRecvCount()
		c.lastState = fri.Unknown
		c.wakeWaiter()

	case fri.ErrorControlEnded, fri.ErrorFRIEnded:
		if c.answerWanted {
			// The termination event doubles as the awaited reply; the waiter
			// observes it as a command failure.
			c.lastState = reply.State
			c.wakeWaiter()

			return
		}

		c.metrics.incSessionEndedCount()
		c.dispatchSessionEnded(reply.State)
	}
}

// wakeWaiter marks the reply consumed-ready and wakes the single waiter.
// Callers must hold mu.
func (c *Connection) wakeWaiter() {
	c.answerReceived = true
	c.cond.Signal()
}

// dispatchSessionEnded delivers an unsolicited session-termination event to
// the registered handler on a detached goroutine, so the handler can issue
// its own session commands without deadlocking against the delivery
// goroutine. The dispatch is fire-and-forget: no result is awaited and panics
// are recovered and logged.
func (c *Connection) dispatchSessionEnded(state fri.CommandState) {
	var handler func()
	switch state {
	case fri.ErrorControlEnded:
		handler = c.cfg.controlEndedHandler
	case fri.ErrorFRIEnded:
		handler = c.cfg.friEndedHandler
	}

	if handler == nil {
		c.logger.Warn("session termination event without registered handler", "state", state)

		return
	}

	c.logger.Info("session termination event received", "state", state)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				c.logger.Error("panic in session ended handler", "state", state, "panic", r)
			}
		}()

		handler()
	}()
}

// handleConnectionLost is the transport's connection-lost handler. It
// discards the dead transport and makes one best-effort reconnect to the same
// endpoint, synchronously on the delivery goroutine. The reconnect itself
// issues a blocking Connect command, so this goroutine is occupied until that
// command resolves.
func (c *Connection) handleConnectionLost(host string, port int) {
	c.metrics.incReconnectCount()
	c.logger.Warn("connection lost, trying to reconnect", "host", host, "port", port)

	if old := c.swapTransport(nil); old != nil {
		_ = old.Close()
	}

	if err := c.Connect(); err != nil {
		c.logger.Error("reconnect failed", "host", host, "port", port, "error", err)
	}
}

// swapTransport installs the new transport and returns the previous one.
func (c *Connection) swapTransport(transport fri.Transport) fri.Transport {
	c.transportMu.Lock()
	old := c.transport
	c.transport = transport
	c.transportMu.Unlock()

	return old
}
