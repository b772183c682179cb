package sunrise

import (
	"sync/atomic"
)

// ConnectionMetrics contains atomic metrics for a command-channel session.
// Metrics can be used as the value of a prometheus CounterFunc or GaugeFunc.
type ConnectionMetrics struct {
	// CommandSendCount indicates the number of commands sent.
	CommandSendCount atomic.Uint64
	// ReplyRecvCount indicates the number of command replies received.
	ReplyRecvCount atomic.Uint64
	// RejectCount indicates the number of commands the controller rejected.
	RejectCount atomic.Uint64
	// MalformedRecvCount indicates the number of malformed inbound messages dropped.
	MalformedRecvCount atomic.Uint64
	// SessionEndedCount indicates the number of unsolicited session-termination events.
	SessionEndedCount atomic.Uint64
	// ReconnectCount indicates the number of reconnect attempts after connection loss.
	ReconnectCount atomic.Uint64
}

func (m *ConnectionMetrics) incCommandSendCount() {
	m.CommandSendCount.Add(1)
}

func (m *ConnectionMetrics) incReplyRecvCount() {
	m.ReplyRecvCount.Add(1)
}

func (m *ConnectionMetrics) incRejectCount() {
	m.RejectCount.Add(1)
}

func (m *ConnectionMetrics) incMalformedRecvCount() {
	m.MalformedRecvCount.Add(1)
}

func (m *ConnectionMetrics) incSessionEndedCount() {
	m.SessionEndedCount.Add(1)
}

func (m *ConnectionMetrics) incReconnectCount() {
	m.ReconnectCount.Add(1)
}
