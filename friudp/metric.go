package friudp

import (
	"sync/atomic"
)

// ClientMetrics contains atomic metrics for a cyclic UDP client.
// Metrics can be used as the value of a prometheus CounterFunc or GaugeFunc.
type ClientMetrics struct {
	// StateRecvCount indicates the number of state frames received.
	StateRecvCount atomic.Uint64
	// CommandSendCount indicates the number of command frames sent.
	CommandSendCount atomic.Uint64
	// MalformedRecvCount indicates the number of malformed datagrams dropped.
	MalformedRecvCount atomic.Uint64
	// WatchdogTimeoutCount indicates the number of watchdog expiries.
	WatchdogTimeoutCount atomic.Uint64
}

func (m *ClientMetrics) incStateRecvCount() {
	m.StateRecvCount.Add(1)
}

func (m *ClientMetrics) incCommandSendCount() {
	m.CommandSendCount.Add(1)
}

func (m *ClientMetrics) incMalformedRecvCount() {
	m.MalformedRecvCount.Add(1)
}

func (m *ClientMetrics) incWatchdogTimeoutCount() {
	m.WatchdogTimeoutCount.Add(1)
}
