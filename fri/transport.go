package fri

// DataHandler is invoked by a Transport for every received buffer. It runs on
// a goroutine the transport owns; implementations must not block it for long.
type DataHandler func(data []byte)

// ConnectionLostHandler is invoked by a Transport once when the connection is
// lost for a reason other than a local Close. It receives the endpoint the
// transport was connected to, so the owner can attempt a reconnect.
type ConnectionLostHandler func(host string, port int)

// Transport is a point-to-point byte-stream connection carrying the command
// channel. Send errors that stem from a broken connection surface through the
// ConnectionLostHandler rather than the Send return value.
type Transport interface {
	// Send writes the message to the peer.
	Send(data []byte) error
	// Close tears the connection down. It is idempotent and suppresses the
	// ConnectionLostHandler for the resulting read failure.
	Close() error
}

// TransportFactory opens a Transport to the given endpoint with the two
// callbacks wired in. The sunrise package uses it to create a fresh transport
// on every connect; tests substitute an in-memory implementation.
type TransportFactory func(host string, port int, onData DataHandler, onLost ConnectionLostHandler) (Transport, error)
