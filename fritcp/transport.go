// Package fritcp implements the FRI command-channel transport over TCP.
//
// A Transport owns one TCP connection and one reader goroutine. Received
// buffers are delivered through a fri.DataHandler; a connection lost for any
// reason other than a local Close is reported once through a
// fri.ConnectionLostHandler. Both callbacks run on the reader goroutine.
package fritcp

import (
	"context"
	"errors"
	"io"
	"net"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/kukabot/go-fri/fri"
	"github.com/kukabot/go-fri/logger"
)

const (
	defaultConnectTimeout = 3 * time.Second
	defaultWriteTimeout   = 5 * time.Second
	defaultReadBufferSize = 1024
)

// Option customizes a Transport created by Dial.
type Option func(*Transport)

// WithConnectTimeout sets the timeout for establishing the TCP connection.
// The default is 3 seconds.
func WithConnectTimeout(d time.Duration) Option {
	return func(t *Transport) { t.connectTimeout = d }
}

// WithWriteTimeout sets the per-message write deadline. The default is 5 seconds.
func WithWriteTimeout(d time.Duration) Option {
	return func(t *Transport) { t.writeTimeout = d }
}

// WithReadBufferSize sets the size of the receive buffer. Command replies are
// tiny frames, so the default of 1024 bytes is generous.
func WithReadBufferSize(size int) Option {
	return func(t *Transport) { t.readBufSize = size }
}

// WithLogger sets the logger. The default is the package-level default logger.
func WithLogger(l logger.Logger) Option {
	return func(t *Transport) { t.logger = l }
}

// Transport is a TCP implementation of the fri.Transport contract.
type Transport struct {
	host   string
	port   int
	conn   net.Conn
	logger logger.Logger

	onData fri.DataHandler
	onLost fri.ConnectionLostHandler

	connectTimeout time.Duration
	writeTimeout   time.Duration
	readBufSize    int

	closed atomic.Bool
}

var _ fri.Transport = (*Transport)(nil)

// Dial connects to the controller's command channel at host:port and starts
// the reader goroutine. onData must not be nil; onLost may be nil when the
// owner does not care about connection loss.
func Dial(host string, port int, onData fri.DataHandler, onLost fri.ConnectionLostHandler, opts ...Option) (*Transport, error) {
	if onData == nil {
		return nil, errors.New("fritcp: data handler is nil")
	}

	t := &Transport{
		host:           host,
		port:           port,
		onData:         onData,
		onLost:         onLost,
		logger:         logger.GetLogger(),
		connectTimeout: defaultConnectTimeout,
		writeTimeout:   defaultWriteTimeout,
		readBufSize:    defaultReadBufferSize,
	}

	for _, opt := range opts {
		opt(t)
	}

	address := net.JoinHostPort(host, strconv.Itoa(port))
	dialer := &net.Dialer{KeepAlive: 30 * time.Second}

	dialCtx, cancel := context.WithTimeout(context.Background(), t.connectTimeout)
	defer cancel()

	conn, err := dialer.DialContext(dialCtx, "tcp", address)
	if err != nil {
		t.logger.Debug("failed to dial command channel", "address", address, "error", err)
		return nil, err
	}

	t.conn = conn
	t.logger.Debug("command channel connected",
		"local_addr", conn.LocalAddr().String(),
		"remote_addr", conn.RemoteAddr().String(),
	)

	go t.readerLoop()

	return t, nil
}

// Send writes the message to the controller. A send on a closed transport
// returns fri.ErrConnClosed.
func (t *Transport) Send(data []byte) error {
	if t.closed.Load() {
		return fri.ErrConnClosed
	}

	if err := t.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout)); err != nil {
		return err
	}

	_, err := t.conn.Write(data)

	return err
}

// Close tears the connection down. It is idempotent, and the read failure it
// provokes does not fire the connection-lost handler.
func (t *Transport) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}

	if tcpConn, ok := t.conn.(*net.TCPConn); ok {
		_ = tcpConn.SetLinger(0)
	}

	return t.conn.Close()
}

// readerLoop reads from the connection until it fails and delivers every
// received buffer to the data handler. The command channel has no framing
// beyond the messages themselves; replies are short and arrive whole.
func (t *Transport) readerLoop() {
	buf := make([]byte, t.readBufSize)

	for {
		n, err := t.conn.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			t.onData(data)
		}

		if err == nil {
			continue
		}

		if t.closed.Load() {
			return
		}

		if err != io.EOF && !errors.Is(err, net.ErrClosed) && !strings.Contains(err.Error(), "connection reset by peer") {
			t.logger.Error("command channel read failed", "error", err)
		}

		t.closed.Store(true)
		_ = t.conn.Close()

		if t.onLost != nil {
			t.onLost(t.host, t.port)
		}

		return
	}
}
