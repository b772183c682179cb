package sunrise

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kukabot/go-fri/fri"
)

// fakeTransport is an in-memory fri.Transport that records sent messages and
// lets tests deliver inbound data on an arbitrary goroutine, like a real
// transport's delivery thread would.
type fakeTransport struct {
	mu      sync.Mutex
	sent    [][]byte
	closed  bool
	sendErr error

	host   string
	port   int
	onData fri.DataHandler
	onLost fri.ConnectionLostHandler

	// respond, when set, builds an asynchronous reply for each sent message.
	respond func(msg []byte) []byte
}

func (ft *fakeTransport) Send(data []byte) error {
	ft.mu.Lock()
	ft.sent = append(ft.sent, data)
	respond := ft.respond
	sendErr := ft.sendErr
	ft.mu.Unlock()

	if sendErr != nil {
		return sendErr
	}

	if respond != nil {
		go func() {
			if reply := respond(data); reply != nil {
				ft.onData(reply)
			}
		}()
	}

	return nil
}

func (ft *fakeTransport) Close() error {
	ft.mu.Lock()
	defer ft.mu.Unlock()

	ft.closed = true

	return nil
}

func (ft *fakeTransport) isClosed() bool {
	ft.mu.Lock()
	defer ft.mu.Unlock()

	return ft.closed
}

func (ft *fakeTransport) sentMessages() [][]byte {
	ft.mu.Lock()
	defer ft.mu.Unlock()

	msgs := make([][]byte, len(ft.sent))
	copy(msgs, ft.sent)

	return msgs
}

// deliver injects inbound bytes as if received from the controller.
func (ft *fakeTransport) deliver(data []byte) {
	ft.onData(data)
}

// dropConnection simulates a connection loss observed by the transport.
func (ft *fakeTransport) dropConnection() {
	ft.onLost(ft.host, ft.port)
}

// fakeFactory creates fakeTransports and keeps every instance it handed out.
type fakeFactory struct {
	mu         sync.Mutex
	transports []*fakeTransport
	respond    func(msg []byte) []byte
	dialErr    error
}

func (f *fakeFactory) factory(host string, port int, onData fri.DataHandler, onLost fri.ConnectionLostHandler) (fri.Transport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.dialErr != nil {
		return nil, f.dialErr
	}

	ft := &fakeTransport{
		host:    host,
		port:    port,
		onData:  onData,
		onLost:  onLost,
		respond: f.respond,
	}
	f.transports = append(f.transports, ft)

	return ft, nil
}

func (f *fakeFactory) last() *fakeTransport {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.transports) == 0 {
		return nil
	}

	return f.transports[len(f.transports)-1]
}

func (f *fakeFactory) dialCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.transports)
}

// echoSuccess accepts every command with a Success flag.
func echoSuccess(msg []byte) []byte {
	return []byte{byte(fri.Accepted), msg[0], byte(fri.Success)}
}

func newTestConnection(t *testing.T, factory *fakeFactory, opts ...ConnOption) *Connection {
	t.Helper()

	opts = append([]ConnOption{
		WithTransportFactory(factory.factory),
		WithReplyTimeout(2 * time.Second),
	}, opts...)

	cfg, err := NewConnectionConfig("127.0.0.1", 30200, opts...)
	require.NoError(t, err)

	conn, err := NewConnection(cfg)
	require.NoError(t, err)

	return conn
}

func TestConnectDisconnect(t *testing.T) {
	require := require.New(t)

	factory := &fakeFactory{respond: echoSuccess}
	conn := newTestConnection(t, factory)

	require.False(conn.IsConnected())

	require.NoError(conn.Connect())
	require.True(conn.IsConnected())
	require.Equal("127.0.0.1", factory.last().host)
	require.Equal(30200, factory.last().port)

	transport := factory.last()
	require.NoError(conn.Disconnect())
	require.False(conn.IsConnected())
	require.True(transport.isClosed())

	// Disconnecting again is a no-op.
	require.NoError(conn.Disconnect())

	// No transport anymore, commands fail immediately.
	require.ErrorIs(conn.StartFRI(), fri.ErrNotConnected)
}

func TestConnectTransportFailure(t *testing.T) {
	require := require.New(t)

	factory := &fakeFactory{dialErr: errors.New("connection refused")}
	conn := newTestConnection(t, factory)

	require.Error(conn.Connect())
	require.False(conn.IsConnected())
}

func TestCommandOutcomes(t *testing.T) {
	tests := []struct {
		name    string
		respond func(msg []byte) []byte
		wantErr error
	}{
		{
			name:    "accepted with success",
			respond: echoSuccess,
			wantErr: nil,
		},
		{
			name: "accepted without success",
			respond: func(msg []byte) []byte {
				return []byte{byte(fri.Accepted), msg[0], byte(fri.NoSuccess)}
			},
			wantErr: fri.ErrCommandFailed,
		},
		{
			name: "rejected with matching id",
			respond: func(msg []byte) []byte {
				return []byte{byte(fri.Rejected), msg[0]}
			},
			wantErr: fri.ErrCommandRejected,
		},
		{
			name: "rejected with foreign id",
			respond: func(msg []byte) []byte {
				return []byte{byte(fri.Rejected), byte(fri.EndFRI)}
			},
			wantErr: fri.ErrCommandRejected,
		},
		{
			name: "unknown command",
			respond: func(msg []byte) []byte {
				return []byte{byte(fri.Unknown)}
			},
			wantErr: fri.ErrCommandUnknown,
		},
		{
			name: "accepted echoing a stale command id",
			respond: func(msg []byte) []byte {
				return []byte{byte(fri.Accepted), byte(fri.EndFRI), byte(fri.Success)}
			},
			wantErr: fri.ErrReplyMismatch,
		},
		{
			name: "unlisted state byte decodes to unknown",
			respond: func(msg []byte) []byte {
				return []byte{0xEE}
			},
			wantErr: fri.ErrCommandUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require := require.New(t)

			factory := &fakeFactory{respond: echoSuccess}
			conn := newTestConnection(t, factory)
			require.NoError(conn.Connect())

			factory.last().mu.Lock()
			factory.last().respond = tt.respond
			factory.last().mu.Unlock()

			err := conn.StartFRI()
			if tt.wantErr == nil {
				require.NoError(err)
			} else {
				require.ErrorIs(err, tt.wantErr)
			}
		})
	}
}

func TestMalformedReplyDoesNotWakeWaiter(t *testing.T) {
	tests := []struct {
		name  string
		reply []byte
	}{
		{name: "undersized accepted", reply: []byte{byte(fri.Accepted)}},
		{name: "undersized accepted two bytes", reply: []byte{byte(fri.Accepted), byte(fri.StartFRI)}},
		{name: "undersized rejected", reply: []byte{byte(fri.Rejected)}},
		{name: "empty", reply: []byte{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require := require.New(t)

			factory := &fakeFactory{respond: echoSuccess}
			conn := newTestConnection(t, factory, WithReplyTimeout(100*time.Millisecond))
			require.NoError(conn.Connect())

			transport := factory.last()
			transport.mu.Lock()
			transport.respond = func(msg []byte) []byte { return tt.reply }
			transport.mu.Unlock()

			// The malformed reply is dropped, so the waiter runs into the
			// bounded reply timeout instead of consuming it.
			require.ErrorIs(conn.StartFRI(), fri.ErrReplyTimeout)

			if len(tt.reply) > 0 {
				require.Equal(uint64(1), conn.GetMetrics().MalformedRecvCount.Load())
			}

			// The dropped input must not leave a stale answer behind: the
			// next command with a proper reply succeeds.
			transport.mu.Lock()
			transport.respond = echoSuccess
			transport.mu.Unlock()
			require.NoError(conn.StartFRI())
		})
	}
}

func TestUnsolicitedSessionEnded(t *testing.T) {
	tests := []struct {
		name  string
		state fri.CommandState
	}{
		{name: "control ended", state: fri.ErrorControlEnded},
		{name: "fri ended", state: fri.ErrorFRIEnded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require := require.New(t)

			controlEnded := make(chan struct{}, 4)
			friEnded := make(chan struct{}, 4)

			factory := &fakeFactory{respond: echoSuccess}
			conn := newTestConnection(t, factory,
				WithReplyTimeout(150*time.Millisecond),
				WithControlEndedHandler(func() { controlEnded <- struct{}{} }),
				WithFRIEndedHandler(func() { friEnded <- struct{}{} }),
			)
			require.NoError(conn.Connect())

			factory.last().deliver([]byte{byte(tt.state)})

			notified := controlEnded
			other := friEnded
			if tt.state == fri.ErrorFRIEnded {
				notified, other = friEnded, controlEnded
			}

			select {
			case <-notified:
			case <-time.After(time.Second):
				t.Fatal("session ended handler not invoked")
			}

			// Exactly one invocation, and only for the matching handler.
			select {
			case <-notified:
				t.Fatal("session ended handler invoked more than once")
			case <-other:
				t.Fatal("wrong session ended handler invoked")
			case <-time.After(50 * time.Millisecond):
			}

			require.Equal(uint64(1), conn.GetMetrics().SessionEndedCount.Load())

			// The event must not complete a later command: with no reply the
			// next command times out rather than consuming a stale answer.
			transport := factory.last()
			transport.mu.Lock()
			transport.respond = func(msg []byte) []byte { return nil }
			transport.mu.Unlock()

			require.ErrorIs(conn.EndFRI(), fri.ErrReplyTimeout)
		})
	}
}

func TestSessionEndedWhileCommandInFlight(t *testing.T) {
	require := require.New(t)

	invoked := make(chan struct{}, 1)

	factory := &fakeFactory{respond: echoSuccess}
	conn := newTestConnection(t, factory,
		WithControlEndedHandler(func() { invoked <- struct{}{} }),
	)
	require.NoError(conn.Connect())

	// The in-flight command is answered by the termination event itself.
	transport := factory.last()
	transport.mu.Lock()
	transport.respond = func(msg []byte) []byte {
		return []byte{byte(fri.ErrorControlEnded)}
	}
	transport.mu.Unlock()

	require.ErrorIs(conn.ActivateControl(), fri.ErrControlEnded)

	select {
	case <-invoked:
		t.Fatal("handler must not fire when the event answers a command")
	case <-time.After(50 * time.Millisecond):
	}

	require.Equal(uint64(0), conn.GetMetrics().SessionEndedCount.Load())
}

func TestSessionEndedHandlerPanicIsRecovered(t *testing.T) {
	require := require.New(t)

	invoked := make(chan struct{}, 1)

	factory := &fakeFactory{respond: echoSuccess}
	conn := newTestConnection(t, factory,
		WithControlEndedHandler(func() {
			invoked <- struct{}{}
			panic("handler blew up")
		}),
	)
	require.NoError(conn.Connect())

	factory.last().deliver([]byte{byte(fri.ErrorControlEnded)})

	select {
	case <-invoked:
	case <-time.After(time.Second):
		t.Fatal("handler not invoked")
	}

	// The session survives the panicking handler.
	require.NoError(conn.StartFRI())
}

func TestFacadeWireMessages(t *testing.T) {
	require := require.New(t)

	factory := &fakeFactory{respond: echoSuccess}
	conn := newTestConnection(t, factory)
	require.NoError(conn.Connect())

	require.NoError(conn.StartFRI())
	require.NoError(conn.EndFRI())
	require.NoError(conn.ActivateControl())
	require.NoError(conn.DeactivateControl())
	require.NoError(conn.SetPositionControlMode())
	require.NoError(conn.SetClientCommandMode(fri.TorqueCommandMode))
	require.NoError(conn.SetFRIConfig(30201, 10, 5))

	sent := factory.last().sentMessages()
	require.Len(sent, 8)

	require.Equal([]byte{byte(fri.Connect)}, sent[0])
	require.Equal([]byte{byte(fri.StartFRI)}, sent[1])
	require.Equal([]byte{byte(fri.EndFRI)}, sent[2])
	require.Equal([]byte{byte(fri.ActivateControl)}, sent[3])
	require.Equal([]byte{byte(fri.DeactivateControl)}, sent[4])
	require.Equal([]byte{byte(fri.SetControlMode), byte(fri.PositionControlMode)}, sent[5])
	require.Equal([]byte{byte(fri.SetCommandMode), byte(fri.TorqueCommandMode)}, sent[6])

	wantFRIConfig := append([]byte{byte(fri.SetFRIConfig)}, fri.EncodeFRIConfig(30201, 10, 5)...)
	require.Equal(wantFRIConfig, sent[7])
}

func TestSetJointImpedanceControlModeWireFormat(t *testing.T) {
	require := require.New(t)

	factory := &fakeFactory{respond: echoSuccess}
	conn := newTestConnection(t, factory)
	require.NoError(conn.Connect())

	stiffness := make([]float64, fri.JointCount)
	damping := make([]float64, fri.JointCount)
	for i := range stiffness {
		stiffness[i] = 100.0
		damping[i] = 0.1
	}

	require.NoError(conn.SetJointImpedanceControlMode(stiffness, damping))

	sent := factory.last().sentMessages()
	msg := sent[len(sent)-1]

	require.Len(msg, 2+len(fri.ControlModeHeader)+2*fri.JointCount*8)
	require.Equal(byte(fri.SetControlMode), msg[0])
	require.Equal(byte(fri.JointImpedanceControlMode), msg[1])
	require.Equal(fri.ControlModeHeader, msg[2:2+len(fri.ControlModeHeader)])
}

func TestSendFailureClearsPendingWait(t *testing.T) {
	require := require.New(t)

	factory := &fakeFactory{respond: echoSuccess}
	conn := newTestConnection(t, factory)
	require.NoError(conn.Connect())

	transport := factory.last()
	transport.mu.Lock()
	transport.sendErr = errors.New("broken pipe")
	transport.mu.Unlock()

	require.Error(conn.StartFRI())

	// A late reply for the failed send must not satisfy the next command.
	transport.mu.Lock()
	transport.sendErr = nil
	transport.mu.Unlock()

	require.NoError(conn.StartFRI())
}

func TestReconnectOnConnectionLost(t *testing.T) {
	require := require.New(t)

	factory := &fakeFactory{respond: echoSuccess}
	conn := newTestConnection(t, factory)
	require.NoError(conn.Connect())
	require.Equal(1, factory.dialCount())

	// The transport reports the loss; the session reconnects to the same
	// endpoint with a brand-new transport and re-issues Connect.
	factory.last().dropConnection()

	require.Eventually(func() bool { return factory.dialCount() == 2 }, time.Second, 10*time.Millisecond)

	reconnected := factory.last()
	require.Eventually(func() bool {
		msgs := reconnected.sentMessages()
		return len(msgs) == 1 && msgs[0][0] == byte(fri.Connect)
	}, time.Second, 10*time.Millisecond)

	require.Equal("127.0.0.1", reconnected.host)
	require.Equal(30200, reconnected.port)
	require.True(conn.IsConnected())
	require.Equal(uint64(1), conn.GetMetrics().ReconnectCount.Load())
}

func TestNewConnectionValidation(t *testing.T) {
	require := require.New(t)

	_, err := NewConnection(nil)
	require.ErrorIs(err, ErrConnConfigNil)

	_, err = NewConnectionConfig("not a host name", 30200)
	require.Error(err)

	_, err = NewConnectionConfig("127.0.0.1", 0)
	require.Error(err)

	_, err = NewConnectionConfig("127.0.0.1", 30200, WithReplyTimeout(-time.Second))
	require.Error(err)

	_, err = NewConnectionConfig("127.0.0.1", 30200, WithTransportFactory(nil))
	require.Error(err)
}
