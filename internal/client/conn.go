package client

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"

	"github.com/google/uuid"
	"github.com/looplab/fsm"

	"github.com/a-darwish/malicious-pulseaudio-clients/internal/config"
	"github.com/a-darwish/malicious-pulseaudio-clients/internal/eventloop"
	"github.com/a-darwish/malicious-pulseaudio-clients/internal/metrics"
	"github.com/a-darwish/malicious-pulseaudio-clients/internal/protocol"
	"github.com/a-darwish/malicious-pulseaudio-clients/internal/source"
)

// Connection states
const (
	StateConnecting  = "connecting"
	StateAuthorizing = "authorizing"
	StateSettingName = "setting_name"
	StateReady       = "ready"
	StateTerminated  = "terminated"
	StateFailed      = "failed"
)

// Conn is the single connection to the sound server. It multiplexes all
// stream and control frames, drives the handshake state machine and owns
// the per-connection stream table.
//
// All state mutation happens on the event loop goroutine: the transport
// reader only posts parsed frames onto the loop. A failure anywhere is
// terminal for the process; there is no retry policy.
type Conn struct {
	logger  *slog.Logger
	loop    *eventloop.Loop
	metrics *metrics.Metrics

	appName    string
	instanceID string
	socket     string

	netConn net.Conn
	sm      *fsm.FSM

	streams      map[uint32]*Stream
	nextStreamID uint32

	// OnReady runs on the event loop once the handshake completes.
	OnReady func(*Conn)
}

// New creates a connection bound to the given event loop. Nothing is
// dialed until Connect.
func New(logger *slog.Logger, loop *eventloop.Loop, m *metrics.Metrics, cfg config.ServerConfig) *Conn {
	c := &Conn{
		logger:     logger,
		loop:       loop,
		metrics:    m,
		appName:    cfg.ApplicationName,
		instanceID: uuid.NewString(),
		socket:     cfg.Socket,
		streams:    make(map[uint32]*Stream),
	}

	c.sm = fsm.NewFSM(
		StateConnecting,
		fsm.Events{
			{Name: "authorize", Src: []string{StateConnecting}, Dst: StateAuthorizing},
			{Name: "set_name", Src: []string{StateAuthorizing}, Dst: StateSettingName},
			{Name: "ready", Src: []string{StateSettingName}, Dst: StateReady},
			{Name: "terminate", Src: []string{StateReady}, Dst: StateTerminated},
			{Name: "fail", Src: []string{StateConnecting, StateAuthorizing, StateSettingName, StateReady}, Dst: StateFailed},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				c.metrics.RecordStateTransition(e.Dst)
				c.logger.Debug("Connection state changed",
					slog.String("from", e.Src),
					slog.String("to", e.Dst),
				)
			},
		},
	)

	return c
}

// State returns the current connection state.
func (c *Conn) State() string {
	return c.sm.Current()
}

// terminal reports whether the connection reached Terminated or Failed.
// Frames arriving past a terminal state are dropped.
func (c *Conn) terminal() bool {
	return c.sm.Is(StateTerminated) || c.sm.Is(StateFailed)
}

// Connect dials the server socket, opens the handshake and starts the
// transport reader. The handshake completes asynchronously on the event
// loop; OnReady fires when the connection reaches the ready state.
func (c *Conn) Connect() error {
	path := c.socket
	if path == "" {
		path = DefaultSocketPath()
	}

	netConn, err := net.Dial("unix", path)
	if err != nil {
		return fmt.Errorf("failed to connect to sound server at %s: %w", path, err)
	}

	if err := c.start(netConn); err != nil {
		netConn.Close()
		return err
	}

	c.logger.Info("Connecting to sound server",
		slog.String("socket", path),
		slog.String("application_name", c.appName),
		slog.String("instance_id", c.instanceID),
	)

	return nil
}

// start binds the transport, opens the handshake and launches the reader.
// The caller closes netConn when start fails.
func (c *Conn) start(netConn net.Conn) error {
	c.netConn = netConn

	if err := c.sm.Event(context.Background(), "authorize"); err != nil {
		return fmt.Errorf("connection already past the connecting state: %w", err)
	}

	if _, err := netConn.Write(protocol.EncodeHello(LoadCookie())); err != nil {
		return fmt.Errorf("failed to send hello frame: %w", err)
	}

	go c.readLoop()

	return nil
}

// readLoop reads frames off the transport and posts them onto the event
// loop. It is the only code besides Connect that touches the socket read
// side; it never touches connection state directly.
func (c *Conn) readLoop() {
	for {
		frame, err := protocol.ReadFrame(c.netConn)
		if err != nil {
			c.loop.Post(func() { c.handleDisconnect(err) })
			return
		}
		c.loop.Post(func() { c.handleFrame(frame) })
	}
}

// handleDisconnect maps transport teardown to a terminal state. A clean
// EOF on a ready connection is server-initiated termination (success);
// anything else is a failure.
func (c *Conn) handleDisconnect(err error) {
	if c.terminal() {
		return
	}

	if err == io.EOF && c.sm.Is(StateReady) {
		_ = c.sm.Event(context.Background(), "terminate")
		c.logger.Info("Sound server closed the connection")
		c.loop.Quit(0)
		return
	}

	c.Fail(fmt.Errorf("connection to sound server lost: %w", err))
}

// handleFrame dispatches one server frame. Runs on the event loop.
func (c *Conn) handleFrame(frame *protocol.Frame) {
	if c.terminal() {
		return
	}

	header := frame.Header

	// Stream-level frames are routed by stream ID
	if header.StreamID != 0 {
		stream, exists := c.streams[header.StreamID]
		if !exists {
			c.logger.Warn("Frame for unknown stream",
				slog.String("op", protocol.OpString(header.Op)),
				slog.Uint64("stream_id", uint64(header.StreamID)),
			)
			return
		}
		stream.handleFrame(frame)
		return
	}

	switch header.Op {
	case protocol.OpAuthOK:
		if !c.sm.Is(StateAuthorizing) {
			c.Fail(fmt.Errorf("unexpected AuthOK in state %s", c.sm.Current()))
			return
		}
		_ = c.sm.Event(context.Background(), "set_name")
		if _, err := c.netConn.Write(protocol.EncodeSetName(c.appName, c.instanceID)); err != nil {
			c.Fail(fmt.Errorf("failed to send setname frame: %w", err))
		}

	case protocol.OpReady:
		if !c.sm.Is(StateSettingName) {
			c.Fail(fmt.Errorf("unexpected Ready in state %s", c.sm.Current()))
			return
		}
		_ = c.sm.Event(context.Background(), "ready")
		c.logger.Info("Connection established with sound server")
		if c.OnReady != nil {
			c.OnReady(c)
		}

	case protocol.OpError:
		c.Fail(fmt.Errorf("sound server connection failure: %s", frame.Error))

	default:
		c.Fail(fmt.Errorf("unexpected frame %s on connection", protocol.OpString(header.Op)))
	}
}

// Fail moves the connection to the failed state, logs the server-reported
// error and terminates the process with a failure status. Calling it on a
// connection already in a terminal state is a no-op.
func (c *Conn) Fail(err error) {
	if c.terminal() {
		return
	}

	_ = c.sm.Event(context.Background(), "fail")
	c.logger.Error("Fatal connection error", slog.String("error", err.Error()))
	c.loop.Quit(1)
}

// NewStream requests a new playback stream bound to a sink chosen by the
// server. The stream starts in the creating state; the server's answer
// arrives asynchronously as StreamReady or Error.
func (c *Conn) NewStream(name string, spec source.SampleSpec) (*Stream, error) {
	if !c.sm.Is(StateReady) {
		return nil, fmt.Errorf("cannot create stream in connection state %s", c.sm.Current())
	}

	c.nextStreamID++
	stream := newStream(c, c.nextStreamID, name)
	c.streams[stream.id] = stream
	c.metrics.RecordStreamRequested()

	buf := protocol.EncodeStreamNew(stream.id, name, uint8(spec.Format), uint32(spec.Rate), uint8(spec.Channels))
	if _, err := c.netConn.Write(buf); err != nil {
		return nil, fmt.Errorf("failed to send stream-new frame: %w", err)
	}

	return stream, nil
}

// StreamCount returns the number of streams created on this connection.
func (c *Conn) StreamCount() int {
	return len(c.streams)
}

// Close tears down the transport. It is only used by tests; the clients
// themselves end by process exit.
func (c *Conn) Close() error {
	if c.netConn != nil {
		return c.netConn.Close()
	}
	return nil
}
