package client

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/looplab/fsm"

	"github.com/a-darwish/malicious-pulseaudio-clients/internal/protocol"
	"github.com/a-darwish/malicious-pulseaudio-clients/internal/source"
)

// Stream states
const (
	StreamCreating   = "creating"
	StreamReady      = "ready"
	StreamTerminated = "terminated"
	StreamFailed     = "failed"
)

// WriteFunc is invoked on the event loop whenever the server grants write
// credit to the stream. hint is the number of bytes the transport will
// currently accept.
type WriteFunc func(s *Stream, hint int)

// DrainFunc is invoked once when the server confirms that all buffered
// data for the stream has been played out.
type DrainFunc func(s *Stream)

// FailedFunc is invoked when the server rejects or aborts the stream.
// When nil, a stream failure is escalated to a connection failure.
type FailedFunc func(s *Stream, e *protocol.ErrorPayload)

// Stream is one outbound playback channel bound to a server-chosen sink.
// All callbacks run on the connection's event loop; frames arriving after
// the stream reached a terminal state are dropped.
type Stream struct {
	id        uint32
	name      string
	conn      *Conn
	sm        *fsm.FSM
	seq       uint32
	sinkIndex uint32

	OnReady  func(*Stream)
	OnFailed FailedFunc

	write     WriteFunc
	drainDone DrainFunc
}

func newStream(c *Conn, id uint32, name string) *Stream {
	s := &Stream{
		id:   id,
		name: name,
		conn: c,
	}

	s.sm = fsm.NewFSM(
		StreamCreating,
		fsm.Events{
			{Name: "ready", Src: []string{StreamCreating}, Dst: StreamReady},
			{Name: "terminate", Src: []string{StreamReady}, Dst: StreamTerminated},
			{Name: "fail", Src: []string{StreamCreating, StreamReady}, Dst: StreamFailed},
		},
		fsm.Callbacks{},
	)

	return s
}

// ID returns the stream identifier.
func (s *Stream) ID() uint32 {
	return s.id
}

// Name returns the stream name sent to the server.
func (s *Stream) Name() string {
	return s.name
}

// State returns the current stream state.
func (s *Stream) State() string {
	return s.sm.Current()
}

// SinkIndex returns the index of the sink the server bound the stream to.
// Only meaningful once the stream is ready.
func (s *Stream) SinkIndex() uint32 {
	return s.sinkIndex
}

func (s *Stream) terminal() bool {
	return s.sm.Is(StreamTerminated) || s.sm.Is(StreamFailed)
}

// SetWriteCallback installs the write-credit callback.
func (s *Stream) SetWriteCallback(fn WriteFunc) {
	s.write = fn
}

// ClearWriteCallback detaches the write-credit callback so no further
// writes happen on this stream.
func (s *Stream) ClearWriteCallback() {
	s.write = nil
}

// Write sends one chunk of audio data down the stream. The caller is
// responsible for frame alignment.
func (s *Stream) Write(data []byte) error {
	if !s.sm.Is(StreamReady) {
		return fmt.Errorf("cannot write in stream state %s", s.sm.Current())
	}

	buf, err := protocol.EncodeStreamWrite(s.id, s.seq, data)
	if err != nil {
		return err
	}

	if _, err := s.conn.netConn.Write(buf); err != nil {
		return fmt.Errorf("failed writing audio data to stream: %w", err)
	}

	s.seq++
	s.conn.metrics.RecordWrite(len(data))
	return nil
}

// Feed writes audio from f until the server's credit grant is used up or
// the source is exhausted. Grants larger than one frame can carry are
// split across multiple writes; every write stays frame-aligned.
func (s *Stream) Feed(f *source.File, credit int) error {
	for credit > 0 && !f.Exhausted() {
		n := credit
		if n > protocol.MaxWriteChunk {
			n = protocol.MaxWriteChunk
		}

		chunk := f.NextChunk(n)
		if len(chunk) == 0 {
			return nil
		}

		if err := s.Write(chunk); err != nil {
			return err
		}
		credit -= len(chunk)
	}

	return nil
}

// Drain asks the server to confirm that all buffered data has been played
// out. The confirmation moves the stream to the terminated state; done
// fires exactly once, on the event loop, when it arrives.
func (s *Stream) Drain(done DrainFunc) error {
	if !s.sm.Is(StreamReady) {
		return fmt.Errorf("cannot drain in stream state %s", s.sm.Current())
	}

	s.drainDone = done
	if _, err := s.conn.netConn.Write(protocol.EncodeStreamDrain(s.id)); err != nil {
		return fmt.Errorf("could not drain playback stream: %w", err)
	}

	return nil
}

// handleFrame dispatches one server frame addressed to this stream.
// Runs on the event loop.
func (s *Stream) handleFrame(frame *protocol.Frame) {
	if s.terminal() {
		return
	}

	switch frame.Header.Op {
	case protocol.OpStreamReady:
		if !s.sm.Is(StreamCreating) {
			return
		}
		s.sinkIndex = frame.StreamReady.SinkIndex
		_ = s.sm.Event(context.Background(), "ready")
		s.conn.metrics.RecordStreamReady()
		s.conn.logger.Info("Playback stream successfully created",
			slog.Uint64("stream_id", uint64(s.id)),
			slog.Uint64("sink_index", uint64(s.sinkIndex)),
		)
		if s.OnReady != nil {
			s.OnReady(s)
		}

	case protocol.OpStreamRequest:
		if s.write != nil {
			s.write(s, int(frame.StreamRequest.Bytes))
		}

	case protocol.OpDrainDone:
		if !s.sm.Is(StreamReady) {
			return
		}
		_ = s.sm.Event(context.Background(), "terminate")
		s.conn.metrics.RecordDrainCompleted()
		s.conn.metrics.ActiveStreams.Dec()
		if s.drainDone != nil {
			done := s.drainDone
			s.drainDone = nil
			done(s)
		}

	case protocol.OpError:
		s.handleError(frame.Error)

	default:
		s.conn.logger.Warn("Unexpected frame on stream",
			slog.Uint64("stream_id", uint64(s.id)),
			slog.String("op", protocol.OpString(frame.Header.Op)),
		)
	}
}

// handleError moves the stream to the failed state and hands the server
// error to the failure policy: the OnFailed callback when set, otherwise
// the failure is fatal for the whole connection.
func (s *Stream) handleError(e *protocol.ErrorPayload) {
	wasReady := s.sm.Is(StreamReady)
	_ = s.sm.Event(context.Background(), "fail")
	s.conn.metrics.RecordStreamFailed()
	if wasReady {
		s.conn.metrics.ActiveStreams.Dec()
	}

	if s.OnFailed != nil {
		s.OnFailed(s, e)
		return
	}

	s.conn.Fail(fmt.Errorf("playback stream %d error: %s", s.id, e))
}
