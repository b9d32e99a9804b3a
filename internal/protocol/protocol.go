package protocol

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Protocol constants for the sound server's native wire format
const (
	// Client -> server opcodes
	OpHello       = 0x01
	OpSetName     = 0x03
	OpStreamNew   = 0x10
	OpStreamWrite = 0x12
	OpStreamDrain = 0x14

	// Server -> client opcodes
	OpAuthOK        = 0x02
	OpReady         = 0x04
	OpStreamReady   = 0x11
	OpStreamRequest = 0x13
	OpDrainDone     = 0x15
	OpError         = 0x7f

	// Frame structure sizes
	HeaderSize = 8 // 1 + 2 + 4 + 1 bytes

	// Fixed payload sizes
	HelloPayloadSize         = 4 + CookieSize
	SetNamePayloadSize       = AppNameSize + InstanceIDSize
	StreamNewPayloadSize     = StreamNameSize + 6 // name + format:1 + rate:4 + channels:1
	StreamReadyPayloadSize   = 4
	StreamRequestPayloadSize = 4
	WritePayloadHeaderSize   = 4 // sequence number
	ErrorPayloadHeaderSize   = 4 // error code, text is the remainder

	// String field sizes
	CookieSize     = 16
	AppNameSize    = 64
	InstanceIDSize = 36
	StreamNameSize = 64

	// Version negotiated in the Hello frame
	Version = 13

	// MaxFrameLen is the largest frame the 16-bit length field can
	// carry; write payloads must fit within it
	MaxFrameLen = 1<<16 - 1

	// MaxWriteChunk is the largest audio payload a single write frame
	// can carry
	MaxWriteChunk = MaxFrameLen - HeaderSize - WritePayloadHeaderSize
)

// Server error codes carried in an Error frame
const (
	ErrCodeAccessDenied = 0x01
	ErrCodeProtocol     = 0x02
	ErrCodeTooLarge     = 0x03
	ErrCodeSinkFull     = 0x04 // too many streams per sink
	ErrCodeInternal     = 0x05
)

// Header represents the 8-byte frame header.
// Layout: [Op:1][FrameLen:2][StreamID:4][Flags:1]
type Header struct {
	Op       uint8  // opcode, see Op* constants
	FrameLen uint16 // total frame size (header + payload)
	StreamID uint32 // stream identifier, 0 for connection-level frames
	Flags    uint8  // reserved, must be 0
}

// HelloPayload carries the protocol version and the auth cookie.
// Layout: [Version:4][Cookie:16]
type HelloPayload struct {
	Version uint32
	Cookie  [CookieSize]byte
}

// SetNamePayload identifies the client application to the server.
// Layout: [AppName:64][InstanceID:36], both null-padded
type SetNamePayload struct {
	AppName    [AppNameSize]byte
	InstanceID [InstanceIDSize]byte
}

// StreamNewPayload requests a new playback stream on a server-chosen sink.
// Layout: [Name:64][Format:1][Rate:4][Channels:1]
type StreamNewPayload struct {
	Name     [StreamNameSize]byte
	Format   uint8
	Rate     uint32
	Channels uint8
}

// StreamReadyPayload confirms stream creation and names the chosen sink.
type StreamReadyPayload struct {
	SinkIndex uint32
}

// StreamRequestPayload grants write credit to a stream.
type StreamRequestPayload struct {
	Bytes uint32
}

// WritePayload carries one chunk of PCM audio data.
// Layout: [Sequence:4][AudioData:N]
type WritePayload struct {
	Sequence  uint32
	AudioData []byte
}

// ErrorPayload carries a server-reported failure.
// Layout: [Code:4][Text:N]
type ErrorPayload struct {
	Code uint32
	Text string
}

// Frame represents a fully parsed protocol frame. Exactly one payload
// field is set, matching Header.Op; ops with empty payloads set none.
type Frame struct {
	Header        *Header
	Hello         *HelloPayload
	SetName       *SetNamePayload
	StreamNew     *StreamNewPayload
	StreamReady   *StreamReadyPayload
	StreamRequest *StreamRequestPayload
	Write         *WritePayload
	Error         *ErrorPayload
}

// ParseHeader parses the 8-byte frame header.
func ParseHeader(data []byte) (*Header, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("header too short: expected %d bytes, got %d", HeaderSize, len(data))
	}

	header := &Header{
		Op:       data[0],
		FrameLen: binary.BigEndian.Uint16(data[1:3]),
		StreamID: binary.BigEndian.Uint32(data[3:7]),
		Flags:    data[7],
	}

	return header, nil
}

// ValidateHeader validates the frame header fields.
func ValidateHeader(header *Header) error {
	if !IsValidOp(header.Op) {
		return fmt.Errorf("invalid opcode: 0x%02x", header.Op)
	}

	if header.Flags != 0 {
		return fmt.Errorf("reserved flags byte must be 0, got 0x%02x", header.Flags)
	}

	if header.FrameLen < HeaderSize {
		return fmt.Errorf("frame length too small: %d (minimum %d)", header.FrameLen, HeaderSize)
	}

	payloadSize := int(header.FrameLen) - HeaderSize
	switch header.Op {
	case OpHello:
		if payloadSize != HelloPayloadSize {
			return fmt.Errorf("hello payload size mismatch: expected %d, got %d", HelloPayloadSize, payloadSize)
		}
	case OpSetName:
		if payloadSize != SetNamePayloadSize {
			return fmt.Errorf("setname payload size mismatch: expected %d, got %d", SetNamePayloadSize, payloadSize)
		}
	case OpStreamNew:
		if payloadSize != StreamNewPayloadSize {
			return fmt.Errorf("stream-new payload size mismatch: expected %d, got %d", StreamNewPayloadSize, payloadSize)
		}
	case OpStreamReady:
		if payloadSize != StreamReadyPayloadSize {
			return fmt.Errorf("stream-ready payload size mismatch: expected %d, got %d", StreamReadyPayloadSize, payloadSize)
		}
	case OpStreamRequest:
		if payloadSize != StreamRequestPayloadSize {
			return fmt.Errorf("stream-request payload size mismatch: expected %d, got %d", StreamRequestPayloadSize, payloadSize)
		}
	case OpStreamWrite:
		if payloadSize < WritePayloadHeaderSize {
			return fmt.Errorf("write payload too small: expected at least %d, got %d", WritePayloadHeaderSize, payloadSize)
		}
	case OpError:
		if payloadSize < ErrorPayloadHeaderSize {
			return fmt.Errorf("error payload too small: expected at least %d, got %d", ErrorPayloadHeaderSize, payloadSize)
		}
	case OpAuthOK, OpReady, OpStreamDrain, OpDrainDone:
		if payloadSize != 0 {
			return fmt.Errorf("opcode 0x%02x takes no payload, got %d bytes", header.Op, payloadSize)
		}
	}

	return nil
}

// IsValidOp checks if the opcode is known.
func IsValidOp(op uint8) bool {
	switch op {
	case OpHello, OpAuthOK, OpSetName, OpReady,
		OpStreamNew, OpStreamReady, OpStreamWrite, OpStreamRequest,
		OpStreamDrain, OpDrainDone, OpError:
		return true
	}
	return false
}

// ParseFrame parses a complete frame (header + payload).
func ParseFrame(data []byte) (*Frame, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("frame too short: expected at least %d bytes, got %d", HeaderSize, len(data))
	}

	header, err := ParseHeader(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse header: %w", err)
	}

	if int(header.FrameLen) != len(data) {
		return nil, fmt.Errorf("frame length mismatch: header says %d bytes, got %d bytes",
			header.FrameLen, len(data))
	}

	if err := ValidateHeader(header); err != nil {
		return nil, fmt.Errorf("invalid header: %w", err)
	}

	frame := &Frame{Header: header}
	payload := data[HeaderSize:]

	switch header.Op {
	case OpHello:
		p := &HelloPayload{Version: binary.BigEndian.Uint32(payload[0:4])}
		copy(p.Cookie[:], payload[4:4+CookieSize])
		frame.Hello = p

	case OpSetName:
		p := &SetNamePayload{}
		copy(p.AppName[:], payload[0:AppNameSize])
		copy(p.InstanceID[:], payload[AppNameSize:AppNameSize+InstanceIDSize])
		frame.SetName = p

	case OpStreamNew:
		p := &StreamNewPayload{}
		copy(p.Name[:], payload[0:StreamNameSize])
		p.Format = payload[StreamNameSize]
		p.Rate = binary.BigEndian.Uint32(payload[StreamNameSize+1 : StreamNameSize+5])
		p.Channels = payload[StreamNameSize+5]
		frame.StreamNew = p

	case OpStreamReady:
		frame.StreamReady = &StreamReadyPayload{SinkIndex: binary.BigEndian.Uint32(payload[0:4])}

	case OpStreamRequest:
		frame.StreamRequest = &StreamRequestPayload{Bytes: binary.BigEndian.Uint32(payload[0:4])}

	case OpStreamWrite:
		p := &WritePayload{Sequence: binary.BigEndian.Uint32(payload[0:4])}
		if len(payload) > WritePayloadHeaderSize {
			p.AudioData = make([]byte, len(payload)-WritePayloadHeaderSize)
			copy(p.AudioData, payload[WritePayloadHeaderSize:])
		}
		frame.Write = p

	case OpError:
		frame.Error = &ErrorPayload{
			Code: binary.BigEndian.Uint32(payload[0:4]),
			Text: string(payload[ErrorPayloadHeaderSize:]),
		}
	}

	return frame, nil
}

// ReadFrame reads exactly one frame from r.
func ReadFrame(r io.Reader) (*Frame, error) {
	head := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, head); err != nil {
		return nil, err
	}

	header, err := ParseHeader(head)
	if err != nil {
		return nil, err
	}

	if header.FrameLen < HeaderSize {
		return nil, fmt.Errorf("unreasonable frame length %d", header.FrameLen)
	}

	buf := make([]byte, header.FrameLen)
	copy(buf, head)
	if _, err := io.ReadFull(r, buf[HeaderSize:]); err != nil {
		return nil, fmt.Errorf("failed to read frame body: %w", err)
	}

	return ParseFrame(buf)
}

// encodeHeader writes the frame header into the first HeaderSize bytes of buf.
// FrameLen is taken from len(buf).
func encodeHeader(buf []byte, op uint8, streamID uint32) {
	buf[0] = op
	binary.BigEndian.PutUint16(buf[1:3], uint16(len(buf)))
	binary.BigEndian.PutUint32(buf[3:7], streamID)
	buf[7] = 0
}

// EncodeHello builds a Hello frame opening the handshake.
func EncodeHello(cookie [CookieSize]byte) []byte {
	buf := make([]byte, HeaderSize+HelloPayloadSize)
	encodeHeader(buf, OpHello, 0)
	binary.BigEndian.PutUint32(buf[HeaderSize:HeaderSize+4], Version)
	copy(buf[HeaderSize+4:], cookie[:])
	return buf
}

// EncodeSetName builds a SetName frame. Names longer than their field
// are truncated; shorter names are null-padded.
func EncodeSetName(appName, instanceID string) []byte {
	buf := make([]byte, HeaderSize+SetNamePayloadSize)
	encodeHeader(buf, OpSetName, 0)
	copy(buf[HeaderSize:HeaderSize+AppNameSize], appName)
	copy(buf[HeaderSize+AppNameSize:], instanceID)
	return buf
}

// EncodeStreamNew builds a StreamNew frame requesting a playback stream.
func EncodeStreamNew(streamID uint32, name string, format uint8, rate uint32, channels uint8) []byte {
	buf := make([]byte, HeaderSize+StreamNewPayloadSize)
	encodeHeader(buf, OpStreamNew, streamID)
	copy(buf[HeaderSize:HeaderSize+StreamNameSize], name)
	buf[HeaderSize+StreamNameSize] = format
	binary.BigEndian.PutUint32(buf[HeaderSize+StreamNameSize+1:HeaderSize+StreamNameSize+5], rate)
	buf[HeaderSize+StreamNameSize+5] = channels
	return buf
}

// EncodeStreamWrite builds a StreamWrite frame carrying audio data.
func EncodeStreamWrite(streamID uint32, sequence uint32, data []byte) ([]byte, error) {
	if len(data) > MaxWriteChunk {
		return nil, fmt.Errorf("write of %d bytes exceeds maximum frame length", len(data))
	}

	buf := make([]byte, HeaderSize+WritePayloadHeaderSize+len(data))
	encodeHeader(buf, OpStreamWrite, streamID)
	binary.BigEndian.PutUint32(buf[HeaderSize:HeaderSize+4], sequence)
	copy(buf[HeaderSize+WritePayloadHeaderSize:], data)
	return buf, nil
}

// EncodeStreamDrain builds a StreamDrain frame.
func EncodeStreamDrain(streamID uint32) []byte {
	buf := make([]byte, HeaderSize)
	encodeHeader(buf, OpStreamDrain, streamID)
	return buf
}

// EncodeAuthOK builds an AuthOK frame (server side).
func EncodeAuthOK() []byte {
	buf := make([]byte, HeaderSize)
	encodeHeader(buf, OpAuthOK, 0)
	return buf
}

// EncodeReady builds a Ready frame (server side).
func EncodeReady() []byte {
	buf := make([]byte, HeaderSize)
	encodeHeader(buf, OpReady, 0)
	return buf
}

// EncodeStreamReady builds a StreamReady frame (server side).
func EncodeStreamReady(streamID, sinkIndex uint32) []byte {
	buf := make([]byte, HeaderSize+StreamReadyPayloadSize)
	encodeHeader(buf, OpStreamReady, streamID)
	binary.BigEndian.PutUint32(buf[HeaderSize:], sinkIndex)
	return buf
}

// EncodeStreamRequest builds a StreamRequest frame granting write credit (server side).
func EncodeStreamRequest(streamID, nbytes uint32) []byte {
	buf := make([]byte, HeaderSize+StreamRequestPayloadSize)
	encodeHeader(buf, OpStreamRequest, streamID)
	binary.BigEndian.PutUint32(buf[HeaderSize:], nbytes)
	return buf
}

// EncodeDrainDone builds a DrainDone frame (server side).
func EncodeDrainDone(streamID uint32) []byte {
	buf := make([]byte, HeaderSize)
	encodeHeader(buf, OpDrainDone, streamID)
	return buf
}

// EncodeError builds an Error frame (server side).
func EncodeError(streamID, code uint32, text string) []byte {
	buf := make([]byte, HeaderSize+ErrorPayloadHeaderSize+len(text))
	encodeHeader(buf, OpError, streamID)
	binary.BigEndian.PutUint32(buf[HeaderSize:HeaderSize+4], code)
	copy(buf[HeaderSize+ErrorPayloadHeaderSize:], text)
	return buf
}

// ExtractString extracts a null-terminated string from a fixed-size byte array.
func ExtractString(buf []byte) string {
	nullPos := len(buf)
	for i, b := range buf {
		if b == 0 {
			nullPos = i
			break
		}
	}
	return string(buf[:nullPos])
}

// GetAppName extracts the application name as a string.
func (s *SetNamePayload) GetAppName() string {
	return ExtractString(s.AppName[:])
}

// GetInstanceID extracts the instance identifier as a string.
func (s *SetNamePayload) GetInstanceID() string {
	return ExtractString(s.InstanceID[:])
}

// GetName extracts the stream name as a string.
func (p *StreamNewPayload) GetName() string {
	return ExtractString(p.Name[:])
}

// ErrCodeString converts a server error code to a human-readable string.
func ErrCodeString(code uint32) string {
	switch code {
	case ErrCodeAccessDenied:
		return "access denied"
	case ErrCodeProtocol:
		return "protocol error"
	case ErrCodeTooLarge:
		return "request too large"
	case ErrCodeSinkFull:
		return "too many streams per sink"
	case ErrCodeInternal:
		return "internal server error"
	default:
		return fmt.Sprintf("unknown error 0x%02x", code)
	}
}

// OpString converts an opcode to a human-readable string.
func OpString(op uint8) string {
	switch op {
	case OpHello:
		return "Hello"
	case OpAuthOK:
		return "AuthOK"
	case OpSetName:
		return "SetName"
	case OpReady:
		return "Ready"
	case OpStreamNew:
		return "StreamNew"
	case OpStreamReady:
		return "StreamReady"
	case OpStreamWrite:
		return "StreamWrite"
	case OpStreamRequest:
		return "StreamRequest"
	case OpStreamDrain:
		return "StreamDrain"
	case OpDrainDone:
		return "DrainDone"
	case OpError:
		return "Error"
	default:
		return fmt.Sprintf("Unknown(0x%02x)", op)
	}
}

// String returns a human-readable representation of the header.
func (h *Header) String() string {
	return fmt.Sprintf("Header{Op:%s, Len:%d, StreamID:%d}", OpString(h.Op), h.FrameLen, h.StreamID)
}

// String returns a human-readable representation of the error payload.
func (e *ErrorPayload) String() string {
	if e.Text != "" {
		return fmt.Sprintf("%s: %s", ErrCodeString(e.Code), e.Text)
	}
	return ErrCodeString(e.Code)
}
