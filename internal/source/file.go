package source

import "fmt"

// File is a decoded audio asset: an immutable PCM byte buffer plus a
// single shared read cursor. Every playback stream pulls chunks from the
// same cursor, so the whole buffer is played exactly once across all
// streams combined.
//
// The cursor is deliberately unsynchronized. Correctness relies on the
// event loop dispatching all stream callbacks on one goroutine; File must
// not be touched from anywhere else once playback starts.
type File struct {
	data    []byte
	readIdx int
	spec    SampleSpec
	path    string
}

// NewFile wraps already-decoded PCM data. The data length need not be
// frame-aligned; a trailing partial frame is never written out.
func NewFile(data []byte, spec SampleSpec, path string) (*File, error) {
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("invalid sample spec: %w", err)
	}

	return &File{
		data: data,
		spec: spec,
		path: path,
	}, nil
}

// Spec returns the sample format of the buffer.
func (f *File) Spec() SampleSpec {
	return f.spec
}

// Path returns the path the asset was loaded from.
func (f *File) Path() string {
	return f.path
}

// Len returns the total buffer length in bytes.
func (f *File) Len() int {
	return len(f.data)
}

// Offset returns the current read cursor position.
func (f *File) Offset() int {
	return f.readIdx
}

// Remaining returns the number of unread bytes.
func (f *File) Remaining() int {
	return len(f.data) - f.readIdx
}

// Exhausted reports whether less than one whole frame remains. The
// remaining partial frame, if any, is never written: a partial frame
// would desynchronize sample boundaries downstream.
func (f *File) Exhausted() bool {
	return f.Remaining() < f.spec.FrameSize()
}

// NextChunk returns the next chunk to write given the transport's
// available-write-size hint, and advances the read cursor by its length.
// The chunk is min(hint, remaining) truncated down to a whole number of
// frames; it may be empty when hint is small or the buffer is exhausted.
// The returned slice aliases the buffer and must not be modified.
func (f *File) NextChunk(hint int) []byte {
	if hint < 0 {
		hint = 0
	}

	toWrite := f.Remaining()
	if hint < toWrite {
		toWrite = hint
	}
	toWrite -= toWrite % f.spec.FrameSize()

	chunk := f.data[f.readIdx : f.readIdx+toWrite]
	f.readIdx += toWrite
	return chunk
}
