package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var stereoSpec = SampleSpec{Format: FormatS16LE, Rate: 44100, Channels: 2}

func newTestFile(t *testing.T, size int) *File {
	t.Helper()

	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i)
	}

	f, err := NewFile(data, stereoSpec, "test.pcm")
	require.NoError(t, err)
	return f
}

func TestNewFileRejectsInvalidSpec(t *testing.T) {
	_, err := NewFile(nil, SampleSpec{Format: 0x7f}, "bad.pcm")
	assert.Error(t, err)
}

func TestNextChunkTruncatesToFrameBoundary(t *testing.T) {
	f := newTestFile(t, 44)

	// Frame size is 4; a hint of 10 must come back truncated to 8.
	chunk := f.NextChunk(10)
	assert.Len(t, chunk, 8)
	assert.Equal(t, 8, f.Offset())
}

func TestNextChunkCappedByRemaining(t *testing.T) {
	f := newTestFile(t, 44)

	chunk := f.NextChunk(1 << 20)
	assert.Len(t, chunk, 44)
	assert.True(t, f.Exhausted())
}

func TestNextChunkDrainsWholeBuffer(t *testing.T) {
	f := newTestFile(t, 44)

	total := 0
	for !f.Exhausted() {
		chunk := f.NextChunk(10)
		require.NotEmpty(t, chunk)
		total += len(chunk)
	}

	assert.Equal(t, 44, total)
	assert.Equal(t, 0, f.Remaining())
}

func TestTrailingPartialFrameIsNeverWritten(t *testing.T) {
	// 45 bytes with 4-byte frames: the last byte must stay unwritten.
	f := newTestFile(t, 45)

	total := 0
	for !f.Exhausted() {
		total += len(f.NextChunk(16))
	}

	assert.Equal(t, 44, total)
	assert.Equal(t, 1, f.Remaining())
	assert.True(t, f.Exhausted())
}

func TestNextChunkSmallAndNegativeHints(t *testing.T) {
	f := newTestFile(t, 44)

	// Less than one frame yields nothing and does not advance.
	assert.Empty(t, f.NextChunk(3))
	assert.Equal(t, 0, f.Offset())

	assert.Empty(t, f.NextChunk(0))
	assert.Empty(t, f.NextChunk(-5))
	assert.Equal(t, 0, f.Offset())
}

func TestNextChunkReturnsSequentialData(t *testing.T) {
	f := newTestFile(t, 44)

	first := f.NextChunk(8)
	second := f.NextChunk(8)

	require.Len(t, first, 8)
	require.Len(t, second, 8)
	assert.Equal(t, byte(0), first[0])
	assert.Equal(t, byte(8), second[0])
}

func TestEmptyFileIsExhausted(t *testing.T) {
	f, err := NewFile(nil, stereoSpec, "empty.pcm")
	require.NoError(t, err)

	assert.True(t, f.Exhausted())
	assert.Empty(t, f.NextChunk(1024))
}
