package source

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeWAVFixture encodes the given 16-bit samples to a WAV file and
// returns its path.
func writeWAVFixture(t *testing.T, rate, channels int, samples []int) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "fixture.wav")
	out, err := os.Create(path)
	require.NoError(t, err)
	defer out.Close()

	enc := wav.NewEncoder(out, rate, 16, channels, 1)
	err = enc.Write(&audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: rate},
		Data:           samples,
		SourceBitDepth: 16,
	})
	require.NoError(t, err)
	require.NoError(t, enc.Close())

	return path
}

func TestLoadWAV(t *testing.T) {
	samples := []int{0, 1000, -1000, 32767, -32768, 7, -7, 0}
	path := writeWAVFixture(t, 44100, 2, samples)

	f, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, path, f.Path())
	assert.Equal(t, len(samples)*2, f.Len())
	assert.Equal(t, SampleSpec{Format: FormatS16LE, Rate: 44100, Channels: 2}, f.Spec())

	// S16LE: 1000 = 0xE8 0x03, -1000 = 0x18 0xFC
	data := f.NextChunk(f.Len())
	assert.Equal(t, byte(0xe8), data[2])
	assert.Equal(t, byte(0x03), data[3])
	assert.Equal(t, byte(0x18), data[4])
	assert.Equal(t, byte(0xfc), data[5])
}

func TestLoadWAVMono(t *testing.T) {
	path := writeWAVFixture(t, 8000, 1, []int{1, 2, 3, 4})

	f, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 1, f.Spec().Channels)
	assert.Equal(t, 8000, f.Spec().Rate)
	assert.Equal(t, 2, f.Spec().FrameSize())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.wav"))
	assert.Error(t, err)
}

func TestLoadUnsupportedExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "asset.flac")
	require.NoError(t, os.WriteFile(path, []byte("not audio"), 0644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported audio format")
}

func TestLoadGarbageWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.wav")
	require.NoError(t, os.WriteFile(path, []byte("RIFFgarbage"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}
