package source

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/wav"
	mp3 "github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
)

// Load reads and decodes an audio asset into a PCM S16LE buffer. The
// container format is chosen by file extension: .wav, .mp3, .ogg/.oga.
func Load(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio file %s: %w", path, err)
	}
	defer f.Close()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".wav":
		return decodeWAV(f, path)
	case ".mp3":
		return decodeMP3(f, path)
	case ".ogg", ".oga":
		return decodeVorbis(f, path)
	default:
		return nil, fmt.Errorf("unsupported audio format %q for %s", ext, path)
	}
}

// decodeWAV decodes a PCM WAV file. Only 16-bit PCM is supported; other
// bit depths would need resampling this tool has no use for.
func decodeWAV(f *os.File, path string) (*File, error) {
	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return nil, fmt.Errorf("%s is not a valid WAV file", path)
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to decode WAV data from %s: %w", path, err)
	}

	if d.BitDepth != 16 {
		return nil, fmt.Errorf("unsupported WAV bit depth %d in %s (only 16-bit PCM is supported)", d.BitDepth, path)
	}

	data := make([]byte, len(buf.Data)*2)
	for i, sample := range buf.Data {
		binary.LittleEndian.PutUint16(data[i*2:], uint16(int16(sample)))
	}

	spec := SampleSpec{
		Format:   FormatS16LE,
		Rate:     buf.Format.SampleRate,
		Channels: buf.Format.NumChannels,
	}

	return NewFile(data, spec, path)
}

// decodeMP3 decodes an MP3 file. The decoder always emits S16LE stereo.
func decodeMP3(f *os.File, path string) (*File, error) {
	d, err := mp3.NewDecoder(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode MP3 header of %s: %w", path, err)
	}

	data, err := io.ReadAll(d)
	if err != nil {
		return nil, fmt.Errorf("failed to decode MP3 data from %s: %w", path, err)
	}

	spec := SampleSpec{
		Format:   FormatS16LE,
		Rate:     d.SampleRate(),
		Channels: 2,
	}

	return NewFile(data, spec, path)
}

// decodeVorbis decodes an Ogg Vorbis file, converting the float samples
// to S16LE with clipping.
func decodeVorbis(f *os.File, path string) (*File, error) {
	samples, format, err := oggvorbis.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode Ogg Vorbis data from %s: %w", path, err)
	}

	data := make([]byte, len(samples)*2)
	for i, sample := range samples {
		scaled := math.Round(float64(sample) * 32767)
		if scaled > 32767 {
			scaled = 32767
		} else if scaled < -32768 {
			scaled = -32768
		}
		binary.LittleEndian.PutUint16(data[i*2:], uint16(int16(scaled)))
	}

	spec := SampleSpec{
		Format:   FormatS16LE,
		Rate:     format.SampleRate,
		Channels: format.Channels,
	}

	return NewFile(data, spec, path)
}
