package source

import "fmt"

// SampleFormat identifies the PCM sample encoding.
type SampleFormat uint8

const (
	// FormatS16LE is signed 16-bit little-endian PCM, the only format
	// the playback path produces.
	FormatS16LE SampleFormat = 0x01
)

// SampleSpec describes a PCM audio format: sample encoding, sample rate
// and channel count.
type SampleSpec struct {
	Format   SampleFormat
	Rate     int
	Channels int
}

// FrameSize returns the minimum addressable unit of audio data in bytes:
// sample size times channel count. All stream writes must be a whole
// number of frames.
func (s SampleSpec) FrameSize() int {
	return s.sampleSize() * s.Channels
}

func (s SampleSpec) sampleSize() int {
	switch s.Format {
	case FormatS16LE:
		return 2
	default:
		return 0
	}
}

// Validate checks that the spec describes a usable format.
func (s SampleSpec) Validate() error {
	if s.Format != FormatS16LE {
		return fmt.Errorf("unsupported sample format: 0x%02x", uint8(s.Format))
	}

	if s.Rate < 1 || s.Rate > 192000 {
		return fmt.Errorf("sample rate must be between 1 and 192000 Hz, got %d", s.Rate)
	}

	if s.Channels < 1 || s.Channels > 8 {
		return fmt.Errorf("channel count must be between 1 and 8, got %d", s.Channels)
	}

	return nil
}

// String returns a human-readable representation of the spec.
func (s SampleSpec) String() string {
	return fmt.Sprintf("s16le %dch %dHz", s.Channels, s.Rate)
}
