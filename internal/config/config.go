package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the complete client configuration
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Stream  StreamConfig  `yaml:"stream"`
	Audio   AudioConfig   `yaml:"audio"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig contains connection parameters
type ServerConfig struct {
	// Socket overrides platform-default discovery of the server's
	// native socket. Empty means discover.
	Socket          string `yaml:"socket"`
	ApplicationName string `yaml:"application_name"`
}

// StreamConfig contains stream creation parameters
type StreamConfig struct {
	// Count is the number of playback streams to open. The server
	// enforces a hard per-sink limit of 256.
	Count int    `yaml:"count"`
	Name  string `yaml:"name"`
}

// AudioConfig contains the playback sample format and the asset path
type AudioConfig struct {
	AssetPath  string `yaml:"asset_path"`
	SampleRate int    `yaml:"sample_rate"`
	Channels   int    `yaml:"channels"`
	BitDepth   int    `yaml:"bit_depth"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// MaxStreamsPerSink is the server's hard limit of concurrent streams per
// sink. Stream counts are capped to it.
const MaxStreamsPerSink = 256

// Default returns the built-in configuration, so both clients run with no
// arguments and no config file.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ApplicationName: "sndstress",
		},
		Stream: StreamConfig{
			Count: MaxStreamsPerSink,
			Name:  "playback stream",
		},
		Audio: AudioConfig{
			AssetPath:  "samples/sample.wav",
			SampleRate: 44100,
			Channels:   2,
			BitDepth:   16,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
	}
}

// Load reads and parses the configuration file on top of the defaults.
func Load(path string) (*Config, error) {
	config := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := c.Stream.Validate(); err != nil {
		return fmt.Errorf("stream config: %w", err)
	}

	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates connection parameters
func (s *ServerConfig) Validate() error {
	if s.ApplicationName == "" {
		return fmt.Errorf("application_name cannot be empty")
	}

	return nil
}

// Validate validates stream parameters
func (s *StreamConfig) Validate() error {
	if s.Count < 1 {
		return fmt.Errorf("count must be at least 1, got %d", s.Count)
	}

	if s.Count > MaxStreamsPerSink {
		return fmt.Errorf("count must not exceed the per-sink limit of %d, got %d", MaxStreamsPerSink, s.Count)
	}

	if s.Name == "" {
		return fmt.Errorf("name cannot be empty")
	}

	return nil
}

// Validate validates the audio configuration
func (a *AudioConfig) Validate() error {
	if a.AssetPath == "" {
		return fmt.Errorf("asset_path cannot be empty")
	}

	if a.SampleRate < 1 || a.SampleRate > 192000 {
		return fmt.Errorf("sample_rate must be between 1 and 192000 Hz, got %d", a.SampleRate)
	}

	if a.Channels < 1 || a.Channels > 8 {
		return fmt.Errorf("channels must be between 1 and 8, got %d", a.Channels)
	}

	if a.BitDepth != 16 {
		return fmt.Errorf("bit_depth must be 16 for the native protocol, got %d", a.BitDepth)
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	return nil
}
