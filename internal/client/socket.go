package client

import (
	"os"
	"path/filepath"

	"github.com/a-darwish/malicious-pulseaudio-clients/internal/protocol"
)

// DefaultSocketPath discovers the server's native socket the way regular
// clients do: the SNDD_SOCKET environment variable wins, then the
// per-user runtime directory, then the system-wide fallback.
func DefaultSocketPath() string {
	if path := os.Getenv("SNDD_SOCKET"); path != "" {
		return path
	}

	if runtimeDir := os.Getenv("XDG_RUNTIME_DIR"); runtimeDir != "" {
		return filepath.Join(runtimeDir, "sndd", "native")
	}

	return "/tmp/sndd-native"
}

// LoadCookie reads the per-user auth cookie. A missing or short cookie
// file yields the zero cookie, which servers in anonymous mode accept.
func LoadCookie() [protocol.CookieSize]byte {
	var cookie [protocol.CookieSize]byte

	home, err := os.UserHomeDir()
	if err != nil {
		return cookie
	}

	data, err := os.ReadFile(filepath.Join(home, ".config", "sndd", "cookie"))
	if err != nil || len(data) < protocol.CookieSize {
		return cookie
	}

	copy(cookie[:], data)
	return cookie
}
