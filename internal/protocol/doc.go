// Package protocol implements the client side of the sound server's native
// binary protocol: frame header parsing and validation, payload codecs for
// the connection handshake and stream lifecycle, and server error decoding.
package protocol
