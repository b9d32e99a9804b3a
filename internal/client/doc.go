// Package client implements the connection and stream lifecycle against
// the sound server: the connection handshake state machine, bulk stream
// creation, write-credit driven playback and drain confirmation. All
// callbacks are serialized on a single event loop; every failure path is
// terminal for the process.
package client
