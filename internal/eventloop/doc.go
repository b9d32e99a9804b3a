// Package eventloop provides the single-threaded cooperative scheduler that
// serializes all connection and stream callbacks. It owns process lifetime:
// Run blocks until a terminal state calls Quit with the process exit code.
package eventloop
