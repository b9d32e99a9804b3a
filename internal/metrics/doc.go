// Package metrics provides Prometheus instrumentation for the connection
// state machine and the stream lifecycle.
package metrics
