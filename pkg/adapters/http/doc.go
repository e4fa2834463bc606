// Package http serves a read-only view of a running job sequence: status
// snapshots, lattice samples, continuation markers, lifecycle events over
// SSE and Prometheus metrics.
package http
