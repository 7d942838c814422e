// Package internal contains helpers that are private to forgeauth: opaque
// token generation and the one-way token digest.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - config: process configuration from environment and .env files
//   - flows: pure-function orchestrators for every Engine operation
//   - logging: zap logger construction
//   - metrics: lock-free counters and latency histograms
//   - rate: Redis-backed login throttling
//   - stores: Redis-backed OAuth state
package internal
