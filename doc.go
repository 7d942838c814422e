// Package forgeauth is an authentication and session-token engine: password
// credentials, short-lived JWT access tokens, rotating refresh tokens grouped
// into families with reuse detection, a password-reset workflow and OAuth
// identity linking.
//
// An [Engine] is assembled once with a [Builder] and is safe for concurrent
// use. It keeps no per-session state in memory; every refresh token lives in
// the configured [store.Store] as a SHA-256 hash.
//
// # Architecture boundaries
//
// forgeauth is the public surface. It exposes [Engine], [Builder], [Config]
// and value types. Orchestration lives in internal/flows, Redis-backed state
// in internal/stores and internal/rate, and audit/metrics plumbing in
// internal/audit and internal/metrics. Storage, mail delivery and identity
// providers are collaborators passed in through the Builder.
//
// # What this package must NOT do
//
//   - Expose Redis clients or storage drivers in its public API.
//   - Retry a failed operation internally.
//   - Import any sub-package that re-imports forgeauth (no import cycles).
//
// # Errors
//
// Every failure an Engine method returns matches exactly one sentinel in
// errors.go under errors.Is. Storage outages wrap [ErrStorageUnavailable].
package forgeauth
