// Package flows contains the orchestration steps behind every Engine
// operation.
//
// Each flow function (RunSignup, RunLogin, RunRefresh, etc.) accepts a typed
// dependency struct and returns a result carrying a FailureKind instead of a
// public error. The root package maps each kind to its sentinel error, audit
// event and metric in one place, so flows stay free of those concerns and can
// be tested against the in-memory store.
//
// # Architecture boundaries
//
// Flow functions coordinate the token codec, the password hasher, the store
// and the OAuth provider. They do NOT own any of these resources; ownership
// stays with the Engine.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import forgeauth (to avoid import cycles).
//   - Emit audit events or metrics.
package flows
