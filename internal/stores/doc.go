// Package stores provides Redis-backed short-lived records for forgeauth.
// Currently that is the OAuth authorization state, saved with a TTL at
// redirect time and consumed with GETDEL at callback time so that each value
// is accepted at most once.
//
// # What this package must NOT do
//
//   - Import forgeauth or any sibling internal package.
//   - Decide whether a callback is valid beyond "state exists".
package stores
