// Package rate provides Redis-backed fixed-window counters for failed logins
// and refresh bursts.
//
// # Window semantics
//
// INCR + conditional EXPIRE on first hit. Key prefixes:
//   - fa:login:    failed logins per identifier
//   - fa:login-ip: failed logins per client IP
//   - fa:refresh:  refresh attempts per token family
package rate
