// Package httpapi exposes a forgeauth.Engine as a JSON HTTP API under /auth.
//
//	POST /auth/signup                   201 {user, tokens}
//	POST /auth/login                    200 {user, tokens}
//	POST /auth/refresh                  200 tokens
//	POST /auth/logout                   200 {message}
//	GET  /auth/me                       200 user (bearer access token)
//	POST /auth/password-reset/request   200 {message}
//	POST /auth/password-reset/confirm   200 {message}
//	GET  /auth/github                   200 {authorization_url, state}
//	GET  /auth/github/callback          200 {user, tokens}
//	GET  /healthz                       200 or 503
//	GET  /metrics                       exposition from Options.Metrics
//
// Errors are {"error": code, "detail": message} with the status chosen by
// [StatusFor].
package httpapi
