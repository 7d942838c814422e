// Package middleware adapts [forgeauth.Engine] access-token validation to
// net/http.
//
// [RequireAccess] rejects requests without a valid bearer access token and
// stores the resolved [forgeauth.AccessIdentity] in the request context.
// [OptionalAccess] does the same when a token is present but lets anonymous
// requests through. Handlers read the identity with [IdentityFromContext].
//
// The package makes no authentication decisions of its own; every verdict
// comes from Engine.ValidateAccess.
package middleware
