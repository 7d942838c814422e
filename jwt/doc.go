// Package jwt issues and decodes the signed access and refresh tokens used by
// forgeauth.
//
// Both token types carry sub, type, iat, exp and jti. Refresh tokens also carry
// family_id, which ties every rotation of one login session together.
//
// [Manager.Decode] collapses every failure into [ErrTokenInvalid] so callers
// cannot learn why a token was rejected.
package jwt
