// Package jwt signs and parses the access and refresh tokens issued by the
// authentication engine.
//
// Access and refresh tokens are signed with distinct HMAC secrets so that
// access-token material can never be replayed as a refresh token. Refresh
// tokens additionally carry type="refresh", checked on every parse.
package jwt
