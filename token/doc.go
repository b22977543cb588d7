// Package token issues, rotates, and revokes access/refresh token pairs.
//
// # Session lifecycle
//
//	NoSession -> Authenticated -> Refreshed (n times) -> LoggedOut
//
// One refresh token is live per user, stored under refresh_token:<userId>.
// Issuing a pair overwrites it; rotation swaps it atomically from the
// presented token to the new one, so a superseded refresh token is dead even
// before it expires and two concurrent refreshes cannot both win.
//
// Revoked access tokens are tracked by jti under blacklist:<jti> until they
// would have expired anyway.
package token
