// Package verification issues, rate-limits, delivers, and checks one-time
// numeric codes bound to an (identifier, purpose) pair.
//
// A code lives in the cache for CodeTTL. Sending arms a resend marker for
// ResendInterval; a second send for the same pair inside that window fails
// with [ErrRateLimited]. A failed delivery removes both the code and the
// marker. Verifying a code does not consume it: callers clear it with
// [Engine.ClearCode] once the flow that needed it has committed.
//
// Codes are convenience secrets, guessable within the resend window. They
// must never be treated as cryptographic material.
package verification
