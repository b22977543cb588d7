// Package middleware exposes HTTP middleware that authenticates requests
// with a multiauth access token and gates routes by role.
//
// # Guards
//
//   - [Guard] verifies the bearer token and stores its claims in the request
//     context.
//   - [RequireRole] admits requests whose token carries one of the roles.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. Token checks
// are delegated to Engine.VerifyAccess; nothing here parses a JWT.
package middleware
