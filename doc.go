// Package multiauth is an authentication core for accounts that can be
// reached by username, email address, or phone number and that hold one
// or more roles (CUSTOMER, MERCHANT, ADMIN).
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// multiauth is the orchestration surface. It exposes [Engine], [Builder],
// [Config], the request and response types, and the error sentinels. The
// building blocks it composes are usable on their own:
//
//   - identifier classifies and normalizes raw identifiers.
//   - verification issues, rate-limits, and checks one-time codes.
//   - password hashes, validates, and authenticates passwords.
//   - jwt and token sign, rotate, and revoke token pairs.
//   - role gates login per role grant.
//   - user declares the persistence contract, with memory and postgres
//     implementations.
//
// # Errors
//
// Every Engine error matches one of the exported sentinels with errors.Is.
// Unexpected failures match [ErrInternal]; their detail is logged and
// [PublicMessage] hides it from clients in production mode.
package multiauth
