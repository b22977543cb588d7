// Package internal contains helper utilities that are private to multiauth,
// such as secure one-time code generation.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - logger: slog construction and request-scoped attributes
//   - rate: Redis-backed failed-login counters and lockouts
package internal
