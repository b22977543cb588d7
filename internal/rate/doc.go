// Package rate implements the failed-login lockout on top of cache.Cache.
//
// # Window semantics
//
// Fixed-window counters: Incr starts the window on the first failure and the
// counter expires with it. Key prefixes:
//   - login_attempts:    per identifier
//   - login_attempts_ip: per client IP, when IP throttling is enabled
//
// # What this package must NOT do
//
//   - Count successful logins.
//   - Be imported outside the multiauth module.
package rate
