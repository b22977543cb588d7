// Package cache is the key-value store the authentication engine keeps its
// ephemeral state in: verification codes, resend markers, refresh-token
// pointers, the access-token blacklist, and failed-login counters.
//
// [Cache] is the contract; [Redis] implements it on go-redis. Every TTL is
// applied in whole seconds or finer, and single-key operations are atomic.
// [Cache.CompareAndSwap] runs as a Lua script so refresh rotation cannot be
// won twice by concurrent callers.
package cache
