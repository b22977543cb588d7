// Package password hashes and verifies passwords with bcrypt, scores password
// strength, and validates identifier/password credential pairs.
//
// # Output format
//
// Hashes are standard bcrypt strings ($2a$<cost>$...). [Hasher.NeedsUpgrade]
// reports hashes produced with a lower cost than configured so callers can
// re-hash after the next successful login.
//
// # What this package must NOT do
//
//   - Log plaintext passwords.
//   - Distinguish "unknown identifier" from "wrong password" to its callers.
package password
