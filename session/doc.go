// Package session issues, lists, and revokes login sessions.
//
// # Components
//
//   - [Manager]: session lifecycle (issue, list, touch, revoke) over a [Repository].
//   - [Store]: Redis-backed [Repository] with a per-user index set.
//   - [Encode]/[Decode]: compact versioned binary encoding of a [Session].
//
// # Active sessions
//
// A session is active while its ExpiresAt lies strictly after the manager clock.
// Redis TTLs expire blobs eventually, but listing always filters on ExpiresAt so
// results do not depend on key eviction timing.
//
// # What this package must NOT do
//
//   - Import authcore (no upward imports).
//   - Persist plaintext refresh tokens; only their SHA-256 digest is stored.
//   - Mutate sessions while listing them.
package session
