// Package password implements password hashing, verification, and strength policy.
//
// # Output format
//
// New hashes are Argon2id PHC strings:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Multi] dispatches verification on the digest prefix so imported bcrypt hashes
// keep working; [Multi.NeedsUpgrade] reports them (and weaker Argon2 parameters) so
// the caller can rehash after a successful login.
//
// # Architecture boundaries
//
// This package owns hashing, verification, and [Policy]. Reuse history is enforced
// by the engine using account.CheckPasswordHistory.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords.
//   - Import any other authcore package.
//   - Log plaintext passwords or hash parameters at runtime.
package password
