// Package limiters provides Redis-backed counters used by the login flow.
//
// [FailureCounter] tracks consecutive failed logins per account below the lockout
// threshold. The account record itself is only written when the threshold is
// crossed.
//
// [AttemptLimiter] caps wrong second-factor codes per account inside a cooldown.
//
// All methods are nil-safe: calling any method on a nil receiver is a no-op.
//
// # What this package must NOT do
//
//   - Import authcore or any sibling internal package.
//   - Make policy decisions beyond counting. Flow functions decide consequences.
package limiters
