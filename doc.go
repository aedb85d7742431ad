// Package authcore is an account authentication and session engine: password login
// with automatic lockout, TOTP two-factor authentication with single-use backup
// codes, password rotation with reuse history, and per-device sessions.
//
// Engine methods are safe to call from multiple goroutines after [Builder.Build].
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Engine], [Builder], [Config], the
// request and result types, and the error values callers branch on. Flow
// orchestration, failure counting and audit dispatch live under internal/. Account
// persistence is supplied through account.Repository; store/memory and
// store/postgres are the bundled implementations. Sessions live in Redis unless a
// session.Repository is supplied.
//
// # Errors
//
// An unknown email and a wrong password both produce [ErrInvalidCredentials].
// Lock and suspension failures are [*AccountLockedError] and
// [*AccountSuspendedError], which match [ErrAccountLocked] and [ErrAccountSuspended]
// under errors.Is. Backend failures are joined with [ErrDatabase] or [ErrHash].
//
// # Concurrency
//
// Account writes are compare-and-swap on account.Account.Version. A write that lost
// the race returns [ErrConcurrentUpdate] and may be retried. Backup code consumption
// is atomic in the repository, so one code authenticates at most once.
package authcore
