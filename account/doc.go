// Package account defines the account data model consumed by the authentication engine.
//
// # Status axes
//
// An [Account] carries two independent state machines:
//
//   - [Status]: lifecycle (unverified, active, locked, suspended, deleted).
//   - [TwoFactor]: second-factor enrollment (disabled, pending, enabled).
//
// Both are sealed interfaces: only the variants declared in this package satisfy them,
// and every consumer switches over the concrete type.
//
// # Architecture boundaries
//
// This package owns the model, the legal status transitions ([CanTransition]), the
// password-history helpers, and the [Repository] contract. Storage adapters live in
// store/memory and store/postgres.
//
// # What this package must NOT do
//
//   - Import authcore or any internal package.
//   - Hash, verify, or log passwords.
//   - Perform I/O.
package account
