// Package flows contains the orchestration behind every Engine operation.
//
// Each Run function (RunLogin, RunSetupTwoFactor, RunChangePassword, ...) accepts a
// typed dependency struct of repositories and injected funcs, and touches nothing
// else. The Engine builds these structs and stays thin.
//
// # Architecture boundaries
//
// Flows coordinate the account repository, the session manager, the failure
// counter, audit, and metrics. They do NOT own any of these resources; ownership
// stays with the Engine.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import authcore (to avoid import cycles).
//   - Perform I/O directly. All I/O is mediated through dependency structs.
package flows
