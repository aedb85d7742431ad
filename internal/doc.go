// Package internal contains helpers private to authcore: secure random tokens and
// constant-time comparison.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher and Sink implementations)
//   - flows: orchestration behind every Engine operation
//   - limiters: Redis failure counter used by the lockout policy
package internal
