// Package stellarauth implements the credential and session core of the
// stellar auth service: email+password sign-up/sign-in, context-bound JWT
// access and refresh tokens with rotation and reuse detection, one-time
// email-verification and password-reset tokens, failed-login lockout, and
// the CSRF-state half of the Google OAuth authorization-code flow.
//
// The package is designed for concurrent server workloads: Engine methods
// are safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// stellarauth is the public surface. It exposes [Engine], [Builder],
// [Config], the collaborator interfaces ([AccountStore], [Notifier],
// [OAuthProvider], [AuditSink]), and plain value types. Coordination
// detail (one-time token records, the lockout tracker, OAuth state
// bookkeeping) lives under internal/ and is never exported.
//
// The HTTP layer is deliberately out of scope: callers receive plain
// structs and typed errors and decide the wire format themselves. Client
// context (IP, User-Agent) flows in through [WithClientIP] and
// [WithUserAgent].
//
// # What this package must NOT do
//
//   - Expose Redis clients, store records, or token encoding details in
//     its public API.
//   - Log or return plaintext passwords, password hashes, or raw signing
//     secrets under any code path.
//   - Carry test-mode bypasses inside production verification paths; test
//     doubles are injected through the collaborator interfaces instead.
package stellarauth
