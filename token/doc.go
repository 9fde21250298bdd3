// Package token implements the signed token codec for all four token
// kinds the engine issues: access, refresh, email-verification, and
// password-reset.
//
// # Token format
//
// HS256 JWTs with a mandatory kind discriminator claim ("type"), a fresh
// jti per token, and for access/refresh kinds truncated one-way
// binding hashes of the minting client's User-Agent and IP. Binding lets a
// later verification detect replay from a different client context
// without any server-side session state. Verification and reset tokens
// omit the audience claim and instead embed the subject's email, which is
// rechecked in constant time on verify.
//
// # Architecture boundaries
//
// This package owns claim construction, signing, and verification policy
// (algorithm pinning, issuer/audience, expiry with leeway, binding
// recheck). Single-use enforcement for verification/reset tokens is the
// store's job, keyed by the jti this codec mints.
//
// # What this package must NOT do
//
//   - Accept any signing algorithm besides HS256; "none" and
//     attacker-chosen algorithms must be structurally impossible.
//   - Access Redis, SQL, or any I/O.
//   - Import stellarauth or any sibling package.
package token
