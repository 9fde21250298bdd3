// Package password provides argon2id password hashing in PHC string
// format, with constant-time verification and parameter-drift detection
// for transparent hash upgrades on login.
//
// # What this package must NOT do
//
//   - Log, persist, or return plaintext passwords.
//   - Import stellarauth or any sibling package.
package password
