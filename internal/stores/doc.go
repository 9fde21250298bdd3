// Package stores holds the Redis-backed server-side records that give
// signed tokens their stateful properties: single use for
// verification/reset tokens, and reuse detection for rotated refresh
// tokens.
//
// Records are hand-encoded binary with a leading version byte. Consume
// operations run inside WATCH/MULTI transactions so that exactly one of
// any number of concurrent consumers wins.
package stores
