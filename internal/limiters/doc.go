// Package limiters implements the failed-login lockout tracker.
//
// The tracker keeps a per-process in-memory cache for the hot path and
// mirrors every record to Redis so lockouts survive process restarts and
// are visible to other service instances. The cache is best effort:
// slight under- or over-counting under concurrent attack across
// instances is acceptable; Redis is the source of truth on cache miss.
package limiters
