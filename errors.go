package stellarauth

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCredentials is returned for unknown emails and wrong
	// passwords alike so callers cannot distinguish the two.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountExists is returned when sign-up hits an already-registered
	// email. The message is deliberately generic.
	ErrAccountExists = errors.New("unable to create account")
	// ErrAccountLocked signals an active failed-login lockout. Callers
	// usually receive it wrapped in a [LockoutError] carrying the
	// remaining lockout time.
	ErrAccountLocked = errors.New("account temporarily locked")
	// ErrAccountDeleted is returned when an operation targets a
	// soft-deleted account.
	ErrAccountDeleted = errors.New("account deleted")
	// ErrUserNotFound indicates the account vanished between
	// authentication and lookup. Rare; signals inconsistent state.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidEmail is returned for structurally invalid email input.
	ErrInvalidEmail = errors.New("invalid email address")
	// ErrPasswordPolicy is returned when a new password fails the policy
	// check. The wrapped detail is safe to show to the account holder.
	ErrPasswordPolicy = errors.New("password policy violation")

	// ErrTokenExpired is returned when a token's expiry (minus leeway)
	// has passed.
	ErrTokenExpired = errors.New("token has expired")
	// ErrTokenMalformed covers bad signatures, truncated tokens, and any
	// other structural invalidity.
	ErrTokenMalformed = errors.New("invalid token")
	// ErrTokenAlgorithmRejected is returned when a token declares any
	// signing algorithm other than the single allowed one.
	ErrTokenAlgorithmRejected = errors.New("invalid token algorithm")
	// ErrTokenContextMismatch is returned when a token's binding hashes
	// do not match the live request context. Distinct from plain
	// invalidity so callers can alarm on possible token theft.
	ErrTokenContextMismatch = errors.New("token context mismatch - possible token theft detected")
	// ErrTokenTypeMismatch is returned when a token of one kind is
	// presented where another kind is required.
	ErrTokenTypeMismatch = errors.New("invalid token type")
	// ErrTokenNotFound is returned when a one-time token has no
	// server-side record.
	ErrTokenNotFound = errors.New("token not found")
	// ErrTokenAlreadyUsed is returned when a one-time token has already
	// been consumed.
	ErrTokenAlreadyUsed = errors.New("token already used")
	// ErrRefreshReuse is returned when a rotated-out refresh token is
	// presented again.
	ErrRefreshReuse = errors.New("refresh token reuse detected")

	// ErrOAuthStateInvalid is returned when an OAuth callback carries a
	// state value that is unknown, expired, or already consumed.
	ErrOAuthStateInvalid = errors.New("invalid or expired oauth state")
	// ErrOAuthUnavailable is returned when the OAuth provider exchange or
	// userinfo fetch fails.
	ErrOAuthUnavailable = errors.New("oauth provider unavailable")

	// ErrStoreUnavailable is returned when durable storage fails on a
	// critical path.
	ErrStoreUnavailable = errors.New("storage backend unavailable")
	// ErrEngineNotReady is returned when Engine methods are called on an
	// engine that was not produced by [Builder.Build].
	ErrEngineNotReady = errors.New("engine not initialized")
)

// LockoutError reports an active lockout. Unlike other authentication
// errors it is intentionally informative: the caller already proved
// knowledge of the email, so the remaining lockout time is safe to expose.
type LockoutError struct {
	RemainingMinutes int
	Attempts         int
}

func (e *LockoutError) Error() string {
	return fmt.Sprintf("account temporarily locked, try again in %d minutes", e.RemainingMinutes)
}

// Is makes errors.Is(err, ErrAccountLocked) match a *LockoutError.
func (e *LockoutError) Is(target error) bool {
	return target == ErrAccountLocked
}
