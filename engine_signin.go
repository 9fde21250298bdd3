package stellarauth

import (
	"context"
	"errors"
)

// dummyHash is verified against when the email is unknown, so a
// sign-in against a nonexistent account costs the same as a wrong
// password against a real one.
const dummyHash = "$argon2id$v=19$m=65536,t=3,p=2$c3RlbGxhci1kdW1teS1zYWx0$" +
	"nS1EJlybYro0uPn4XLxB9aRRBg8qwWLDtxjMnQnKat0"

// SignIn authenticates email+password and establishes a session.
// Unknown emails, wrong passwords, and soft-deleted accounts all return
// [ErrInvalidCredentials]; an active lockout returns a [*LockoutError].
func (e *Engine) SignIn(ctx context.Context, email, password string) (*SessionResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	email = foldEmail(sanitizeInput(email))
	if !validEmail(email) {
		return nil, ErrInvalidCredentials
	}

	// Lockout gate comes first: a locked account rejects even the
	// correct password, so lockouts cannot be used as a password oracle.
	status, err := e.lockout.Status(ctx, email)
	if err != nil {
		e.warn("lockout status unavailable", "err", err)
	}
	if status.Locked {
		e.metricInc(MetricSignInLocked)
		e.emitAudit(ctx, AuditSignInLocked, "", email, false, ErrAccountLocked)
		return nil, &LockoutError{RemainingMinutes: status.RemainingMinutes, Attempts: status.Attempts}
	}

	user, err := e.accounts.FindByEmail(ctx, email)
	switch {
	case errors.Is(err, ErrUserNotFound):
		// Burn a hash verification so unknown emails are not
		// distinguishable by response time.
		_, _ = e.hasher.Verify(password, dummyHash)
		return nil, e.failSignIn(ctx, email)
	case err != nil:
		return nil, err
	}

	if user.Status == AccountDeleted {
		_, _ = e.hasher.Verify(password, dummyHash)
		return nil, e.failSignIn(ctx, email)
	}

	ok, err := e.hasher.Verify(password, user.PasswordHash)
	if err != nil || !ok {
		return nil, e.failSignIn(ctx, email)
	}

	if err := e.lockout.Clear(ctx, email); err != nil {
		e.warn("lockout clear failed", "err", err)
	}
	if err := e.accounts.UpdateLastSignin(ctx, user.ID); err != nil {
		e.warn("last-signin update failed", "user_id", user.ID, "err", err)
	}

	result, err := e.issuePair(ctx, user)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricSignInSuccess)
	e.emitAudit(ctx, AuditSignIn, user.ID, user.Email, true, nil)
	return result, nil
}

// failSignIn records one failed attempt and decides between the generic
// credential error and a lockout error when this attempt tripped the
// threshold.
func (e *Engine) failSignIn(ctx context.Context, email string) error {
	record, locked, err := e.lockout.RecordFailure(ctx, email)
	if err != nil {
		e.warn("lockout persist failed", "err", err)
	}

	e.metricInc(MetricSignInFailure)
	e.emitAudit(ctx, AuditSignIn, "", email, false, ErrInvalidCredentials)

	if locked {
		e.metricInc(MetricAccountLocked)
		e.emitAudit(ctx, AuditSignInLocked, "", email, false, ErrAccountLocked)
		minutes := int(e.config.Lockout.LockoutDuration.Minutes())
		return &LockoutError{RemainingMinutes: minutes, Attempts: record.Count}
	}
	return ErrInvalidCredentials
}

// CheckLockout reports whether email is currently locked out. It returns
// nil when sign-in may proceed and a [*LockoutError] otherwise. Exposed
// for callers that gate expensive work ahead of SignIn.
func (e *Engine) CheckLockout(ctx context.Context, email string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	status, err := e.lockout.Status(ctx, foldEmail(email))
	if err != nil {
		return err
	}
	if status.Locked {
		return &LockoutError{RemainingMinutes: status.RemainingMinutes, Attempts: status.Attempts}
	}
	return nil
}

// RecordFailedLogin counts one failed attempt against email on behalf of
// an external authentication surface. Returns a [*LockoutError] when
// this attempt triggered the lockout.
func (e *Engine) RecordFailedLogin(ctx context.Context, email string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	record, locked, err := e.lockout.RecordFailure(ctx, foldEmail(email))
	if err != nil {
		e.warn("lockout persist failed", "err", err)
	}
	if locked {
		e.metricInc(MetricAccountLocked)
		minutes := int(e.config.Lockout.LockoutDuration.Minutes())
		return &LockoutError{RemainingMinutes: minutes, Attempts: record.Count}
	}
	return nil
}
