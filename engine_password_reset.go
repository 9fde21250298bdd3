package stellarauth

import (
	"context"
	"errors"

	"github.com/susin-d/stellarauth/token"
)

// RequestPasswordReset issues a password-reset email. Like
// [Engine.RequestEmailVerification] it returns nil for unknown emails,
// so the endpoint leaks nothing about which accounts exist.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}

	email = foldEmail(sanitizeInput(email))
	if !validEmail(email) {
		return ErrInvalidEmail
	}

	user, err := e.accounts.FindByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		e.emitAudit(ctx, AuditResetRequest, "", email, false, err)
		return nil
	}
	if err != nil {
		return err
	}
	if user.Status == AccountDeleted {
		e.emitAudit(ctx, AuditResetRequest, user.ID, email, false, nil)
		return nil
	}

	if err := e.issueOneTime(ctx, user, token.KindReset); err != nil {
		return err
	}

	e.metricInc(MetricResetRequest)
	e.emitAudit(ctx, AuditResetRequest, user.ID, user.Email, true, nil)
	return nil
}

// CompletePasswordReset consumes a reset token and replaces the
// account's password. On success any active lockout for the email is
// cleared: the account holder just proved control of the mailbox.
func (e *Engine) CompletePasswordReset(ctx context.Context, email, resetToken, newPassword string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}

	email = foldEmail(sanitizeInput(email))

	// Policy check before token consumption: a policy violation must
	// not burn the single-use token.
	if err := checkPasswordPolicy(newPassword); err != nil {
		return err
	}

	claims, err := e.codec.VerifyEmailBound(token.KindReset, resetToken, email)
	if err != nil {
		e.metricInc(MetricResetFailure)
		e.emitAudit(ctx, AuditResetComplete, "", email, false, err)
		return e.mapTokenError(ctx, err)
	}

	record, err := e.onetime.Consume(ctx, claims.ID, string(token.KindReset))
	if err != nil {
		e.metricInc(MetricResetFailure)
		mapped := mapOneTimeError(err)
		e.emitAudit(ctx, AuditResetComplete, claims.Subject, email, false, mapped)
		return mapped
	}
	if record.UserID != claims.Subject {
		e.metricInc(MetricResetFailure)
		return ErrTokenMalformed
	}

	hash, err := e.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := e.accounts.UpdatePassword(ctx, claims.Subject, hash); err != nil {
		return err
	}

	if err := e.lockout.Clear(ctx, email); err != nil {
		e.warn("lockout clear failed", "err", err)
	}

	e.metricInc(MetricResetSuccess)
	e.emitAudit(ctx, AuditResetComplete, claims.Subject, email, true, nil)
	return nil
}
