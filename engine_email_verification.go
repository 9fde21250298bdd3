package stellarauth

import (
	"context"
	"errors"

	"github.com/susin-d/stellarauth/internal/stores"
	"github.com/susin-d/stellarauth/token"
)

// issueOneTime mints an email-bound one-time token, records its jti for
// single use, and hands the token to the notifier. Shared by the
// verification and reset request paths.
func (e *Engine) issueOneTime(ctx context.Context, user *User, kind token.Kind) error {
	tokenStr, jti, expiresAt, err := e.codec.MintOneTime(kind, token.Subject{
		UserID: user.ID,
		Email:  user.Email,
	})
	if err != nil {
		return err
	}

	now := e.now()
	record := &stores.OneTimeRecord{
		UserID:    user.ID,
		Purpose:   string(kind),
		IssuedAt:  now.Unix(),
		ExpiresAt: expiresAt.Unix(),
	}
	if err := e.onetime.Save(ctx, jti, record, expiresAt.Sub(now)); err != nil {
		return mapOneTimeError(err)
	}

	if e.notifier == nil {
		e.warn("no notifier configured, one-time token not delivered", "user_id", user.ID)
		return nil
	}

	switch kind {
	case token.KindVerification:
		err = e.notifier.SendVerificationEmail(ctx, user.Email, tokenStr)
	case token.KindReset:
		err = e.notifier.SendPasswordResetEmail(ctx, user.Email, tokenStr)
	}
	if err != nil {
		e.metricInc(MetricNotifyFailure)
		e.warn("notification send failed", "user_id", user.ID, "err", err)
	}
	return nil
}

// RequestEmailVerification issues (or re-issues) a verification email.
// The outcome is deliberately indistinguishable for unknown and
// already-verified emails, so this endpoint cannot be used to probe
// which accounts exist.
func (e *Engine) RequestEmailVerification(ctx context.Context, email string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}

	email = foldEmail(sanitizeInput(email))
	if !validEmail(email) {
		return ErrInvalidEmail
	}

	user, err := e.accounts.FindByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		e.emitAudit(ctx, AuditVerifyRequest, "", email, false, err)
		return nil
	}
	if err != nil {
		return err
	}
	if user.Status == AccountDeleted || user.EmailVerified {
		e.emitAudit(ctx, AuditVerifyRequest, user.ID, email, false, nil)
		return nil
	}

	if err := e.issueOneTime(ctx, user, token.KindVerification); err != nil {
		return err
	}

	e.metricInc(MetricVerificationRequest)
	e.emitAudit(ctx, AuditVerifyRequest, user.ID, user.Email, true, nil)
	return nil
}

// CompleteEmailVerification consumes a verification token and marks the
// account's email verified. The token must be bound to email and can
// succeed exactly once; a replay returns [ErrTokenAlreadyUsed].
func (e *Engine) CompleteEmailVerification(ctx context.Context, email, verificationToken string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}

	email = foldEmail(sanitizeInput(email))

	claims, err := e.codec.VerifyEmailBound(token.KindVerification, verificationToken, email)
	if err != nil {
		e.metricInc(MetricVerificationFailure)
		e.emitAudit(ctx, AuditVerifyComplete, "", email, false, err)
		return e.mapTokenError(ctx, err)
	}

	record, err := e.onetime.Consume(ctx, claims.ID, string(token.KindVerification))
	if err != nil {
		e.metricInc(MetricVerificationFailure)
		mapped := mapOneTimeError(err)
		e.emitAudit(ctx, AuditVerifyComplete, claims.Subject, email, false, mapped)
		return mapped
	}
	if record.UserID != claims.Subject {
		e.metricInc(MetricVerificationFailure)
		return ErrTokenMalformed
	}

	if err := e.accounts.SetVerified(ctx, claims.Subject); err != nil {
		return err
	}

	e.metricInc(MetricVerificationSuccess)
	e.emitAudit(ctx, AuditVerifyComplete, claims.Subject, email, true, nil)
	return nil
}
