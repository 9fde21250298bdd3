package stellarauth

import (
	"context"
	"errors"

	"github.com/susin-d/stellarauth/internal/stores"
	"github.com/susin-d/stellarauth/token"
)

// Audit event types emitted by the engine. Sinks can filter on these.
const (
	AuditSignUp           = "signup"
	AuditSignIn           = "signin"
	AuditSignInLocked     = "signin_locked"
	AuditRefresh          = "refresh"
	AuditRefreshReuse     = "refresh_reuse"
	AuditVerifyRequest    = "verification_request"
	AuditVerifyComplete   = "verification_complete"
	AuditResetRequest     = "password_reset_request"
	AuditResetComplete    = "password_reset_complete"
	AuditOAuthBegin       = "oauth_begin"
	AuditOAuthComplete    = "oauth_complete"
	AuditAccountDelete    = "account_delete"
	AuditBindingViolation = "binding_violation"
)

func (e *Engine) emitAudit(ctx context.Context, eventType, userID, email string, success bool, failure error) {
	if e == nil || e.audit == nil {
		return
	}
	ev := AuditEvent{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		UserID:    userID,
		Email:     email,
		IP:        clientIPFromContext(ctx),
		Success:   success,
	}
	if failure != nil {
		ev.Error = failure.Error()
	}
	e.audit.Emit(ctx, ev)
}

func (e *Engine) emitAuditMeta(ctx context.Context, eventType, userID, email string, success bool, failure error, meta map[string]string) {
	if e == nil || e.audit == nil {
		return
	}
	ev := AuditEvent{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		UserID:    userID,
		Email:     email,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  meta,
	}
	if failure != nil {
		ev.Error = failure.Error()
	}
	e.audit.Emit(ctx, ev)
}

// mapTokenError translates token package sentinels into the package-level
// error surface. Binding violations additionally bump a dedicated metric
// and emit an audit event because they indicate possible token theft.
func (e *Engine) mapTokenError(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, token.ErrExpired):
		return ErrTokenExpired
	case errors.Is(err, token.ErrAlgorithmRejected):
		return ErrTokenAlgorithmRejected
	case errors.Is(err, token.ErrContextMismatch):
		e.metricInc(MetricTokenContextMismatch)
		e.emitAudit(ctx, AuditBindingViolation, "", "", false, err)
		return ErrTokenContextMismatch
	case errors.Is(err, token.ErrKindMismatch):
		return ErrTokenTypeMismatch
	case errors.Is(err, token.ErrMalformed):
		return ErrTokenMalformed
	default:
		return ErrTokenMalformed
	}
}

func mapOneTimeError(err error) error {
	switch {
	case errors.Is(err, stores.ErrOneTimeNotFound):
		return ErrTokenNotFound
	case errors.Is(err, stores.ErrOneTimeExpired):
		return ErrTokenExpired
	case errors.Is(err, stores.ErrOneTimeUsed):
		return ErrTokenAlreadyUsed
	case errors.Is(err, stores.ErrOneTimeUnavailable):
		return ErrStoreUnavailable
	default:
		return ErrStoreUnavailable
	}
}
