package stellarauth

import (
	"context"
	"errors"
)

// GetUser returns the caller-facing view of an account.
func (e *Engine) GetUser(ctx context.Context, userID string) (*UserSummary, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	user, err := e.accounts.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Status == AccountDeleted {
		return nil, ErrAccountDeleted
	}
	summary := user.Summary()
	return &summary, nil
}

// DeleteAccount soft-deletes an account. Tokens already in the wild keep
// verifying until they expire, but every flow that loads the account
// rejects it from this point on. Rows are removed only by an explicit
// administrative purge.
func (e *Engine) DeleteAccount(ctx context.Context, userID string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}

	user, err := e.accounts.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	if user.Status == AccountDeleted {
		return ErrAccountDeleted
	}

	if err := e.accounts.SoftDelete(ctx, userID); err != nil {
		return err
	}

	e.metricInc(MetricAccountDeleted)
	e.emitAudit(ctx, AuditAccountDelete, userID, user.Email, true, nil)
	return nil
}
