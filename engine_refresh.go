package stellarauth

import (
	"context"
	"errors"
	"time"

	"github.com/susin-d/stellarauth/token"
)

// Refresh rotates a refresh token: the presented token is spent and a
// fresh access/refresh pair is minted. Presenting a rotated-out token
// again returns [ErrRefreshReuse], the signal that the token leaked.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*SessionResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	claims, err := e.codec.Verify(token.KindRefresh, refreshToken, e.binding(ctx))
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		return nil, e.mapTokenError(ctx, err)
	}

	if e.config.Security.EnforceRefreshReuseDetection {
		// Spend the jti until the token would have expired naturally;
		// after that the expiry check rejects it anyway.
		ttl := time.Until(claims.ExpiresAt.Time)
		first, err := e.spent.MarkSpent(ctx, claims.ID, ttl)
		if err != nil {
			// Fail closed: skipping the check would let a stolen
			// token rotate undetected.
			return nil, ErrStoreUnavailable
		}
		if !first {
			e.metricInc(MetricRefreshReuseDetected)
			e.emitAudit(ctx, AuditRefreshReuse, claims.Subject, "", false, ErrRefreshReuse)
			return nil, ErrRefreshReuse
		}
	}

	user, err := e.accounts.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			e.metricInc(MetricRefreshFailure)
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if user.Status == AccountDeleted {
		e.metricInc(MetricRefreshFailure)
		return nil, ErrAccountDeleted
	}

	if err := e.accounts.UpdateLastSignin(ctx, user.ID); err != nil {
		e.warn("last-signin update failed", "user_id", user.ID, "err", err)
	}

	result, err := e.issuePair(ctx, user)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, AuditRefresh, user.ID, user.Email, true, nil)
	return result, nil
}

// VerifyAccessToken validates an access token against the request
// context and returns the identity it carries. This is the per-request
// hot path; it touches no storage.
func (e *Engine) VerifyAccessToken(ctx context.Context, accessToken string) (*TokenIdentity, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	claims, err := e.codec.Verify(token.KindAccess, accessToken, e.binding(ctx))
	if err != nil {
		return nil, e.mapTokenError(ctx, err)
	}

	return &TokenIdentity{
		UserID: claims.Subject,
		Email:  claims.Email,
		Role:   Role(claims.Role),
	}, nil
}
