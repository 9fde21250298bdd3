package stellarauth

import (
	"context"
	"errors"
)

// BeginOAuth starts the provider sign-in flow: a single-use CSRF state
// is issued and embedded in the returned authorization URL. The state
// expires after Config.OAuth.StateTTL.
func (e *Engine) BeginOAuth(ctx context.Context) (authURL string, err error) {
	if !e.ready() {
		return "", ErrEngineNotReady
	}
	if e.provider == nil {
		return "", ErrOAuthUnavailable
	}

	state, err := e.oauthStates.Issue()
	if err != nil {
		return "", err
	}

	e.metricInc(MetricOAuthBegin)
	e.emitAudit(ctx, AuditOAuthBegin, "", "", true, nil)
	return e.provider.AuthCodeURL(state), nil
}

// CompleteOAuth handles the provider callback. The state is consumed
// before anything else: unknown, expired, or replayed states fail with
// [ErrOAuthStateInvalid] without touching the provider. First-time
// identities get an account created with the email pre-verified by the
// provider; returning identities sign in to their existing account.
func (e *Engine) CompleteOAuth(ctx context.Context, state, code string) (*SessionResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	if e.provider == nil {
		return nil, ErrOAuthUnavailable
	}

	if err := e.oauthStates.Consume(state); err != nil {
		e.metricInc(MetricOAuthFailure)
		e.emitAudit(ctx, AuditOAuthComplete, "", "", false, ErrOAuthStateInvalid)
		return nil, ErrOAuthStateInvalid
	}

	identity, err := e.provider.Exchange(ctx, code)
	if err != nil {
		e.metricInc(MetricOAuthFailure)
		e.emitAudit(ctx, AuditOAuthComplete, "", "", false, err)
		e.warn("oauth exchange failed", "err", err)
		return nil, ErrOAuthUnavailable
	}

	email := foldEmail(identity.Email)
	if !validEmail(email) {
		e.metricInc(MetricOAuthFailure)
		return nil, ErrInvalidEmail
	}

	user, err := e.accounts.FindByEmail(ctx, email)
	switch {
	case errors.Is(err, ErrUserNotFound):
		user, err = e.accounts.Create(ctx, CreateUserInput{
			Email:         email,
			DisplayName:   sanitizeInput(identity.DisplayName),
			Role:          RoleUser,
			EmailVerified: identity.EmailVerified,
		})
		if err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	}

	if user.Status == AccountDeleted {
		e.metricInc(MetricOAuthFailure)
		e.emitAudit(ctx, AuditOAuthComplete, user.ID, email, false, ErrAccountDeleted)
		return nil, ErrAccountDeleted
	}

	if err := e.accounts.UpdateLastSignin(ctx, user.ID); err != nil {
		e.warn("last-signin update failed", "user_id", user.ID, "err", err)
	}

	result, err := e.issuePair(ctx, user)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricOAuthSuccess)
	e.emitAuditMeta(ctx, AuditOAuthComplete, user.ID, user.Email, true, nil,
		map[string]string{"provider_user_id": identity.ProviderUserID})
	return result, nil
}
