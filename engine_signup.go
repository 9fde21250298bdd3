package stellarauth

import (
	"context"
	"errors"

	"github.com/susin-d/stellarauth/token"
)

// SignUp registers a new account and establishes its first session. The
// email is validated, case-folded, and claimed through the account
// store's uniqueness constraint; duplicates surface as
// [ErrAccountExists] regardless of case. A verification email is sent
// best-effort: delivery failure never fails the sign-up.
func (e *Engine) SignUp(ctx context.Context, req SignUpRequest) (*SessionResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	email := foldEmail(sanitizeInput(req.Email))
	if !validEmail(email) {
		return nil, ErrInvalidEmail
	}
	if err := checkPasswordPolicy(req.Password); err != nil {
		return nil, err
	}

	hash, err := e.hasher.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	user, err := e.accounts.Create(ctx, CreateUserInput{
		Email:        email,
		PasswordHash: hash,
		DisplayName:  sanitizeInput(req.DisplayName),
		Role:         RoleUser,
	})
	if err != nil {
		if errors.Is(err, ErrAccountExists) {
			e.metricInc(MetricSignUpDuplicate)
			e.emitAudit(ctx, AuditSignUp, "", email, false, ErrAccountExists)
			return nil, ErrAccountExists
		}
		return nil, err
	}

	result, err := e.issuePair(ctx, user)
	if err != nil {
		return nil, err
	}

	// Best-effort: the account exists either way, and the verification
	// email can be re-requested.
	if err := e.issueOneTime(ctx, user, token.KindVerification); err != nil {
		e.warn("verification issue failed", "user_id", user.ID, "err", err)
	}

	e.metricInc(MetricSignUpSuccess)
	e.emitAudit(ctx, AuditSignUp, user.ID, user.Email, true, nil)
	return result, nil
}
