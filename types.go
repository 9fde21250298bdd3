package stellarauth

import (
	"context"
	"time"
)

// AccountStatus is the lifecycle state of an account. Accounts are soft
// deleted; rows leave the store only through an explicit administrative
// purge.
type AccountStatus string

const (
	// AccountActive is the normal account state.
	AccountActive AccountStatus = "active"
	// AccountDeleted marks a soft-deleted account.
	AccountDeleted AccountStatus = "deleted"
)

// Role is the coarse authorization level embedded in access tokens.
type Role string

const (
	// RoleUser is the default role for new accounts.
	RoleUser Role = "user"
	// RoleAdmin is granted administratively, never at sign-up.
	RoleAdmin Role = "admin"
)

// User is the full account record owned by the [AccountStore]. Email is
// stored case-folded; PasswordHash never leaves the engine.
type User struct {
	ID            string
	Email         string
	PasswordHash  string
	DisplayName   string
	EmailVerified bool
	Role          Role
	Status        AccountStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
	LastSigninAt  time.Time // zero until first sign-in
}

// UserSummary is the caller-facing projection of a [User]. It carries no
// credential material.
type UserSummary struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	DisplayName   string    `json:"display_name,omitempty"`
	EmailVerified bool      `json:"email_verified"`
	Role          Role      `json:"role"`
	CreatedAt     time.Time `json:"created_at"`
	LastSigninAt  time.Time `json:"last_signin_at,omitzero"`
}

// Summary projects a user into its caller-facing form.
func (u *User) Summary() UserSummary {
	return UserSummary{
		ID:            u.ID,
		Email:         u.Email,
		DisplayName:   u.DisplayName,
		EmailVerified: u.EmailVerified,
		Role:          u.Role,
		CreatedAt:     u.CreatedAt,
		LastSigninAt:  u.LastSigninAt,
	}
}

// TokenIdentity is the identity extracted from a verified access token.
type TokenIdentity struct {
	UserID string
	Email  string
	Role   Role
}

// SessionResult is returned by every flow that establishes a session.
type SessionResult struct {
	User         UserSummary `json:"user"`
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
}

// SignUpRequest is the input for [Engine.SignUp].
type SignUpRequest struct {
	Email       string
	Password    string
	DisplayName string
}

// CreateUserInput is the input for [AccountStore.Create]. PasswordHash
// is empty for provider-originated accounts that have no local password.
type CreateUserInput struct {
	Email         string
	PasswordHash  string
	DisplayName   string
	Role          Role
	EmailVerified bool
}

// AccountStore is the user persistence collaborator. Implementations
// must enforce email uniqueness with a storage-level constraint (mapped
// to [ErrAccountExists]), never with a read-then-write check, and must
// return [ErrUserNotFound] for absent or purged rows. Lookups receive
// already case-folded emails.
type AccountStore interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id string) (*User, error)
	Create(ctx context.Context, input CreateUserInput) (*User, error)
	SetVerified(ctx context.Context, id string) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	UpdateLastSignin(ctx context.Context, id string) error
	SoftDelete(ctx context.Context, id string) error
}

// Notifier delivers verification and reset emails. Calls are
// fire-and-forget from the engine's perspective: failures are logged and
// audited but never abort the triggering flow.
type Notifier interface {
	SendVerificationEmail(ctx context.Context, email, token string) error
	SendPasswordResetEmail(ctx context.Context, email, token string) error
}

// OAuthIdentity is what the engine needs back from a provider exchange.
type OAuthIdentity struct {
	Email          string
	ProviderUserID string
	DisplayName    string
	AvatarURL      string
	EmailVerified  bool
}

// OAuthProvider runs the authorization-code exchange against an external
// identity provider. The engine owns only the CSRF-state protocol around
// it.
type OAuthProvider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*OAuthIdentity, error)
}
