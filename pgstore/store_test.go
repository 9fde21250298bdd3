package pgstore

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/susin-d/stellarauth"
)

// newTestStore connects to the database named by STELLARAUTH_TEST_DSN.
// Without it the integration tests are skipped.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("STELLARAUTH_TEST_DSN")
	if dsn == "" {
		t.Skip("STELLARAUTH_TEST_DSN not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store, err := Open(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testEmail(t *testing.T) string {
	return fmt.Sprintf("%s-%d@test.invalid", t.Name(), time.Now().UnixNano())
}

func TestCreateAndFind(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	email := testEmail(t)

	created, err := store.Create(ctx, stellarauth.CreateUserInput{
		Email:        email,
		PasswordHash: "$argon2id$fake",
		DisplayName:  "Test User",
		Role:         stellarauth.RoleUser,
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	require.Equal(t, stellarauth.AccountActive, created.Status)
	require.False(t, created.EmailVerified)
	require.True(t, created.LastSigninAt.IsZero())

	byEmail, err := store.FindByEmail(ctx, email)
	require.NoError(t, err)
	require.Equal(t, created.ID, byEmail.ID)

	byID, err := store.FindByID(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, email, byID.Email)
}

func TestCreateDuplicateEmailCaseInsensitive(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	email := testEmail(t)

	_, err := store.Create(ctx, stellarauth.CreateUserInput{Email: email, Role: stellarauth.RoleUser})
	require.NoError(t, err)

	_, err = store.Create(ctx, stellarauth.CreateUserInput{
		Email: "UPPER-" + email, // distinct
		Role:  stellarauth.RoleUser,
	})
	require.NoError(t, err)

	// Same email, different case: the lower(email) index rejects it.
	_, err = store.Create(ctx, stellarauth.CreateUserInput{
		Email: "Upper-" + email,
		Role:  stellarauth.RoleUser,
	})
	require.ErrorIs(t, err, stellarauth.ErrAccountExists)
}

func TestFindUnknown(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.FindByEmail(ctx, "absent-"+testEmail(t))
	require.ErrorIs(t, err, stellarauth.ErrUserNotFound)
}

func TestUpdates(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created, err := store.Create(ctx, stellarauth.CreateUserInput{
		Email: testEmail(t), PasswordHash: "old", Role: stellarauth.RoleUser,
	})
	require.NoError(t, err)

	require.NoError(t, store.SetVerified(ctx, created.ID))
	require.NoError(t, store.UpdatePassword(ctx, created.ID, "new-hash"))
	require.NoError(t, store.UpdateLastSignin(ctx, created.ID))

	got, err := store.FindByID(ctx, created.ID)
	require.NoError(t, err)
	require.True(t, got.EmailVerified)
	require.Equal(t, "new-hash", got.PasswordHash)
	require.False(t, got.LastSigninAt.IsZero())

	require.ErrorIs(t, store.SetVerified(ctx, "00000000-0000-0000-0000-000000000000"), stellarauth.ErrUserNotFound)
}

func TestSoftDeleteAndPurge(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created, err := store.Create(ctx, stellarauth.CreateUserInput{
		Email: testEmail(t), Role: stellarauth.RoleUser,
	})
	require.NoError(t, err)

	require.NoError(t, store.SoftDelete(ctx, created.ID))

	got, err := store.FindByID(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, stellarauth.AccountDeleted, got.Status)

	// Fresh deletions survive a 24h-retention purge.
	_, err = store.PurgeDeleted(ctx, 24*time.Hour)
	require.NoError(t, err)
	_, err = store.FindByID(ctx, created.ID)
	require.NoError(t, err)

	// A zero-retention purge removes them.
	n, err := store.PurgeDeleted(ctx, 0)
	require.NoError(t, err)
	require.GreaterOrEqual(t, n, int64(1))
	_, err = store.FindByID(ctx, created.ID)
	require.ErrorIs(t, err, stellarauth.ErrUserNotFound)
}

func TestSetRole(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created, err := store.Create(ctx, stellarauth.CreateUserInput{
		Email: testEmail(t), Role: stellarauth.RoleUser,
	})
	require.NoError(t, err)

	require.NoError(t, store.SetRole(ctx, created.ID, stellarauth.RoleAdmin))
	got, err := store.FindByID(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, stellarauth.RoleAdmin, got.Role)
}
