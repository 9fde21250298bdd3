// Package pgstore is the PostgreSQL implementation of
// [stellarauth.AccountStore]. Schema migrations are embedded and applied
// with goose; the driver is pgx through database/sql.
package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/susin-d/stellarauth"
	"github.com/susin-d/stellarauth/pgstore/migrations"
)

const pgUniqueViolation = "23505"

// Store implements stellarauth.AccountStore on PostgreSQL.
type Store struct {
	db *sql.DB
}

// New wraps an existing connection pool. The caller owns the pool.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open connects to dsn, applies pending migrations, and returns a ready
// store.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	s := New(db)
	if err := s.RunMigrations(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}
	return s, nil
}

// RunMigrations applies the embedded schema migrations.
func (s *Store) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return goose.UpContext(ctx, s.db, ".")
}

// Close releases the underlying pool.
func (s *Store) Close() error {
	return s.db.Close()
}

const userColumns = `id, email, password_hash, display_name, email_verified,
	role, status, created_at, updated_at, last_signin_at`

func scanUser(row *sql.Row) (*stellarauth.User, error) {
	var (
		u            stellarauth.User
		role, status string
		lastSignin   sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.DisplayName,
		&u.EmailVerified, &role, &status, &u.CreatedAt, &u.UpdatedAt, &lastSignin)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, stellarauth.ErrUserNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	u.Role = stellarauth.Role(role)
	u.Status = stellarauth.AccountStatus(status)
	if lastSignin.Valid {
		u.LastSigninAt = lastSignin.Time
	}
	return &u, nil
}

func (s *Store) FindByEmail(ctx context.Context, email string) (*stellarauth.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1)`
	return scanUser(s.db.QueryRowContext(ctx, query, email))
}

func (s *Store) FindByID(ctx context.Context, id string) (*stellarauth.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(s.db.QueryRowContext(ctx, query, id))
}

func (s *Store) Create(ctx context.Context, input stellarauth.CreateUserInput) (*stellarauth.User, error) {
	query := `INSERT INTO users (email, password_hash, display_name, email_verified, role)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING ` + userColumns

	row := s.db.QueryRowContext(ctx, query,
		input.Email, input.PasswordHash, input.DisplayName,
		input.EmailVerified, string(input.Role))

	user, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, stellarauth.ErrAccountExists
		}
		return nil, err
	}
	return user, nil
}

func (s *Store) SetVerified(ctx context.Context, id string) error {
	query := `UPDATE users SET email_verified = TRUE, updated_at = now() WHERE id = $1`
	return s.exec(ctx, query, id)
}

func (s *Store) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	query := `UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`
	return s.exec(ctx, query, id, passwordHash)
}

func (s *Store) UpdateLastSignin(ctx context.Context, id string) error {
	query := `UPDATE users SET last_signin_at = now(), updated_at = now() WHERE id = $1`
	return s.exec(ctx, query, id)
}

func (s *Store) SoftDelete(ctx context.Context, id string) error {
	query := `UPDATE users SET status = $2, deleted_at = now(), updated_at = now() WHERE id = $1`
	return s.exec(ctx, query, id, string(stellarauth.AccountDeleted))
}

// SetRole changes an account's role. Administrative; the engine never
// promotes.
func (s *Store) SetRole(ctx context.Context, id string, role stellarauth.Role) error {
	query := `UPDATE users SET role = $2, updated_at = now() WHERE id = $1`
	return s.exec(ctx, query, id, string(role))
}

// PurgeDeleted removes soft-deleted rows older than the retention
// period. Administrative; never called by the engine.
func (s *Store) PurgeDeleted(ctx context.Context, retention time.Duration) (int64, error) {
	query := `DELETE FROM users WHERE status = $1 AND deleted_at < now() - $2::interval`
	res, err := s.db.ExecContext(ctx, query,
		string(stellarauth.AccountDeleted),
		fmt.Sprintf("%d seconds", int64(retention.Seconds())))
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) exec(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return stellarauth.ErrUserNotFound
	}
	return nil
}
