// Command stellarauth-admin performs administrative operations against
// the account database: promoting an account to admin and purging
// soft-deleted rows past their retention period.
//
// Usage:
//
//	stellarauth-admin -dsn postgres://... promote -email alice@example.com
//	stellarauth-admin -dsn postgres://... purge -retention 720h
//
// The DSN can also be supplied via STELLARAUTH_DATABASE_DSN.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/susin-d/stellarauth"
	"github.com/susin-d/stellarauth/pgstore"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "stellarauth-admin:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	global := flag.NewFlagSet("stellarauth-admin", flag.ExitOnError)
	dsn := global.String("dsn", os.Getenv("STELLARAUTH_DATABASE_DSN"), "postgres DSN")
	if err := global.Parse(args); err != nil {
		return err
	}
	if *dsn == "" {
		return fmt.Errorf("database DSN required (-dsn or STELLARAUTH_DATABASE_DSN)")
	}
	rest := global.Args()
	if len(rest) == 0 {
		return fmt.Errorf("subcommand required: promote | purge")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := pgstore.Open(ctx, *dsn)
	if err != nil {
		return err
	}
	defer store.Close()

	switch rest[0] {
	case "promote":
		return promote(ctx, store, rest[1:])
	case "purge":
		return purge(ctx, store, rest[1:])
	default:
		return fmt.Errorf("unknown subcommand %q", rest[0])
	}
}

func promote(ctx context.Context, store *pgstore.Store, args []string) error {
	fs := flag.NewFlagSet("promote", flag.ExitOnError)
	email := fs.String("email", "", "email of the account to promote")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" {
		return fmt.Errorf("promote: -email required")
	}

	user, err := store.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(*email)))
	if err != nil {
		return fmt.Errorf("promote: %w", err)
	}
	if user.Role == stellarauth.RoleAdmin {
		fmt.Printf("%s is already an admin\n", user.Email)
		return nil
	}
	if err := store.SetRole(ctx, user.ID, stellarauth.RoleAdmin); err != nil {
		return fmt.Errorf("promote: %w", err)
	}
	fmt.Printf("promoted %s to admin\n", user.Email)
	return nil
}

func purge(ctx context.Context, store *pgstore.Store, args []string) error {
	fs := flag.NewFlagSet("purge", flag.ExitOnError)
	retention := fs.Duration("retention", 30*24*time.Hour, "minimum age of soft-deleted rows to remove")
	if err := fs.Parse(args); err != nil {
		return err
	}

	n, err := store.PurgeDeleted(ctx, *retention)
	if err != nil {
		return fmt.Errorf("purge: %w", err)
	}
	fmt.Printf("purged %d deleted account(s) older than %s\n", n, retention)
	return nil
}
