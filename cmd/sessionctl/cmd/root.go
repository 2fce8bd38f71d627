package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"pawplanner/backend/internal/config"
	"pawplanner/backend/internal/db"
	sessiondomain "pawplanner/backend/internal/session/domain"
	sessionrepo "pawplanner/backend/internal/session/repository"
	userdomain "pawplanner/backend/internal/user/domain"
	userrepo "pawplanner/backend/internal/user/repository"
)

// UserStore is the part of the user repository sessionctl needs.
type UserStore interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
	GetByEmail(ctx context.Context, email string) (*userdomain.User, error)
	SetBan(ctx context.Context, userID string, bannedAt, bannedUntil *time.Time) error
}

// SessionStore is the part of the session repository sessionctl needs.
type SessionStore interface {
	ListForUser(ctx context.Context, userID string) ([]*sessiondomain.Session, error)
	Find(ctx context.Context, id string) (*sessiondomain.Session, *userdomain.User, error)
	Delete(ctx context.Context, id string) error
	DeleteAllForUser(ctx context.Context, userID string) (int64, error)
}

// Backend is what the commands operate on. Execute opens it from DATABASE_URL.
type Backend struct {
	Users    UserStore
	Sessions SessionStore
	Now      func() time.Time
	closer   io.Closer
}

var errUserNotFound = errors.New("user not found")

// NewRootCmd returns the sessionctl command tree. A nil backend is opened from
// the environment before the first subcommand runs.
func NewRootCmd(b *Backend) *cobra.Command {
	root := &cobra.Command{
		Use:           "sessionctl",
		Short:         "Inspect and revoke PawPlanner sessions",
		Long:          `Operator tooling for sessions and user bans. Revocations take effect once a client's token leaves its freshness window.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if b.Users != nil {
			return nil
		}
		opened, err := openBackend(cmd.Context())
		if err != nil {
			return err
		}
		*b = *opened
		return nil
	}
	root.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		if b.closer != nil {
			return b.closer.Close()
		}
		return nil
	}
	root.AddCommand(newSessionsCmd(b), newUsersCmd(b))
	return root
}

// Execute runs sessionctl against the configured database.
func Execute() {
	if err := NewRootCmd(&Backend{}).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "sessionctl:", err)
		os.Exit(1)
	}
}

func openBackend(ctx context.Context) (*Backend, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	conn, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	return &Backend{
		Users:    userrepo.NewPostgresRepository(conn),
		Sessions: sessionrepo.NewPostgresRepository(conn),
		Now:      time.Now,
		closer:   conn,
	}, nil
}

func (b *Backend) now() time.Time {
	if b.Now == nil {
		return time.Now().UTC()
	}
	return b.Now().UTC()
}

// resolveUser accepts a user id or an email address.
func (b *Backend) resolveUser(ctx context.Context, ref string) (*userdomain.User, error) {
	var (
		u   *userdomain.User
		err error
	)
	if strings.Contains(ref, "@") {
		u, err = b.Users.GetByEmail(ctx, ref)
	} else {
		u, err = b.Users.GetByID(ctx, ref)
	}
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, fmt.Errorf("%w: %s", errUserNotFound, ref)
	}
	return u, nil
}
