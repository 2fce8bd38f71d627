package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newUsersCmd(b *Backend) *cobra.Command {
	users := &cobra.Command{
		Use:   "users",
		Short: "Ban and unban users",
	}

	var (
		until    string
		duration time.Duration
	)
	ban := &cobra.Command{
		Use:   "ban <user-id|email>",
		Short: "Ban a user and delete all of their sessions",
		Long: `Bans the user indefinitely, or until --until / for --for. All sessions are
deleted so the ban applies as soon as each client's token leaves its freshness window.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if until != "" && duration > 0 {
				return errors.New("--until and --for are mutually exclusive")
			}
			now := b.now()
			var bannedUntil *time.Time
			switch {
			case until != "":
				t, err := time.Parse(time.RFC3339, until)
				if err != nil {
					return fmt.Errorf("--until: %w", err)
				}
				if !t.After(now) {
					return errors.New("--until must be in the future")
				}
				bannedUntil = &t
			case duration > 0:
				t := now.Add(duration)
				bannedUntil = &t
			}

			u, err := b.resolveUser(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := b.Users.SetBan(cmd.Context(), u.ID, &now, bannedUntil); err != nil {
				return fmt.Errorf("ban user: %w", err)
			}
			n, err := b.Sessions.DeleteAllForUser(cmd.Context(), u.ID)
			if err != nil {
				return fmt.Errorf("ban user: revoke sessions: %w", err)
			}
			if bannedUntil != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "banned %s until %s; revoked %d session(s)\n", u.Email, bannedUntil.UTC().Format(time.RFC3339), n)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "banned %s; revoked %d session(s)\n", u.Email, n)
			}
			return nil
		},
	}
	ban.Flags().StringVar(&until, "until", "", "ban end as RFC 3339 time (e.g. 2026-12-01T00:00:00Z)")
	ban.Flags().DurationVar(&duration, "for", 0, "ban length (e.g. 72h)")

	unban := &cobra.Command{
		Use:   "unban <user-id|email>",
		Short: "Lift a user's ban",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := b.resolveUser(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := b.Users.SetBan(cmd.Context(), u.ID, nil, nil); err != nil {
				return fmt.Errorf("unban user: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "unbanned %s\n", u.Email)
			return nil
		},
	}

	users.AddCommand(ban, unban)
	return users
}
