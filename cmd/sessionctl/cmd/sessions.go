package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newSessionsCmd(b *Backend) *cobra.Command {
	sessions := &cobra.Command{
		Use:   "sessions",
		Short: "List and revoke sessions",
	}

	list := &cobra.Command{
		Use:   "list <user-id|email>",
		Short: "List a user's sessions, most recently active first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := b.resolveUser(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			list, err := b.Sessions.ListForUser(cmd.Context(), u.ID)
			if err != nil {
				return fmt.Errorf("list sessions: %w", err)
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tLAST ACTIVE\tEXPIRES\tIP\tLOCATION\tUSER AGENT")
			for _, s := range list {
				loc := s.City
				if s.Country != "" {
					if loc != "" {
						loc += ", "
					}
					loc += s.Country
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", s.ID,
					s.LastActiveAt.UTC().Format(time.RFC3339), s.ExpiresAt.UTC().Format(time.RFC3339),
					dash(s.IPAddress), dash(loc), dash(s.UserAgent))
			}
			return w.Flush()
		},
	}

	revoke := &cobra.Command{
		Use:   "revoke <session-id>",
		Short: "Delete one session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, _, err := b.Sessions.Find(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("find session: %w", err)
			}
			if s == nil {
				return fmt.Errorf("session not found: %s", args[0])
			}
			if err := b.Sessions.Delete(cmd.Context(), s.ID); err != nil {
				return fmt.Errorf("revoke session: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "revoked session %s of user %s\n", s.ID, s.UserID)
			return nil
		},
	}

	revokeAll := &cobra.Command{
		Use:   "revoke-all <user-id|email>",
		Short: "Delete every session of a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := b.resolveUser(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			n, err := b.Sessions.DeleteAllForUser(cmd.Context(), u.ID)
			if err != nil {
				return fmt.Errorf("revoke sessions: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "revoked %d session(s) of %s\n", n, u.Email)
			return nil
		},
	}

	sessions.AddCommand(list, revoke, revokeAll)
	return sessions
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
