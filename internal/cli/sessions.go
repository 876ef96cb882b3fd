package cli

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var cleanupTTL time.Duration

func NewCleanupSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cleanup-sessions",
		Short: "End sessions idle for longer than the TTL",
		Long: `End every active session whose last update is older than --ttl.
Defaults to SESSION_TIMEOUT.

Examples:
  chatctl cleanup-sessions
  chatctl cleanup-sessions --ttl 30m`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			ttl := cleanupTTL
			if ttl <= 0 {
				ttl = rt.cfg.Session.TTL
			}
			n, err := rt.container.SessionStore.CleanupExpired(cmd.Context(), ttl)
			if err != nil {
				return fmt.Errorf("cleaning up sessions: %w", err)
			}
			color.Green("Ended %d expired session(s)", n)
			return nil
		},
	}
	cmd.Flags().DurationVar(&cleanupTTL, "ttl", 0, "idle time after which a session expires")
	return cmd
}
