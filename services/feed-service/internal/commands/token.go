package commands

import (
	"errors"
	"fmt"
	"time"

	"github.com/md-rashed-zaman/batfeed/libs/auth"
	"github.com/spf13/cobra"
)

func newTokenCommand(opts *options) *cobra.Command {
	var (
		secret, subject string
		ttl             time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an HS256 token carrying --permissions for the feed service",
		Long: `token signs a bearer token with the feed service's JWT_SECRET. The
token grants the permissions given with --permissions.

Example:
  feedctl token --secret dev --permissions "view calendar data for any availability event"`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if secret == "" {
				return errors.New("--secret is required")
			}
			if ttl <= 0 {
				return errors.New("--ttl must be positive")
			}
			now := time.Now()
			if opts.now != "" {
				parsed, err := time.Parse(time.RFC3339, opts.now)
				if err != nil {
					return fmt.Errorf("invalid --now: %w", err)
				}
				now = parsed
			}
			token, err := auth.SignHS256(auth.Claims{
				Sub:         subject,
				Permissions: opts.permissions,
				Iat:         now.Unix(),
				Exp:         now.Add(ttl).Unix(),
			}, secret)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().StringVar(&secret, "secret", "", "shared HS256 secret (JWT_SECRET of the feed service)")
	cmd.Flags().StringVar(&subject, "sub", "feedctl", "token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}
