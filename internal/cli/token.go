package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/fathima-sithara/media-service/internal/auth"
	"github.com/fathima-sithara/media-service/internal/config"

	"github.com/spf13/cobra"
)

func newTokenCommand(configPath *string) *cobra.Command {
	var (
		userID string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an HS256 bearer token for local testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if cfg.JWT.Secret == "" {
				return errors.New("token: jwt.secret is not configured")
			}
			tok, err := auth.IssueToken(cfg.JWT.Secret, userID, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "User id placed in the sub claim (required)")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
