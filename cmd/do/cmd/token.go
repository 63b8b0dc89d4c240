package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/templui/bullseye/internal/logger"
	"github.com/templui/bullseye/internal/service"
)

func TokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "token <identity>",
		Short: "Issue a bearer token for an owner or verifier identity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			defer logger.Flush()

			identities := service.NewIdentityService(cfg.JWTSecret, cfg.JWTExpiry)
			token, expiresAt, err := identities.Issue(args[0])
			if err != nil {
				return err
			}
			fmt.Println(token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", expiresAt.UTC().Format(time.RFC3339))
			return nil
		},
	}
}
