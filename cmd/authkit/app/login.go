package app

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newLoginCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "login [provider]",
		Short: "Sign in to an identity provider through the browser",
		Long: `Open the system browser on the provider's authorization page and wait
for the redirect back to the loopback listener. The refresh token is stored
in the operating system secret store; access tokens stay in memory only.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, err := resolveProvider(args)
			if err != nil {
				return err
			}

			ctrl, err := buildController()
			if err != nil {
				return err
			}
			defer ctrl.Close(cmd.Context())

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			if err := ctrl.Login(ctx, provider); err != nil {
				return fmt.Errorf("login failed: %w", err)
			}

			status := ctrl.Current()
			if status.Identity != nil && status.Identity.Email != "" {
				fmt.Printf("Signed in to %s as %s\n", provider, status.Identity.Email)
			} else {
				fmt.Printf("Signed in to %s\n", provider)
			}
			if len(status.GrantedScopes) > 0 {
				fmt.Printf("Granted scopes: %v\n", status.GrantedScopes)
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "How long to wait for the browser flow to complete")

	return cmd
}
