package app

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lanternhq/authkit/pkg/scopes"
)

func newScopesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scopes",
		Short: "Inspect and extend the granted scopes of a provider",
	}

	cmd.AddCommand(newScopesListCmd())
	cmd.AddCommand(newScopesAddCmd())

	return cmd
}

func newScopesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list [provider]",
		Short: "List the scopes granted so far",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			provider, err := resolveProvider(args)
			if err != nil {
				return err
			}

			scopeMgr, err := scopes.NewDefaultManager()
			if err != nil {
				return err
			}

			granted := scopeMgr.Granted(provider)
			if len(granted) == 0 {
				fmt.Printf("No scopes granted for %s yet.\n", provider)
				return nil
			}
			for _, scope := range granted {
				fmt.Println(scope)
			}
			return nil
		},
	}
}

func newScopesAddCmd() *cobra.Command {
	var (
		provider string
		timeout  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "add <scope>...",
		Short: "Request additional scopes through a new consent flow",
		Long: `Re-run the browser sign-in with the union of all previously granted
scopes plus the requested ones, forcing the provider's consent screen so
the new grant covers everything at once.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var positional []string
			if provider != "" {
				positional = []string{provider}
			}
			id, err := resolveProvider(positional)
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

			if err := ctrl.Resume(ctx, id); err != nil {
				// No usable session; a plain login with the extra scopes
				// achieves the same grant.
				if err := ctrl.Login(ctx, id); err != nil {
					return err
				}
			}
			if err := ctrl.RequestAdditionalScopes(ctx, args...); err != nil {
				return err
			}

			fmt.Printf("Granted scopes for %s: %v\n", id, ctrl.Current().GrantedScopes)
			return nil
		},
	}

	cmd.Flags().StringVar(&provider, "provider", "", "Provider to request the scopes from")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "How long to wait for the browser flow to complete")

	return cmd
}
