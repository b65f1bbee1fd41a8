package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lanternhq/authkit/pkg/credentials"
	"github.com/lanternhq/authkit/pkg/scopes"
	"github.com/lanternhq/authkit/pkg/secrets"
)

func newLogoutCmd() *cobra.Command {
	var forgetScopes bool

	cmd := &cobra.Command{
		Use:   "logout [provider]",
		Short: "Sign out and delete the stored refresh token",
		Long: `Delete the refresh token for the provider from the operating system
secret store. Granted-scope history is kept so a later login requests the
same scope set again; pass --forget-scopes to drop it as well.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			provider, err := resolveProvider(args)
			if err != nil {
				return err
			}

			backend, err := secrets.Open()
			if err != nil {
				return fmt.Errorf("failed to open secret storage: %w", err)
			}

			if err := credentials.NewStore(backend).Clear(provider); err != nil {
				return err
			}

			if forgetScopes {
				scopeMgr, err := scopes.NewDefaultManager()
				if err != nil {
					return err
				}
				if err := scopeMgr.Reset(provider); err != nil {
					return err
				}
			}

			fmt.Printf("Signed out of %s\n", provider)
			return nil
		},
	}

	cmd.Flags().BoolVar(&forgetScopes, "forget-scopes", false, "Also drop the granted-scope history for the provider")

	return cmd
}
