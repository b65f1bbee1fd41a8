package app

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lanternhq/authkit/pkg/credentials"
	"github.com/lanternhq/authkit/pkg/providers"
	"github.com/lanternhq/authkit/pkg/scopes"
	"github.com/lanternhq/authkit/pkg/secrets"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show which providers have a stored sign-in",
		RunE: func(_ *cobra.Command, _ []string) error {
			registry, err := providers.LoadRegistry(viper.GetViper())
			if err != nil {
				return err
			}
			if len(registry.IDs()) == 0 {
				fmt.Println("No providers configured.")
				return nil
			}

			backend, err := secrets.Open()
			if err != nil {
				return fmt.Errorf("failed to open secret storage: %w", err)
			}
			store := credentials.NewStore(backend)

			scopeMgr, err := scopes.NewDefaultManager()
			if err != nil {
				return err
			}

			for _, id := range registry.IDs() {
				_, found, err := store.LoadRefreshToken(id)
				switch {
				case err != nil:
					fmt.Printf("%-12s storage error: %v\n", id, err)
				case found:
					fmt.Printf("%-12s signed in (scopes: %v)\n", id, scopeMgr.Granted(id))
				default:
					fmt.Printf("%-12s signed out\n", id)
				}
			}
			return nil
		},
	}
}
