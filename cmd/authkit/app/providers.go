package app

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lanternhq/authkit/pkg/providers"
)

func newProvidersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List the configured identity providers",
		RunE: func(_ *cobra.Command, _ []string) error {
			registry, err := providers.LoadRegistry(viper.GetViper())
			if err != nil {
				return err
			}

			ids := registry.IDs()
			if len(ids) == 0 {
				fmt.Println("No providers configured.")
				return nil
			}
			for _, id := range ids {
				cfg, err := registry.Get(id)
				if err != nil {
					return err
				}
				fmt.Printf("%-12s %s (redirect %s)\n", id, cfg.Issuer, cfg.RedirectURI())
			}
			return nil
		},
	}
}
