package app

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lanternhq/authkit/pkg/session"
)

func newTokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "token [provider]",
		Short: "Print a valid access token for the provider",
		Long: `Restore the session from the stored refresh token and print a valid
access token on stdout. Intended for piping into other tools, e.g.
curl -H "Authorization: Bearer $(authkit token)".`,
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

			if err := ctrl.Resume(cmd.Context(), provider); err != nil {
				if errors.Is(err, session.ErrReauthRequired) {
					return fmt.Errorf("not signed in to %s; run `authkit login %s` first", provider, provider)
				}
				return err
			}

			token, err := ctrl.AccessToken(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Println(token)
			return nil
		},
	}
}
