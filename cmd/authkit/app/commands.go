// Package app provides the entry point for the authkit command-line
// application.
package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lanternhq/authkit/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:               "authkit",
	DisableAutoGenTag: true,
	Short:             "authkit manages browser-based sign-in for Lantern",
	Long: `authkit is the authentication core of the Lantern desktop application,
exposed as a standalone CLI. It signs in to configured identity providers
through the system browser using the OAuth 2.0 authorization code flow with
PKCE, keeps refresh tokens in the operating system secret store, and hands
out short-lived access tokens on demand.`,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if err := viper.BindPFlag("debug", cmd.Root().PersistentFlags().Lookup("debug")); err != nil {
			return err
		}
		configPath, err := cmd.Root().PersistentFlags().GetString("config")
		if err != nil {
			return err
		}
		if err := initConfig(configPath); err != nil {
			return err
		}
		logger.Initialize()
		return nil
	},
	Run: func(cmd *cobra.Command, _ []string) {
		// If no subcommand is provided, print help
		if err := cmd.Help(); err != nil {
			logger.Errorf("Error displaying help: %v", err)
		}
	},
}

// NewRootCmd creates a new root command for the authkit CLI.
func NewRootCmd() *cobra.Command {
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug mode")
	rootCmd.PersistentFlags().String("config", "", "Path to the configuration file")

	rootCmd.AddCommand(newLoginCmd())
	rootCmd.AddCommand(newLogoutCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newTokenCmd())
	rootCmd.AddCommand(newScopesCmd())
	rootCmd.AddCommand(newProvidersCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// initConfig wires viper to the config file and LANTERN_* environment
// variables. A missing config file is fine; providers can come entirely
// from the environment.
func initConfig(path string) error {
	if path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(filepath.Join(xdg.ConfigHome, "lantern"))
	}

	viper.SetEnvPrefix("LANTERN")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if os.IsNotExist(err) || errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read configuration: %w", err)
	}
	logger.Debugf("using configuration file %s", viper.ConfigFileUsed())
	return nil
}
