// Package app provides the command tree for the bw CLI. Commands stay
// thin: they collect input, call into pkg, and print the typed result.
package app

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dasien/bwcli/pkg/logger"
)

// NewRootCmd creates the root command for the bw CLI.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:               "bw",
		DisableAutoGenTag: true,
		Short:             "bw is a command-line client for your password vault",
		Long: `bw is a command-line client for your password vault.
It authenticates against the vault service, keeps an encrypted local cache
of session material, and moves vault data in and out of common
password-manager file formats.`,
		Run: func(cmd *cobra.Command, _ []string) {
			if err := cmd.Help(); err != nil {
				logger.Errorf("Error displaying help: %v", err)
			}
		},
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			logger.Initialize()
		},
	}

	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().String("server", "", "Vault server base URL (default: the official cloud)")

	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		logger.Errorf("Error binding debug flag: %v", err)
	}
	if err := viper.BindPFlag("server", rootCmd.PersistentFlags().Lookup("server")); err != nil {
		logger.Errorf("Error binding server flag: %v", err)
	}

	rootCmd.AddCommand(newLoginCmd())
	rootCmd.AddCommand(newUnlockCmd())
	rootCmd.AddCommand(newLockCmd())
	rootCmd.AddCommand(newLogoutCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newTotpCmd())
	rootCmd.AddCommand(newExportCmd())
	rootCmd.AddCommand(newImportCmd())
	rootCmd.AddCommand(newVersionCmd())

	rootCmd.SilenceUsage = true
	return rootCmd
}
