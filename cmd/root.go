// Package cmd wires the cobra command tree.
package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/safecity/safecity-go/cmd/analyze"
	"github.com/safecity/safecity-go/cmd/monitor"
	"github.com/safecity/safecity-go/cmd/records"
	"github.com/safecity/safecity-go/cmd/server"
	"github.com/safecity/safecity-go/internal/conf"
)

// RootCommand creates and returns the root command.
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "safecity",
		Short:   "SafeCity threat monitoring CLI",
		Version: settings.Version,
	}

	setupFlags(rootCmd, settings)

	rootCmd.AddCommand(
		monitor.Command(settings),
		server.Command(settings),
		analyze.Command(settings),
		records.Command(settings),
	)

	return rootCmd
}

func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", settings.Debug, "Enable debug output")
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
}
