package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/m3rciful/redistbot/core/buildinfo"
	corecmd "github.com/m3rciful/redistbot/core/cmd"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgFile string
	options := func() corecmd.Options {
		return corecmd.Options{
			ConfigPath:        cfgFile,
			ConfigEnvVar:      "CONFIG_PATH",
			DefaultConfigPath: "config.yaml",
		}
	}

	root := &cobra.Command{
		Use:           "redistbot",
		Short:         "Telegram bot for redistributing surplus items",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $CONFIG_PATH or ./config.yaml)")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the bot and the metrics endpoint",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return corecmd.Run(cmd.Context(), options())
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply pending Postgres migrations",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return corecmd.Migrate(cmd.Context(), options())
			},
		},
		&cobra.Command{
			Use:   "check",
			Short: "Validate configuration and exit",
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, err := corecmd.LoadConfig(options())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "config ok: mode=%s channel=%s storage=%s negotiations=%s\n",
					cfg.Telegram.RunMode, cfg.Telegram.Channel, cfg.Storage.Driver, cfg.Negotiations.Driver)
				return nil
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print build information",
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "redistbot %s (%s) %s\n", buildinfo.Version, buildinfo.Commit, buildinfo.Date)
			},
		},
	)
	return root
}
