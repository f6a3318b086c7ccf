package main

import (
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	cfg        Config
}

func newRootCmd() *cobra.Command {
	return buildRootCmd(&rootOptions{})
}

func buildRootCmd(opts *rootOptions) *cobra.Command {
	root := &cobra.Command{
		Use:   "pointcountd",
		Short: "Radius range counting over 2D point records.",
		Long: `pointcountd stores 2D point records and answers "how many records lie
within radius R of record U" with a recursive bounding-box decomposition.

Configuration is read from a TOML file (--config) and overridden by flags.`,
		SilenceUsage:      true,
		DisableAutoGenTag: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts.configPath)
			if err != nil {
				return err
			}
			if err := applyFlags(&cfg, cmd.Flags()); err != nil {
				return err
			}
			opts.cfg = cfg
			return nil
		},
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to a TOML configuration file")
	registerFlags(root.PersistentFlags())

	root.AddCommand(
		newServeCmd(opts),
		newCountCmd(opts),
		newSnapshotCmd(opts),
	)
	return root
}
