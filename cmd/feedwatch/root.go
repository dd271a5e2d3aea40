package main

import (
	"github.com/spf13/cobra"

	"github.com/syntrixbase/feedwatch/internal/config"
)

var version = "dev"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "feedwatch",
		Short:        "Poll a change feed and relay what changed",
		SilenceUsage: true,
	}
	root.PersistentFlags().String("config", config.DefaultConfigDir, "configuration directory")

	root.AddCommand(newRunCmd(), newTailCmd(), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("feedwatch version %s\n", version)
		},
	}
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	dir, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	return config.LoadConfig(dir)
}
