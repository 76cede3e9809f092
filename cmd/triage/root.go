package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:          "triage",
		Short:        "Route customer complaints to the right department",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "optional dotenv file read before the environment")

	root.AddCommand(newClassifyCmd(&envFile))
	root.AddCommand(newServeCmd(&envFile))
	return root
}
