package main

import (
	"github.com/spf13/cobra"

	"sudare/internal/app"
)

func init() {
	rootCmd.AddCommand(cmdCheck)
}

var cmdCheck = &cobra.Command{
	Use:   "check <Procfile>",
	Short: "Validate a Procfile and list its groups without starting anything",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return app.Check(args[0], cmd.OutOrStdout())
	},
}
