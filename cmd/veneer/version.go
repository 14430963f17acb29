package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		bold := color.New(color.Bold)
		fmt.Fprintf(cmd.OutOrStdout(), "veneer language server version %s\n", bold.Sprint(Version))
	},
}
