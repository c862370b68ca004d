package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jimmy24599/kairo-sub000/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "kairo version %s\n", version.Get())
	},
}
