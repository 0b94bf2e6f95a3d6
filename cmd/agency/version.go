package main

import (
	"fmt"
	"strings"

	"github.com/ravituringworks/agency"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of agency",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "agency version %s\n", strings.TrimSpace(agency.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
