package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"carwash/internal/config"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version info",
		Run: func(cmd *cobra.Command, args []string) {
			b := config.NewBuildInfo()
			fmt.Fprintf(cmd.OutOrStdout(), "remindctl %s (commit=%s, built=%s)\n", b.Version, b.Commit, b.BuildTime)
		},
	}
}
