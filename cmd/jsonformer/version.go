package main

import (
	"fmt"
	goruntime "runtime"

	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "jsonformer %s\n  Build Time: %s\n  Git Commit: %s\n  Go: %s %s/%s\n",
				Version, BuildTime, GitCommit, goruntime.Version(), goruntime.GOOS, goruntime.GOARCH)
			return err
		},
	}
}
