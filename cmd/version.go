package cmd

import (
	"fmt"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"

	"github.com/odpf/hpcjob/config"
)

// NewVersionCommand prints the build information
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "version",
		Short:   "Print the version information",
		Example: "hpcjob version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprint(cmd.OutOrStdout(), heredoc.Docf(`
				Version: %s
				Commit: %s
				Built: %s
			`, config.BuildVersion, config.BuildCommit, config.BuildDate))
			return nil
		},
	}
}
