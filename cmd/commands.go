package cmd

import (
	"github.com/MakeNowJust/heredoc"
	"github.com/odpf/salt/cmdx"
	"github.com/spf13/cobra"

	"github.com/odpf/hpcjob/cmd/migration"
)

// New constructs the 'root' command. It houses all other sub commands
func New() *cobra.Command {
	cmd := &cobra.Command{
		Use: "hpcjob <command> <subcommand> [flags]",
		Long: heredoc.Doc(`
			hpcjob runs batch jobs on remote HPC systems through the UIT+ API.

			It stages input files, submits PBS scripts, tracks the scheduler status of
			every active job and transfers results back once a job completes.`),
		SilenceUsage: true,
		Example: heredoc.Doc(`
				$ hpcjob serve -c hpcjob.yaml
				$ hpcjob migration up
				$ hpcjob migration rollback
			`),
		Annotations: map[string]string{
			"group:core": "true",
			"help:learn": heredoc.Doc(`
				Use 'hpcjob <command> <subcommand> --help' for more information about a command.
			`),
		},
	}

	cmdx.SetHelp(cmd)

	cmd.AddCommand(
		NewServeCommand(),
		NewVersionCommand(),
		migration.NewMigrationCommand(),
	)
	return cmd
}
