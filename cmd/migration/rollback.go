package migration

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odpf/hpcjob/config"
	"github.com/odpf/hpcjob/internal/store/postgres"
	"github.com/odpf/hpcjob/server"
)

type rollbackCommand struct {
	configFilePath string
}

// NewRollbackCommand initializes command for migration rollback
func NewRollbackCommand() *cobra.Command {
	rollback := &rollbackCommand{}
	cmd := &cobra.Command{
		Use:   "rollback",
		Short: "Command to rollback the schema to the previous application version",
		RunE:  rollback.RunE,
	}
	cmd.Flags().StringVarP(&rollback.configFilePath, "config", "c", config.EmptyPath, "File path for server configuration")
	return cmd
}

func (r *rollbackCommand) RunE(cmd *cobra.Command, _ []string) error {
	conf, err := config.LoadServerConfig(r.configFilePath)
	if err != nil {
		return fmt.Errorf("error loading server config: %w", err)
	}

	migration, err := postgres.NewMigration(server.NewLogger(conf.Log), config.BuildVersion, conf.DB.DSN)
	if err != nil {
		return fmt.Errorf("error initializing migration: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Executing rollback")
	if err := migration.Rollback(context.Background()); err != nil {
		return fmt.Errorf("error rolling back migration: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Rollback finished successfully")
	return nil
}
