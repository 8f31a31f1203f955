package migration

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odpf/hpcjob/config"
	"github.com/odpf/hpcjob/internal/store/postgres"
	"github.com/odpf/hpcjob/server"
)

type upCommand struct {
	configFilePath string
}

// NewUpCommand initializes command for applying every pending migration
func NewUpCommand() *cobra.Command {
	up := &upCommand{}
	cmd := &cobra.Command{
		Use:   "up",
		Short: "Command to apply every pending migration",
		RunE:  up.RunE,
	}
	cmd.Flags().StringVarP(&up.configFilePath, "config", "c", config.EmptyPath, "File path for server configuration")
	return cmd
}

func (u *upCommand) RunE(cmd *cobra.Command, _ []string) error {
	conf, err := config.LoadServerConfig(u.configFilePath)
	if err != nil {
		return fmt.Errorf("error loading server config: %w", err)
	}

	migration, err := postgres.NewMigration(server.NewLogger(conf.Log), config.BuildVersion, conf.DB.DSN)
	if err != nil {
		return fmt.Errorf("error initializing migration: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Executing migration up")
	if err := migration.Up(context.Background()); err != nil {
		return fmt.Errorf("error executing migration up: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Migration finished successfully")
	return nil
}
