package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres" // required for postgres migrate driver
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/odpf/salt/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/odpf/hpcjob/internal/store"
)

//go:embed migrations
var migrationFs embed.FS

const resourcePath = "migrations"

type migrationStep struct {
	CurrentAppVersion       string
	CurrentMigrationVersion uint
	PreviousAppVersion      string
	CreatedAt               time.Time
}

type migration struct {
	incomingVersion string
	dbConnURL       string

	logger log.Logger
}

// NewMigration initializes migration mechanism specific for postgres. Every applied
// schema version is recorded against the application version that applied it, so
// a rollback returns to the schema of the previous release.
func NewMigration(logger log.Logger, incomingVersion, dbConnURL string) (store.Migration, error) {
	if logger == nil {
		return nil, errors.New("logger is nil")
	}
	if incomingVersion == "" {
		return nil, errors.New("incoming version is empty")
	}
	if dbConnURL == "" {
		return nil, errors.New("database connection url is empty")
	}
	return &migration{
		incomingVersion: incomingVersion,
		dbConnURL:       dbConnURL,
		logger:          logger,
	}, nil
}

func (m *migration) Up(ctx context.Context) error {
	dbClient, dbClientCleanup, err := m.newDBClient()
	if err != nil {
		return fmt.Errorf("error initializing db client: %w", err)
	}
	defer dbClientCleanup()

	if err := dbClient.WithContext(ctx).AutoMigrate(&migrationStep{}); err != nil {
		return fmt.Errorf("error setting up migration_steps: %w", err)
	}

	latestStep, err := m.getLatestMigrationStep(ctx, dbClient)
	if err != nil {
		return fmt.Errorf("error getting the latest migration step: %w", err)
	}
	if m.incomingVersion < latestStep.CurrentAppVersion {
		return fmt.Errorf("version [%s] should be higher or equal than existing [%s]", m.incomingVersion, latestStep.CurrentAppVersion)
	}
	if m.incomingVersion == latestStep.CurrentAppVersion {
		m.logger.Warn(fmt.Sprintf("migration up is skipped because version [%s] is the same as current one", m.incomingVersion))
		return nil
	}

	migrationClient, migrationClientCleanup, err := m.newMigrationClient()
	if err != nil {
		return fmt.Errorf("error initializing migration client: %w", err)
	}
	defer migrationClientCleanup()

	if err := migrationClient.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("error executing migration up: %w", err)
	}
	newVersion, _, err := migrationClient.Version()
	if err != nil {
		return fmt.Errorf("error getting current migration version: %w", err)
	}

	return m.addMigrationStep(ctx, dbClient, &migrationStep{
		CurrentAppVersion:       m.incomingVersion,
		CurrentMigrationVersion: newVersion,
		PreviousAppVersion:      latestStep.CurrentAppVersion,
		CreatedAt:               time.Now(),
	})
}

func (m *migration) Rollback(ctx context.Context) error {
	dbClient, dbClientCleanup, err := m.newDBClient()
	if err != nil {
		return fmt.Errorf("error initializing db client: %w", err)
	}
	defer dbClientCleanup()

	if err := dbClient.WithContext(ctx).AutoMigrate(&migrationStep{}); err != nil {
		return fmt.Errorf("error setting up migration_steps: %w", err)
	}

	latestStep, err := m.getLatestMigrationStep(ctx, dbClient)
	if err != nil {
		return err
	}
	if m.incomingVersion != latestStep.CurrentAppVersion {
		return fmt.Errorf("expecting version [%s] but got [%s]", latestStep.CurrentAppVersion, m.incomingVersion)
	}

	previousMigrationVersion, err := m.getMigrationVersion(ctx, dbClient, latestStep.PreviousAppVersion)
	if err != nil {
		return err
	}
	if previousMigrationVersion == 0 {
		m.logger.Warn("migration rollback is skipped because previous migration version is not registered")
		return nil
	}

	migrationClient, migrationClientCleanup, err := m.newMigrationClient()
	if err != nil {
		return fmt.Errorf("error initializing migration client: %w", err)
	}
	defer migrationClientCleanup()

	if err := migrationClient.Migrate(previousMigrationVersion); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("error migrating to version [%d]: %w", previousMigrationVersion, err)
	}
	return m.removeMigrationStep(ctx, dbClient, latestStep)
}

func (m *migration) newMigrationClient() (*migrate.Migrate, func(), error) {
	sourceDriver, err := iofs.New(migrationFs, resourcePath)
	if err != nil {
		return nil, nil, fmt.Errorf("error initializing source driver: %w", err)
	}
	migrationClient, err := migrate.NewWithSourceInstance("iofs", sourceDriver, m.dbConnURL)
	if err != nil {
		return nil, nil, fmt.Errorf("error initializing migration instance: %w", err)
	}
	cleanup := func() {
		sourceErr, databaseErr := migrationClient.Close()
		if sourceErr != nil {
			m.logger.Error(fmt.Sprintf("source driver error encountered when closing migration connection: %s", sourceErr))
		}
		if databaseErr != nil {
			m.logger.Error(fmt.Sprintf("database error encountered when closing migration connection: %s", databaseErr))
		}
	}
	return migrationClient, cleanup, nil
}

func (m *migration) newDBClient() (*gorm.DB, func(), error) {
	gormDB, err := gorm.Open(postgres.Open(m.dbConnURL))
	if err != nil {
		return nil, nil, fmt.Errorf("error initializing gorm db: %w", err)
	}
	db, err := gormDB.DB()
	if err != nil {
		return nil, nil, fmt.Errorf("error getting db: %w", err)
	}
	cleanup := func() {
		if closeErr := db.Close(); closeErr != nil {
			m.logger.Error(fmt.Sprintf("error encountered when closing db connection: %s", closeErr))
		}
	}
	return gormDB, cleanup, nil
}

func (*migration) removeMigrationStep(ctx context.Context, db *gorm.DB, oldStep *migrationStep) error {
	return db.WithContext(ctx).
		Where("current_app_version = ? and current_migration_version = ? and previous_app_version = ?",
			oldStep.CurrentAppVersion, oldStep.CurrentMigrationVersion, oldStep.PreviousAppVersion).
		Delete(&migrationStep{}).Error
}

func (*migration) getMigrationVersion(ctx context.Context, db *gorm.DB, appVersion string) (uint, error) {
	var rst migrationStep
	if err := db.WithContext(ctx).
		Select("current_app_version, current_migration_version, previous_app_version, created_at").
		Table("migration_steps").
		Where("current_app_version = ?", appVersion).
		Order("created_at desc limit 1").
		Find(&rst).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, fmt.Errorf("error getting migration version for version [%s]: %w", appVersion, err)
	}
	return rst.CurrentMigrationVersion, nil
}

func (m *migration) addMigrationStep(ctx context.Context, db *gorm.DB, newStep *migrationStep) error {
	var existingSteps []migrationStep
	if err := db.WithContext(ctx).
		Where(newStep).
		First(&existingSteps).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("error getting existing steps: %w", err)
	}
	if len(existingSteps) > 0 {
		m.logger.Warn("migration step is not added because it already exists")
		return nil
	}
	return db.WithContext(ctx).Create(newStep).Error
}

// getLatestMigrationStep tolerates a missing schema_migrations table (42P01) on a fresh database.
func (*migration) getLatestMigrationStep(ctx context.Context, db *gorm.DB) (*migrationStep, error) {
	var rst migrationStep
	if err := db.WithContext(ctx).
		Select("m.current_app_version, m.current_migration_version, m.previous_app_version, m.created_at").
		Table("migration_steps m").
		Joins("right join schema_migrations s on m.current_migration_version = s.version").
		Order("m.created_at desc limit 1").
		Find(&rst).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && !strings.Contains(err.Error(), "42P01") {
		return nil, fmt.Errorf("error getting existing step: %w", err)
	}
	return &rst, nil
}
