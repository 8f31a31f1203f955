package server

import (
	"context"
	"fmt"

	"github.com/odpf/salt/log"
	"github.com/spf13/afero"
	"gorm.io/gorm"

	"github.com/odpf/hpcjob/config"
	"github.com/odpf/hpcjob/core/job"
	"github.com/odpf/hpcjob/core/job/service"
	"github.com/odpf/hpcjob/ext/uit"
	"github.com/odpf/hpcjob/internal/store/postgres"
	jobRepo "github.com/odpf/hpcjob/internal/store/postgres/job"
	tokenRepo "github.com/odpf/hpcjob/internal/store/postgres/token"
	"github.com/odpf/hpcjob/server/poller"
)

type setupFn func() error

// HPCJobServer owns the job lifecycle service and the status poller.
type HPCJobServer struct {
	conf   config.ServerConfig
	logger log.Logger

	dbConn *gorm.DB

	handlers  *service.HandlerRegistry
	lifecycle *service.LifecycleService
	poller    *poller.Poller

	cleanupFn []func()
}

func New(conf config.ServerConfig) (*HPCJobServer, error) {
	server := &HPCJobServer{
		conf:     conf,
		logger:   NewLogger(conf.Log),
		handlers: service.NewHandlerRegistry(),
	}

	setupFns := []setupFn{
		server.setupTelemetry,
		server.setupDB,
		server.setupServices,
		server.setupPoller,
	}

	for _, fn := range setupFns {
		if err := fn(); err != nil {
			return server, err
		}
	}

	server.logger.Info("Starting hpcjob", "version", config.BuildVersion)
	return server, nil
}

func (s *HPCJobServer) setupTelemetry() error {
	teleShutdown, err := config.InitTelemetry(s.logger, s.conf.Telemetry)
	if err != nil {
		return err
	}

	s.cleanupFn = append(s.cleanupFn, teleShutdown)
	return nil
}

func (s *HPCJobServer) setupDB() error {
	migration, err := postgres.NewMigration(s.logger, config.BuildVersion, s.conf.DB.DSN)
	if err != nil {
		return fmt.Errorf("error initializing migration: %w", err)
	}
	ctx := context.Background()
	if err := migration.Up(ctx); err != nil {
		return fmt.Errorf("error executing migration up: %w", err)
	}

	s.dbConn, err = postgres.Connect(s.conf.DB, s.logger.Writer())
	if err != nil {
		return fmt.Errorf("postgres.Connect: %w", err)
	}
	return nil
}

func (s *HPCJobServer) setupServices() error {
	fs := afero.NewOsFs()
	if err := fs.MkdirAll(s.conf.Lifecycle.WorkspaceRoot, 0o755); err != nil {
		return fmt.Errorf("unable to create workspace root: %w", err)
	}

	jobRepository := jobRepo.NewJobRepository(s.dbConn)
	tokenRepository := tokenRepo.NewTokenRepository(s.dbConn)

	clients := uit.NewClientFactory(s.logger, s.conf.Remote, fs)
	tokens := uit.NewTokenProvider(s.conf.Remote.OAuth, tokenRepository)

	s.lifecycle = service.NewLifecycleService(s.logger, jobRepository, clients, tokens,
		s.handlers, nil, fs, s.conf.Lifecycle)
	return nil
}

func (s *HPCJobServer) setupPoller() error {
	controllers := func(j *job.Job) poller.StatusController {
		return s.lifecycle.Controller(j)
	}
	s.poller = poller.New(s.logger, jobRepo.NewJobRepository(s.dbConn), controllers, s.conf.Poller)
	if err := s.poller.Start(); err != nil {
		return err
	}
	s.cleanupFn = append(s.cleanupFn, s.poller.Stop)
	return nil
}

// Lifecycle returns the service handing out job controllers.
func (s *HPCJobServer) Lifecycle() *service.LifecycleService {
	return s.lifecycle
}

// RegisterHandler adds a post-processing handler jobs can name.
func (s *HPCJobServer) RegisterHandler(name string, handler service.PostProcessor) error {
	return s.handlers.Register(name, handler)
}

func (s *HPCJobServer) Shutdown() {
	s.logger.Warn("Shutting down server")

	// reverse setup order
	for i := len(s.cleanupFn) - 1; i >= 0; i-- {
		s.cleanupFn[i]()
	}

	if s.dbConn != nil {
		sqlConn, err := s.dbConn.DB()
		if err != nil {
			s.logger.Error("Error while getting sqlConn", "err", err)
		} else if err := sqlConn.Close(); err != nil {
			s.logger.Error("Error in sqlConn.Close", "err", err)
		}
	}

	s.logger.Info("Server shutdown complete")
}
