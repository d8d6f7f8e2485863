// Package server provides the HTTP server setup and routing configuration.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/stwalsh4118/branchreel/internal/api"
	"github.com/stwalsh4118/branchreel/internal/branch"
	"github.com/stwalsh4118/branchreel/internal/catalog"
	"github.com/stwalsh4118/branchreel/internal/config"
	"github.com/stwalsh4118/branchreel/internal/db"
	"github.com/stwalsh4118/branchreel/internal/logger"
	"github.com/stwalsh4118/branchreel/internal/media"
	"github.com/stwalsh4118/branchreel/internal/middleware"
	"github.com/stwalsh4118/branchreel/internal/session"
)

// Server represents the HTTP server
type Server struct {
	config    *config.Config
	db        *db.DB
	repos     *db.Repositories
	durations *media.Catalog
	importer  *catalog.Importer
	sessions  *session.Manager
	watcher   *catalog.Watcher
	router    *gin.Engine
	server    *http.Server
}

// New creates a new server instance. Collaborators are built from the
// services configuration; missing ones fall back to declared options and the
// fixed profile.
func New(cfg *config.Config, database *db.DB) (*Server, error) {
	repos := db.NewRepositories(database)
	durations := NewDurationCatalog(cfg, repos)

	filter, summarizer, err := NewCollaborators(cfg.Services)
	if err != nil {
		return nil, fmt.Errorf("failed to configure collaborators: %w", err)
	}
	resolver := branch.NewResolver(filter, cfg.Services.MaxOptions, cfg.Services.RequestTimeout)

	return &Server{
		config:    cfg,
		db:        database,
		repos:     repos,
		durations: durations,
		importer:  catalog.NewImporter(repos.Experiences, durations),
		sessions:  session.NewManager(repos.Experiences, durations, resolver, summarizer, cfg),
	}, nil
}

// NewDurationCatalog resolves media lengths from the catalog database and,
// when it is installed, FFprobe.
func NewDurationCatalog(cfg *config.Config, repos *db.Repositories) *media.Catalog {
	var probe media.ProbeFunc
	if err := media.CheckFFprobeInstalled(); err != nil {
		logger.Log.Warn().
			Err(err).
			Msg("FFprobe unavailable, only declared and stored durations will be used")
	} else {
		probe = media.ProbeDuration
	}
	return media.NewCatalog(repos.Media, probe, cfg.Services.RequestTimeout)
}

// Handler returns the router, building it on first use.
func (s *Server) Handler() http.Handler {
	if s.router == nil {
		s.setupRouter()
	}
	return s.router
}

// setupRouter initializes the Gin router with middleware and routes
func (s *Server) setupRouter() {
	// Set Gin mode based on log level
	if s.config.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s.router = gin.New()

	s.router.Use(middleware.RequestID())     // Correlation id, echoed in X-Request-ID
	s.router.Use(middleware.RequestLogger()) // Custom zerolog request logger
	s.router.Use(gin.Recovery())             // Panic recovery
	s.router.Use(cors.Default())             // CORS support (allows all origins)

	apiGroup := s.router.Group("/api")

	api.SetupHealthRoutes(apiGroup, s.db, s.sessions)
	api.SetupExperienceRoutes(apiGroup, s.repos.Experiences, s.importer)
	api.SetupMediaRoutes(apiGroup, s.repos.Media, s.durations)
	api.SetupSessionRoutes(apiGroup, s.sessions)
}

// Prepare imports the seed file and starts the background workers: the
// session cleanup loop and, when configured, the definition watcher.
func (s *Server) Prepare(ctx context.Context) error {
	if seed := s.config.Schedule.SeedFile; seed != "" {
		if _, err := s.importer.ImportFile(ctx, seed); err != nil {
			return fmt.Errorf("failed to import seed file %s: %w", seed, err)
		}
	}

	if err := s.sessions.Start(); err != nil {
		return fmt.Errorf("failed to start session manager: %w", err)
	}

	if dir := s.config.Schedule.WatchDir; dir != "" {
		watcher, err := catalog.NewWatcher(dir, s.importer, s.config.Schedule.PollInterval)
		if err != nil {
			return fmt.Errorf("failed to create definition watcher: %w", err)
		}
		if err := watcher.Start(); err != nil {
			return fmt.Errorf("failed to start definition watcher: %w", err)
		}
		s.watcher = watcher
	}

	return nil
}

// Start prepares the server and serves HTTP until shut down
func (s *Server) Start() error {
	if err := s.Prepare(context.Background()); err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)

	s.server = &http.Server{
		Addr:           addr,
		Handler:        s.Handler(),
		ReadTimeout:    s.config.Server.ReadTimeout,
		WriteTimeout:   s.config.Server.WriteTimeout,
		MaxHeaderBytes: 1 << 20, // 1 MB
	}

	logger.Log.Info().
		Str("host", s.config.Server.Host).
		Int("port", s.config.Server.Port).
		Msg("Starting HTTP server")

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	logger.Log.Info().Msg("Shutting down server gracefully")

	if s.watcher != nil {
		if err := s.watcher.Stop(); err != nil {
			logger.Log.Warn().Err(err).Msg("Error stopping definition watcher")
		}
	}

	// Check if server was started before attempting shutdown
	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
	}

	// Event streams end once their sessions stop
	s.sessions.Stop()

	logger.Log.Info().Msg("Server stopped")
	return nil
}
