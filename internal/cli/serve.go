package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/stwalsh4118/branchreel/internal/logger"
	"github.com/stwalsh4118/branchreel/internal/server"
)

const shutdownTimeout = 15 * time.Second

var (
	servePort     int
	serveSeedFile string
	serveWatchDir string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the playback API server",
	Long: `Run the playback API server.

The catalog database is migrated on startup. A seed definition is imported
before the listener opens, and a watched directory is re-imported whenever
one of its YAML files changes.

Examples:
  branchreel serve
  branchreel serve --port 9090 --seed ./experiences/pilot.yaml
  branchreel serve --watch ./experiences`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "listen port (overrides config)")
	serveCmd.Flags().StringVar(&serveSeedFile, "seed", "", "definition file imported at startup")
	serveCmd.Flags().StringVar(&serveWatchDir, "watch", "", "directory of definitions to import and watch")
}

func runServe(cmd *cobra.Command, args []string) error {
	if servePort > 0 {
		cfg.Server.Port = servePort
	}
	if serveSeedFile != "" {
		cfg.Schedule.SeedFile = serveSeedFile
	}
	if serveWatchDir != "" {
		cfg.Schedule.WatchDir = serveWatchDir
	}

	database, err := openCatalog()
	if err != nil {
		return err
	}
	defer closeCatalog(cmd, database)

	srv, err := server.New(cfg, database)
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	select {
	case err := <-errChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Log.Info().Msg("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	if err := <-errChan; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
