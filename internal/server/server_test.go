package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stwalsh4118/branchreel/internal/collab"
	"github.com/stwalsh4118/branchreel/internal/config"
	"github.com/stwalsh4118/branchreel/internal/db"
	"github.com/stwalsh4118/branchreel/internal/llm"
)

const seedYAML = `name: Seeded
main_source: /videos/seed.mp4
media:
  - uri: /videos/seed.mp4
    duration: 30
questions:
  - id: 1
    trigger_time: 5
    prompt: Ready?
    options: ["Yes", "No"]
branches: []
`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Server:  config.ServerConfig{Host: "127.0.0.1", Port: 0},
		Logging: config.LoggingConfig{Level: "info"},
		Playback: config.PlaybackConfig{
			TickInterval:  10 * time.Millisecond,
			TriggerWindow: 0.5,
		},
		Services: config.ServicesConfig{
			Provider:            config.ProviderHTTP,
			RequestTimeout:      time.Second,
			MaxOptions:          3,
			BreakerThreshold:    3,
			BreakerResetTimeout: time.Second,
		},
		Sessions: config.SessionsConfig{
			GracePeriod:     time.Hour,
			CleanupInterval: time.Hour,
		},
	}
}

func testDB(t *testing.T) *db.DB {
	t.Helper()
	database, err := db.New(filepath.Join(t.TempDir(), "server.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	sqlDB, err := database.GetSQLDB()
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations(sqlDB, "file://../../migrations"))
	return database
}

func TestNewCollaborators(t *testing.T) {
	t.Run("http without urls disables both", func(t *testing.T) {
		filter, summarizer, err := NewCollaborators(config.ServicesConfig{Provider: config.ProviderHTTP})
		require.NoError(t, err)
		assert.Nil(t, filter)
		assert.Nil(t, summarizer)
	})

	t.Run("http with urls", func(t *testing.T) {
		filter, summarizer, err := NewCollaborators(config.ServicesConfig{
			Provider:            config.ProviderHTTP,
			FilterURL:           "http://localhost:9000/filter",
			SummaryURL:          "http://localhost:9000/summary",
			RequestTimeout:      time.Second,
			BreakerThreshold:    1,
			BreakerResetTimeout: time.Second,
		})
		require.NoError(t, err)
		assert.IsType(t, &collab.HTTPFilter{}, filter)
		assert.IsType(t, &collab.HTTPSummarizer{}, summarizer)
	})

	t.Run("http with filter only", func(t *testing.T) {
		filter, summarizer, err := NewCollaborators(config.ServicesConfig{
			Provider:  config.ProviderHTTP,
			FilterURL: "http://localhost:9000/filter",
		})
		require.NoError(t, err)
		assert.NotNil(t, filter)
		assert.Nil(t, summarizer)
	})

	t.Run("ollama", func(t *testing.T) {
		filter, summarizer, err := NewCollaborators(config.ServicesConfig{
			Provider:   config.ProviderOllama,
			LLMModel:   "llama3.2",
			OllamaHost: "http://localhost:11434",
		})
		require.NoError(t, err)
		assert.IsType(t, &llm.Filter{}, filter)
		assert.IsType(t, &llm.Summarizer{}, summarizer)
	})

	t.Run("openai without key", func(t *testing.T) {
		_, _, err := NewCollaborators(config.ServicesConfig{Provider: config.ProviderOpenAI})
		assert.Error(t, err)
	})

	t.Run("unknown provider", func(t *testing.T) {
		_, _, err := NewCollaborators(config.ServicesConfig{Provider: "carrier-pigeon"})
		assert.ErrorContains(t, err, "unsupported services provider")
	})
}

func TestServer_PrepareAndServe(t *testing.T) {
	cfg := testConfig(t)

	seed := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(seed, []byte(seedYAML), 0o644))
	cfg.Schedule.SeedFile = seed
	cfg.Schedule.WatchDir = t.TempDir()
	cfg.Schedule.PollInterval = 50 * time.Millisecond

	srv, err := New(cfg, testDB(t))
	require.NoError(t, err)
	require.NoError(t, srv.Prepare(context.Background()))
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	exp, err := srv.repos.Experiences.GetByName(context.Background(), "Seeded")
	require.NoError(t, err)
	assert.Equal(t, "/videos/seed.mp4", exp.MainSource)
	assert.NotNil(t, srv.watcher)

	for _, path := range []string{"/api/health", "/api/experiences", "/api/sessions"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.NotEmpty(t, w.Header().Get("X-Request-ID"), path)
	}
}

func TestServer_PrepareBadSeed(t *testing.T) {
	cfg := testConfig(t)
	cfg.Schedule.SeedFile = filepath.Join(t.TempDir(), "missing.yaml")

	srv, err := New(cfg, testDB(t))
	require.NoError(t, err)

	err = srv.Prepare(context.Background())
	assert.ErrorContains(t, err, "failed to import seed file")
}

func TestServer_ShutdownBeforeStart(t *testing.T) {
	srv, err := New(testConfig(t), testDB(t))
	require.NoError(t, err)
	assert.NoError(t, srv.Shutdown(context.Background()))
}
