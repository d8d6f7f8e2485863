package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/stwalsh4118/branchreel/internal/catalog"
	"github.com/stwalsh4118/branchreel/internal/config"
	"github.com/stwalsh4118/branchreel/internal/db"
	"github.com/stwalsh4118/branchreel/internal/media"
	"github.com/stwalsh4118/branchreel/internal/models"
	"github.com/stwalsh4118/branchreel/internal/schedule"
	"github.com/stwalsh4118/branchreel/internal/session"
)

type testAPI struct {
	router   *gin.Engine
	database *db.DB
	repos    *db.Repositories
	importer *catalog.Importer
	manager  *session.Manager
}

// setupTestAPI wires every route against a migrated temp-dir database.
// Durations are never probed.
func setupTestAPI(t *testing.T) *testAPI {
	t.Helper()

	database, err := db.New(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	sqlDB, err := database.GetSQLDB()
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations(sqlDB, "file://../../migrations"))

	repos := db.NewRepositories(database)
	durations := media.NewCatalog(repos.Media, nil, time.Second)
	importer := catalog.NewImporter(repos.Experiences, durations)

	cfg := &config.Config{
		Playback: config.PlaybackConfig{
			TickInterval:  10 * time.Millisecond,
			TriggerWindow: 0.5,
		},
		Services: config.ServicesConfig{RequestTimeout: time.Second},
		Sessions: config.SessionsConfig{
			GracePeriod:     time.Hour,
			CleanupInterval: time.Hour,
		},
	}
	manager := session.NewManager(repos.Experiences, durations, nil, nil, cfg)
	require.NoError(t, manager.Start())
	t.Cleanup(manager.Stop)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	apiGroup := router.Group("/api")
	SetupHealthRoutes(apiGroup, database, manager)
	SetupExperienceRoutes(apiGroup, repos.Experiences, importer)
	SetupMediaRoutes(apiGroup, repos.Media, durations)
	SetupSessionRoutes(apiGroup, manager)

	return &testAPI{
		router:   router,
		database: database,
		repos:    repos,
		importer: importer,
		manager:  manager,
	}
}

// shortDefinition is a half-second main source with one question at 0.
func shortDefinition() *schedule.Definition {
	return &schedule.Definition{
		Name:       "Short",
		MainSource: "/videos/short.mp4",
		Media:      []schedule.MediaHint{{URI: "/videos/short.mp4", Duration: 0.5}},
		Questions: []schedule.QuestionDef{
			{ID: 1, TriggerTime: 0, Prompt: "Pick one", Options: []string{"A", "B"}},
		},
		Branches: []schedule.BranchDef{},
	}
}

func (a *testAPI) importShort(t *testing.T) *models.Experience {
	t.Helper()
	exp, err := a.importer.Import(context.Background(), shortDefinition())
	require.NoError(t, err)
	return exp
}

func (a *testAPI) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), "body: %s", w.Body.String())
	return out
}

// waitForState polls the snapshot endpoint until the session reaches want.
func (a *testAPI) waitForState(t *testing.T, sessionID, want string) {
	t.Helper()
	require.Eventually(t, func() bool {
		w := a.do(t, http.MethodGet, "/api/sessions/"+sessionID, nil)
		if w.Code != http.StatusOK {
			return false
		}
		var snap struct {
			State string `json:"state"`
		}
		return json.Unmarshal(w.Body.Bytes(), &snap) == nil && snap.State == want
	}, 5*time.Second, 10*time.Millisecond, "session never reached %s", want)
}
