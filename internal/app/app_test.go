package app

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/clearlabel/transparency/internal/config"
	"github.com/clearlabel/transparency/internal/logging"
)

type closeCounter struct {
	closed int
}

func (c *closeCounter) Close() error {
	c.closed++
	return nil
}

func countLogCloses(t *testing.T) *closeCounter {
	t.Helper()
	counter := &closeCounter{}
	original := setupLogging
	setupLogging = func(cfg config.LoggingConfig) (io.Closer, error) {
		if _, err := logging.Setup(cfg); err != nil {
			return nil, err
		}
		return counter, nil
	}
	t.Cleanup(func() { setupLogging = original })
	return counter
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return configPath
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		config.EnvDBConnection, config.EnvMongoURI, config.EnvJWTSecret, config.EnvJWTExpiry,
		config.EnvPort, config.EnvGeminiAPIKey, config.EnvEmailUser, config.EnvEmailPass,
	} {
		t.Setenv(key, "")
	}
}

func TestNewServerServesHealth(t *testing.T) {
	clearEnv(t)
	dsn := "file:" + filepath.Join(t.TempDir(), "app.db")
	configPath := writeConfig(t, "port: 8099\ndatabase-dsn: \""+dsn+"\"\njwt:\n  secret: test-secret\nmail:\n  provider: log\n")

	srv, err := NewServer(context.Background(), config.AppConfig{ConfigPath: configPath})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	t.Cleanup(srv.release)

	if srv.addr != ":8099" {
		t.Fatalf("unexpected addr %q", srv.addr)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected healthy server, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/products", nil))
	if rec.Code != http.StatusNoContent || rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("expected CORS preflight, got %d", rec.Code)
	}
}

func TestNewServerRequiresJWTSecret(t *testing.T) {
	clearEnv(t)
	dsn := "file:" + filepath.Join(t.TempDir(), "app.db")
	configPath := writeConfig(t, "database-dsn: \""+dsn+"\"\n")

	if _, err := NewServer(context.Background(), config.AppConfig{ConfigPath: configPath}); err != config.ErrMissingJWTSecret {
		t.Fatalf("expected ErrMissingJWTSecret, got %v", err)
	}
}

func TestMigrateCreatesSchema(t *testing.T) {
	clearEnv(t)
	dbPath := filepath.Join(t.TempDir(), "migrate.db")
	configPath := writeConfig(t, "database-dsn: \"file:"+dbPath+"\"\n")

	if err := Migrate(context.Background(), config.AppConfig{ConfigPath: configPath}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if _, err := os.Stat(dbPath); err != nil {
		t.Fatalf("expected database file: %v", err)
	}
}

func TestNewServerClosesLogsWhenStoreFails(t *testing.T) {
	clearEnv(t)
	counter := countLogCloses(t)
	configPath := writeConfig(t, "database-dsn: \"mysql://nowhere\"\njwt:\n  secret: test-secret\n")

	if _, err := NewServer(context.Background(), config.AppConfig{ConfigPath: configPath}); err == nil {
		t.Fatalf("expected unsupported dsn error")
	}
	if counter.closed != 1 {
		t.Fatalf("expected log output to be closed once, got %d", counter.closed)
	}
}

func TestNewServerClosesLogsWhenMailConfigInvalid(t *testing.T) {
	clearEnv(t)
	counter := countLogCloses(t)
	dsn := "file:" + filepath.Join(t.TempDir(), "app.db")
	configPath := writeConfig(t, "database-dsn: \""+dsn+"\"\njwt:\n  secret: test-secret\nmail:\n  provider: pigeon\n")

	if _, err := NewServer(context.Background(), config.AppConfig{ConfigPath: configPath}); err == nil {
		t.Fatalf("expected unsupported mail provider error")
	}
	if counter.closed != 1 {
		t.Fatalf("expected log output to be closed once, got %d", counter.closed)
	}
}

func TestNewServerKeepsLogsOpenOnSuccess(t *testing.T) {
	clearEnv(t)
	counter := countLogCloses(t)
	dsn := "file:" + filepath.Join(t.TempDir(), "app.db")
	configPath := writeConfig(t, "database-dsn: \""+dsn+"\"\njwt:\n  secret: test-secret\n")

	srv, err := NewServer(context.Background(), config.AppConfig{ConfigPath: configPath})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	if counter.closed != 0 {
		t.Fatalf("expected log output to stay open, got %d closes", counter.closed)
	}
	srv.release()
	if counter.closed != 1 {
		t.Fatalf("expected release to close log output, got %d", counter.closed)
	}
}
