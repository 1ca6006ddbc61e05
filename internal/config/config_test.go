package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Rrens/chat-assistant/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "mongo", cfg.DocumentStore.Driver)
	assert.Equal(t, 15*time.Minute, cfg.Auth.AccessTokenTTL)
	assert.Equal(t, 10*time.Second, cfg.Chat.PersistTimeout)
	assert.False(t, cfg.Redis.Enabled())
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
server:
  port: 9090
document_store:
  driver: sqlite
  sqlite_path: /tmp/chat.db
redis:
  host: cache
  port: 6380
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	t.Setenv("CONFIG_PATH", path)
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("GEMINI_API_KEY", "gemini-key")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.DocumentStore.Driver)
	assert.Equal(t, "/tmp/chat.db", cfg.DocumentStore.SQLitePath)
	assert.Equal(t, "cache:6380", cfg.Redis.Addr())
	assert.True(t, cfg.Redis.Enabled())
	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
	assert.Equal(t, "gemini-key", cfg.LLM.Gemini.APIKey)
}

func TestDatabaseConfig_DSN(t *testing.T) {
	c := config.DatabaseConfig{
		Host:     "db",
		Port:     5432,
		User:     "u",
		Password: "p",
		Database: "chat",
		SSLMode:  "disable",
	}
	assert.Equal(t, "postgres://u:p@db:5432/chat?sslmode=disable", c.DSN())
}
