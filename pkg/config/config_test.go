package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, DriverSQLite, cfg.CorpusDriver)
	assert.Equal(t, DriverSQLite, cfg.TargetDriver)
	assert.Equal(t, 10, cfg.RetrievalK)
	assert.True(t, cfg.ReadOnly)
	assert.Equal(t, 30*time.Second, cfg.ServiceTimeout)
	assert.Equal(t, 3, cfg.RetryAttempts)
}

func TestLoadFlagsAndEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-chat")
	t.Setenv("TARGET_DSN", "/tmp/shop.db")

	cfg, err := Load([]string{"--retrieval-k=3", "--read-only=false", "--embedding-provider=hash", "--service-timeout=2s"})
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.RetrievalK)
	assert.False(t, cfg.ReadOnly)
	assert.Equal(t, EmbeddingProviderHash, cfg.EmbeddingProvider)
	assert.Equal(t, 2*time.Second, cfg.ServiceTimeout)
	assert.Equal(t, "/tmp/shop.db", cfg.TargetDSN)
	assert.Equal(t, "sk-chat", cfg.OpenAIAPIKey)
	assert.Equal(t, "sk-chat", cfg.EmbeddingAPIKey, "embedding key falls back to the chat key")
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	_, err := Load([]string{"--target-driver=mysql"})
	assert.ErrorContains(t, err, "target-driver")

	_, err = Load([]string{"--retrieval-k=0"})
	assert.ErrorContains(t, err, "retrieval-k")

	_, err = Load([]string{"--embedding-provider=cohere"})
	assert.ErrorContains(t, err, "embedding-provider")
}

func TestEnsureSQLiteDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")
	require.NoError(t, EnsureSQLiteDir(DriverSQLite, filepath.Join(dir, "corpus.db")))
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	assert.NoError(t, EnsureSQLiteDir(DriverSQLite, ":memory:"))
	assert.NoError(t, EnsureSQLiteDir(DriverPostgres, "postgres://localhost/db"))
}
