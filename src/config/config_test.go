package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "MONGO_DB", "STORAGE", "RATE_LIMIT", "ENABLE_JOBS"} {
		t.Setenv(k, "")
	}

	cfg := Load(filepath.Join(t.TempDir(), "missing.env"))

	assert.Equal(t, "8888", cfg.Port)
	assert.Equal(t, "volunteer", cfg.MongoDB)
	assert.Equal(t, "mongo", cfg.Storage)
	assert.Equal(t, 5.0, cfg.RateLimit)
	assert.True(t, cfg.EnableJobs)
}

func TestLoadReadsDotEnv(t *testing.T) {
	t.Setenv("MONGO_DB", "")
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("MONGO_DB=hours_test\nENABLE_JOBS=false\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("ENABLE_JOBS") })
	os.Unsetenv("MONGO_DB")
	os.Unsetenv("ENABLE_JOBS")

	cfg := Load(path)

	assert.Equal(t, "hours_test", cfg.MongoDB)
	assert.False(t, cfg.EnableJobs)
}
