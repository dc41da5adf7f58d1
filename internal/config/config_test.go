package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_MemoryDefaults(t *testing.T) {
	t.Setenv("BACKEND", "memory")
	t.Setenv("COLLECTIONS", "users, tasks")
	t.Setenv("TREES", "presence=status/online")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "debug", cfg.GinMode)
	assert.False(t, cfg.IsRelease())
	assert.Equal(t, []string{"users", "tasks"}, cfg.Collections)
	assert.Equal(t, []string{"presence=status/online"}, cfg.Trees)
	assert.Equal(t, 2*time.Second, cfg.TreePollInterval)
	assert.Equal(t, "docsync.mutations", cfg.RabbitMQQueue)
}

func TestLoadConfig_FirebaseRequiresProject(t *testing.T) {
	t.Setenv("BACKEND", "firebase")
	t.Setenv("FIREBASE_PROJECT_ID", "")

	_, err := LoadConfig()
	assert.ErrorContains(t, err, "FIREBASE_PROJECT_ID")
}

func TestLoadConfig_FirebaseTreesRequireDatabaseURL(t *testing.T) {
	t.Setenv("BACKEND", "firebase")
	t.Setenv("FIREBASE_PROJECT_ID", "demo")
	t.Setenv("TREES", "presence=status")
	t.Setenv("FIREBASE_DATABASE_URL", "")

	_, err := LoadConfig()
	assert.ErrorContains(t, err, "FIREBASE_DATABASE_URL")
}

func TestLoadConfig_File(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "docsync.yaml")
	require.NoError(t, os.WriteFile(file, []byte("BACKEND: memory\nPORT: \"9090\"\nDOCUMENTS:\n  - settings=config/app\n"), 0o600))
	t.Setenv("CONFIG_FILE", file)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, []string{"settings=config/app"}, cfg.Documents)
}

func TestConfig_ValidateRejectsBadPairs(t *testing.T) {
	cfg := &Config{Backend: BackendMemory, Documents: []string{"settings"}}
	assert.Error(t, cfg.Validate())

	cfg = &Config{Backend: "mongo"}
	assert.Error(t, cfg.Validate())

	cfg = &Config{Backend: BackendMemory, AuthRequired: true}
	assert.Error(t, cfg.Validate())
}

func TestParsePair(t *testing.T) {
	name, value, err := ParsePair(" settings = config/app ")
	require.NoError(t, err)
	assert.Equal(t, "settings", name)
	assert.Equal(t, "config/app", value)

	_, _, err = ParsePair("=x")
	assert.Error(t, err)
}
