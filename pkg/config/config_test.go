package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaultsThenYAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mnemo.yaml")
	require.NoError(t, os.WriteFile(path, []byte("db_path: /data/mnemo.db\ndimensions: 8\n"), 0o600))

	t.Setenv("MNEMO_AGENT_ID", "agent-from-env")
	t.Setenv("MNEMO_DIMENSIONS", "")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/data/mnemo.db", cfg.DBPath) // from YAML
	assert.Equal(t, 8, cfg.Dimensions)             // from YAML
	assert.Equal(t, "agent-from-env", cfg.AgentID) // from env
	assert.Equal(t, 8081, cfg.RESTPort)            // default, untouched
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Defaults().DBPath, cfg.DBPath)
}

func TestValidateRejectsMalformedEncryptionKey(t *testing.T) {
	cfg := Defaults()
	cfg.EncryptionKey = "not-hex"
	assert.Error(t, Validate(cfg))

	cfg.EncryptionKey = "ab" // valid hex, wrong length
	assert.Error(t, Validate(cfg))

	cfg.EncryptionKey = ""
	for i := 0; i < 64; i++ {
		cfg.EncryptionKey += "a"
	}
	assert.NoError(t, Validate(cfg))
}
