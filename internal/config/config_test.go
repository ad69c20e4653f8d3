package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir switches the working directory for the duration of the test.
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}

func TestLoadDefaultsWithNoProjectConfig(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("PYGRDATAPATH", "")
	os.Unsetenv("PYGRDATAPATH")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default().Path, cfg.Path)
	assert.Equal(t, Default().LockTimeout, cfg.LockTimeout)
}

func TestLoadReadsProjectConfigFile(t *testing.T) {
	dir := t.TempDir()
	os.Unsetenv("PYGRDATAPATH")
	content := "path: /srv/registry,.\nlockTimeout: 5s\nlogLevel: debug\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ProjectConfigName), []byte(content), 0o644))

	sub := filepath.Join(dir, "nested", "deeper")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	chdir(t, sub)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/srv/registry,.", cfg.Path)
	assert.Equal(t, 5*time.Second, cfg.LockTimeout)
}

func TestEnvVarTakesPrecedenceOverProjectConfig(t *testing.T) {
	dir := t.TempDir()
	content := "path: /from/file\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ProjectConfigName), []byte(content), 0o644))
	chdir(t, dir)

	t.Setenv("PYGRDATAPATH", "/from/env")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/from/env", cfg.Path)
}

func TestWatchReloadsOnFileChange(t *testing.T) {
	dir := t.TempDir()
	os.Unsetenv("PYGRDATAPATH")
	path := filepath.Join(dir, ProjectConfigName)
	require.NoError(t, os.WriteFile(path, []byte("path: /v1\n"), 0o644))
	chdir(t, dir)

	w, err := Watch()
	require.NoError(t, err)
	assert.Equal(t, "/v1", w.Current().Path)

	changed := make(chan Config, 1)
	w.OnChange(func(c Config) { changed <- c })

	require.NoError(t, os.WriteFile(path, []byte("path: /v2\n"), 0o644))

	select {
	case c := <-changed:
		assert.Equal(t, "/v2", c.Path)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for config reload")
	}
	assert.Equal(t, "/v2", w.Current().Path)
}
