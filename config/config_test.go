package config

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(new(discard))
	return fs
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "routines.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load(newFlagSet(), nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultDBPath, cfg.DBPath)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.Equal(t, time.Hour, cfg.ReconcileInterval.Duration)
	assert.Empty(t, cfg.ConfigFile)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}

func TestLoad_FileThenEnvThenFlags(t *testing.T) {
	chdir(t, t.TempDir())
	path := writeFile(t, `
port = 9000
db = "file.db"
timezone = "Europe/Paris"
reconcile_interval = "15m"
allowed_origins = ["http://a.test", "http://b.test"]

[log]
level = "debug"
format = "console"
`)
	t.Setenv("ROUTINES_DB", "env.db")
	t.Setenv("ROUTINES_LOG_LEVEL", "warn")

	cfg, err := Load(newFlagSet(), []string{"-config", path, "-port", "9100"})
	require.NoError(t, err)

	assert.Equal(t, path, cfg.ConfigFile)
	assert.Equal(t, 9100, cfg.Port)
	assert.Equal(t, "env.db", cfg.DBPath)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, "Europe/Paris", cfg.Timezone)
	assert.Equal(t, 15*time.Minute, cfg.ReconcileInterval.Duration)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.AllowedOrigins)
}

func TestLoad_ProjectFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultConfigFile), []byte("port = 7000\n"), 0o644))

	cfg, err := Load(newFlagSet(), nil)
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Port)
	assert.Equal(t, DefaultConfigFile, cfg.ConfigFile)
}

func TestLoad_EnvConfigPath(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("ROUTINES_CONFIG", writeFile(t, `db = ":memory:"`))

	cfg, err := Load(newFlagSet(), []string{"--scenarios", "--allowed-origins=http://x.test, http://y.test"})
	require.NoError(t, err)
	assert.Equal(t, ":memory:", cfg.DBPath)
	assert.True(t, cfg.LoadScenarios)
	assert.Equal(t, []string{"http://x.test", "http://y.test"}, cfg.AllowedOrigins)
}

func TestLoad_Errors(t *testing.T) {
	chdir(t, t.TempDir())

	t.Run("missing explicit file", func(t *testing.T) {
		_, err := Load(newFlagSet(), []string{"-config=" + filepath.Join(t.TempDir(), "nope.toml")})
		assert.Error(t, err)
	})
	t.Run("bad toml", func(t *testing.T) {
		_, err := Load(newFlagSet(), []string{"-config", writeFile(t, "port = [")})
		assert.Error(t, err)
	})
	t.Run("bad duration in file", func(t *testing.T) {
		_, err := Load(newFlagSet(), []string{"-config", writeFile(t, `reconcile_interval = "soon"`)})
		assert.Error(t, err)
	})
	t.Run("bad env port", func(t *testing.T) {
		t.Setenv("ROUTINES_PORT", "eighty")
		_, err := Load(newFlagSet(), nil)
		assert.Error(t, err)
	})
	t.Run("bad timezone", func(t *testing.T) {
		t.Setenv("ROUTINES_TZ", "Mars/Olympus")
		_, err := Load(newFlagSet(), nil)
		assert.Error(t, err)
	})
	t.Run("port out of range", func(t *testing.T) {
		_, err := Load(newFlagSet(), []string{"-port", "70000"})
		assert.Error(t, err)
	})
	t.Run("unknown flag", func(t *testing.T) {
		_, err := Load(newFlagSet(), []string{"-bogus"})
		assert.Error(t, err)
	})
}

func TestConfig_Addr(t *testing.T) {
	cfg := &Config{Port: 8081}
	assert.Equal(t, ":8081", cfg.Addr())
}
