package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.Empty(t, cfg.Path)
}

func TestLoadConfig_WorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ConfigFileName, "[analysis]\nworkers = 3\n")
	chdir(t, dir)

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Analysis.Workers)
	assert.Equal(t, ConfigFileName, cfg.Path)
}

func TestLoadConfig_File(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "custom.toml", `
[analysis]
workers = 4
strict = true

[store]
path = "data/runs.db"

[log]
level = "debug"
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Analysis.Workers)
	assert.True(t, cfg.Analysis.Strict)
	assert.Equal(t, filepath.Join(dir, "data", "runs.db"), cfg.Store.Path)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, path, cfg.Path)
}

func TestLoadConfig_AbsoluteStorePath(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(t.TempDir(), "runs.db")
	path := writeFile(t, dir, ConfigFileName, "[store]\npath = \""+filepath.ToSlash(dbPath)+"\"\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.ToSlash(dbPath), cfg.Store.Path)
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"unknown key", "[analysis]\nthreads = 2\n", "unknown key"},
		{"negative workers", "[analysis]\nworkers = -1\n", "non-negative"},
		{"bad level", "[log]\nlevel = \"loud\"\n", "invalid log level"},
		{"syntax", "[analysis\n", "parse error"},
		{"wrong type", "[analysis]\nstrict = \"yes\"\n", "parse error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), ConfigFileName, tt.content)
			_, err := LoadConfig(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadConfig_MissingExplicit(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.toml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot read")
}

func TestParseLogLevel(t *testing.T) {
	for _, level := range []string{"", "debug", "info", "warn", "warning", "error", "DEBUG"} {
		_, err := parseLogLevel(level)
		assert.NoError(t, err, level)
	}
	_, err := parseLogLevel("trace")
	assert.Error(t, err)
}

// chdir changes the working directory for the duration of the test.
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}
