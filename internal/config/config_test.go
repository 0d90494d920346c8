package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carebase/internal/sheet"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.validate())

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, int64(32<<20), cfg.Server.MaxUploadBytes)
	assert.Equal(t, "data/carebase.db", cfg.Storage.DBPath)
	assert.Equal(t, sheet.DefaultHeaderDepth, cfg.Ingest.HeaderDepth)
	assert.Equal(t, sheet.DefaultDataStartRow, cfg.Ingest.DataStartRow)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero port", func(c *Config) { c.Server.Port = 0 }},
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }},
		{"no origins", func(c *Config) { c.Security.AllowedOrigins = nil }},
		{"zero header depth", func(c *Config) { c.Ingest.HeaderDepth = 0 }},
		{"data row before headers", func(c *Config) {
			c.Ingest.HeaderDepth = 3
			c.Ingest.DataStartRow = 1
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.validate())
		})
	}
}

func TestValidateLogFormat(t *testing.T) {
	cfg := Default()
	cfg.Logging.Format = "text"
	require.NoError(t, cfg.validate())
	assert.Equal(t, "text", cfg.Logging.Format, "text format is honored")

	cfg.Logging.Format = "xml"
	require.NoError(t, cfg.validate())
	assert.Equal(t, "json", cfg.Logging.Format, "unknown formats fall back to json")
}

func TestMergeConfigsEnvWins(t *testing.T) {
	file := *Default()
	file.Server.Port = 9000
	file.Storage.DBPath = "file.db"

	env := Config{}
	env.Server.Port = 8081

	merged := mergeConfigs(file, env)
	assert.Equal(t, 8081, merged.Server.Port, "env value takes precedence")
	assert.Equal(t, "file.db", merged.Storage.DBPath, "file value fills the gap")
}

func TestLoadPatternsDefault(t *testing.T) {
	patterns, err := LoadPatterns("")
	require.NoError(t, err)
	assert.Equal(t, sheet.DefaultPatterns(), patterns)
}

func TestLoadPatternsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "patterns.yaml")
	content := `patterns:
  - field: name
    exact: ["姓名"]
  - field: hometown
    keywords: ["籍贯"]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	patterns, err := LoadPatterns(path)
	require.NoError(t, err)
	require.Len(t, patterns, 2)
	assert.Equal(t, sheet.FieldName, patterns[0].Field)
	assert.Equal(t, []string{"姓名"}, patterns[0].Exact)
	assert.Equal(t, sheet.FieldHometown, patterns[1].Field)
}

func TestLoadPatternsRejectsInvalidFiles(t *testing.T) {
	dir := t.TempDir()

	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("patterns: []\n"), 0o644))
	_, err := LoadPatterns(empty)
	assert.Error(t, err)

	noField := filepath.Join(dir, "nofield.yaml")
	require.NoError(t, os.WriteFile(noField, []byte("patterns:\n  - exact: [\"姓名\"]\n"), 0o644))
	_, err = LoadPatterns(noField)
	assert.Error(t, err)

	_, err = LoadPatterns(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
