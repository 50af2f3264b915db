package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/sdds/pkg/errors"
	"github.com/ajitpratap0/sdds/pkg/layout"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	mode, err := cfg.Mode()
	require.NoError(t, err)
	assert.Equal(t, layout.ModeBinary, mode)
	assert.Equal(t, layout.ValidityStrict, cfg.Validity())
	assert.True(t, cfg.AutoRecover)
}

func TestParse(t *testing.T) {
	t.Setenv("SDDS_TEST_LIMIT", "250")
	t.Setenv(EnvOutputEndianness, "")
	cfg, err := Parse([]byte(`
row_limit: ${SDDS_TEST_LIMIT}
default_mode: ascii
name_validity: allow_any
lines_per_row: 3
log:
  level: debug
`))
	require.NoError(t, err)
	assert.Equal(t, int64(250), cfg.RowLimit)
	assert.Equal(t, 3, cfg.LinesPerRow)
	assert.Equal(t, layout.ValidityAllowAny, cfg.Validity())
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, int64(500), cfg.FixedRowIncrement, "defaults survive partial files")
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv(EnvOutputEndianness, "big")
	t.Setenv("SDDS_ROW_LIMIT", "10")
	cfg := Default()
	require.NoError(t, cfg.ApplyEnv())
	e, err := cfg.Endianness()
	require.NoError(t, err)
	assert.Equal(t, layout.EndianBig, e)
	assert.Equal(t, int64(10), cfg.RowLimit)

	t.Setenv("SDDS_ROW_LIMIT", "many")
	assert.True(t, errors.IsType(cfg.ApplyEnv(), errors.ErrorTypeConfig))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"negative row limit", func(c *Config) { c.RowLimit = -1 }},
		{"bad endianness", func(c *Config) { c.OutputEndianness = "middle" }},
		{"bad validity", func(c *Config) { c.NameValidity = "loose" }},
		{"bad mode", func(c *Config) { c.DefaultMode = "hex" }},
		{"zero lines per row", func(c *Config) { c.LinesPerRow = 0 }},
		{"zero increment", func(c *Config) { c.FixedRowIncrement = 0 }},
		{"bad compression level", func(c *Config) { c.CompressionLevel = "max" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.True(t, errors.IsType(cfg.Validate(), errors.ErrorTypeConfig))
		})
	}
}

func TestSaveLoad(t *testing.T) {
	t.Setenv(EnvOutputEndianness, "")
	path := filepath.Join(t.TempDir(), "sdds.yaml")
	cfg := Default()
	cfg.RowLimit = 42
	cfg.ColumnMajor = true
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}
