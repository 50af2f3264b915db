// Package config holds the engine configuration carried by every dataset
// handle: output encoding defaults, the page row limit, recovery and locking
// behaviour, and logging.
//
// Example usage:
//
//	cfg, err := config.Load("sdds.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	ds, err := sdds.Create("out.sdds", sdds.WithConfig(cfg))
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/ajitpratap0/sdds/pkg/errors"
	"github.com/ajitpratap0/sdds/pkg/layout"
	"github.com/ajitpratap0/sdds/pkg/logger"
)

// EnvOutputEndianness overrides OutputEndianness when set to "big" or "little"
const EnvOutputEndianness = "SDDS_OUTPUT_ENDIANESS"

// Config is the engine configuration
type Config struct {
	// RowLimit makes readers treat pages with more rows as the end of the
	// data (0 = unlimited)
	RowLimit int64 `yaml:"row_limit" json:"row_limit"`
	// OutputEndianness selects the byte order of binary output: "", "big" or "little"
	OutputEndianness string `yaml:"output_endianness" json:"output_endianness"`
	// NameValidity selects the name grammar for new layouts: strict, allow_any or allow_v15
	NameValidity string `yaml:"name_validity" json:"name_validity"`
	// DefaultMode is the data mode of new outputs: ascii or binary
	DefaultMode string `yaml:"default_mode" json:"default_mode"`
	// LinesPerRow spreads ASCII rows over several lines
	LinesPerRow int `yaml:"lines_per_row" json:"lines_per_row"`
	// ColumnMajor writes binary pages one column at a time
	ColumnMajor bool `yaml:"column_major" json:"column_major"`
	// FixedRowCount declares outputs whose row counts are rewritten in place
	FixedRowCount bool `yaml:"fixed_row_count" json:"fixed_row_count"`
	// FixedRowIncrement is the number of rows between in-place count updates
	FixedRowIncrement int64 `yaml:"fixed_row_increment" json:"fixed_row_increment"`
	// AutoRecover accepts a truncated last page of fixed-row-count inputs
	AutoRecover bool `yaml:"auto_recover" json:"auto_recover"`
	// UseMmap maps plain input files instead of reading them
	UseMmap bool `yaml:"use_mmap" json:"use_mmap"`
	// LockFiles takes an advisory lock on output files
	LockFiles bool `yaml:"lock_files" json:"lock_files"`
	// CompressionLevel is fastest, default, better or best
	CompressionLevel string `yaml:"compression_level" json:"compression_level"`

	Log logger.Config `yaml:"log" json:"log"`
}

// Default returns the configuration used when none is given
func Default() *Config {
	return &Config{
		DefaultMode:       "binary",
		NameValidity:      "strict",
		LinesPerRow:       1,
		FixedRowIncrement: 500,
		AutoRecover:       true,
		LockFiles:         true,
		CompressionLevel:  "default",
		Log: logger.Config{
			Level:    "info",
			Encoding: "console",
		},
	}
}

// Validate checks the configuration for values the engine cannot honour
func (c *Config) Validate() error {
	if c.RowLimit < 0 {
		return errors.New(errors.ErrorTypeConfig, "row_limit cannot be negative")
	}
	if _, err := c.Endianness(); err != nil {
		return err
	}
	if _, ok := layout.ParseNameValidity(c.NameValidity); !ok {
		return errors.Newf(errors.ErrorTypeConfig, "unknown name_validity %q", c.NameValidity)
	}
	if _, err := c.Mode(); err != nil {
		return err
	}
	if c.LinesPerRow < 1 {
		return errors.New(errors.ErrorTypeConfig, "lines_per_row must be positive")
	}
	if c.FixedRowIncrement < 1 {
		return errors.New(errors.ErrorTypeConfig, "fixed_row_increment must be positive")
	}
	switch c.CompressionLevel {
	case "", "fastest", "default", "better", "best":
	default:
		return errors.Newf(errors.ErrorTypeConfig, "unknown compression_level %q", c.CompressionLevel)
	}
	return nil
}

// ApplyEnv applies SDDS_* environment overrides
func (c *Config) ApplyEnv() error {
	if v, ok := os.LookupEnv(EnvOutputEndianness); ok {
		c.OutputEndianness = strings.TrimSpace(v)
	}
	if v, ok := os.LookupEnv("SDDS_ROW_LIMIT"); ok {
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeConfig, "invalid SDDS_ROW_LIMIT")
		}
		c.RowLimit = n
	}
	if v, ok := os.LookupEnv("SDDS_LOG_LEVEL"); ok {
		c.Log.Level = strings.TrimSpace(v)
	}
	return nil
}

// Endianness maps OutputEndianness to a layout byte order; an empty value
// means the host order
func (c *Config) Endianness() (layout.Endianness, error) {
	switch strings.ToLower(c.OutputEndianness) {
	case "":
		return layout.EndianNative, nil
	case "big", "big-endian":
		return layout.EndianBig, nil
	case "little", "little-endian":
		return layout.EndianLittle, nil
	}
	return layout.EndianNative, errors.Newf(errors.ErrorTypeConfig, "unknown output_endianness %q", c.OutputEndianness)
}

// Mode maps DefaultMode to a layout data mode
func (c *Config) Mode() (layout.Mode, error) {
	if c.DefaultMode == "" {
		return layout.ModeBinary, nil
	}
	mode, err := layout.ParseMode(strings.ToLower(c.DefaultMode))
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeConfig, "invalid default_mode")
	}
	return mode, nil
}

// Validity maps NameValidity to a layout name grammar
func (c *Config) Validity() layout.NameValidity {
	v, _ := layout.ParseNameValidity(c.NameValidity)
	return v
}
