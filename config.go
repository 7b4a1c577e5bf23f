package goschedule

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/brunobiangulo/goschedule/parser"
	"github.com/brunobiangulo/goschedule/pipeline"
)

// Config holds all configuration for the schedule engine.
type Config struct {
	// DBPath is the full path to the SQLite catalog.
	// If empty, defaults to ~/.goschedule/<DBName>.db
	DBPath string `json:"db_path" yaml:"db_path"`

	// DBName names the catalog file when DBPath is empty.
	DBName string `json:"db_name" yaml:"db_name"`

	// StorageDir is "home" (default, ~/.goschedule/) or "local" (the
	// working directory).
	StorageDir string `json:"storage_dir" yaml:"storage_dir"`

	// Layout locates the schedule and metadata regions on each page.
	Layout pipeline.Config `json:"layout" yaml:"layout"`

	// Parser holds the geometric tolerances of table extraction.
	Parser parser.Config `json:"parser" yaml:"parser"`
}

// DefaultConfig returns the layout of the standard term schedule template.
// The catalog is stored in ~/.goschedule/goschedule.db by default.
func DefaultConfig() Config {
	return Config{
		DBName:     "goschedule",
		StorageDir: "home",
		Layout:     pipeline.DefaultConfig(),
		Parser:     parser.DefaultConfig(),
	}
}

// LoadConfig reads a YAML or JSON file over DefaultConfig. Fields absent
// from the file keep their defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &cfg)
	default:
		err = yaml.Unmarshal(data, &cfg)
	}
	if err != nil {
		return cfg, fmt.Errorf("%w: parsing %s: %v", ErrInvalidConfig, filepath.Base(path), err)
	}
	return cfg, cfg.Validate()
}

// Validate reports whether the layout and tolerances are usable.
func (c Config) Validate() error {
	if err := c.Layout.Validate(); err != nil {
		return fmt.Errorf("%w: layout: %v", ErrInvalidConfig, err)
	}
	if c.Parser.RowTolerance < 0 || c.Parser.SnapTolerance < 0 || c.Parser.MinRuleLength < 0 {
		return fmt.Errorf("%w: parser tolerances must not be negative", ErrInvalidConfig)
	}
	switch c.StorageDir {
	case "", "home", "local", "cwd":
	default:
		return fmt.Errorf("%w: unknown storage_dir %q", ErrInvalidConfig, c.StorageDir)
	}
	return nil
}

// resolveDBPath computes the final database path from config fields.
func (c *Config) resolveDBPath() string {
	if c.DBPath != "" {
		return c.DBPath
	}

	name := c.DBName
	if name == "" {
		name = "goschedule"
	}

	switch c.StorageDir {
	case "local", "cwd":
		return name + ".db"
	default:
		home, err := os.UserHomeDir()
		if err != nil {
			return name + ".db"
		}
		return filepath.Join(home, ".goschedule", name+".db")
	}
}
