// Package config loads the strapiql YAML configuration file.
//
// Every setting has a named default; nothing is read from the environment.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/strapiql/internal/compiler"
	"github.com/roach88/strapiql/internal/filter"
)

// DefaultDatabasePath is used when database.path is unset.
const DefaultDatabasePath = "strapiql.db"

// Config is the file layout:
//
//	compiler:
//	  alias: entity
//	  default_limit: 10
//	  max_limit: 100
//	  duplicate_keys: reject
//	  mixed_keys: reject
//	  soft_delete_column: isDeleted
//	database:
//	  path: strapiql.db
//	schema:
//	  dir: ./schema
type Config struct {
	Compiler CompilerSection `yaml:"compiler"`
	Database DatabaseSection `yaml:"database"`
	Schema   SchemaSection   `yaml:"schema"`
}

// CompilerSection mirrors compiler.Config.
type CompilerSection struct {
	Alias            string `yaml:"alias,omitempty"`
	DefaultLimit     int    `yaml:"default_limit,omitempty"`
	MaxLimit         int    `yaml:"max_limit,omitempty"`
	DuplicateKeys    string `yaml:"duplicate_keys,omitempty"`
	MixedKeys        string `yaml:"mixed_keys,omitempty"`
	SoftDeleteColumn string `yaml:"soft_delete_column,omitempty"`
}

// DatabaseSection locates the SQLite database.
type DatabaseSection struct {
	Path string `yaml:"path,omitempty"`
}

// SchemaSection locates CUE entity definitions. Empty means the bundled
// demo schema.
type SchemaSection struct {
	Dir string `yaml:"dir,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Database: DatabaseSection{Path: DefaultDatabasePath},
	}
}

// Load reads and parses a config file.
// Returns an error if the file doesn't exist, is malformed, or contains
// unknown fields (typos).
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML config data on top of Default.
func Parse(data []byte) (Config, error) {
	cfg := Default()

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if cfg.Database.Path == "" {
		cfg.Database.Path = DefaultDatabasePath
	}
	if _, err := cfg.CompilerConfig(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// CompilerConfig converts the compiler section, validating it.
func (c Config) CompilerConfig() (compiler.Config, error) {
	policy, err := filter.ParseDuplicateKeyPolicy(c.Compiler.DuplicateKeys)
	if err != nil {
		return compiler.Config{}, err
	}
	mixed, err := filter.ParseMixedKeyPolicy(c.Compiler.MixedKeys)
	if err != nil {
		return compiler.Config{}, err
	}

	cc := compiler.Config{
		Alias:            c.Compiler.Alias,
		DefaultLimit:     c.Compiler.DefaultLimit,
		MaxLimit:         c.Compiler.MaxLimit,
		DuplicateKeys:    policy,
		MixedKeys:        mixed,
		SoftDeleteColumn: c.Compiler.SoftDeleteColumn,
	}
	if err := cc.Validate(); err != nil {
		return compiler.Config{}, err
	}
	return cc, nil
}
