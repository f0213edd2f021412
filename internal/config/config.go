// Package config loads report-command defaults from a YAML file.
//
// Flags given explicitly on the command line always win over file values;
// the file only fills in what the user left at the default.
package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config mirrors the report command's flags.
type Config struct {
	Paths          []string `yaml:"paths"`
	MinSize        string   `yaml:"minSize"`
	Excludes       []string `yaml:"excludes"`
	Workers        int      `yaml:"workers"`
	CacheFile      string   `yaml:"cacheFile"`
	FollowSymlinks bool     `yaml:"followSymlinks"`
	OneFilesystem  bool     `yaml:"oneFilesystem"`
	SkipHidden     bool     `yaml:"skipHidden"`
}

// Load reads and decodes a config file. Unknown keys are an error so a
// typo never silently falls back to a default.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &cfg, nil
}
