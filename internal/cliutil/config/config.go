// Package config loads cheshbon's CLI configuration file: default report
// mode, strictness flags, and CLI-only conveniences the kernel has no
// opinion about.
//
// Grounded on the teacher pack's use of github.com/goccy/go-yaml
// (MacroPower-x go.mod) for fast, struct-tag-compatible YAML decoding; the
// config file format is YAML because every other tool in the pack that
// reads a developer-edited config file (as opposed to wire payloads) uses
// YAML, not JSON.
package config

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

// CLIConfig is the on-disk shape of .cheshbon.yaml.
type CLIConfig struct {
	DefaultMode              string `yaml:"default_mode"`
	RequireSupportedVersion  bool   `yaml:"require_supported_schema_version"`
	RejectUnknownFields      bool   `yaml:"reject_unknown_fields"`
	LogLevel                 string `yaml:"log_level"`
	LogFormat                string `yaml:"log_format"`
}

// Default returns the zero-configuration defaults used when no config file
// is present.
func Default() CLIConfig {
	return CLIConfig{
		DefaultMode: "full",
		LogLevel:    "info",
		LogFormat:   "logfmt",
	}
}

// Load reads and parses a CLIConfig from path. A missing file is not an
// error; callers get Default() back.
func Load(path string) (CLIConfig, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}
