// Package config handles the project manifest and runtime configuration for
// the plugkit CLI and library defaults.
package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// ManifestFileName is the project manifest declaring the desired plugin set.
const ManifestFileName = "plugkit.toml"

type Config struct {
	Project ProjectConfig     `toml:"project"`
	Plugins map[string]string `toml:"plugins,omitempty"`
	Install InstallConfig     `toml:"install,omitempty"`
}

type ProjectConfig struct {
	Name string `toml:"name"`
}

// InstallConfig mirrors the library options that make sense to commit to a
// project manifest. Credentials never belong here; tokens come from the
// environment.
type InstallConfig struct {
	Dir             string            `toml:"dir,omitempty"`
	MaxAgeMS        int64             `toml:"max_age_ms,omitempty"`
	LenientVersions bool              `toml:"lenient_versions,omitempty"`
	FailFast        bool              `toml:"fail_fast,omitempty"`
	Registry        string            `toml:"registry,omitempty"`
	ScopeRegistries map[string]string `toml:"scope_registries,omitempty"`
}

func UnmarshalConfig(data []byte) (*Config, error) {
	cfg := &Config{}
	err := toml.Unmarshal(data, cfg)

	return cfg, err
}

func (c *Config) Marshal() ([]byte, error) {
	return toml.Marshal(c)
}

func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return UnmarshalConfig(data)
}

func SaveFile(path string, cfg *Config) error {
	data, err := cfg.Marshal()
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
