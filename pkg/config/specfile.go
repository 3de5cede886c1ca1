package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"sigs.k8s.io/yaml"

	"github.com/plugkit/plugkit/pkg/spec"
)

// EnvSpecVar holds a JSON object of plugin names to version requests. It
// takes precedence over any manifest on disk so invocation environments can
// override the committed set.
const EnvSpecVar = "PLUGKIT_PLUGINS"

// LoadSpecFile reads a desired plugin spec from path. TOML files are read as
// a project manifest and yield its [plugins] table; JSON and YAML files hold
// the name-to-version object directly.
func LoadSpecFile(path string) (spec.PluginSpec, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".toml" {
		cfg, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		return spec.PluginSpec(cfg.Plugins), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	switch ext {
	case ".yaml", ".yml":
		jsonData, err := yaml.YAMLToJSON(data)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		data = jsonData
		fallthrough
	case ".json":
		var desired spec.PluginSpec
		if err := json.Unmarshal(data, &desired); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		return desired, nil
	default:
		return nil, fmt.Errorf("unsupported spec file extension %q", filepath.Ext(path))
	}
}

// SpecFromEnv parses EnvSpecVar when set. Returns (nil, nil) when the
// variable is absent or empty.
func SpecFromEnv() (spec.PluginSpec, error) {
	raw := os.Getenv(EnvSpecVar)
	if raw == "" {
		return nil, nil
	}
	var desired spec.PluginSpec
	if err := json.Unmarshal([]byte(raw), &desired); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", EnvSpecVar, err)
	}
	return desired, nil
}
