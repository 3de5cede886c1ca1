package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/plugkit/plugkit/pkg/plugin"
	"github.com/plugkit/plugkit/pkg/state"
	"github.com/plugkit/plugkit/pkg/store"
)

// RuntimeConfig holds install settings resolved with Viper precedence:
// CLI flags > environment (PLUGKIT_*) > plugkit.toml [install] >
// ~/.plugkit/config.toml [install].
type RuntimeConfig struct {
	Dir             string            `toml:"dir" mapstructure:"dir"`
	MaxAgeMS        int64             `toml:"max_age_ms" mapstructure:"max_age_ms"`
	LenientVersions bool              `toml:"lenient_versions" mapstructure:"lenient_versions"`
	FailFast        bool              `toml:"fail_fast" mapstructure:"fail_fast"`
	Registry        string            `toml:"registry" mapstructure:"registry"`
	ScopeRegistries map[string]string `toml:"scope_registries" mapstructure:"scope_registries"`
}

// FlagOverrides carries the CLI flag values that were explicitly set. Zero
// values of pointer fields mean "not set".
type FlagOverrides struct {
	Dir      *string
	MaxAgeMS *int64
	Lenient  *bool
	FailFast *bool
	Registry *string
}

// LoadRuntimeConfig resolves install settings for the given project
// directory using Viper's merge semantics.
func LoadRuntimeConfig(projectDir string, flags FlagOverrides) (*RuntimeConfig, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("determining home directory: %w", err)
	}
	globalPath := filepath.Join(home, ".plugkit", "config.toml")
	localPath := filepath.Join(projectDir, ManifestFileName)
	return loadRuntimeConfig(flags, globalPath, localPath)
}

// loadRuntimeConfig is the internal implementation that accepts explicit
// paths, making it testable without touching the real home directory.
func loadRuntimeConfig(flags FlagOverrides, globalPath, localPath string) (*RuntimeConfig, error) {
	v := viper.New()
	v.SetConfigType("toml")

	// Lowest priority: global config; ignore if missing.
	v.SetConfigFile(globalPath)
	_ = v.ReadInConfig()

	// Higher priority: the project manifest's [install] table.
	if _, err := os.Stat(localPath); err == nil {
		v.SetConfigFile(localPath)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("reading %s: %w", localPath, err)
		}
	}

	// Environment: PLUGKIT_DIR, PLUGKIT_MAX_AGE_MS, and so on.
	for _, key := range []string{"dir", "max_age_ms", "lenient_versions", "fail_fast", "registry"} {
		_ = v.BindEnv("install."+key, "PLUGKIT_"+strings.ToUpper(key))
	}

	// Highest priority: CLI flags.
	if flags.Dir != nil {
		v.Set("install.dir", *flags.Dir)
	}
	if flags.MaxAgeMS != nil {
		v.Set("install.max_age_ms", *flags.MaxAgeMS)
	}
	if flags.Lenient != nil {
		v.Set("install.lenient_versions", *flags.Lenient)
	}
	if flags.FailFast != nil {
		v.Set("install.fail_fast", *flags.FailFast)
	}
	if flags.Registry != nil {
		v.Set("install.registry", *flags.Registry)
	}

	// Resolve key by key: viper's dotted-key lookup applies the full
	// override > env > local > global precedence, which UnmarshalKey on the
	// parent table does not.
	cfg := &RuntimeConfig{
		Dir:             v.GetString("install.dir"),
		MaxAgeMS:        v.GetInt64("install.max_age_ms"),
		LenientVersions: v.GetBool("install.lenient_versions"),
		FailFast:        v.GetBool("install.fail_fast"),
		Registry:        v.GetString("install.registry"),
		ScopeRegistries: v.GetStringMapString("install.scope_registries"),
	}
	if len(cfg.ScopeRegistries) == 0 {
		cfg.ScopeRegistries = nil
	}

	return cfg, nil
}

// Options converts resolved settings into library options.
func (c *RuntimeConfig) Options() plugin.Options {
	opts := plugin.Options{
		Dir:             c.Dir,
		LenientVersions: c.LenientVersions,
		FailFast:        c.FailFast,
		Registry:        c.Registry,
		ScopeRegistries: c.ScopeRegistries,
	}
	if opts.Dir == "" {
		opts.Dir = store.DefaultRoot
	}
	if c.MaxAgeMS > 0 {
		opts.MaxAge = time.Duration(c.MaxAgeMS) * time.Millisecond
	} else {
		opts.MaxAge = state.DefaultMaxAge
	}
	return opts
}
