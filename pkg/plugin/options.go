package plugin

import (
	"os"
	"time"

	"github.com/charmbracelet/log"

	"github.com/plugkit/plugkit/pkg/fetch"
	"github.com/plugkit/plugkit/pkg/modload"
	"github.com/plugkit/plugkit/pkg/npm"
	"github.com/plugkit/plugkit/pkg/state"
	"github.com/plugkit/plugkit/pkg/store"
)

// Options configures Load. The zero value is usable: plugins install under
// the default root, exact versions are required, and install failures yield
// an empty plugin set.
type Options struct {
	// Dir is the install root; defaults to store.DefaultRoot.
	Dir string
	// MaxAge is the freshness window; defaults to state.DefaultMaxAge.
	MaxAge time.Duration
	// LenientVersions accepts range and partial version specifiers
	// instead of requiring exact pins.
	LenientVersions bool
	// FailFast surfaces install errors instead of returning no plugins.
	FailFast bool
	// FetchWidth bounds concurrent s3: object downloads; defaults to
	// fetch.DefaultWidth.
	FetchWidth int

	// Installer settings, passed through to the npm subprocess.
	Registry        string
	ScopeRegistries map[string]string
	Tokens          map[string]string
	ClientCert      string
	ClientKey       string
	CA              string
	InstallTimeout  time.Duration

	// Loaders overrides the module-system loader registry; defaults to
	// modload.DefaultRegistry.
	Loaders modload.Registry
	// Installer and Fetcher override the npm client and s3 fetcher, for
	// hosts that bring their own package manager or object store.
	Installer state.Installer
	Fetcher   fetch.Fetcher

	Logger *log.Logger
}

func (o Options) withDefaults() Options {
	if o.Dir == "" {
		o.Dir = store.DefaultRoot
	}
	if o.MaxAge <= 0 {
		o.MaxAge = state.DefaultMaxAge
	}
	if o.FetchWidth <= 0 {
		o.FetchWidth = fetch.DefaultWidth
	}
	if o.Loaders == nil {
		o.Loaders = modload.DefaultRegistry()
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "plugkit"})
	}
	if o.Installer == nil {
		o.Installer = &npm.Client{
			Timeout:         o.InstallTimeout,
			Registry:        o.Registry,
			ScopeRegistries: o.ScopeRegistries,
			Tokens:          o.Tokens,
			ClientCert:      o.ClientCert,
			ClientKey:       o.ClientKey,
			CA:              o.CA,
			Logger:          o.Logger,
		}
	}
	if o.Fetcher == nil {
		o.Fetcher = &fetch.LazyS3{}
	}
	return o
}
