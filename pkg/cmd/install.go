package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/plugkit/plugkit/pkg/config"
	"github.com/plugkit/plugkit/pkg/plugin"
	"github.com/plugkit/plugkit/pkg/spec"
)

func newInstallCmd() *cobra.Command {
	var (
		specFile string
		maxAgeMS int64
		lenient  bool
		failFast bool
		registry string
	)

	cmd := &cobra.Command{
		Use:   "install",
		Short: "Install the desired plugin set",
		Long: "Resolves the desired plugin set from --file, the PLUGKIT_PLUGINS " +
			"environment variable or plugkit.toml, and reconciles the install " +
			"directory against it.",
		RunE: func(cmd *cobra.Command, args []string) error {
			desired, err := resolveSpec(specFile)
			if err != nil {
				return err
			}
			if len(desired) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Nothing to install")
				return nil
			}

			flags := config.FlagOverrides{}
			if flagDir != "" {
				flags.Dir = &flagDir
			}
			if cmd.Flags().Changed("max-age-ms") {
				flags.MaxAgeMS = &maxAgeMS
			}
			if cmd.Flags().Changed("lenient") {
				flags.Lenient = &lenient
			}
			if cmd.Flags().Changed("fail-fast") {
				flags.FailFast = &failFast
			}
			if cmd.Flags().Changed("registry") {
				flags.Registry = &registry
			}

			wd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("getting working directory: %w", err)
			}
			runtime, err := config.LoadRuntimeConfig(wd, flags)
			if err != nil {
				return err
			}
			opts := runtime.Options()
			opts.Logger = logger

			handles, err := plugin.Load(cmd.Context(), desired, opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Installed %d plugin(s)\n", len(handles))
			return nil
		},
	}

	cmd.Flags().StringVarP(&specFile, "file", "f", "", "desired plugin set file (.json, .yaml or .toml)")
	cmd.Flags().Int64Var(&maxAgeMS, "max-age-ms", 0, "freshness window in milliseconds")
	cmd.Flags().BoolVar(&lenient, "lenient", false, "accept semver ranges instead of exact versions")
	cmd.Flags().BoolVar(&failFast, "fail-fast", false, "surface install failures as errors")
	cmd.Flags().StringVar(&registry, "registry", "", "npm registry URL")

	return cmd
}

// resolveSpec picks the desired plugin set: an explicit file wins, then the
// PLUGKIT_PLUGINS environment variable, then the plugkit.toml in the working
// directory.
func resolveSpec(specFile string) (spec.PluginSpec, error) {
	if specFile != "" {
		return config.LoadSpecFile(specFile)
	}

	if desired, err := config.SpecFromEnv(); err != nil {
		return nil, err
	} else if desired != nil {
		return desired, nil
	}

	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting working directory: %w", err)
	}
	path := filepath.Join(wd, config.ManifestFileName)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}
	return config.LoadSpecFile(path)
}
