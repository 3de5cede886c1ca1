package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/plugkit/plugkit/pkg/config"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize a new plugkit project",
		Long:  "Creates a plugkit.toml manifest with an empty plugin set.",
		RunE:  runInit,
	}
}

func runInit(cmd *cobra.Command, args []string) error {
	wd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting working directory: %w", err)
	}

	path := filepath.Join(wd, config.ManifestFileName)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", config.ManifestFileName)
	}

	name, registry, err := promptProject(filepath.Base(wd))
	if err != nil {
		return err
	}

	cfg := &config.Config{
		Project: config.ProjectConfig{Name: name},
		Plugins: map[string]string{},
		Install: config.InstallConfig{Registry: registry},
	}
	if err := config.SaveFile(path, cfg); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", config.ManifestFileName)

	return nil
}

// promptProject uses huh to ask for the project name and an optional
// registry override.
func promptProject(defaultName string) (name, registry string, err error) {
	name = defaultName
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Project name").
				Value(&name),
			huh.NewInput().
				Title("npm registry (leave empty for the default)").
				Value(&registry),
		),
	).Run()
	if err != nil {
		return "", "", fmt.Errorf("prompt failed: %w", err)
	}

	return name, registry, nil
}
