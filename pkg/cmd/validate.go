package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/plugkit/plugkit/pkg/spec"
)

func newValidateCmd() *cobra.Command {
	var (
		specFile string
		lenient  bool
	)

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the desired plugin set without installing",
		Long: "Checks every entry of the desired plugin set and reports the " +
			"specifier it would hand to the installer, or the validation error.",
		RunE: func(cmd *cobra.Command, args []string) error {
			desired, err := resolveSpec(specFile)
			if err != nil {
				return err
			}
			if len(desired) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No plugins declared")
				return nil
			}

			names := make([]string, 0, len(desired))
			for name := range desired {
				names = append(names, name)
			}
			sort.Strings(names)

			failed := 0
			for i, name := range names {
				ref, err := spec.Validate(i, name, desired[name], !lenient)
				if err != nil {
					failed++
					fmt.Fprintf(cmd.OutOrStdout(), "error: %s: %v\n", name, err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "ok: %s -> %s\n", name, ref)
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d entries invalid", failed, len(names))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&specFile, "file", "f", "", "desired plugin set file (.json, .yaml or .toml)")
	cmd.Flags().BoolVar(&lenient, "lenient", false, "accept semver ranges instead of exact versions")

	return cmd
}
