package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/plugkit/plugkit/pkg/state"
	"github.com/plugkit/plugkit/pkg/store"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List installed plugins",
		Long:  "Prints the plugins recorded in the install directory's state file.",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := flagDir
			if dir == "" {
				dir = store.DefaultRoot
			}

			installed, _ := state.Read(dir)
			names := installed.Names()
			if len(names) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No plugins installed")
				return nil
			}

			for _, name := range names {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", name, installed.PluginsMap[name])
			}
			return nil
		},
	}
}
