// Package cmd wires cobra commands for the plugkit CLI.
package cmd

import (
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var (
	flagDir     string
	flagVerbose bool

	// logger is shared by all subcommands; PersistentPreRun adjusts its level.
	logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "plugkit"})
)

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "plugkit",
		Short: "Plugin resolver and installer",
		Long:  "plugkit resolves, installs and inspects npm plugin sets for invocation-time loading.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flagVerbose {
				logger.SetLevel(log.DebugLevel)
			}
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagDir, "dir", "", "plugin install directory (default /tmp/plugkit)")
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newInitCmd())
	root.AddCommand(newInstallCmd())
	root.AddCommand(newValidateCmd())
	root.AddCommand(newListCmd())
	root.AddCommand(newUploadCmd())

	return root
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
