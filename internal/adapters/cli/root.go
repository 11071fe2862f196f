package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
)

// NewRootCommand creates the root command for the CLI
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "control-plane",
		Short: "Delivery robot control plane",
		Long: `The control plane dispatches shipments to autonomous delivery robots,
drives their navigation command handshake, processes robot notifications
and coordinates shared-corridor tokens through the context broker.

Examples:
  control-plane serve
  control-plane config show
  control-plane messages list --robot delivery_robot_01 --limit 20`,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Path to config file (default: search ./config.yaml, ./configs, /etc/robocourier)")

	rootCmd.AddCommand(NewServeCommand())
	rootCmd.AddCommand(NewConfigCommand())
	rootCmd.AddCommand(NewMessagesCommand())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
