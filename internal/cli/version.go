package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kbukum/pipecat/version"
)

// NewVersionCommand creates the version command.
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the pipecat version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), "pipecat "+version.GetFullVersion())
			return err
		},
	}
}
