package cli

import (
	"github.com/spf13/cobra"

	"github.com/kbukum/pipecat/bootstrap"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigFile string
	EnvFile    string
	Verbose    bool
}

// NewRootCommand creates the pipecat command tree. appOpts are passed to
// every pipeline run.
func NewRootCommand(appOpts ...bootstrap.Option) *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "pipecat",
		Short: "Stream records from devices and services",
		Long: `pipecat reads records from serial devices, UDP sockets, HTTP endpoints
and files, transforms them, bounds the stream by count, duration, idle
timeout or a field value, and writes them to the console, CSV, gob
archives or websocket clients.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigFile, "config", "c", "", "config file (default: search ./pipecat.yml, ./config/pipecat.yml)")
	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", "", ".env file (default: search ./.env.pipecat, ./.env)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log at debug level")

	cmd.AddCommand(NewRunCommand(opts, appOpts...))
	cmd.AddCommand(NewVersionCommand())

	return cmd
}
