package cli

import (
	"github.com/spf13/cobra"

	"github.com/wirasena/kommobridge/internal/config"
	"github.com/wirasena/kommobridge/internal/logging"
)

var (
	cfgFile  string
	logLevel string
	jsonLogs bool

	// loaded at init time
	paths config.Paths
	log   *logging.Logger
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kommobridge",
		Short: "kommobridge — Firebase-to-Kommo conversation bridge",
		Long: "kommobridge listens to a Firebase realtime database, tracks conversation\n" +
			"sessions, and drives Kommo CRM salesbots in response to incoming leads\n" +
			"and chat messages.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			paths, err = config.ResolvePaths()
			if err != nil {
				return err
			}
			if cfgFile != "" {
				paths.Config = cfgFile
			}
			level := logLevel
			if level == "" {
				level = "info"
			}
			log = logging.New(nil, level, jsonLogs)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.kommobridge/config.yaml)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (trace, debug, info, warn, error, fatal, silent)")
	cmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "emit raw JSON log lines instead of pretty console output")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newSessionsCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}
