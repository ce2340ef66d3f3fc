package commands

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eachlabs/steer/internal/config"
	"github.com/eachlabs/steer/internal/logging"
)

var (
	cfgFile  string
	verbose  bool
	jsonOut  bool
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "steer",
	Short: "steer - let a bot drive your UI",
	Long: `steer connects a terminal UI to a bot over a websocket. The bot answers
with typed actions that change colors, open pages, update your email and
add tasks.

  steer chat               Talk to the bot
  steer serve              Run the demo bot server
  steer validate <file>    Check a bot frame against the protocol
  steer sessions           Manage saved sessions
  steer config             Manage configuration`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.steer/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "output as JSON")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

func Execute(ver string) error {
	version = ver
	return rootCmd.Execute()
}

var version string

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "steer %s\n", version)
	},
}

func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.ConfigPath()
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadFile(configPath())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// newLogger builds the process logger. extra outputs are appended to the
// configured ones, e.g. stderr for the server.
func newLogger(cfg *config.Config, extra ...string) (*zap.Logger, error) {
	lc := cfg.Logging
	lc.Outputs = slices.Clone(lc.Outputs)
	for _, out := range extra {
		if !slices.Contains(lc.Outputs, out) {
			lc.Outputs = append(lc.Outputs, out)
		}
	}
	if logLevel != "" {
		lc.Level = logLevel
	}
	if verbose {
		lc.Level = "debug"
	}

	logger, err := logging.Setup(lc)
	if err != nil {
		return nil, fmt.Errorf("failed to set up logging: %w", err)
	}
	return logger, nil
}
