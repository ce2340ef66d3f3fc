package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/eachlabs/steer/internal/backend"
)

var (
	serveListen string
	serveRules  string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the demo bot server",
	Long: `Run a websocket bot that answers with UI actions.

Each message is matched against an ordered list of rules. The first match
produces the reply; anything else is echoed back.

Examples:
  steer serve
  steer serve --listen localhost:9000
  steer serve --rules ./rules.yaml`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&serveListen, "listen", "l", "", "address to listen on (default: server.listen)")
	serveCmd.Flags().StringVar(&serveRules, "rules", "", "YAML rules file (default: built-in rules)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveListen != "" {
		cfg.Server.Listen = serveListen
	}
	if serveRules != "" {
		cfg.Server.RulesFile = serveRules
	}

	logger, err := newLogger(cfg, "stderr")
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	rules := backend.DefaultRules()
	if cfg.Server.RulesFile != "" {
		rules, err = backend.LoadRules(cfg.Server.RulesFile)
		if err != nil {
			return err
		}
	}
	router, err := backend.NewRouter(rules)
	if err != nil {
		return fmt.Errorf("invalid rules: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := backend.NewServer(router, logger.Named("backend"))
	fmt.Fprintf(cmd.OutOrStdout(), "Listening on ws://%s/ws (Ctrl+C to stop)\n", cfg.Server.Listen)

	return srv.ListenAndServe(ctx, cfg.Server.Listen)
}
