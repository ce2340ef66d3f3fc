package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eachlabs/steer/internal/channel"
	"github.com/eachlabs/steer/internal/config"
	"github.com/eachlabs/steer/internal/protocol"
	"github.com/eachlabs/steer/internal/session"
	"github.com/eachlabs/steer/internal/tui"
)

var (
	chatSimple    bool
	chatEndpoint  string
	chatLocation  string
	chatOutbound  string
	chatResume    string
	chatNoPersist bool
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start interactive chat",
	Long: `Connect to the bot and start an interactive session. The bot's replies
change what the UI shows.

Examples:
  steer chat
  steer chat --endpoint ws://localhost:8000/ws
  steer chat --outbound text      # send bare text instead of JSON
  steer chat --resume 20250101-120000-ab12
  steer chat --simple             # line mode, no full-screen UI`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().BoolVar(&chatSimple, "simple", false, "use simple line mode (no TUI)")
	chatCmd.Flags().StringVarP(&chatEndpoint, "endpoint", "e", "", "bot websocket endpoint")
	chatCmd.Flags().StringVar(&chatLocation, "location", "", "location sent with each message (default: current page)")
	chatCmd.Flags().StringVar(&chatOutbound, "outbound", "", "outbound format: structured or text")
	chatCmd.Flags().StringVarP(&chatResume, "resume", "r", "", "resume a saved session by ID")
	chatCmd.Flags().BoolVar(&chatNoPersist, "no-persist", false, "do not save this session")
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := config.EnsureDirs(); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}

	if chatEndpoint != "" {
		cfg.Bot.Endpoint = chatEndpoint
	}
	if chatLocation != "" {
		cfg.Bot.Location = chatLocation
	}
	if chatOutbound != "" {
		cfg.Bot.Outbound = chatOutbound
	}
	mode, err := protocol.ParseOutboundMode(cfg.Bot.Outbound)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	var sessions *session.Manager
	if (cfg.Sessions.Persist && !chatNoPersist) || chatResume != "" {
		sessions = session.NewManager(config.SessionsDir())
		if chatResume != "" {
			rec, err := sessions.Load(chatResume)
			if err != nil {
				return err
			}
			if chatEndpoint == "" && rec.Endpoint != "" {
				cfg.Bot.Endpoint = rec.Endpoint
			}
		}
	}

	ws := channel.NewWebSocket(channel.WithLogger(logger.Named("channel")))
	scope := session.New(ws, session.Options{
		Endpoint: cfg.Bot.Endpoint,
		Location: cfg.Bot.Location,
		Mode:     mode,
		Palette:  cfg.Bot.Palette,
		Routes:   cfg.Bot.Routes,
		Sessions: sessions,
		Logger:   logger.Named("scope"),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	err = scope.Mount(dialCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", cfg.Bot.Endpoint, err)
	}
	defer func() {
		if err := scope.Unmount(); err != nil {
			logger.Warn("unmount failed", zap.Error(err))
		}
		if sessions != nil {
			fmt.Printf("Session saved: %s\n", scope.ID())
		}
	}()

	opts := tui.Options{
		Title:    "steer",
		Endpoint: cfg.Bot.Endpoint,
		Routes:   cfg.Bot.Routes,
	}

	if chatSimple {
		return tui.NewLine(scope, opts, os.Stdin, os.Stdout).Run(ctx)
	}
	return tui.RunChat(scope, opts)
}
