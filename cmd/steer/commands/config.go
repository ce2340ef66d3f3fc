package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/eachlabs/steer/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `Manage steer configuration.

Subcommands:
  get [key]              Show configuration value(s)
  set <key> <value>      Set a configuration value
  edit                   Open config in $EDITOR
  init                   Write the default config file
  path                   Show config file path`,
}

func init() {
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configEditCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
}

var configGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Show configuration",
	Long: `Show configuration values.

Examples:
  steer config get                   # Show all config
  steer config get bot.endpoint
  steer config get bot.palette.green`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		if len(args) == 0 {
			if jsonOut {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(cfg)
			}
			return toml.NewEncoder(out).Encode(cfg)
		}

		key := args[0]
		value := getConfigValue(cfg, key)
		if value == nil {
			return fmt.Errorf("key not found: %s", key)
		}

		if jsonOut {
			return json.NewEncoder(out).Encode(value)
		}

		fmt.Fprintf(out, "%v\n", value)
		return nil
	},
}

func getConfigValue(cfg *config.Config, key string) any {
	parts := strings.Split(key, ".")

	switch parts[0] {
	case "bot":
		if len(parts) == 1 {
			return cfg.Bot
		}
		switch parts[1] {
		case "endpoint":
			return cfg.Bot.Endpoint
		case "location":
			return cfg.Bot.Location
		case "outbound":
			return cfg.Bot.Outbound
		case "palette":
			return lookupKey(cfg.Bot.Palette, parts[2:])
		case "routes":
			return lookupKey(cfg.Bot.Routes, parts[2:])
		}

	case "server":
		if len(parts) == 1 {
			return cfg.Server
		}
		switch parts[1] {
		case "listen":
			return cfg.Server.Listen
		case "rules_file":
			return cfg.Server.RulesFile
		}

	case "logging":
		if len(parts) == 1 {
			return cfg.Logging
		}
		switch parts[1] {
		case "level":
			return cfg.Logging.Level
		case "format":
			return cfg.Logging.Format
		case "outputs":
			return cfg.Logging.Outputs
		case "development":
			return cfg.Logging.Development
		}

	case "sessions":
		if len(parts) == 1 {
			return cfg.Sessions
		}
		if parts[1] == "persist" {
			return cfg.Sessions.Persist
		}
	}

	return nil
}

func lookupKey(m map[string]string, rest []string) any {
	switch len(rest) {
	case 0:
		return m
	case 1:
		if v, ok := m[rest[0]]; ok {
			return v
		}
	}
	return nil
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value.

Examples:
  steer config set bot.endpoint ws://localhost:8000/ws
  steer config set bot.outbound text
  steer config set bot.palette.teal "#14B8A6"
  steer config set bot.routes.profile /profile
  steer config set sessions.persist false`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]
		value := args[1]

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		if err := setConfigValue(cfg, key, value); err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		if err := cfg.Save(configPath()); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s\n", key, value)
		return nil
	},
}

func setConfigValue(cfg *config.Config, key, value string) error {
	parts := strings.Split(key, ".")

	switch parts[0] {
	case "bot":
		if len(parts) < 2 {
			return fmt.Errorf("invalid key: %s", key)
		}
		switch parts[1] {
		case "endpoint":
			cfg.Bot.Endpoint = value
		case "location":
			cfg.Bot.Location = value
		case "outbound":
			cfg.Bot.Outbound = value
		case "palette":
			if len(parts) != 3 {
				return fmt.Errorf("invalid key: %s (use bot.palette.<color>)", key)
			}
			cfg.Bot.Palette[parts[2]] = value
		case "routes":
			if len(parts) != 3 {
				return fmt.Errorf("invalid key: %s (use bot.routes.<name>)", key)
			}
			cfg.Bot.Routes[parts[2]] = value
		default:
			return fmt.Errorf("unknown field: %s", parts[1])
		}

	case "server":
		if len(parts) != 2 {
			return fmt.Errorf("invalid key: %s", key)
		}
		switch parts[1] {
		case "listen":
			cfg.Server.Listen = value
		case "rules_file":
			cfg.Server.RulesFile = value
		default:
			return fmt.Errorf("unknown field: %s", parts[1])
		}

	case "logging":
		if len(parts) != 2 {
			return fmt.Errorf("invalid key: %s", key)
		}
		switch parts[1] {
		case "level":
			cfg.Logging.Level = value
		case "format":
			cfg.Logging.Format = value
		case "outputs":
			cfg.Logging.Outputs = strings.Split(value, ",")
		case "development":
			b, err := strconv.ParseBool(value)
			if err != nil {
				return fmt.Errorf("logging.development: %w", err)
			}
			cfg.Logging.Development = b
		default:
			return fmt.Errorf("unknown field: %s", parts[1])
		}

	case "sessions":
		if len(parts) != 2 || parts[1] != "persist" {
			return fmt.Errorf("invalid key: %s", key)
		}
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("sessions.persist: %w", err)
		}
		cfg.Sessions.Persist = b

	default:
		return fmt.Errorf("unknown section: %s", parts[0])
	}

	return nil
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open config in editor",
	RunE: func(cmd *cobra.Command, args []string) error {
		editor := os.Getenv("EDITOR")
		if editor == "" {
			editor = "vim"
		}

		path := configPath()
		if _, err := os.Stat(path); os.IsNotExist(err) {
			if err := config.Default().Save(path); err != nil {
				return err
			}
		}

		c := exec.Command(editor, path)
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr

		return c.Run()
	},
}

var configInitForce bool

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath()
		if _, err := os.Stat(path); err == nil && !configInitForce {
			return fmt.Errorf("config already exists: %s (use --force to overwrite)", path)
		}
		if err := config.Default().Save(path); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
		return nil
	},
}

func init() {
	configInitCmd.Flags().BoolVarP(&configInitForce, "force", "f", false, "overwrite an existing config")
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show config file path",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), configPath())
	},
}
