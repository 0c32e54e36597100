package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/docship/internal/config"
)

// Global carries state shared by subcommands.
type Global struct {
	Logger *slog.Logger
}

// CLI is the root command definition with global flags.
type CLI struct {
	Config    string           `short:"c" help:"Configuration file path" default:"docship.yaml"`
	LogLevel  string           `name:"log-level" help:"Log level: debug, info, warn, or error (overrides the config file)"`
	LogFormat string           `name:"log-format" help:"Log output: text or json (overrides the config file)"`
	Version   kong.VersionFlag `name:"version" help:"Show version and exit"`

	Run    RunCmd     `cmd:"" help:"Build and publish documentation once for the configured projects"`
	Daemon DaemonCmd  `cmd:"" help:"Run continuously: schedules, push webhooks, and the admin API"`
	Init   InitCmd    `cmd:"" help:"Write an example configuration file"`
	Ver    VersionCmd `cmd:"" name:"version" help:"Show version information"`
}

// AfterApply runs after flag parsing; set up logging once from the flags.
// Commands that load a configuration re-apply it for settings the flags left
// open.
func (c *CLI) AfterApply() error {
	level := config.LogLevelInfo
	if c.LogLevel != "" {
		if level = config.NormalizeLogLevel(c.LogLevel); level == "" {
			return fmt.Errorf("invalid --log-level %q (expected debug, info, warn, or error)", c.LogLevel)
		}
	}
	format := config.LogFormatText
	if c.LogFormat != "" {
		if format = config.NormalizeLogFormat(c.LogFormat); format == "" {
			return fmt.Errorf("invalid --log-format %q (expected text or json)", c.LogFormat)
		}
	}
	slog.SetDefault(slog.New(newLogHandler(format, level)))
	return nil
}

// Verbose reports whether error output should include full error chains.
func (c *CLI) Verbose() bool {
	return config.NormalizeLogLevel(c.LogLevel) == config.LogLevelDebug
}

// ApplyLoggingConfig re-applies logging from a loaded configuration for the
// settings not pinned by flags. Flags always win over the config file.
func ApplyLoggingConfig(cfg *config.Config, root *CLI) {
	if cfg == nil || cfg.Monitoring == nil {
		return
	}
	level := config.NormalizeLogLevel(root.LogLevel)
	if level == "" {
		level = cfg.Monitoring.Logging.Level
	}
	if level == "" {
		level = config.LogLevelInfo
	}
	format := config.NormalizeLogFormat(root.LogFormat)
	if format == "" {
		format = cfg.Monitoring.Logging.Format
	}
	if format == "" {
		format = config.LogFormatText
	}
	slog.SetDefault(slog.New(newLogHandler(format, level)))
}

func newLogHandler(format config.LogFormat, level config.LogLevel) slog.Handler {
	opts := &slog.HandlerOptions{Level: slogLevel(level)}
	if format == config.LogFormatJSON {
		return slog.NewJSONHandler(os.Stderr, opts)
	}
	return slog.NewTextHandler(os.Stderr, opts)
}

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogLevelDebug:
		return slog.LevelDebug
	case config.LogLevelWarn:
		return slog.LevelWarn
	case config.LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
