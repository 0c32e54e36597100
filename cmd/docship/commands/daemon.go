package commands

import (
	"context"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/docship/internal/config"
	"git.home.luguber.info/inful/docship/internal/daemon"
)

// DaemonCmd implements the 'daemon' command.
type DaemonCmd struct{}

func (dc *DaemonCmd) Run(_ *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return err
	}
	ApplyLoggingConfig(cfg, root)

	// SIGINT/SIGTERM cancel the context; the daemon drains and shuts down
	// before Run returns.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	d, err := daemon.New(cfg, root.Config)
	if err != nil {
		return err
	}
	return d.Run(ctx)
}
