package commands

import (
	"context"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/docship/internal/cli"
	"git.home.luguber.info/inful/docship/internal/config"
)

// RunCmd implements the 'run' command: one build-and-publish pass over the
// configured projects, then exit.
type RunCmd struct {
	Project   string `short:"p" help:"Build only the named project"`
	ReportDir string `name:"report-dir" help:"Directory to copy build reports into (one subdirectory per project)" type:"path"`
}

func (r *RunCmd) Run(_ *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return err
	}
	ApplyLoggingConfig(cfg, root)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	_, err = cli.NewExecutor().ExecuteRun(ctx, cli.RunRequest{
		Config:    cfg,
		Project:   r.Project,
		ReportDir: r.ReportDir,
	})
	return err
}
