package main

import (
	"log/slog"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/docship/cmd/docship/commands"
	ferrors "git.home.luguber.info/inful/docship/internal/foundation/errors"
	"git.home.luguber.info/inful/docship/internal/version"
)

func main() {
	var cli commands.CLI
	ctx := kong.Parse(&cli,
		kong.Name("docship"),
		kong.Description("Builds rustdoc for configured projects and publishes it to their pages repositories."),
		kong.UsageOnError(),
		kong.Vars{"version": "docship " + version.String()},
	)

	if err := ctx.Run(&commands.Global{Logger: slog.Default()}, &cli); err != nil {
		ferrors.NewCLIErrorAdapter(cli.Verbose(), slog.Default()).HandleError(err)
	}
}
