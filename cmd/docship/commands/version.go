package commands

import (
	"fmt"

	"git.home.luguber.info/inful/docship/internal/version"
)

// VersionCmd implements the 'version' command.
type VersionCmd struct{}

func (v *VersionCmd) Run(_ *Global, _ *CLI) error {
	fmt.Printf("docship %s\n", version.String())
	return nil
}
