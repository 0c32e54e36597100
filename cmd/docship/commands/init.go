package commands

import (
	"fmt"

	"git.home.luguber.info/inful/docship/internal/config"
)

// InitCmd implements the 'init' command.
type InitCmd struct {
	Force bool `help:"Overwrite an existing configuration file"`
}

func (i *InitCmd) Run(_ *Global, root *CLI) error {
	if err := config.Init(root.Config, i.Force); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", root.Config)
	fmt.Println("Review the projects, tokens, and webhook secret before starting a build.")
	return nil
}
