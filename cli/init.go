package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kong"

	"github.com/picsou-app/picsou/session"
)

type InitCmd struct {
	Path     string `arg:"" help:"Database file to create." type:"path"`
	Name     string `help:"Database name (defaults to the file name)."`
	User     string `help:"Name of the first user."`
	Password string `help:"Password for the first user."`
	Force    bool   `help:"Overwrite an existing file."`
}

func (cmd *InitCmd) Run(ctx *kong.Context, globals *Globals) error {
	runCtx, report := globals.runContext("init")
	defer report(ctx.Stderr)

	if _, err := os.Stat(cmd.Path); err == nil && !cmd.Force {
		confirm, err := promptYesNo(fmt.Sprintf("Overwrite %s?", cmd.Path))
		if err != nil {
			return err
		}
		if !confirm {
			printError(ctx.Stderr, fmt.Sprintf("%s already exists", cmd.Path))
			return NewCommandError(1)
		}
	}

	name := cmd.Name
	if name == "" {
		fallback := strings.TrimSuffix(filepath.Base(cmd.Path), filepath.Ext(cmd.Path))
		var err error
		if name, err = promptLine("Database name", fallback); err != nil {
			return err
		}
		if name == "" {
			name = fallback
		}
	}

	userName := cmd.User
	if userName == "" {
		var err error
		if userName, err = promptLine("First user", ""); err != nil {
			return err
		}
	}

	s := session.Create(name, "", session.WithLogger(globals.logger()))
	defer s.Close()

	if userName != "" {
		if _, err := s.Database().AddUser(userName, cmd.Password); err != nil {
			return err
		}
	}

	if err := s.SaveAs(runCtx, cmd.Path); err != nil {
		return err
	}

	printSuccess(ctx.Stdout, fmt.Sprintf("Created %s", nameStyle.Render(cmd.Path)))
	if userName != "" {
		printInfof(ctx.Stdout, "user %s added", nameStyle.Render(userName))
	}
	return nil
}
