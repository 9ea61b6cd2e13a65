package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kong"

	"github.com/picsou-app/picsou/exchange"
)

type ImportCmd struct {
	Path          string `arg:"" help:"File to import (use '-' for stdin)."`
	User          string `help:"User owning the target account."`
	Account       string `help:"Target account."`
	Format        string `help:"File format: csv, xml or json (defaults to the file extension)."`
	RejectUnknown bool   `help:"Fail on unknown payment method or budget names instead of creating them."`
	DryRun        bool   `help:"Parse and validate without committing anything."`
}

func (cmd *ImportCmd) Run(ctx *kong.Context, globals *Globals) error {
	runCtx, report := globals.runContext("import")
	defer report(ctx.Stderr)

	format, err := resolveFormat(cmd.Format, cmd.Path)
	if err != nil {
		return err
	}

	var in io.Reader = os.Stdin
	if cmd.Path != "-" {
		f, err := os.Open(cmd.Path)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	s, err := globals.openSession(runCtx)
	if err != nil {
		return err
	}
	defer s.Close()

	db := s.Database()
	user, err := findUser(db, cmd.User)
	if err != nil {
		return err
	}
	acc, err := findAccount(user, cmd.Account)
	if err != nil {
		return err
	}

	result, err := s.Import(runCtx, acc.ID, format, in, exchange.Options{
		RejectUnknown: cmd.RejectUnknown,
		Currency:      configuredCurrency(),
	})
	if err != nil {
		printError(ctx.Stderr, err.Error())
		return NewCommandError(1)
	}

	if cmd.DryRun {
		// The session is discarded without saving, so nothing sticks.
		printInfof(ctx.Stdout, "%d operation(s) would be imported, %d duplicate(s) skipped", result.Imported, result.Skipped)
		return nil
	}

	if err := s.Save(runCtx); err != nil {
		return err
	}
	printSuccess(ctx.Stdout, fmt.Sprintf("%d operation(s) imported into %s, %d duplicate(s) skipped",
		result.Imported, nameStyle.Render(acc.Name), result.Skipped))
	return nil
}
