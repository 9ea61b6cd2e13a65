package cli

import (
	"fmt"
	"time"

	"github.com/alecthomas/kong"

	"github.com/picsou-app/picsou/ledger"
)

type MaterializeCmd struct {
	Through string `help:"Materialize occurrences up to this date (defaults to today)."`
	DryRun  bool   `help:"Report what would be inserted without committing."`
}

func (cmd *MaterializeCmd) Run(ctx *kong.Context, globals *Globals) error {
	runCtx, report := globals.runContext("materialize")
	defer report(ctx.Stderr)

	through := ledger.DateOf(time.Now())
	if cmd.Through != "" {
		var err error
		if through, err = ledger.ParseDate(cmd.Through); err != nil {
			return err
		}
	}

	s, err := globals.openSession(runCtx)
	if err != nil {
		return err
	}
	defer s.Close()

	created, err := s.MaterializeDue(runCtx, through)
	if err != nil {
		return err
	}
	if created == 0 {
		printInfof(ctx.Stdout, "nothing due through %s", through)
		return nil
	}

	if cmd.DryRun {
		printInfof(ctx.Stdout, "%d operation(s) would be inserted through %s", created, through)
		return nil
	}

	if err := s.Save(runCtx); err != nil {
		return err
	}
	printSuccess(ctx.Stdout, fmt.Sprintf("%d operation(s) inserted through %s", created, through))
	return nil
}
