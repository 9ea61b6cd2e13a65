package cli

import (
	"fmt"

	"github.com/alecthomas/kong"
)

type ShowCmd struct{}

func (cmd *ShowCmd) Run(ctx *kong.Context, globals *Globals) error {
	runCtx, report := globals.runContext("show")
	defer report(ctx.Stderr)

	s, err := globals.openSession(runCtx)
	if err != nil {
		return err
	}
	defer s.Close()

	db := s.Database()
	printInfof(ctx.Stdout, "%s %s", nameStyle.Render(db.Name()), dimStyle.Render(db.Description()))

	for _, user := range db.Users() {
		_, _ = fmt.Fprintf(ctx.Stdout, "\n%s\n", nameStyle.Render(user.Name))

		for _, acc := range user.SortedAccounts() {
			label := acc.Name
			if acc.Archived {
				label += dimStyle.Render(" (archived)")
			}
			balance := acc.Balance()
			style := creditStyle
			if balance.IsNegative() {
				style = debitStyle
			}
			_, _ = fmt.Fprintf(ctx.Stdout, "  %s  %s  %s\n",
				label,
				style.Render(balance.String()),
				dimStyle.Render(fmt.Sprintf("%d operations", len(acc.Operations))),
			)
		}

		for _, budget := range user.SortedBudgets() {
			target := ""
			if !budget.Target.IsZero() {
				target = budget.Target.String()
			}
			_, _ = fmt.Fprintf(ctx.Stdout, "  %s %s %s\n",
				dimStyle.Render("budget"),
				budget.Name,
				dimStyle.Render(target),
			)
		}
	}

	return nil
}
