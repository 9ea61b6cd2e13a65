package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/mattn/go-runewidth"

	"github.com/picsou-app/picsou/ledger"
	"github.com/picsou-app/picsou/money"
	"github.com/picsou-app/picsou/query"
)

type SearchCmd struct {
	User        string `help:"Limit to one user's operations."`
	Account     string `help:"Limit to one account."`
	Budget      string `help:"Limit to one budget."`
	From        string `help:"Earliest date (YYYY-MM-DD), inclusive."`
	To          string `help:"Latest date (YYYY-MM-DD), inclusive."`
	Min         string `help:"Smallest amount, inclusive."`
	Max         string `help:"Largest amount, inclusive."`
	Recipient   string `help:"Recipient pattern (regular expression)."`
	Description string `help:"Description pattern (regular expression)."`
}

func (cmd *SearchCmd) Run(ctx *kong.Context, globals *Globals) error {
	runCtx, report := globals.runContext("search")
	defer report(ctx.Stderr)

	s, err := globals.openSession(runCtx)
	if err != nil {
		return err
	}
	defer s.Close()

	db := s.Database()
	filter, err := cmd.filter(db)
	if err != nil {
		return err
	}

	ops, err := s.Search(runCtx, filter)
	if err != nil {
		return err
	}
	if len(ops) == 0 {
		printInfof(ctx.Stdout, "no operations matched")
		return nil
	}

	renderOperations(ctx.Stdout, db, ops)
	printInfof(ctx.Stdout, "%d operation(s)", len(ops))
	return nil
}

func (cmd *SearchCmd) filter(db *ledger.Database) (query.Filter, error) {
	var filter query.Filter
	var user *ledger.User

	if cmd.User != "" || cmd.Account != "" || cmd.Budget != "" {
		var err error
		if user, err = findUser(db, cmd.User); err != nil {
			return filter, err
		}
		filter.User = user.ID
	}
	if cmd.Account != "" {
		acc, err := findAccount(user, cmd.Account)
		if err != nil {
			return filter, err
		}
		filter.Account = acc.ID
	}
	if cmd.Budget != "" {
		found := false
		for _, budget := range user.SortedBudgets() {
			if budget.Name == cmd.Budget {
				filter.Budget = budget.ID
				found = true
				break
			}
		}
		if !found {
			return filter, fmt.Errorf("unknown budget %q for user %q", cmd.Budget, user.Name)
		}
	}

	if cmd.From != "" {
		from, err := ledger.ParseDate(cmd.From)
		if err != nil {
			return filter, err
		}
		filter.From = from
	}
	if cmd.To != "" {
		to, err := ledger.ParseDate(cmd.To)
		if err != nil {
			return filter, err
		}
		filter.To = to
	}
	if cmd.Min != "" {
		min, err := money.Parse(cmd.Min, configuredCurrency())
		if err != nil {
			return filter, err
		}
		filter.MinAmount = &min
	}
	if cmd.Max != "" {
		max, err := money.Parse(cmd.Max, configuredCurrency())
		if err != nil {
			return filter, err
		}
		filter.MaxAmount = &max
	}

	filter.Recipient = cmd.Recipient
	filter.Description = cmd.Description
	return filter, nil
}

// renderOperations prints a column-aligned table of operations. Widths are
// measured with runewidth so wide characters keep the columns straight.
func renderOperations(w io.Writer, db *ledger.Database, ops []*ledger.Operation) {
	rows := make([][]string, 0, len(ops))
	for _, op := range ops {
		method := ""
		if pm, ok := db.PaymentMethod(op.PaymentMethod); ok {
			method = pm.Name
		}
		budget := ""
		if b, ok := db.Budget(op.Budget); ok {
			budget = b.Name
		}
		rows = append(rows, []string{
			op.Date.String(),
			op.Amount.String(),
			op.Description,
			op.Recipient,
			method,
			budget,
		})
	}

	widths := make([]int, len(rows[0]))
	for _, row := range rows {
		for i, cell := range row {
			if w := runewidth.StringWidth(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}

	for rowIdx, row := range rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			padded := cell + strings.Repeat(" ", widths[i]-runewidth.StringWidth(cell))
			if i == 1 {
				style := creditStyle
				if ops[rowIdx].Amount.IsNegative() {
					style = debitStyle
				}
				padded = style.Render(padded)
			}
			cells[i] = padded
		}
		_, _ = fmt.Fprintln(w, strings.TrimRight(strings.Join(cells, "  "), " "))
	}
}
