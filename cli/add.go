package cli

import (
	"fmt"
	"time"

	"github.com/alecthomas/kong"

	"github.com/picsou-app/picsou/ledger"
	"github.com/picsou-app/picsou/money"
)

type AddCmd struct {
	Amount      string `arg:"" help:"Signed amount, e.g. -42.50 for a debit."`
	User        string `help:"User owning the target account."`
	Account     string `help:"Target account."`
	Date        string `help:"Operation date (YYYY-MM-DD, defaults to today)."`
	Description string `help:"Free-form description." short:"d"`
	Recipient   string `help:"Recipient or payee." short:"r"`
	Method      string `help:"Payment method name." short:"m"`
	Budget      string `help:"Budget name (defaults to the user's catch-all budget)." short:"b"`
}

func (cmd *AddCmd) Run(ctx *kong.Context, globals *Globals) error {
	runCtx, report := globals.runContext("add")
	defer report(ctx.Stderr)

	amount, err := money.Parse(cmd.Amount, configuredCurrency())
	if err != nil {
		return err
	}

	date := ledger.DateOf(time.Now())
	if cmd.Date != "" {
		if date, err = ledger.ParseDate(cmd.Date); err != nil {
			return err
		}
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

	method := cmd.Method
	if method == "" {
		methods := acc.SortedPaymentMethods()
		if len(methods) != 1 {
			return fmt.Errorf("account %q has %d payment methods, pass --method", acc.Name, len(methods))
		}
		method = methods[0].Name
	}
	pm, ok := acc.PaymentMethodByName(method)
	if !ok {
		return fmt.Errorf("unknown payment method %q for account %q", method, acc.Name)
	}

	draft := ledger.OperationDraft{
		Date:          date,
		Amount:        amount,
		Description:   cmd.Description,
		Recipient:     cmd.Recipient,
		PaymentMethod: pm.ID,
	}
	if cmd.Budget != "" {
		found := false
		for _, budget := range user.SortedBudgets() {
			if budget.Name == cmd.Budget {
				draft.Budget = budget.ID
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("unknown budget %q for user %q", cmd.Budget, user.Name)
		}
	}

	op, err := db.AddOperation(acc.ID, draft)
	if err != nil {
		return err
	}
	s.MarkDirty()

	if err := s.Save(runCtx); err != nil {
		return err
	}
	printSuccess(ctx.Stdout, fmt.Sprintf("%s %s recorded on %s",
		op.Date, op.Amount, nameStyle.Render(acc.Name)))
	return nil
}
