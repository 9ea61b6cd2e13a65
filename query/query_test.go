package query

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alecthomas/assert/v2"

	"github.com/picsou-app/picsou/ledger"
	"github.com/picsou-app/picsou/money"
)

func fixture(t *testing.T) (*ledger.Database, *ledger.User, *ledger.Account, *ledger.PaymentMethod) {
	t.Helper()

	db := ledger.New("test", "")
	user, err := db.AddUser("alice", "")
	assert.NoError(t, err)
	acc, err := db.AddAccount(user.ID, "checking", "", money.Amount{})
	assert.NoError(t, err)
	pm, err := db.AddPaymentMethod(acc.ID, "Visa")
	assert.NoError(t, err)
	return db, user, acc, pm
}

func addOp(t *testing.T, db *ledger.Database, acc *ledger.Account, pm *ledger.PaymentMethod, date ledger.Date, amount, recipient, description string) *ledger.Operation {
	t.Helper()
	op, err := db.AddOperation(acc.ID, ledger.OperationDraft{
		Date:          date,
		Amount:        money.MustParse(amount, ""),
		Recipient:     recipient,
		Description:   description,
		PaymentMethod: pm.ID,
	})
	assert.NoError(t, err)
	return op
}

func TestCompileInvalidPattern(t *testing.T) {
	tests := []struct {
		name   string
		filter Filter
	}{
		{name: "bad recipient", filter: Filter{Recipient: "("}},
		{name: "bad description", filter: Filter{Description: "[z-a]"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(tt.filter)
			assert.Error(t, err)
			_, ok := err.(*InvalidPatternError)
			assert.True(t, ok, "expected InvalidPatternError, got %T", err)
		})
	}
}

func TestEmptyFilterReturnsAllInOrder(t *testing.T) {
	db, _, acc, pm := fixture(t)

	// Inserted out of date order; two share a date to exercise the
	// insertion-order tie break.
	first := addOp(t, db, acc, pm, ledger.NewDate(2024, time.March, 10), "-1.00", "a", "")
	second := addOp(t, db, acc, pm, ledger.NewDate(2024, time.January, 5), "-2.00", "b", "")
	third := addOp(t, db, acc, pm, ledger.NewDate(2024, time.March, 10), "-3.00", "c", "")

	q, err := Compile(Filter{})
	assert.NoError(t, err)
	ops, err := q.Evaluate(context.Background(), db).Collect()
	assert.NoError(t, err)

	assert.Equal(t, 3, len(ops))
	assert.Equal(t, second.ID, ops[0].ID)
	assert.Equal(t, first.ID, ops[1].ID)
	assert.Equal(t, third.ID, ops[2].ID)
}

func TestWildcardPatternMatchesEverything(t *testing.T) {
	db, _, acc, pm := fixture(t)
	addOp(t, db, acc, pm, ledger.NewDate(2024, time.March, 1), "-1.00", "store", "milk")

	q, err := Compile(Filter{Recipient: `\w*`, Description: `\w*`})
	assert.NoError(t, err)
	ops, err := q.Evaluate(context.Background(), db).Collect()
	assert.NoError(t, err)
	assert.Equal(t, 1, len(ops))
}

func TestConjunction(t *testing.T) {
	db, user, acc, pm := fixture(t)
	cash, err := db.AddPaymentMethod(acc.ID, "Cash")
	assert.NoError(t, err)
	food, err := db.AddBudget(user.ID, "Food", "", money.Amount{})
	assert.NoError(t, err)

	match, err := db.AddOperation(acc.ID, ledger.OperationDraft{
		Date:          ledger.NewDate(2024, time.February, 14),
		Amount:        money.MustParse("-42.50", ""),
		Recipient:     "Corner Store",
		Description:   "Groceries",
		PaymentMethod: pm.ID,
		Budget:        food.ID,
	})
	assert.NoError(t, err)

	addOp(t, db, acc, pm, ledger.NewDate(2024, time.February, 14), "-200.00", "Corner Store", "too big")
	addOp(t, db, acc, pm, ledger.NewDate(2023, time.February, 14), "-42.50", "Corner Store", "too early")
	addOp(t, db, acc, cash, ledger.NewDate(2024, time.February, 14), "-42.50", "Other Shop", "wrong recipient")

	min := money.MustParse("-100.00", "")
	max := money.MustParse("0.00", "")
	q, err := Compile(Filter{
		From:          ledger.NewDate(2024, time.January, 1),
		To:            ledger.NewDate(2024, time.December, 31),
		MinAmount:     &min,
		MaxAmount:     &max,
		Recipient:     "^Corner.*",
		Budget:        food.ID,
		PaymentMethod: pm.ID,
	})
	assert.NoError(t, err)

	ops, err := q.Evaluate(context.Background(), db).Collect()
	assert.NoError(t, err)
	assert.Equal(t, 1, len(ops))
	assert.Equal(t, match.ID, ops[0].ID)
}

func TestScopeByUserAndAccount(t *testing.T) {
	db, user, acc, pm := fixture(t)
	other, err := db.AddUser("bob", "")
	assert.NoError(t, err)
	otherAcc, err := db.AddAccount(other.ID, "savings", "", money.Amount{})
	assert.NoError(t, err)
	otherPM, err := db.AddPaymentMethod(otherAcc.ID, "Transfer")
	assert.NoError(t, err)

	addOp(t, db, acc, pm, ledger.NewDate(2024, time.March, 1), "-1.00", "x", "")
	addOp(t, db, otherAcc, otherPM, ledger.NewDate(2024, time.March, 2), "-2.00", "y", "")

	q, err := Compile(Filter{User: user.ID})
	assert.NoError(t, err)
	ops, err := q.Evaluate(context.Background(), db).Collect()
	assert.NoError(t, err)
	assert.Equal(t, 1, len(ops))
	assert.Equal(t, "x", ops[0].Recipient)

	q, err = Compile(Filter{Account: otherAcc.ID})
	assert.NoError(t, err)
	ops, err = q.Evaluate(context.Background(), db).Collect()
	assert.NoError(t, err)
	assert.Equal(t, 1, len(ops))
	assert.Equal(t, "y", ops[0].Recipient)
}

func TestLargeScanAbortable(t *testing.T) {
	db, _, acc, pm := fixture(t)

	base := ledger.NewDate(2020, time.January, 1)
	for i := 0; i < 10000; i++ {
		recipient := "Corner Store"
		if i%2 == 1 {
			recipient = "Somewhere Else"
		}
		addOp(t, db, acc, pm, base.AddDays(i%1000), "-5.00", recipient, fmt.Sprintf("op %d", i))
	}

	min := money.MustParse("-100.00", "")
	max := money.MustParse("0.00", "")
	q, err := Compile(Filter{Recipient: "^Corner.*", MinAmount: &min, MaxAmount: &max})
	assert.NoError(t, err)

	// Full scan: only the matching debits, still in date order.
	ops, err := q.Evaluate(context.Background(), db).Collect()
	assert.NoError(t, err)
	assert.Equal(t, 5000, len(ops))
	for i := 1; i < len(ops); i++ {
		assert.False(t, ops[i].Date.Before(ops[i-1].Date.Time))
	}

	// Aborting mid-flight yields a partial result with a non-nil Err,
	// and leaves the database untouched.
	ctx, cancel := context.WithCancel(context.Background())
	res := q.Evaluate(ctx, db)
	for i := 0; i < 100; i++ {
		_, ok := res.Next()
		assert.True(t, ok)
	}
	cancel()
	_, ok := res.Next()
	assert.False(t, ok)
	assert.Error(t, res.Err())
	assert.Equal(t, 10000, len(db.Operations(acc.ID)))
}

func TestSnapshotStableUnderEdits(t *testing.T) {
	db, _, acc, pm := fixture(t)
	addOp(t, db, acc, pm, ledger.NewDate(2024, time.March, 1), "-1.00", "a", "")
	addOp(t, db, acc, pm, ledger.NewDate(2024, time.March, 2), "-2.00", "b", "")

	q, err := Compile(Filter{})
	assert.NoError(t, err)
	res := q.Evaluate(context.Background(), db)

	// Structural edits after Evaluate must not affect the running scan.
	addOp(t, db, acc, pm, ledger.NewDate(2024, time.March, 3), "-3.00", "c", "")

	ops, err := res.Collect()
	assert.NoError(t, err)
	assert.Equal(t, 2, len(ops))
}
