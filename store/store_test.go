package store

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/alecthomas/assert/v2"

	"github.com/picsou-app/picsou/ledger"
	"github.com/picsou-app/picsou/money"
)

func populated(t *testing.T) *ledger.Database {
	t.Helper()

	db := ledger.New("household", "shared family ledger")
	user, err := db.AddUser("alice", "hunter2")
	assert.NoError(t, err)

	food, err := db.AddBudget(user.ID, "Food", "groceries and eating out", money.MustParse("300.00", "EUR"))
	assert.NoError(t, err)

	acc, err := db.AddAccount(user.ID, "Checking", "daily spending", money.MustParse("1250.00", "EUR"))
	assert.NoError(t, err)
	visa, err := db.AddPaymentMethod(acc.ID, "Visa")
	assert.NoError(t, err)

	_, err = db.AddOperation(acc.ID, ledger.OperationDraft{
		Date:          ledger.NewDate(2024, 3, 15),
		Amount:        money.MustParse("-42.50", "EUR"),
		Description:   "Groceries",
		Recipient:     "Corner Store",
		PaymentMethod: visa.ID,
		Budget:        food.ID,
	})
	assert.NoError(t, err)

	_, err = db.AddScheduledOperation(acc.ID, ledger.ScheduledDraft{
		Name:          "Rent",
		Amount:        money.MustParse("-800.00", "EUR"),
		Recipient:     "Landlord",
		PaymentMethod: visa.ID,
		Budget:        food.ID,
		Schedule: ledger.Schedule{
			Frequency: ledger.Monthly,
			Every:     1,
			Anchor:    ledger.NewDate(2024, 1, 31),
		},
	})
	assert.NoError(t, err)

	return db
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := populated(t)

	data, err := Save(ctx, db)
	assert.NoError(t, err)

	loaded, err := Load(ctx, data)
	assert.NoError(t, err)

	assert.Equal(t, "household", loaded.Name())
	assert.Equal(t, "shared family ledger", loaded.Description())

	users := loaded.Users()
	assert.Equal(t, 1, len(users))
	user := users[0]
	assert.Equal(t, "alice", user.Name)
	assert.True(t, user.Credential.Verify("hunter2"))
	assert.False(t, user.Credential.Verify("wrong"))

	// Default budget plus Food.
	assert.Equal(t, 2, len(user.Budgets))
	def, ok := loaded.DefaultBudget(user.ID)
	assert.True(t, ok)
	assert.Equal(t, ledger.DefaultBudgetName, def.Name)

	accounts := user.SortedAccounts()
	assert.Equal(t, 1, len(accounts))
	acc := accounts[0]
	assert.Equal(t, "Checking", acc.Name)
	assert.Equal(t, money.MustParse("1250.00", "EUR"), acc.InitialAmount)
	assert.Equal(t, 1, len(acc.Operations))

	op := acc.Operations[0]
	assert.Equal(t, "Groceries", op.Description)
	assert.Equal(t, money.MustParse("-42.50", "EUR"), op.Amount)
	pm, ok := loaded.PaymentMethod(op.PaymentMethod)
	assert.True(t, ok)
	assert.Equal(t, "Visa", pm.Name)

	scheduled := acc.SortedScheduled()
	assert.Equal(t, 1, len(scheduled))
	assert.Equal(t, "Rent", scheduled[0].Name)
	assert.Equal(t, ledger.Monthly, scheduled[0].Schedule.Frequency)
	assert.Equal(t, ledger.NewDate(2024, 1, 31), scheduled[0].Schedule.Anchor)
}

func TestSaveIsDeterministic(t *testing.T) {
	ctx := context.Background()
	db := populated(t)

	first, err := Save(ctx, db)
	assert.NoError(t, err)
	second, err := Save(ctx, db)
	assert.NoError(t, err)
	assert.True(t, bytes.Equal(first, second), "repeated saves differ")
}

func TestLoadRejectsFutureVersion(t *testing.T) {
	ctx := context.Background()
	data, err := Save(ctx, populated(t))
	assert.NoError(t, err)

	var doc map[string]json.RawMessage
	assert.NoError(t, json.Unmarshal(data, &doc))
	doc["version"] = json.RawMessage(`{"major": 99, "minor": 0}`)
	data, err = json.Marshal(doc)
	assert.NoError(t, err)

	_, err = Load(ctx, data)
	cerr, ok := err.(*CorruptFileError)
	assert.True(t, ok, "expected CorruptFileError, got %T", err)
	assert.Contains(t, cerr.Error(), "unsupported format version")
}

func TestLoadRejectsGarbage(t *testing.T) {
	_, err := Load(context.Background(), []byte("not json at all"))
	_, ok := err.(*CorruptFileError)
	assert.True(t, ok, "expected CorruptFileError, got %T", err)
}

func TestLoadRejectsBrokenReference(t *testing.T) {
	ctx := context.Background()
	data, err := Save(ctx, populated(t))
	assert.NoError(t, err)

	var doc fileDatabase
	assert.NoError(t, json.Unmarshal(data, &doc))
	// Point the operation at a payment method that does not exist.
	doc.Users[0].Accounts[0].Operations[0].PaymentMethod = "00000000-0000-0000-0000-0000000000ff"
	data, err = json.Marshal(doc)
	assert.NoError(t, err)

	_, err = Load(ctx, data)
	_, ok := err.(*CorruptFileError)
	assert.True(t, ok, "expected CorruptFileError, got %T", err)
}
