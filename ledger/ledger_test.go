package ledger

import (
	"testing"
	"time"

	"github.com/alecthomas/assert/v2"
	"github.com/google/uuid"

	"github.com/picsou-app/picsou/money"
)

// fixture builds a database with one user, one account and one payment
// method, the minimum graph needed to record operations.
func fixture(t *testing.T) (*Database, *User, *Account, *PaymentMethod) {
	t.Helper()

	db := New("test", "")
	user, err := db.AddUser("alice", "")
	assert.NoError(t, err)
	acc, err := db.AddAccount(user.ID, "checking", "", money.Amount{})
	assert.NoError(t, err)
	pm, err := db.AddPaymentMethod(acc.ID, "Visa")
	assert.NoError(t, err)
	return db, user, acc, pm
}

func draft(pm *PaymentMethod, date Date, amount, recipient string) OperationDraft {
	return OperationDraft{
		Date:          date,
		Amount:        money.MustParse(amount, ""),
		Recipient:     recipient,
		PaymentMethod: pm.ID,
	}
}

func TestAddUser(t *testing.T) {
	tests := []struct {
		name     string
		username string
		wantErr  bool
		errKind  string
	}{
		{name: "valid", username: "alice"},
		{name: "empty username", username: "", wantErr: true, errKind: "validation"},
		{name: "whitespace username", username: "  ", wantErr: true, errKind: "validation"},
		{name: "duplicate", username: "bob", wantErr: true, errKind: "duplicate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := New("test", "")
			_, err := db.AddUser("bob", "")
			assert.NoError(t, err)

			user, err := db.AddUser(tt.username, "pw")
			if tt.wantErr {
				assert.Error(t, err)
				switch tt.errKind {
				case "validation":
					_, ok := err.(*ValidationError)
					assert.True(t, ok, "expected ValidationError, got %T", err)
				case "duplicate":
					_, ok := err.(*DuplicateUserError)
					assert.True(t, ok, "expected DuplicateUserError, got %T", err)
				}
				return
			}
			assert.NoError(t, err)

			// Every user gets a default budget on creation.
			def, ok := db.DefaultBudget(user.ID)
			assert.True(t, ok)
			assert.Equal(t, DefaultBudgetName, def.Name)
			assert.True(t, user.Credential.Verify("pw"))
			assert.False(t, user.Credential.Verify("wrong"))
		})
	}
}

func TestUpdateUserCredential(t *testing.T) {
	db := New("test", "")
	user, err := db.AddUser("alice", "old")
	assert.NoError(t, err)

	err = db.UpdateUser(user.ID, "alice", "wrong", "new")
	assert.Error(t, err)
	assert.True(t, user.Credential.Verify("old"))

	err = db.UpdateUser(user.ID, "alice", "old", "new")
	assert.NoError(t, err)
	assert.True(t, user.Credential.Verify("new"))
}

func TestOperationReferentialScoping(t *testing.T) {
	db, user, acc, pm := fixture(t)

	// A payment method from another account must be rejected.
	other, err := db.AddAccount(user.ID, "savings", "", money.Amount{})
	assert.NoError(t, err)
	otherPM, err := db.AddPaymentMethod(other.ID, "Transfer")
	assert.NoError(t, err)

	_, err = db.AddOperation(acc.ID, draft(otherPM, NewDate(2024, time.March, 1), "-10.00", "x"))
	assert.Error(t, err)
	assert.Equal(t, 0, len(db.Operations(acc.ID)))

	// A valid draft with no budget lands in the default budget.
	op, err := db.AddOperation(acc.ID, draft(pm, NewDate(2024, time.March, 1), "-10.00", "x"))
	assert.NoError(t, err)
	assert.Equal(t, user.DefaultBudget, op.Budget)
}

func TestAddOperationRequiresPaymentMethod(t *testing.T) {
	db := New("test", "")
	user, err := db.AddUser("alice", "")
	assert.NoError(t, err)
	acc, err := db.AddAccount(user.ID, "empty", "", money.Amount{})
	assert.NoError(t, err)

	_, err = db.AddOperation(acc.ID, OperationDraft{
		Date:   NewDate(2024, time.January, 1),
		Amount: money.MustParse("-1.00", ""),
	})
	assert.Error(t, err)
	_, ok := err.(*ValidationError)
	assert.True(t, ok, "expected ValidationError, got %T", err)
}

func TestRemovePaymentMethod(t *testing.T) {
	db, _, acc, pm := fixture(t)

	_, err := db.AddOperation(acc.ID, draft(pm, NewDate(2024, time.March, 1), "-10.00", "x"))
	assert.NoError(t, err)
	_, err = db.AddScheduledOperation(acc.ID, ScheduledDraft{
		Name:          "rent",
		Amount:        money.MustParse("-700.00", ""),
		PaymentMethod: pm.ID,
		Schedule:      Schedule{Frequency: Monthly, Every: 1, Anchor: NewDate(2024, time.January, 1)},
	})
	assert.NoError(t, err)

	// Blocked while referenced.
	err = db.RemovePaymentMethod(pm.ID, false)
	conflict, ok := err.(*ReferentialConflictError)
	assert.True(t, ok, "expected ReferentialConflictError, got %T", err)
	assert.Equal(t, 1, conflict.Operations)
	assert.Equal(t, 1, conflict.ScheduledOperations)

	// Cascade deletes dependents first.
	err = db.RemovePaymentMethod(pm.ID, true)
	assert.NoError(t, err)
	assert.Equal(t, 0, len(db.Operations(acc.ID)))
	assert.Equal(t, 0, len(acc.Scheduled))
	_, found := db.PaymentMethod(pm.ID)
	assert.False(t, found)
}

func TestRemoveBudgetReassignsToDefault(t *testing.T) {
	db, user, acc, pm := fixture(t)

	food, err := db.AddBudget(user.ID, "Food", "", money.Amount{})
	assert.NoError(t, err)

	const n = 5
	for i := 0; i < n; i++ {
		d := draft(pm, NewDate(2024, time.March, i+1), "-10.00", "store")
		d.Budget = food.ID
		_, err := db.AddOperation(acc.ID, d)
		assert.NoError(t, err)
	}

	err = db.RemoveBudget(food.ID)
	assert.NoError(t, err)

	for _, op := range db.Operations(acc.ID) {
		assert.Equal(t, user.DefaultBudget, op.Budget)
	}
	_, found := db.Budget(food.ID)
	assert.False(t, found)

	// The default budget is never deletable.
	err = db.RemoveBudget(user.DefaultBudget)
	assert.Error(t, err)
	_, ok := err.(*ValidationError)
	assert.True(t, ok, "expected ValidationError, got %T", err)
}

func TestArchivedAccountRejectsMutations(t *testing.T) {
	db, _, acc, pm := fixture(t)

	err := db.UpdateAccount(acc.ID, acc.Name, "", true, acc.InitialAmount)
	assert.NoError(t, err)

	_, err = db.AddOperation(acc.ID, draft(pm, NewDate(2024, time.March, 1), "-10.00", "x"))
	assert.Error(t, err)
	_, err = db.AddPaymentMethod(acc.ID, "Cash")
	assert.Error(t, err)

	// Unarchiving re-enables mutation.
	err = db.UpdateAccount(acc.ID, acc.Name, "", false, acc.InitialAmount)
	assert.NoError(t, err)
	_, err = db.AddOperation(acc.ID, draft(pm, NewDate(2024, time.March, 1), "-10.00", "x"))
	assert.NoError(t, err)
}

func TestRemoveScheduledKeepsMaterialized(t *testing.T) {
	db, _, acc, pm := fixture(t)

	sop, err := db.AddScheduledOperation(acc.ID, ScheduledDraft{
		Name:          "rent",
		Amount:        money.MustParse("-700.00", ""),
		PaymentMethod: pm.ID,
		Schedule:      Schedule{Frequency: Monthly, Every: 1, Anchor: NewDate(2024, time.January, 1)},
	})
	assert.NoError(t, err)

	d := draft(pm, NewDate(2024, time.January, 1), "-700.00", "landlord")
	d.ScheduledID = sop.ID
	op, err := db.AddOperation(acc.ID, d)
	assert.NoError(t, err)

	err = db.RemoveScheduledOperation(sop.ID)
	assert.NoError(t, err)

	kept, found := db.Operation(op.ID)
	assert.True(t, found)
	assert.Equal(t, sop.ID, kept.ScheduledID)
}

func TestOperationIdentity(t *testing.T) {
	pmID := uuid.New()
	date := NewDate(2023, time.May, 1)
	amount := money.MustParse("-42.50", "")

	a := OperationIdentity(date, amount, "Corner Store", "Groceries", pmID)
	b := OperationIdentity(date, amount, "Corner Store", "Groceries", pmID)
	assert.Equal(t, a, b)

	c := OperationIdentity(date, amount, "Corner Store", "Vegetables", pmID)
	assert.NotEqual(t, a, c)
	d := OperationIdentity(date.AddDays(1), amount, "Corner Store", "Groceries", pmID)
	assert.NotEqual(t, a, d)
}

func TestBalance(t *testing.T) {
	db, _, acc, pm := fixture(t)
	acc.InitialAmount = money.MustParse("100.00", "")

	_, err := db.AddOperation(acc.ID, draft(pm, NewDate(2024, time.March, 1), "-10.50", "x"))
	assert.NoError(t, err)
	_, err = db.AddOperation(acc.ID, draft(pm, NewDate(2024, time.March, 2), "25.00", "y"))
	assert.NoError(t, err)

	assert.Equal(t, int64(11450), acc.Balance().Units())
}

func TestRestoreUserRoundTrip(t *testing.T) {
	db, user, acc, pm := fixture(t)
	_, err := db.AddOperation(acc.ID, draft(pm, NewDate(2024, time.March, 1), "-10.00", "x"))
	assert.NoError(t, err)

	restored := New(db.Name(), db.Description())
	err = restored.RestoreUser(user)
	assert.NoError(t, err)

	got, ok := restored.UserByName("alice")
	assert.True(t, ok)
	assert.Equal(t, user.ID, got.ID)
	assert.Equal(t, 1, len(restored.Operations(acc.ID)))
	_, ok = restored.PaymentMethod(pm.ID)
	assert.True(t, ok)
}

func TestRestoreUserBadReference(t *testing.T) {
	_, user, acc, _ := fixture(t)

	// Point an operation at a payment method that does not resolve.
	acc.Operations = append(acc.Operations, &Operation{
		ID:            uuid.New(),
		AccountID:     acc.ID,
		Date:          NewDate(2024, time.January, 1),
		Amount:        money.MustParse("-1.00", ""),
		PaymentMethod: uuid.New(),
		Budget:        user.DefaultBudget,
	})

	restored := New("copy", "")
	err := restored.RestoreUser(user)
	verrs, ok := err.(*ValidationErrors)
	assert.True(t, ok, "expected ValidationErrors, got %T", err)
	assert.Equal(t, 1, len(verrs.Errors))
}
