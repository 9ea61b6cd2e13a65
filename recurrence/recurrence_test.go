package recurrence

import (
	"testing"
	"time"

	"github.com/alecthomas/assert/v2"

	"github.com/picsou-app/picsou/ledger"
	"github.com/picsou-app/picsou/money"
)

func date(y int, m time.Month, d int) ledger.Date {
	return ledger.NewDate(y, m, d)
}

func TestOccurrences(t *testing.T) {
	tests := []struct {
		name     string
		schedule ledger.Schedule
		from, to ledger.Date
		want     []string
	}{
		{
			name:     "monthly clamp over leap february",
			schedule: ledger.Schedule{Frequency: ledger.Monthly, Every: 1, Anchor: date(2024, time.January, 31)},
			from:     date(2024, time.January, 1),
			to:       date(2024, time.April, 30),
			want:     []string{"2024-01-31", "2024-02-29", "2024-03-31", "2024-04-30"},
		},
		{
			name:     "monthly clamp non-leap february",
			schedule: ledger.Schedule{Frequency: ledger.Monthly, Every: 1, Anchor: date(2023, time.January, 31)},
			from:     date(2023, time.February, 1),
			to:       date(2023, time.March, 31),
			want:     []string{"2023-02-28", "2023-03-31"},
		},
		{
			name:     "clamp does not stick to short months",
			schedule: ledger.Schedule{Frequency: ledger.Monthly, Every: 1, Anchor: date(2024, time.January, 31)},
			from:     date(2024, time.March, 1),
			to:       date(2024, time.March, 31),
			want:     []string{"2024-03-31"},
		},
		{
			name:     "every three months",
			schedule: ledger.Schedule{Frequency: ledger.Monthly, Every: 3, Anchor: date(2024, time.January, 15)},
			from:     date(2024, time.January, 1),
			to:       date(2024, time.December, 31),
			want:     []string{"2024-01-15", "2024-04-15", "2024-07-15", "2024-10-15"},
		},
		{
			name:     "yearly leap anchor clamps",
			schedule: ledger.Schedule{Frequency: ledger.Yearly, Every: 1, Anchor: date(2024, time.February, 29)},
			from:     date(2024, time.January, 1),
			to:       date(2026, time.December, 31),
			want:     []string{"2024-02-29", "2025-02-28", "2026-02-28"},
		},
		{
			name:     "daily with multiplier",
			schedule: ledger.Schedule{Frequency: ledger.Daily, Every: 10, Anchor: date(2024, time.June, 1)},
			from:     date(2024, time.June, 5),
			to:       date(2024, time.June, 30),
			want:     []string{"2024-06-11", "2024-06-21"},
		},
		{
			name:     "weekly",
			schedule: ledger.Schedule{Frequency: ledger.Weekly, Every: 2, Anchor: date(2024, time.June, 3)},
			from:     date(2024, time.June, 1),
			to:       date(2024, time.July, 1),
			want:     []string{"2024-06-03", "2024-06-17", "2024-07-01"},
		},
		{
			name:     "window before anchor",
			schedule: ledger.Schedule{Frequency: ledger.Daily, Every: 1, Anchor: date(2024, time.June, 1)},
			from:     date(2024, time.May, 1),
			to:       date(2024, time.May, 31),
			want:     nil,
		},
		{
			name:     "inverted window",
			schedule: ledger.Schedule{Frequency: ledger.Daily, Every: 1, Anchor: date(2024, time.June, 1)},
			from:     date(2024, time.June, 30),
			to:       date(2024, time.June, 1),
			want:     nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Occurrences(tt.schedule, tt.from, tt.to)
			strs := make([]string, 0, len(got))
			for _, d := range got {
				strs = append(strs, d.String())
			}
			if tt.want == nil {
				assert.Equal(t, 0, len(strs))
				return
			}
			assert.Equal(t, tt.want, strs)
		})
	}
}

func materializeFixture(t *testing.T) (*ledger.Database, *ledger.Account, *ledger.ScheduledOperation) {
	t.Helper()

	db := ledger.New("test", "")
	user, err := db.AddUser("alice", "")
	assert.NoError(t, err)
	acc, err := db.AddAccount(user.ID, "checking", "", money.Amount{})
	assert.NoError(t, err)
	pm, err := db.AddPaymentMethod(acc.ID, "Transfer")
	assert.NoError(t, err)
	sop, err := db.AddScheduledOperation(acc.ID, ledger.ScheduledDraft{
		Name:          "rent",
		Amount:        money.MustParse("-700.00", ""),
		Description:   "monthly rent",
		Recipient:     "landlord",
		PaymentMethod: pm.ID,
		Schedule:      ledger.Schedule{Frequency: ledger.Monthly, Every: 1, Anchor: date(2024, time.January, 31)},
	})
	assert.NoError(t, err)
	return db, acc, sop
}

func TestMaterializeIdempotent(t *testing.T) {
	db, acc, sop := materializeFixture(t)

	n, err := Materialize(db, sop, date(2024, time.January, 1), date(2024, time.April, 30))
	assert.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, 4, len(db.Operations(acc.ID)))

	// Same window again: nothing new.
	n, err = Materialize(db, sop, date(2024, time.January, 1), date(2024, time.April, 30))
	assert.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, 4, len(db.Operations(acc.ID)))

	// Overlapping wider window only adds the fresh occurrences.
	n, err = Materialize(db, sop, date(2024, time.March, 1), date(2024, time.June, 30))
	assert.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 6, len(db.Operations(acc.ID)))

	for _, op := range db.Operations(acc.ID) {
		assert.Equal(t, sop.ID, op.ScheduledID)
		assert.Equal(t, "landlord", op.Recipient)
		assert.Equal(t, int64(-70000), op.Amount.Units())
	}
}

func TestMaterializeDue(t *testing.T) {
	db, acc, _ := materializeFixture(t)

	n, err := MaterializeDue(db, date(2024, time.March, 15))
	assert.NoError(t, err)
	assert.Equal(t, 2, n) // 2024-01-31, 2024-02-29
	assert.Equal(t, 2, len(db.Operations(acc.ID)))

	// Rolling forward materializes only the newly due occurrences.
	n, err = MaterializeDue(db, date(2024, time.May, 1))
	assert.NoError(t, err)
	assert.Equal(t, 2, n) // 2024-03-31, 2024-04-30
}

func TestMaterializeDueSkipsArchived(t *testing.T) {
	db, acc, _ := materializeFixture(t)

	err := db.UpdateAccount(acc.ID, acc.Name, "", true, acc.InitialAmount)
	assert.NoError(t, err)

	n, err := MaterializeDue(db, date(2024, time.December, 31))
	assert.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestEditScheduledDoesNotAlterMaterialized(t *testing.T) {
	db, acc, sop := materializeFixture(t)

	_, err := Materialize(db, sop, date(2024, time.January, 1), date(2024, time.February, 29))
	assert.NoError(t, err)

	err = db.UpdateScheduledOperation(sop.ID, ledger.ScheduledDraft{
		Name:          sop.Name,
		Amount:        money.MustParse("-750.00", ""),
		Description:   sop.Description,
		Recipient:     sop.Recipient,
		PaymentMethod: sop.PaymentMethod,
		Budget:        sop.Budget,
		Schedule:      sop.Schedule,
	})
	assert.NoError(t, err)

	for _, op := range db.Operations(acc.ID) {
		assert.Equal(t, int64(-70000), op.Amount.Units())
	}
}
