// Package recurrence materializes scheduled operations into concrete dated
// operations over a target window.
//
// Occurrences are computed from the schedule's anchor date, never from the
// previous occurrence, so repeated advancement cannot drift. When monthly or
// yearly advancement lands on a day of month that does not exist in the
// target month (the 31st advancing into February, or February 29th advancing
// into a non-leap year), the occurrence is clamped to the last valid day of
// that month: an anchor on 2024-01-31 with a monthly schedule occurs on
// 2024-02-29, 2024-03-31, 2024-04-30 and so on.
//
// Materialization is idempotent. Each materialized operation carries a
// back-reference to its originating scheduled operation, and the pair
// (scheduled operation id, occurrence date) is the dedup key: re-running
// Materialize over an overlapping window inserts nothing new.
package recurrence

import (
	"time"

	"github.com/picsou-app/picsou/ledger"
)

// Occurrences returns the occurrence dates of a schedule inside the
// inclusive window [from, to], in ascending order. Occurrences before the
// anchor date do not exist.
func Occurrences(s ledger.Schedule, from, to ledger.Date) []ledger.Date {
	if err := s.Validate(); err != nil {
		return nil
	}
	if to.Before(from.Time) || to.Before(s.Anchor.Time) {
		return nil
	}

	var dates []ledger.Date
	for n := 0; ; n++ {
		d := nth(s, n)
		if d.After(to.Time) {
			break
		}
		if !d.Before(from.Time) {
			dates = append(dates, d)
		}
	}
	return dates
}

// nth computes the date of the nth occurrence (0-based) from the anchor.
func nth(s ledger.Schedule, n int) ledger.Date {
	steps := n * s.Every
	switch s.Frequency {
	case ledger.Daily:
		return s.Anchor.AddDays(steps)
	case ledger.Weekly:
		return s.Anchor.AddDays(7 * steps)
	case ledger.Monthly:
		return addMonthsClamped(s.Anchor, steps)
	case ledger.Yearly:
		return addMonthsClamped(s.Anchor, 12*steps)
	default:
		return s.Anchor
	}
}

// addMonthsClamped advances a date by whole months, clamping the day of
// month to the last valid day of the target month.
func addMonthsClamped(d ledger.Date, months int) ledger.Date {
	year, month, day := d.Date()
	total := int(month) - 1 + months
	year += total / 12
	month = time.Month(total%12 + 1)
	if last := ledger.DaysInMonth(year, month); day > last {
		day = last
	}
	return ledger.NewDate(year, month, day)
}

// Drafts derives the operation drafts due for a scheduled operation inside
// [from, to], ordered by date. The drafts carry the template's amount,
// description, recipient, payment method and budget, plus the back-reference
// to the template.
func Drafts(sop *ledger.ScheduledOperation, from, to ledger.Date) []ledger.OperationDraft {
	dates := Occurrences(sop.Schedule, from, to)
	drafts := make([]ledger.OperationDraft, 0, len(dates))
	for _, d := range dates {
		drafts = append(drafts, ledger.OperationDraft{
			Date:          d,
			Amount:        sop.Amount,
			Description:   sop.Description,
			Recipient:     sop.Recipient,
			PaymentMethod: sop.PaymentMethod,
			Budget:        sop.Budget,
			ScheduledID:   sop.ID,
		})
	}
	return drafts
}

// Materialize inserts the operations due for one scheduled operation inside
// [from, to] into its account, skipping occurrences that were already
// materialized. It returns the number of operations inserted.
func Materialize(db *ledger.Database, sop *ledger.ScheduledOperation, from, to ledger.Date) (int, error) {
	existing := make(map[string]bool)
	for _, op := range db.Operations(sop.AccountID) {
		if op.ScheduledID == sop.ID {
			existing[op.Date.String()] = true
		}
	}

	inserted := 0
	for _, draft := range Drafts(sop, from, to) {
		if existing[draft.Date.String()] {
			continue
		}
		if _, err := db.AddOperation(sop.AccountID, draft); err != nil {
			return inserted, err
		}
		inserted++
	}
	return inserted, nil
}

// MaterializeDue realizes every scheduled operation of every account up to
// the given date. Archived accounts are skipped. The host invokes this on
// load and periodically on date rollover.
func MaterializeDue(db *ledger.Database, now ledger.Date) (int, error) {
	total := 0
	for _, user := range db.Users() {
		for _, acc := range user.SortedAccounts() {
			if acc.Archived {
				continue
			}
			for _, sop := range acc.SortedScheduled() {
				n, err := Materialize(db, sop, sop.Schedule.Anchor, now)
				if err != nil {
					return total, err
				}
				total += n
			}
		}
	}
	return total, nil
}
