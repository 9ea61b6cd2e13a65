// Package query evaluates structured filters over operation collections.
//
// A Filter is a conjunction of independently optional predicates: date range,
// amount range, regular expressions on recipient and description, budget and
// payment-method membership, and a user or account scope. Compile validates
// the filter up front, so a malformed regular expression is reported before
// any operation is scanned.
//
// Evaluation takes a copy-on-read snapshot of the scoped operations in
// chronological order (date ascending, ties broken by insertion order) and
// feeds a lazily consumed Result. The scan is cancellable: when the caller's
// context is cancelled mid-flight the Result stops promptly and reports the
// context error, which is distinct from an exhausted scan with no matches.
//
// Example usage:
//
//	q, err := query.Compile(query.Filter{Recipient: "^Corner.*"})
//	if err != nil {
//	    // *query.InvalidPatternError
//	}
//	res := q.Evaluate(ctx, db)
//	for {
//	    op, ok := res.Next()
//	    if !ok {
//	        break
//	    }
//	    // consume op
//	}
//	if err := res.Err(); err != nil {
//	    // scan was aborted
//	}
package query

import (
	"context"
	"fmt"
	"regexp"

	"github.com/google/uuid"
	"golang.org/x/exp/slices"

	"github.com/picsou-app/picsou/ledger"
	"github.com/picsou-app/picsou/money"
	"github.com/picsou-app/picsou/telemetry"
)

// InvalidPatternError is returned by Compile when a recipient or description
// pattern is not a valid regular expression.
type InvalidPatternError struct {
	Field   string // "recipient" or "description"
	Pattern string
	Err     error
}

func (e *InvalidPatternError) Error() string {
	return fmt.Sprintf("invalid %s pattern %q: %v", e.Field, e.Pattern, e.Err)
}

func (e *InvalidPatternError) Unwrap() error { return e.Err }

// Filter describes a search over operations. The zero value matches every
// operation in the database.
type Filter struct {
	// From and To bound the operation date, inclusive. A zero date leaves
	// that side unbounded.
	From ledger.Date
	To   ledger.Date

	// MinAmount and MaxAmount bound the signed amount, inclusive.
	MinAmount *money.Amount
	MaxAmount *money.Amount

	// Recipient and Description are regular expressions matched against the
	// full field value. Empty patterns match everything.
	Recipient   string
	Description string

	// Budget and PaymentMethod restrict membership; zero means unrestricted.
	Budget        uuid.UUID
	PaymentMethod uuid.UUID

	// User and Account scope the search to one user or one account;
	// zero means all.
	User    uuid.UUID
	Account uuid.UUID
}

// Query is a compiled filter ready for evaluation.
type Query struct {
	filter      Filter
	recipient   *regexp.Regexp // nil matches everything
	description *regexp.Regexp
}

// Compile validates a filter and compiles its patterns. It fails fast with
// an InvalidPatternError before any operation is scanned.
func Compile(f Filter) (*Query, error) {
	q := &Query{filter: f}

	if f.Recipient != "" {
		re, err := regexp.Compile(f.Recipient)
		if err != nil {
			return nil, &InvalidPatternError{Field: "recipient", Pattern: f.Recipient, Err: err}
		}
		q.recipient = re
	}
	if f.Description != "" {
		re, err := regexp.Compile(f.Description)
		if err != nil {
			return nil, &InvalidPatternError{Field: "description", Pattern: f.Description, Err: err}
		}
		q.description = re
	}
	return q, nil
}

// Evaluate starts a scan over the database. The snapshot of candidate
// operations is taken synchronously; predicate evaluation is deferred to
// Result.Next, so regex cost is paid lazily as the caller consumes matches.
func (q *Query) Evaluate(ctx context.Context, db *ledger.Database) *Result {
	timer := telemetry.StartTimer(ctx, "query.snapshot")
	ops := q.snapshot(db)
	timer.End()

	return &Result{ctx: ctx, query: q, ops: ops}
}

// snapshot collects the scoped operations ordered by date ascending with
// ties broken by insertion order. The returned slice is private to the scan:
// structural edits queued after Evaluate do not affect it.
func (q *Query) snapshot(db *ledger.Database) []*ledger.Operation {
	var ops []*ledger.Operation

	appendAccount := func(acc *ledger.Account) {
		if q.filter.Account != uuid.Nil && acc.ID != q.filter.Account {
			return
		}
		ops = append(ops, db.Operations(acc.ID)...)
	}

	for _, user := range db.Users() {
		if q.filter.User != uuid.Nil && user.ID != q.filter.User {
			continue
		}
		for _, acc := range user.SortedAccounts() {
			appendAccount(acc)
		}
	}

	// Stable sort keeps per-account insertion order among equal dates.
	slices.SortStableFunc(ops, func(a, b *ledger.Operation) int {
		return a.Date.Compare(b.Date.Time)
	})
	return ops
}

// matches evaluates every predicate of the conjunction against one operation.
func (q *Query) matches(op *ledger.Operation) bool {
	f := q.filter
	if !f.From.IsZero() && op.Date.Before(f.From.Time) {
		return false
	}
	if !f.To.IsZero() && op.Date.After(f.To.Time) {
		return false
	}
	if f.MinAmount != nil && op.Amount.Cmp(*f.MinAmount) < 0 {
		return false
	}
	if f.MaxAmount != nil && op.Amount.Cmp(*f.MaxAmount) > 0 {
		return false
	}
	if f.Budget != uuid.Nil && op.Budget != f.Budget {
		return false
	}
	if f.PaymentMethod != uuid.Nil && op.PaymentMethod != f.PaymentMethod {
		return false
	}
	if q.recipient != nil && !q.recipient.MatchString(op.Recipient) {
		return false
	}
	if q.description != nil && !q.description.MatchString(op.Description) {
		return false
	}
	return true
}

// Result is a lazily consumed, order-preserving stream of matching
// operations. It is not safe for concurrent use.
type Result struct {
	ctx   context.Context
	query *Query
	ops   []*ledger.Operation
	next  int
	err   error
}

// Next returns the next matching operation. It returns false when the scan
// is exhausted or has been cancelled; check Err to tell the two apart.
func (r *Result) Next() (*ledger.Operation, bool) {
	if r.err != nil {
		return nil, false
	}
	for r.next < len(r.ops) {
		// Cooperative cancellation between candidates; regex evaluation
		// dominates large scans.
		select {
		case <-r.ctx.Done():
			r.err = r.ctx.Err()
			return nil, false
		default:
		}

		op := r.ops[r.next]
		r.next++
		if r.query.matches(op) {
			return op, true
		}
	}
	return nil, false
}

// Err returns the context error when the scan was aborted mid-flight, nil
// otherwise. A nil Err after an exhausted Next means "no more matches".
func (r *Result) Err() error {
	return r.err
}

// Collect drains the result into a slice. On cancellation it returns the
// matches gathered so far alongside the context error.
func (r *Result) Collect() ([]*ledger.Operation, error) {
	var ops []*ledger.Operation
	for {
		op, ok := r.Next()
		if !ok {
			break
		}
		ops = append(ops, op)
	}
	return ops, r.Err()
}
