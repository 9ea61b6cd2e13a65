// Package exchange imports and exports operation records in CSV, XML and
// JSON form. The three adapters share one canonical record layout (date,
// amount, description, recipient, payment method name, budget name) and
// round-trip those fields losslessly.
//
// Import is all-or-nothing per file: a structurally invalid file fails with
// an ImportFormatError and commits nothing. Parsed records are deduplicated
// against the target account's existing operations on the identity tuple
// (date, amount, recipient, description, payment method); duplicates are
// counted and skipped, never treated as errors. Unknown payment-method and
// budget names are auto-created under the target account and its owner,
// unless Options.RejectUnknown is set.
//
// Export never fails for data reasons: a field that cannot be rendered is
// substituted with the Sentinel placeholder and the export continues.
package exchange

import (
	"context"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/picsou-app/picsou/ledger"
	"github.com/picsou-app/picsou/money"
	"github.com/picsou-app/picsou/telemetry"
)

// Sentinel replaces a field value that cannot be rendered during export.
const Sentinel = "-- [export error] --"

// Format selects one of the supported external formats. The set is closed:
// adapters are picked by explicit enum, not by open-ended plugin dispatch.
type Format int

const (
	CSV Format = iota
	XML
	JSON
)

// String returns the lowercase name of the format.
func (f Format) String() string {
	switch f {
	case CSV:
		return "csv"
	case XML:
		return "xml"
	case JSON:
		return "json"
	default:
		return "unknown"
	}
}

// ParseFormat parses a format name, case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "csv":
		return CSV, nil
	case "xml":
		return XML, nil
	case "json":
		return JSON, nil
	default:
		return CSV, fmt.Errorf("unknown format %q (expected csv, xml or json)", s)
	}
}

// Record is the canonical external form of one operation. Payment method and
// budget are referenced by name; resolution against the target account
// happens at import time.
type Record struct {
	Date          ledger.Date
	Amount        money.Amount
	Description   string
	Recipient     string
	PaymentMethod string
	Budget        string
}

// codec is the shared read/write contract implemented by each format adapter.
type codec interface {
	decode(r io.Reader) ([]Record, error)
	encode(w io.Writer, records []Record) error
}

func (f Format) codec(currency string) codec {
	switch f {
	case XML:
		return &xmlCodec{currency: currency}
	case JSON:
		return &jsonCodec{currency: currency}
	default:
		return &csvCodec{currency: currency}
	}
}

// ImportFormatError is returned when a file cannot be parsed. The whole
// import is rolled back; partial success inside one file is not supported.
type ImportFormatError struct {
	Format Format
	Line   int // 1-based line of the offending record, 0 when unknown
	Err    error
}

func (e *ImportFormatError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("invalid %s input at line %d: %v", e.Format, e.Line, e.Err)
	}
	return fmt.Sprintf("invalid %s input: %v", e.Format, e.Err)
}

func (e *ImportFormatError) Unwrap() error { return e.Err }

// Options tunes import behavior.
type Options struct {
	// RejectUnknown rejects records naming a payment method or budget that
	// does not exist, instead of auto-creating it.
	RejectUnknown bool

	// Currency is the currency hint attached to parsed amounts.
	Currency string
}

// Report summarizes an import: how many operations were inserted and how
// many records were skipped as duplicates of existing operations.
type Report struct {
	Imported int
	Skipped  int
}

// Import parses records from r and merges them into the target account.
// The commit is atomic with respect to the caller: either every
// non-duplicate record is inserted (with any missing payment methods and
// budgets created first), or the database is left unchanged.
func Import(ctx context.Context, db *ledger.Database, accountID uuid.UUID, format Format, r io.Reader, opts Options) (Report, error) {
	account, ok := db.Account(accountID)
	if !ok {
		return Report{}, ledger.NewNotFoundError("account", accountID)
	}
	if account.Archived {
		return Report{}, ledger.NewValidationError("account", accountID, "", "cannot import into an archived account")
	}
	user, _ := db.User(account.UserID)

	timer := telemetry.StartTimer(ctx, fmt.Sprintf("import %s", format))
	records, err := format.codec(opts.Currency).decode(r)
	timer.End()
	if err != nil {
		if ferr, ok := err.(*ImportFormatError); ok {
			return Report{}, ferr
		}
		return Report{}, &ImportFormatError{Format: format, Err: err}
	}

	// Resolve every name before touching any state, so the commit below
	// cannot fail halfway through.
	var missingMethods, missingBudgets []string
	seenMethod := make(map[string]bool)
	seenBudget := make(map[string]bool)
	for i, rec := range records {
		if rec.Date.IsZero() {
			return Report{}, &ImportFormatError{Format: format, Line: i + 1,
				Err: fmt.Errorf("record has no date")}
		}
		name := strings.TrimSpace(rec.PaymentMethod)
		if name == "" {
			return Report{}, &ImportFormatError{Format: format, Line: i + 1,
				Err: fmt.Errorf("record has no payment method")}
		}
		if _, ok := account.PaymentMethodByName(name); !ok && !seenMethod[name] {
			seenMethod[name] = true
			missingMethods = append(missingMethods, name)
		}
		if budget := strings.TrimSpace(rec.Budget); budget != "" {
			if _, ok := userBudgetByName(user, budget); !ok && !seenBudget[budget] {
				seenBudget[budget] = true
				missingBudgets = append(missingBudgets, budget)
			}
		}
	}
	if opts.RejectUnknown {
		if len(missingMethods) > 0 {
			return Report{}, ledger.NewValidationError("operation", uuid.Nil, "payment method",
				fmt.Sprintf("unknown payment method %q", missingMethods[0]))
		}
		if len(missingBudgets) > 0 {
			return Report{}, ledger.NewValidationError("operation", uuid.Nil, "budget",
				fmt.Sprintf("unknown budget %q", missingBudgets[0]))
		}
	}

	for _, name := range missingMethods {
		if _, err := db.AddPaymentMethod(accountID, name); err != nil {
			return Report{}, err
		}
	}
	for _, name := range missingBudgets {
		if _, err := db.AddBudget(user.ID, name, "", money.Amount{}); err != nil {
			return Report{}, err
		}
	}

	existing := make(map[string]bool)
	for _, op := range db.Operations(accountID) {
		existing[op.Identity()] = true
	}

	var report Report
	for _, rec := range records {
		pm, _ := account.PaymentMethodByName(strings.TrimSpace(rec.PaymentMethod))
		budgetID := uuid.Nil
		if name := strings.TrimSpace(rec.Budget); name != "" {
			budget, _ := userBudgetByName(user, name)
			budgetID = budget.ID
		}

		identity := ledger.OperationIdentity(rec.Date, rec.Amount, rec.Recipient, rec.Description, pm.ID)
		if existing[identity] {
			report.Skipped++
			continue
		}

		if _, err := db.AddOperation(accountID, ledger.OperationDraft{
			Date:          rec.Date,
			Amount:        rec.Amount,
			Description:   rec.Description,
			Recipient:     rec.Recipient,
			PaymentMethod: pm.ID,
			Budget:        budgetID,
		}); err != nil {
			return report, err
		}
		existing[identity] = true
		report.Imported++
	}
	return report, nil
}

// Export serializes operations to w in the chosen format. Payment method and
// budget references are rendered by name; a reference that does not resolve,
// or a text field that is not valid UTF-8, is substituted with Sentinel
// rather than aborting the batch.
func Export(ctx context.Context, db *ledger.Database, ops []*ledger.Operation, format Format, w io.Writer) error {
	timer := telemetry.StartTimer(ctx, fmt.Sprintf("export %s (%d operations)", format, len(ops)))
	defer timer.End()

	records := make([]Record, 0, len(ops))
	for _, op := range ops {
		rec := Record{
			Date:          op.Date,
			Amount:        op.Amount,
			Description:   sanitize(op.Description),
			Recipient:     sanitize(op.Recipient),
			PaymentMethod: Sentinel,
			Budget:        Sentinel,
		}
		if pm, ok := db.PaymentMethod(op.PaymentMethod); ok {
			rec.PaymentMethod = sanitize(pm.Name)
		}
		if budget, ok := db.Budget(op.Budget); ok {
			rec.Budget = sanitize(budget.Name)
		}
		records = append(records, rec)
	}

	return format.codec("").encode(w, records)
}

// sanitize substitutes the sentinel for values no codec can render.
func sanitize(s string) string {
	if !utf8.ValidString(s) {
		return Sentinel
	}
	return s
}

func userBudgetByName(u *ledger.User, name string) (*ledger.Budget, bool) {
	for _, b := range u.Budgets {
		if b.Name == name {
			return b, true
		}
	}
	return nil, false
}
