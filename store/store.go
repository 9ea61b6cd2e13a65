// Package store serializes a ledger database to and from its single-file
// container (the surrounding application uses a .psdb extension). The
// container is one JSON document holding the full entity graph plus a
// major/minor format version; Load rejects unknown or future versions
// rather than guessing at their layout.
package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/picsou-app/picsou/ledger"
	"github.com/picsou-app/picsou/money"
	"github.com/picsou-app/picsou/telemetry"
)

// Container format version. The major number changes on incompatible layout
// changes; the minor number on additive ones that older readers may ignore.
const (
	FormatMajor = 1
	FormatMinor = 0
)

// CorruptFileError is returned when a persisted file cannot be read back:
// unparseable content, unresolved references or a version mismatch.
type CorruptFileError struct {
	Reason string
	Err    error
}

func (e *CorruptFileError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("corrupt database file: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("corrupt database file: %s", e.Reason)
}

func (e *CorruptFileError) Unwrap() error { return e.Err }

func corrupt(reason string, err error) *CorruptFileError {
	return &CorruptFileError{Reason: reason, Err: err}
}

// File layout types. Entity ids are uuid strings; amounts are minor units
// plus a currency hint; dates use the ledger date layout.

type fileDatabase struct {
	Version     fileVersion `json:"version"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Users       []fileUser  `json:"users"`
}

type fileVersion struct {
	Major int `json:"major"`
	Minor int `json:"minor"`
}

type fileAmount struct {
	Units    int64  `json:"units"`
	Currency string `json:"currency,omitempty"`
}

type fileUser struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Credential    string        `json:"credential,omitempty"`
	DefaultBudget string        `json:"default_budget"`
	Budgets       []fileBudget  `json:"budgets"`
	Accounts      []fileAccount `json:"accounts"`
}

type fileBudget struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Target      fileAmount `json:"target"`
}

type fileAccount struct {
	ID             string              `json:"id"`
	Name           string              `json:"name"`
	Notes          string              `json:"notes,omitempty"`
	Archived       bool                `json:"archived,omitempty"`
	InitialAmount  fileAmount          `json:"initial_amount"`
	PaymentMethods []filePaymentMethod `json:"payment_methods"`
	Operations     []fileOperation     `json:"operations"`
	Scheduled      []fileScheduled     `json:"scheduled_operations"`
}

type filePaymentMethod struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type fileOperation struct {
	ID            string     `json:"id"`
	Date          string     `json:"date"`
	Amount        fileAmount `json:"amount"`
	Description   string     `json:"description,omitempty"`
	Recipient     string     `json:"recipient,omitempty"`
	PaymentMethod string     `json:"payment_method"`
	Budget        string     `json:"budget"`
	ScheduledID   string     `json:"scheduled_id,omitempty"`
}

type fileScheduled struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Amount        fileAmount `json:"amount"`
	Description   string     `json:"description,omitempty"`
	Recipient     string     `json:"recipient,omitempty"`
	PaymentMethod string     `json:"payment_method"`
	Budget        string     `json:"budget"`
	Frequency     string     `json:"frequency"`
	Every         int        `json:"every"`
	Anchor        string     `json:"anchor"`
}

// Save serializes the full entity graph. Collections are emitted in name
// order (operations in insertion order) so repeated saves of the same
// database produce identical bytes.
func Save(ctx context.Context, db *ledger.Database) ([]byte, error) {
	timer := telemetry.StartTimer(ctx, "store.save")
	defer timer.End()

	out := fileDatabase{
		Version:     fileVersion{Major: FormatMajor, Minor: FormatMinor},
		Name:        db.Name(),
		Description: db.Description(),
		Users:       make([]fileUser, 0),
	}

	for _, user := range db.Users() {
		fu := fileUser{
			ID:            user.ID.String(),
			Name:          user.Name,
			Credential:    user.Credential.Encode(),
			DefaultBudget: user.DefaultBudget.String(),
			Budgets:       make([]fileBudget, 0, len(user.Budgets)),
			Accounts:      make([]fileAccount, 0, len(user.Accounts)),
		}
		for _, budget := range user.SortedBudgets() {
			fu.Budgets = append(fu.Budgets, fileBudget{
				ID:          budget.ID.String(),
				Name:        budget.Name,
				Description: budget.Description,
				Target:      amountOut(budget.Target),
			})
		}
		for _, acc := range user.SortedAccounts() {
			fa := fileAccount{
				ID:             acc.ID.String(),
				Name:           acc.Name,
				Notes:          acc.Notes,
				Archived:       acc.Archived,
				InitialAmount:  amountOut(acc.InitialAmount),
				PaymentMethods: make([]filePaymentMethod, 0, len(acc.PaymentMethods)),
				Operations:     make([]fileOperation, 0, len(acc.Operations)),
				Scheduled:      make([]fileScheduled, 0, len(acc.Scheduled)),
			}
			for _, pm := range acc.SortedPaymentMethods() {
				fa.PaymentMethods = append(fa.PaymentMethods, filePaymentMethod{
					ID:   pm.ID.String(),
					Name: pm.Name,
				})
			}
			for _, op := range acc.Operations {
				fo := fileOperation{
					ID:            op.ID.String(),
					Date:          op.Date.String(),
					Amount:        amountOut(op.Amount),
					Description:   op.Description,
					Recipient:     op.Recipient,
					PaymentMethod: op.PaymentMethod.String(),
					Budget:        op.Budget.String(),
				}
				if op.ScheduledID != uuid.Nil {
					fo.ScheduledID = op.ScheduledID.String()
				}
				fa.Operations = append(fa.Operations, fo)
			}
			for _, sop := range acc.SortedScheduled() {
				fa.Scheduled = append(fa.Scheduled, fileScheduled{
					ID:            sop.ID.String(),
					Name:          sop.Name,
					Amount:        amountOut(sop.Amount),
					Description:   sop.Description,
					Recipient:     sop.Recipient,
					PaymentMethod: sop.PaymentMethod.String(),
					Budget:        sop.Budget.String(),
					Frequency:     sop.Schedule.Frequency.String(),
					Every:         sop.Schedule.Every,
					Anchor:        sop.Schedule.Anchor.String(),
				})
			}
			fu.Accounts = append(fu.Accounts, fa)
		}
		out.Users = append(out.Users, fu)
	}

	return json.MarshalIndent(out, "", "  ")
}

// Load rebuilds a database from its serialized form, validating the format
// version and every cross-reference of the entity graph.
func Load(ctx context.Context, data []byte) (*ledger.Database, error) {
	timer := telemetry.StartTimer(ctx, "store.load")
	defer timer.End()

	var in fileDatabase
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, corrupt("unparseable content", err)
	}
	if in.Version.Major != FormatMajor || in.Version.Minor > FormatMinor {
		return nil, corrupt(fmt.Sprintf("unsupported format version %d.%d (reader supports %d.%d)",
			in.Version.Major, in.Version.Minor, FormatMajor, FormatMinor), nil)
	}

	db := ledger.New(in.Name, in.Description)
	for _, fu := range in.Users {
		user, err := userIn(fu)
		if err != nil {
			return nil, err
		}
		if err := db.RestoreUser(user); err != nil {
			return nil, corrupt(fmt.Sprintf("user %q", fu.Name), err)
		}
	}
	return db, nil
}

func userIn(fu fileUser) (*ledger.User, error) {
	id, err := parseID(fu.ID, "user id")
	if err != nil {
		return nil, err
	}
	cred, err := ledger.DecodeCredential(fu.Credential)
	if err != nil {
		return nil, corrupt(fmt.Sprintf("user %q credential", fu.Name), err)
	}
	defaultBudget, err := parseID(fu.DefaultBudget, "default budget id")
	if err != nil {
		return nil, err
	}

	user := &ledger.User{
		ID:            id,
		Name:          fu.Name,
		Credential:    cred,
		DefaultBudget: defaultBudget,
		Budgets:       make(map[uuid.UUID]*ledger.Budget, len(fu.Budgets)),
		Accounts:      make(map[uuid.UUID]*ledger.Account, len(fu.Accounts)),
	}

	for _, fb := range fu.Budgets {
		bid, err := parseID(fb.ID, "budget id")
		if err != nil {
			return nil, err
		}
		user.Budgets[bid] = &ledger.Budget{
			ID:          bid,
			UserID:      id,
			Name:        fb.Name,
			Description: fb.Description,
			Target:      amountIn(fb.Target),
		}
	}

	for _, fa := range fu.Accounts {
		acc, err := accountIn(id, fa)
		if err != nil {
			return nil, err
		}
		user.Accounts[acc.ID] = acc
	}
	return user, nil
}

func accountIn(userID uuid.UUID, fa fileAccount) (*ledger.Account, error) {
	id, err := parseID(fa.ID, "account id")
	if err != nil {
		return nil, err
	}
	acc := &ledger.Account{
		ID:             id,
		UserID:         userID,
		Name:           fa.Name,
		Notes:          fa.Notes,
		Archived:       fa.Archived,
		InitialAmount:  amountIn(fa.InitialAmount),
		PaymentMethods: make(map[uuid.UUID]*ledger.PaymentMethod, len(fa.PaymentMethods)),
		Scheduled:      make(map[uuid.UUID]*ledger.ScheduledOperation, len(fa.Scheduled)),
		Operations:     make([]*ledger.Operation, 0, len(fa.Operations)),
	}

	for _, fpm := range fa.PaymentMethods {
		pmID, err := parseID(fpm.ID, "payment method id")
		if err != nil {
			return nil, err
		}
		acc.PaymentMethods[pmID] = &ledger.PaymentMethod{ID: pmID, AccountID: id, Name: fpm.Name}
	}

	for _, fo := range fa.Operations {
		op, err := operationIn(id, fo)
		if err != nil {
			return nil, err
		}
		acc.Operations = append(acc.Operations, op)
	}

	for _, fs := range fa.Scheduled {
		sop, err := scheduledIn(id, fs)
		if err != nil {
			return nil, err
		}
		acc.Scheduled[sop.ID] = sop
	}
	return acc, nil
}

func operationIn(accountID uuid.UUID, fo fileOperation) (*ledger.Operation, error) {
	id, err := parseID(fo.ID, "operation id")
	if err != nil {
		return nil, err
	}
	date, err := ledger.ParseDate(fo.Date)
	if err != nil {
		return nil, corrupt(fmt.Sprintf("operation %s", fo.ID), err)
	}
	pmID, err := parseID(fo.PaymentMethod, "operation payment method")
	if err != nil {
		return nil, err
	}
	budgetID, err := parseID(fo.Budget, "operation budget")
	if err != nil {
		return nil, err
	}

	op := &ledger.Operation{
		ID:            id,
		AccountID:     accountID,
		Date:          date,
		Amount:        amountIn(fo.Amount),
		Description:   fo.Description,
		Recipient:     fo.Recipient,
		PaymentMethod: pmID,
		Budget:        budgetID,
	}
	if fo.ScheduledID != "" {
		sid, err := parseID(fo.ScheduledID, "operation scheduled reference")
		if err != nil {
			return nil, err
		}
		op.ScheduledID = sid
	}
	return op, nil
}

func scheduledIn(accountID uuid.UUID, fs fileScheduled) (*ledger.ScheduledOperation, error) {
	id, err := parseID(fs.ID, "scheduled operation id")
	if err != nil {
		return nil, err
	}
	pmID, err := parseID(fs.PaymentMethod, "scheduled operation payment method")
	if err != nil {
		return nil, err
	}
	budgetID, err := parseID(fs.Budget, "scheduled operation budget")
	if err != nil {
		return nil, err
	}
	frequency, err := ledger.ParseFrequency(fs.Frequency)
	if err != nil {
		return nil, corrupt(fmt.Sprintf("scheduled operation %q", fs.Name), err)
	}
	anchor, err := ledger.ParseDate(fs.Anchor)
	if err != nil {
		return nil, corrupt(fmt.Sprintf("scheduled operation %q", fs.Name), err)
	}

	return &ledger.ScheduledOperation{
		ID:            id,
		AccountID:     accountID,
		Name:          fs.Name,
		Amount:        amountIn(fs.Amount),
		Description:   fs.Description,
		Recipient:     fs.Recipient,
		PaymentMethod: pmID,
		Budget:        budgetID,
		Schedule: ledger.Schedule{
			Frequency: frequency,
			Every:     fs.Every,
			Anchor:    anchor,
		},
	}, nil
}

func parseID(s, what string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, corrupt(fmt.Sprintf("invalid %s %q", what, s), err)
	}
	return id, nil
}

func amountOut(a money.Amount) fileAmount {
	return fileAmount{Units: a.Units(), Currency: a.Currency()}
}

func amountIn(fa fileAmount) money.Amount {
	return money.New(fa.Units, fa.Currency)
}
