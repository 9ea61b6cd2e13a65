// Package ledger implements the entity model of the finance tracker: a
// Database owning users, which own budgets and accounts, which own payment
// methods, operations and scheduled operations.
//
// All mutations go through Database methods. Each method validates the
// referential invariants of the model before touching any state, so a failed
// call leaves the Database fully unchanged:
//
//   - every operation and scheduled operation references a payment method of
//     its own account;
//   - every operation references a budget of the account's owner (the user's
//     default budget when none is given);
//   - removing a referenced payment method is blocked unless a cascading
//     delete is requested;
//   - removing a non-default budget reassigns its operations to the default
//     budget; the default budget itself is never deletable.
//
// Cross-entity references are uuid identifiers resolved through indexes on
// the Database, never embedded pointers, keeping ownership strictly acyclic.
//
// Example usage:
//
//	db := ledger.New("family", "household ledger")
//	user, err := db.AddUser("alice", "s3cret")
//	acc, err := db.AddAccount(user.ID, "checking", "", money.Amount{})
//	visa, err := db.AddPaymentMethod(acc.ID, "Visa")
//	op, err := db.AddOperation(acc.ID, ledger.OperationDraft{
//	    Date:          ledger.NewDate(2023, time.May, 1),
//	    Amount:        money.MustParse("-42.50", "EUR"),
//	    Description:   "Groceries",
//	    Recipient:     "Corner Store",
//	    PaymentMethod: visa.ID,
//	})
package ledger

import (
	"strings"

	"github.com/google/uuid"
	"golang.org/x/exp/slices"

	"github.com/picsou-app/picsou/money"
)

// DefaultBudgetName is the name of the per-user catch-all budget created
// alongside every user.
const DefaultBudgetName = "OTHER"

// Database is the root aggregate. It strictly owns its users and maintains
// id indexes over every entity in the graph for cross-reference resolution.
//
// A Database has a single logical owner: it is not safe for concurrent
// mutation. Readers needing a stable view take snapshots (see Operations).
type Database struct {
	name        string
	description string

	users map[uuid.UUID]*User

	// id indexes over the owned graph
	accounts   map[uuid.UUID]*Account
	budgets    map[uuid.UUID]*Budget
	methods    map[uuid.UUID]*PaymentMethod
	operations map[uuid.UUID]*Operation
	scheduled  map[uuid.UUID]*ScheduledOperation
}

// New creates an empty database with the given display name and description.
func New(name, description string) *Database {
	return &Database{
		name:        name,
		description: description,
		users:       make(map[uuid.UUID]*User),
		accounts:    make(map[uuid.UUID]*Account),
		budgets:     make(map[uuid.UUID]*Budget),
		methods:     make(map[uuid.UUID]*PaymentMethod),
		operations:  make(map[uuid.UUID]*Operation),
		scheduled:   make(map[uuid.UUID]*ScheduledOperation),
	}
}

// Name returns the database display name.
func (db *Database) Name() string { return db.name }

// Description returns the database description.
func (db *Database) Description() string { return db.description }

// SetInfo updates the database display name and description.
func (db *Database) SetInfo(name, description string) {
	db.name = name
	db.description = description
}

// Users

// AddUser creates a user with a unique username and an optional password.
// The user's default budget is created as part of the same mutation.
func (db *Database) AddUser(name, password string) (*User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, NewValidationError("user", zeroID, "name", "username must not be empty")
	}
	if _, ok := db.UserByName(name); ok {
		return nil, NewDuplicateUserError(name)
	}

	cred := Credential{}
	if password != "" {
		c, err := NewCredential(password)
		if err != nil {
			return nil, err
		}
		cred = c
	}

	user := &User{
		ID:         uuid.New(),
		Name:       name,
		Credential: cred,
		Budgets:    make(map[uuid.UUID]*Budget),
		Accounts:   make(map[uuid.UUID]*Account),
	}
	def := &Budget{
		ID:          uuid.New(),
		UserID:      user.ID,
		Name:        DefaultBudgetName,
		Description: "default catch-all budget",
	}
	user.Budgets[def.ID] = def
	user.DefaultBudget = def.ID

	db.users[user.ID] = user
	db.budgets[def.ID] = def
	return user, nil
}

// UpdateUser renames a user and optionally changes its credential. A
// credential change requires both the old and the new password; the old one
// must verify against the stored hash.
func (db *Database) UpdateUser(id uuid.UUID, name, oldPassword, newPassword string) error {
	user, ok := db.users[id]
	if !ok {
		return NewNotFoundError("user", id)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return NewValidationError("user", id, "name", "username must not be empty")
	}
	if other, ok := db.UserByName(name); ok && other.ID != id {
		return NewDuplicateUserError(name)
	}

	cred := user.Credential
	if oldPassword != "" || newPassword != "" {
		if !user.Credential.Verify(oldPassword) {
			return NewValidationError("user", id, "password", "old password does not match")
		}
		c, err := NewCredential(newPassword)
		if err != nil {
			return err
		}
		cred = c
	}

	user.Name = name
	user.Credential = cred
	return nil
}

// RemoveUser deletes a user and everything it owns.
func (db *Database) RemoveUser(id uuid.UUID) error {
	user, ok := db.users[id]
	if !ok {
		return NewNotFoundError("user", id)
	}
	for _, acc := range user.Accounts {
		db.unindexAccount(acc)
	}
	for _, b := range user.Budgets {
		delete(db.budgets, b.ID)
	}
	delete(db.users, id)
	return nil
}

// User resolves a user by id.
func (db *Database) User(id uuid.UUID) (*User, bool) {
	u, ok := db.users[id]
	return u, ok
}

// UserByName resolves a user by its unique username.
func (db *Database) UserByName(name string) (*User, bool) {
	for _, u := range db.users {
		if u.Name == name {
			return u, true
		}
	}
	return nil, false
}

// Users returns all users ordered by name.
func (db *Database) Users() []*User {
	users := make([]*User, 0, len(db.users))
	for _, u := range db.users {
		users = append(users, u)
	}
	slices.SortFunc(users, func(a, b *User) int {
		return strings.Compare(a.Name, b.Name)
	})
	return users
}

// Budgets

// AddBudget creates a budget for a user. Budget names are unique per user.
func (db *Database) AddBudget(userID uuid.UUID, name, description string, target money.Amount) (*Budget, error) {
	user, ok := db.users[userID]
	if !ok {
		return nil, NewNotFoundError("user", userID)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, NewValidationError("budget", zeroID, "name", "budget name must not be empty")
	}
	if _, ok := budgetByName(user, name); ok {
		return nil, NewValidationError("budget", zeroID, "name", "a budget with this name already exists")
	}

	budget := &Budget{
		ID:          uuid.New(),
		UserID:      userID,
		Name:        name,
		Description: description,
		Target:      target,
	}
	user.Budgets[budget.ID] = budget
	db.budgets[budget.ID] = budget
	return budget, nil
}

// UpdateBudget changes a budget's name, description and target amount.
func (db *Database) UpdateBudget(id uuid.UUID, name, description string, target money.Amount) error {
	budget, ok := db.budgets[id]
	if !ok {
		return NewNotFoundError("budget", id)
	}
	user := db.users[budget.UserID]
	name = strings.TrimSpace(name)
	if name == "" {
		return NewValidationError("budget", id, "name", "budget name must not be empty")
	}
	if other, ok := budgetByName(user, name); ok && other.ID != id {
		return NewValidationError("budget", id, "name", "a budget with this name already exists")
	}
	if id == user.DefaultBudget && name != budget.Name {
		return NewValidationError("budget", id, "name", "the default budget cannot be renamed")
	}

	budget.Name = name
	budget.Description = description
	budget.Target = target
	return nil
}

// RemoveBudget deletes a non-default budget. Operations and scheduled
// operations referencing it are reassigned to the owner's default budget, so
// removal never leaves a dangling reference and never fails for data reasons.
// The default budget itself is not deletable.
func (db *Database) RemoveBudget(id uuid.UUID) error {
	budget, ok := db.budgets[id]
	if !ok {
		return NewNotFoundError("budget", id)
	}
	user := db.users[budget.UserID]
	if id == user.DefaultBudget {
		return NewValidationError("budget", id, "", "the default budget cannot be deleted")
	}

	for _, acc := range user.Accounts {
		for _, op := range acc.Operations {
			if op.Budget == id {
				op.Budget = user.DefaultBudget
			}
		}
		for _, sop := range acc.Scheduled {
			if sop.Budget == id {
				sop.Budget = user.DefaultBudget
			}
		}
	}

	delete(user.Budgets, id)
	delete(db.budgets, id)
	return nil
}

// Budget resolves a budget by id.
func (db *Database) Budget(id uuid.UUID) (*Budget, bool) {
	b, ok := db.budgets[id]
	return b, ok
}

// DefaultBudget returns a user's catch-all budget.
func (db *Database) DefaultBudget(userID uuid.UUID) (*Budget, bool) {
	user, ok := db.users[userID]
	if !ok {
		return nil, false
	}
	b, ok := user.Budgets[user.DefaultBudget]
	return b, ok
}

func budgetByName(u *User, name string) (*Budget, bool) {
	for _, b := range u.Budgets {
		if b.Name == name {
			return b, true
		}
	}
	return nil, false
}

// Accounts

// AddAccount creates an account for a user.
func (db *Database) AddAccount(userID uuid.UUID, name, notes string, initial money.Amount) (*Account, error) {
	user, ok := db.users[userID]
	if !ok {
		return nil, NewNotFoundError("user", userID)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, NewValidationError("account", zeroID, "name", "account name must not be empty")
	}
	for _, acc := range user.Accounts {
		if acc.Name == name {
			return nil, NewValidationError("account", zeroID, "name", "an account with this name already exists")
		}
	}

	account := &Account{
		ID:             uuid.New(),
		UserID:         userID,
		Name:           name,
		Notes:          notes,
		InitialAmount:  initial,
		PaymentMethods: make(map[uuid.UUID]*PaymentMethod),
		Scheduled:      make(map[uuid.UUID]*ScheduledOperation),
	}
	user.Accounts[account.ID] = account
	db.accounts[account.ID] = account
	return account, nil
}

// UpdateAccount changes an account's name, notes, archived flag and initial
// amount. Unarchiving through this method is allowed; any other mutation of
// an archived account is rejected.
func (db *Database) UpdateAccount(id uuid.UUID, name, notes string, archived bool, initial money.Amount) error {
	account, ok := db.accounts[id]
	if !ok {
		return NewNotFoundError("account", id)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return NewValidationError("account", id, "name", "account name must not be empty")
	}
	user := db.users[account.UserID]
	for _, acc := range user.Accounts {
		if acc.Name == name && acc.ID != id {
			return NewValidationError("account", id, "name", "an account with this name already exists")
		}
	}

	account.Name = name
	account.Notes = notes
	account.Archived = archived
	account.InitialAmount = initial
	return nil
}

// RemoveAccount deletes an account and everything it owns.
func (db *Database) RemoveAccount(id uuid.UUID) error {
	account, ok := db.accounts[id]
	if !ok {
		return NewNotFoundError("account", id)
	}
	user := db.users[account.UserID]
	db.unindexAccount(account)
	delete(user.Accounts, id)
	return nil
}

// Account resolves an account by id.
func (db *Database) Account(id uuid.UUID) (*Account, bool) {
	a, ok := db.accounts[id]
	return a, ok
}

func (db *Database) unindexAccount(acc *Account) {
	for _, pm := range acc.PaymentMethods {
		delete(db.methods, pm.ID)
	}
	for _, op := range acc.Operations {
		delete(db.operations, op.ID)
	}
	for _, sop := range acc.Scheduled {
		delete(db.scheduled, sop.ID)
	}
	delete(db.accounts, acc.ID)
}

// Payment methods

// AddPaymentMethod creates a payment method under an account. Names are
// unique per account.
func (db *Database) AddPaymentMethod(accountID uuid.UUID, name string) (*PaymentMethod, error) {
	account, ok := db.accounts[accountID]
	if !ok {
		return nil, NewNotFoundError("account", accountID)
	}
	if account.Archived {
		return nil, NewValidationError("account", accountID, "", "cannot modify an archived account")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, NewValidationError("payment method", zeroID, "name", "payment method name must not be empty")
	}
	if _, ok := account.PaymentMethodByName(name); ok {
		return nil, NewValidationError("payment method", zeroID, "name", "a payment method with this name already exists")
	}

	pm := &PaymentMethod{ID: uuid.New(), AccountID: accountID, Name: name}
	account.PaymentMethods[pm.ID] = pm
	db.methods[pm.ID] = pm
	return pm, nil
}

// RenamePaymentMethod changes a payment method's name.
func (db *Database) RenamePaymentMethod(id uuid.UUID, name string) error {
	pm, ok := db.methods[id]
	if !ok {
		return NewNotFoundError("payment method", id)
	}
	account := db.accounts[pm.AccountID]
	if account.Archived {
		return NewValidationError("account", account.ID, "", "cannot modify an archived account")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return NewValidationError("payment method", id, "name", "payment method name must not be empty")
	}
	if other, ok := account.PaymentMethodByName(name); ok && other.ID != id {
		return NewValidationError("payment method", id, "name", "a payment method with this name already exists")
	}

	pm.Name = name
	return nil
}

// RemovePaymentMethod deletes a payment method. When operations or scheduled
// operations still reference it the delete is blocked with a
// ReferentialConflictError, unless cascade is set, in which case the
// referencing records are deleted first.
func (db *Database) RemovePaymentMethod(id uuid.UUID, cascade bool) error {
	pm, ok := db.methods[id]
	if !ok {
		return NewNotFoundError("payment method", id)
	}
	account := db.accounts[pm.AccountID]
	if account.Archived {
		return NewValidationError("account", account.ID, "", "cannot modify an archived account")
	}

	var ops, sops int
	for _, op := range account.Operations {
		if op.PaymentMethod == id {
			ops++
		}
	}
	for _, sop := range account.Scheduled {
		if sop.PaymentMethod == id {
			sops++
		}
	}
	if (ops > 0 || sops > 0) && !cascade {
		return NewReferentialConflictError("payment method", id, pm.Name, ops, sops)
	}

	if ops > 0 {
		kept := account.Operations[:0]
		for _, op := range account.Operations {
			if op.PaymentMethod == id {
				delete(db.operations, op.ID)
				continue
			}
			kept = append(kept, op)
		}
		account.Operations = kept
	}
	for _, sop := range account.Scheduled {
		if sop.PaymentMethod == id {
			delete(account.Scheduled, sop.ID)
			delete(db.scheduled, sop.ID)
		}
	}

	delete(account.PaymentMethods, id)
	delete(db.methods, id)
	return nil
}

// PaymentMethod resolves a payment method by id.
func (db *Database) PaymentMethod(id uuid.UUID) (*PaymentMethod, bool) {
	pm, ok := db.methods[id]
	return pm, ok
}

// Operations

// OperationDraft carries the fields of an operation to create or the new
// values of one being edited.
type OperationDraft struct {
	Date          Date
	Amount        money.Amount
	Description   string
	Recipient     string
	PaymentMethod uuid.UUID
	Budget        uuid.UUID // zero means the owner's default budget
	ScheduledID   uuid.UUID // set on materialized operations
}

// AddOperation records a transaction under an account. The draft's payment
// method must belong to the same account; the budget must belong to the
// account's owner and defaults to the owner's catch-all budget.
func (db *Database) AddOperation(accountID uuid.UUID, draft OperationDraft) (*Operation, error) {
	account, budget, err := db.validateDraft(accountID, draft)
	if err != nil {
		return nil, err
	}

	op := &Operation{
		ID:            uuid.New(),
		AccountID:     accountID,
		Date:          draft.Date,
		Amount:        draft.Amount,
		Description:   draft.Description,
		Recipient:     draft.Recipient,
		PaymentMethod: draft.PaymentMethod,
		Budget:        budget,
		ScheduledID:   draft.ScheduledID,
	}
	account.Operations = append(account.Operations, op)
	db.operations[op.ID] = op
	return op, nil
}

// UpdateOperation replaces an operation's fields. Its identity, account and
// scheduled-operation back-reference are preserved.
func (db *Database) UpdateOperation(id uuid.UUID, draft OperationDraft) error {
	op, ok := db.operations[id]
	if !ok {
		return NewNotFoundError("operation", id)
	}
	_, budget, err := db.validateDraft(op.AccountID, draft)
	if err != nil {
		return err
	}

	op.Date = draft.Date
	op.Amount = draft.Amount
	op.Description = draft.Description
	op.Recipient = draft.Recipient
	op.PaymentMethod = draft.PaymentMethod
	op.Budget = budget
	return nil
}

// RemoveOperation deletes an operation.
func (db *Database) RemoveOperation(id uuid.UUID) error {
	op, ok := db.operations[id]
	if !ok {
		return NewNotFoundError("operation", id)
	}
	account := db.accounts[op.AccountID]
	if account.Archived {
		return NewValidationError("account", account.ID, "", "cannot modify an archived account")
	}
	idx := slices.Index(account.Operations, op)
	account.Operations = slices.Delete(account.Operations, idx, idx+1)
	delete(db.operations, id)
	return nil
}

// Operation resolves an operation by id.
func (db *Database) Operation(id uuid.UUID) (*Operation, bool) {
	op, ok := db.operations[id]
	return op, ok
}

// Operations returns a copy of an account's operation list in insertion
// order. The copy is a stable read snapshot: structural edits to the account
// after the call do not affect it.
func (db *Database) Operations(accountID uuid.UUID) []*Operation {
	account, ok := db.accounts[accountID]
	if !ok {
		return nil
	}
	return slices.Clone(account.Operations)
}

// validateDraft checks an operation draft's referential invariants and
// resolves its budget, without mutating anything.
func (db *Database) validateDraft(accountID uuid.UUID, draft OperationDraft) (*Account, uuid.UUID, error) {
	account, ok := db.accounts[accountID]
	if !ok {
		return nil, zeroID, NewNotFoundError("account", accountID)
	}
	if account.Archived {
		return nil, zeroID, NewValidationError("account", accountID, "", "cannot modify an archived account")
	}
	if draft.Date.IsZero() {
		return nil, zeroID, NewValidationError("operation", zeroID, "date", "date must be set")
	}
	if len(account.PaymentMethods) == 0 {
		return nil, zeroID, NewValidationError("operation", zeroID, "payment method",
			"account has no payment methods; create one first")
	}
	if _, ok := account.PaymentMethods[draft.PaymentMethod]; !ok {
		return nil, zeroID, NewValidationError("operation", zeroID, "payment method",
			"payment method does not belong to this account")
	}

	user := db.users[account.UserID]
	budget := draft.Budget
	if budget == zeroID {
		budget = user.DefaultBudget
	} else if _, ok := user.Budgets[budget]; !ok {
		return nil, zeroID, NewValidationError("operation", zeroID, "budget",
			"budget does not belong to the account's owner")
	}
	return account, budget, nil
}

// Scheduled operations

// ScheduledDraft carries the fields of a scheduled operation to create or
// the new values of one being edited.
type ScheduledDraft struct {
	Name          string
	Amount        money.Amount
	Description   string
	Recipient     string
	PaymentMethod uuid.UUID
	Budget        uuid.UUID // zero means the owner's default budget
	Schedule      Schedule
}

// AddScheduledOperation creates a recurring-transaction template under an
// account. The same referential scoping as AddOperation applies.
func (db *Database) AddScheduledOperation(accountID uuid.UUID, draft ScheduledDraft) (*ScheduledOperation, error) {
	account, budget, err := db.validateScheduledDraft(accountID, draft)
	if err != nil {
		return nil, err
	}

	sop := &ScheduledOperation{
		ID:            uuid.New(),
		AccountID:     accountID,
		Name:          draft.Name,
		Amount:        draft.Amount,
		Description:   draft.Description,
		Recipient:     draft.Recipient,
		PaymentMethod: draft.PaymentMethod,
		Budget:        budget,
		Schedule:      draft.Schedule,
	}
	account.Scheduled[sop.ID] = sop
	db.scheduled[sop.ID] = sop
	return sop, nil
}

// UpdateScheduledOperation replaces a scheduled operation's fields. Already
// materialized operations are not retroactively altered.
func (db *Database) UpdateScheduledOperation(id uuid.UUID, draft ScheduledDraft) error {
	sop, ok := db.scheduled[id]
	if !ok {
		return NewNotFoundError("scheduled operation", id)
	}
	_, budget, err := db.validateScheduledDraft(sop.AccountID, draft)
	if err != nil {
		return err
	}

	sop.Name = draft.Name
	sop.Amount = draft.Amount
	sop.Description = draft.Description
	sop.Recipient = draft.Recipient
	sop.PaymentMethod = draft.PaymentMethod
	sop.Budget = budget
	sop.Schedule = draft.Schedule
	return nil
}

// RemoveScheduledOperation deletes a recurring-transaction template. Past
// materialized operations are left intact; they keep their back-reference to
// the deleted template's id.
func (db *Database) RemoveScheduledOperation(id uuid.UUID) error {
	sop, ok := db.scheduled[id]
	if !ok {
		return NewNotFoundError("scheduled operation", id)
	}
	account := db.accounts[sop.AccountID]
	if account.Archived {
		return NewValidationError("account", account.ID, "", "cannot modify an archived account")
	}
	delete(account.Scheduled, id)
	delete(db.scheduled, id)
	return nil
}

// ScheduledOperation resolves a scheduled operation by id.
func (db *Database) ScheduledOperation(id uuid.UUID) (*ScheduledOperation, bool) {
	sop, ok := db.scheduled[id]
	return sop, ok
}

func (db *Database) validateScheduledDraft(accountID uuid.UUID, draft ScheduledDraft) (*Account, uuid.UUID, error) {
	account, ok := db.accounts[accountID]
	if !ok {
		return nil, zeroID, NewNotFoundError("account", accountID)
	}
	if account.Archived {
		return nil, zeroID, NewValidationError("account", accountID, "", "cannot modify an archived account")
	}
	if strings.TrimSpace(draft.Name) == "" {
		return nil, zeroID, NewValidationError("scheduled operation", zeroID, "name", "name must not be empty")
	}
	if err := draft.Schedule.Validate(); err != nil {
		return nil, zeroID, err
	}
	if _, ok := account.PaymentMethods[draft.PaymentMethod]; !ok {
		return nil, zeroID, NewValidationError("scheduled operation", zeroID, "payment method",
			"payment method does not belong to this account")
	}

	user := db.users[account.UserID]
	budget := draft.Budget
	if budget == zeroID {
		budget = user.DefaultBudget
	} else if _, ok := user.Budgets[budget]; !ok {
		return nil, zeroID, NewValidationError("scheduled operation", zeroID, "budget",
			"budget does not belong to the account's owner")
	}
	return account, budget, nil
}
