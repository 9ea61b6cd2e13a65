package ledger

import (
	"strings"

	"github.com/google/uuid"
	"golang.org/x/exp/slices"

	"github.com/picsou-app/picsou/money"
)

// zeroID is the nil entity id, used where no entity is involved.
var zeroID uuid.UUID

// User is an identity owning budgets and accounts. The credential only gates
// change-of-credential flows. Every user owns a default budget that acts as
// the catch-all category for uncategorized operations.
type User struct {
	ID         uuid.UUID
	Name       string
	Credential Credential
	Budgets    map[uuid.UUID]*Budget
	Accounts   map[uuid.UUID]*Account

	// DefaultBudget is the id of the user's catch-all budget. It always
	// resolves to an entry of Budgets and is never deletable.
	DefaultBudget uuid.UUID
}

// SortedBudgets returns the user's budgets ordered by name.
func (u *User) SortedBudgets() []*Budget {
	budgets := make([]*Budget, 0, len(u.Budgets))
	for _, b := range u.Budgets {
		budgets = append(budgets, b)
	}
	slices.SortFunc(budgets, func(a, b *Budget) int {
		return strings.Compare(a.Name, b.Name)
	})
	return budgets
}

// SortedAccounts returns the user's accounts ordered by name.
func (u *User) SortedAccounts() []*Account {
	accounts := make([]*Account, 0, len(u.Accounts))
	for _, a := range u.Accounts {
		accounts = append(accounts, a)
	}
	slices.SortFunc(accounts, func(a, b *Account) int {
		return strings.Compare(a.Name, b.Name)
	})
	return accounts
}

// Budget is a spending category owned by a user, with an optional target
// amount. A zero target means the budget is untracked.
type Budget struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	Name        string
	Description string
	Target      money.Amount
}

// Account belongs to exactly one user and owns its payment methods,
// operations and scheduled operations. An archived account rejects all
// mutations until unarchived.
type Account struct {
	ID             uuid.UUID
	UserID         uuid.UUID
	Name           string
	Notes          string
	Archived       bool
	InitialAmount  money.Amount
	PaymentMethods map[uuid.UUID]*PaymentMethod
	Scheduled      map[uuid.UUID]*ScheduledOperation

	// Operations preserves insertion order; searches break date ties by it.
	Operations []*Operation
}

// SortedPaymentMethods returns the account's payment methods ordered by name.
func (a *Account) SortedPaymentMethods() []*PaymentMethod {
	methods := make([]*PaymentMethod, 0, len(a.PaymentMethods))
	for _, pm := range a.PaymentMethods {
		methods = append(methods, pm)
	}
	slices.SortFunc(methods, func(a, b *PaymentMethod) int {
		return strings.Compare(a.Name, b.Name)
	})
	return methods
}

// SortedScheduled returns the account's scheduled operations ordered by name.
func (a *Account) SortedScheduled() []*ScheduledOperation {
	sops := make([]*ScheduledOperation, 0, len(a.Scheduled))
	for _, s := range a.Scheduled {
		sops = append(sops, s)
	}
	slices.SortFunc(sops, func(a, b *ScheduledOperation) int {
		return strings.Compare(a.Name, b.Name)
	})
	return sops
}

// PaymentMethodByName resolves a payment method by its name.
func (a *Account) PaymentMethodByName(name string) (*PaymentMethod, bool) {
	for _, pm := range a.PaymentMethods {
		if pm.Name == name {
			return pm, true
		}
	}
	return nil, false
}

// Balance returns the account's initial amount plus all operation amounts.
func (a *Account) Balance() money.Amount {
	total := a.InitialAmount
	for _, op := range a.Operations {
		sum, err := total.Add(op.Amount)
		if err != nil {
			// Mixed-currency operations do not sum; the running total
			// keeps the currency it started with.
			continue
		}
		total = sum
	}
	return total
}

// PaymentMethod is a named channel (card, cash, transfer) through which
// operations occur. It belongs to exactly one account.
type PaymentMethod struct {
	ID        uuid.UUID
	AccountID uuid.UUID
	Name      string
}

// Operation is a single recorded transaction. Positive amounts are credits,
// negative amounts are debits. Budget and PaymentMethod are non-owning
// references resolved through the Database.
type Operation struct {
	ID            uuid.UUID
	AccountID     uuid.UUID
	Date          Date
	Amount        money.Amount
	Description   string
	Recipient     string
	PaymentMethod uuid.UUID
	Budget        uuid.UUID

	// ScheduledID back-references the scheduled operation this operation
	// was materialized from; zero for operations entered directly.
	ScheduledID uuid.UUID
}

// identitySep separates identity tuple fields; 0x1f never occurs in dates,
// amounts or uuids and is vanishingly unlikely in free text.
const identitySep = "\x1f"

// Identity returns the de-duplication key of the operation: the tuple
// (date, amount, recipient, description, payment method). Two operations in
// the same account with equal identities are considered the same record.
func (o *Operation) Identity() string {
	return OperationIdentity(o.Date, o.Amount, o.Recipient, o.Description, o.PaymentMethod)
}

// OperationIdentity builds the identity tuple key without an Operation value,
// e.g. for an imported draft before insertion.
func OperationIdentity(date Date, amount money.Amount, recipient, description string, paymentMethod uuid.UUID) string {
	return strings.Join([]string{
		date.String(),
		amount.String(),
		recipient,
		description,
		paymentMethod.String(),
	}, identitySep)
}

// ScheduledOperation is a recurring-transaction template that generates
// operations over time according to its schedule.
type ScheduledOperation struct {
	ID            uuid.UUID
	AccountID     uuid.UUID
	Name          string
	Amount        money.Amount
	Description   string
	Recipient     string
	PaymentMethod uuid.UUID
	Budget        uuid.UUID
	Schedule      Schedule
}
