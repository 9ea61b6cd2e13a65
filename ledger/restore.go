package ledger

import "github.com/google/uuid"

// RestoreUser attaches a fully built user graph to the database, validating
// every cross-reference before indexing anything. It is the rebuild entry
// point for persistence collaborators loading a serialized database; regular
// callers use AddUser and friends instead.
func (db *Database) RestoreUser(u *User) error {
	if u.Name == "" {
		return NewValidationError("user", u.ID, "name", "username must not be empty")
	}
	if _, ok := db.UserByName(u.Name); ok {
		return NewDuplicateUserError(u.Name)
	}
	if u.Budgets == nil {
		u.Budgets = make(map[uuid.UUID]*Budget)
	}
	if u.Accounts == nil {
		u.Accounts = make(map[uuid.UUID]*Account)
	}
	var errs []error
	if _, ok := u.Budgets[u.DefaultBudget]; !ok {
		errs = append(errs, NewValidationError("user", u.ID, "default budget", "default budget does not resolve"))
	}

	for _, b := range u.Budgets {
		if b.UserID != u.ID {
			errs = append(errs, NewValidationError("budget", b.ID, "user", "budget owned by another user"))
		}
	}
	for _, acc := range u.Accounts {
		if acc.UserID != u.ID {
			errs = append(errs, NewValidationError("account", acc.ID, "user", "account owned by another user"))
		}
		if acc.PaymentMethods == nil {
			acc.PaymentMethods = make(map[uuid.UUID]*PaymentMethod)
		}
		if acc.Scheduled == nil {
			acc.Scheduled = make(map[uuid.UUID]*ScheduledOperation)
		}
		for _, pm := range acc.PaymentMethods {
			if pm.AccountID != acc.ID {
				errs = append(errs, NewValidationError("payment method", pm.ID, "account", "payment method owned by another account"))
			}
		}
		for _, op := range acc.Operations {
			if op.AccountID != acc.ID {
				errs = append(errs, NewValidationError("operation", op.ID, "account", "operation owned by another account"))
			}
			if _, ok := acc.PaymentMethods[op.PaymentMethod]; !ok {
				errs = append(errs, NewValidationError("operation", op.ID, "payment method", "payment method does not resolve"))
			}
			if _, ok := u.Budgets[op.Budget]; !ok {
				errs = append(errs, NewValidationError("operation", op.ID, "budget", "budget does not resolve"))
			}
		}
		for _, sop := range acc.Scheduled {
			if sop.AccountID != acc.ID {
				errs = append(errs, NewValidationError("scheduled operation", sop.ID, "account", "scheduled operation owned by another account"))
			}
			if _, ok := acc.PaymentMethods[sop.PaymentMethod]; !ok {
				errs = append(errs, NewValidationError("scheduled operation", sop.ID, "payment method", "payment method does not resolve"))
			}
			if _, ok := u.Budgets[sop.Budget]; !ok {
				errs = append(errs, NewValidationError("scheduled operation", sop.ID, "budget", "budget does not resolve"))
			}
			if err := sop.Schedule.Validate(); err != nil {
				errs = append(errs, err)
			}
		}
	}

	if len(errs) > 0 {
		return &ValidationErrors{Errors: errs}
	}

	db.users[u.ID] = u
	for _, b := range u.Budgets {
		db.budgets[b.ID] = b
	}
	for _, acc := range u.Accounts {
		db.accounts[acc.ID] = acc
		for _, pm := range acc.PaymentMethods {
			db.methods[pm.ID] = pm
		}
		for _, op := range acc.Operations {
			db.operations[op.ID] = op
		}
		for _, sop := range acc.Scheduled {
			db.scheduled[sop.ID] = sop
		}
	}
	return nil
}
