package ledger

import (
	"fmt"

	"github.com/google/uuid"
)

// Error types for entity model violations. Each error carries enough context
// (entity kind, id, field) for a caller to render a user-facing message.

// ValidationError is returned when a field value violates an entity invariant,
// such as an empty username or a payment method from another account.
type ValidationError struct {
	Entity string    // entity kind, e.g. "user", "operation"
	ID     uuid.UUID // offending entity id, zero when not yet created
	Field  string    // field name, empty when the entity as a whole is invalid
	Reason string
}

func (e *ValidationError) Error() string {
	subject := e.Entity
	if e.ID != uuid.Nil {
		subject = fmt.Sprintf("%s %s", e.Entity, e.ID)
	}
	if e.Field != "" {
		return fmt.Sprintf("invalid %s: field %q: %s", subject, e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s: %s", subject, e.Reason)
}

// NewValidationError creates an error for an invalid entity field.
func NewValidationError(entity string, id uuid.UUID, field, reason string) *ValidationError {
	return &ValidationError{Entity: entity, ID: id, Field: field, Reason: reason}
}

// DuplicateUserError is returned when adding a user whose username collides
// with an existing one.
type DuplicateUserError struct {
	Name string
}

func (e *DuplicateUserError) Error() string {
	return fmt.Sprintf("user %q already exists", e.Name)
}

// NewDuplicateUserError creates an error for a username collision.
func NewDuplicateUserError(name string) *DuplicateUserError {
	return &DuplicateUserError{Name: name}
}

// ReferentialConflictError is returned when a delete is blocked by live
// references, e.g. removing a payment method still used by operations.
type ReferentialConflictError struct {
	Entity              string
	ID                  uuid.UUID
	Name                string
	Operations          int // referencing operations
	ScheduledOperations int // referencing scheduled operations
}

func (e *ReferentialConflictError) Error() string {
	return fmt.Sprintf("%s %q is referenced by %d operation(s) and %d scheduled operation(s)",
		e.Entity, e.Name, e.Operations, e.ScheduledOperations)
}

// NewReferentialConflictError creates an error for a delete blocked by references.
func NewReferentialConflictError(entity string, id uuid.UUID, name string, ops, sops int) *ReferentialConflictError {
	return &ReferentialConflictError{Entity: entity, ID: id, Name: name, Operations: ops, ScheduledOperations: sops}
}

// ValidationErrors collects every violation found in one validation pass, so
// a caller can report all problems at once instead of fixing them one by one.
type ValidationErrors struct {
	Errors []error
}

func (e *ValidationErrors) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%d validation errors, first: %v", len(e.Errors), e.Errors[0])
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (e *ValidationErrors) Unwrap() []error {
	return e.Errors
}

// NotFoundError is returned when an id does not resolve to a known entity.
type NotFoundError struct {
	Entity string
	ID     uuid.UUID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("unknown %s %s", e.Entity, e.ID)
}

// NewNotFoundError creates an error for an unresolved entity reference.
func NewNotFoundError(entity string, id uuid.UUID) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: id}
}
