package inventory

import (
	"errors"
	"fmt"
)

// PartNotFoundError is returned when the requested part does not exist.
type PartNotFoundError struct {
	ID string
}

// Error implements the error interface.
func (e PartNotFoundError) Error() string {
	return fmt.Sprintf("part %q not found", e.ID)
}

// OrderNotFoundError is returned when the requested order does not exist.
type OrderNotFoundError struct {
	ID string
}

// Error implements the error interface.
func (e OrderNotFoundError) Error() string {
	return fmt.Sprintf("order %q not found", e.ID)
}

// VersionConflictError is returned when a record changed since the caller read it.
type VersionConflictError struct {
	Kind string
	ID   string
}

// Error implements the error interface.
func (e VersionConflictError) Error() string {
	return fmt.Sprintf("%s %q was modified concurrently; reload and retry", e.Kind, e.ID)
}

// DuplicatePartNumberError is returned when another part already uses the part number.
type DuplicatePartNumberError struct {
	PartNumber string
}

// Error implements the error interface.
func (e DuplicatePartNumberError) Error() string {
	return fmt.Sprintf("part number %q is already in use", e.PartNumber)
}

// InsufficientStockError is returned when an adjustment would take stock below zero.
type InsufficientStockError struct {
	PartID    string
	Available int
	Requested int
}

// Error implements the error interface.
func (e InsufficientStockError) Error() string {
	return fmt.Sprintf("part %q has %d on hand, cannot remove %d", e.PartID, e.Available, e.Requested)
}

// InvalidOrderTransitionError is returned when an order cannot move to the requested status.
type InvalidOrderTransitionError struct {
	ID   string
	From string
	To   string
}

// Error implements the error interface.
func (e InvalidOrderTransitionError) Error() string {
	return fmt.Sprintf("order %q cannot move from %s to %s", e.ID, e.From, e.To)
}

// OrderNotEditableError is returned when a non-draft order is edited.
type OrderNotEditableError struct {
	ID     string
	Status string
}

// Error implements the error interface.
func (e OrderNotEditableError) Error() string {
	return fmt.Sprintf("order %q is %s; only draft orders can be edited", e.ID, e.Status)
}

// ValidationError is returned for input that fails domain validation.
type ValidationError struct {
	Field  string
	Reason string
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

// ReplenishmentUnavailableError is returned when no workflow engine is configured.
type ReplenishmentUnavailableError struct{}

// Error implements the error interface.
func (ReplenishmentUnavailableError) Error() string {
	return "replenishment workflows are not configured"
}

// ReplenishmentNotFoundError is returned when no replenishment run has the given id.
type ReplenishmentNotFoundError struct {
	RunID string
}

// Error implements the error interface.
func (e ReplenishmentNotFoundError) Error() string {
	return fmt.Sprintf("replenishment run %q not found", e.RunID)
}

func isConflict(err error) bool {
	var ce VersionConflictError
	return errors.As(err, &ce)
}
