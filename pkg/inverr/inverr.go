// Package inverr defines the error taxonomy of the inventory core.
//
// The six kinds below are the checked errors of the storage layer: they are
// always propagated to the caller, never swallowed or converted.
package inverr

import (
	"errors"
	"fmt"
)

// TenantNotFoundError reports that no tenant schema could be resolved for
// the caller-supplied tenant identifiers.
type TenantNotFoundError struct{}

func (e *TenantNotFoundError) Error() string { return "tenant not found" }

func NewTenantNotFound() error { return &TenantNotFoundError{} }

func IsTenantNotFound(err error) bool {
	_, ok := errors.AsType[*TenantNotFoundError](err)
	return ok
}

// ItemDoesNotExistError reports a referenced hub row that is absent. When a
// batch of keys was requested, Requested and Found carry both counts.
type ItemDoesNotExistError struct {
	msg       string
	Requested int
	Found     int
}

func (e *ItemDoesNotExistError) Error() string { return e.msg }

func NewItemDoesNotExist(msg string) error {
	return &ItemDoesNotExistError{msg: msg}
}

func NewItemCountMismatch(kind string, requested, found int) error {
	return &ItemDoesNotExistError{
		msg:       fmt.Sprintf("one of the %s does not exist, requested %d, database returned %d", kind, requested, found),
		Requested: requested,
		Found:     found,
	}
}

func IsItemDoesNotExist(err error) bool {
	_, ok := errors.AsType[*ItemDoesNotExistError](err)
	return ok
}

// ItemAlreadyExistError reports a duplicate active association. Count is the
// number of already-active link rows found by the precheck.
type ItemAlreadyExistError struct {
	Count int
}

func (e *ItemAlreadyExistError) Error() string {
	return fmt.Sprintf("some of the items are already associated, database returned %d", e.Count)
}

func NewItemAlreadyExist(count int) error { return &ItemAlreadyExistError{Count: count} }

func IsItemAlreadyExist(err error) bool {
	_, ok := errors.AsType[*ItemAlreadyExistError](err)
	return ok
}

// ProcessingError reports a post-condition verification failure or an
// unresolvable sort column.
type ProcessingError struct {
	msg string
}

func (e *ProcessingError) Error() string { return e.msg }

func NewProcessing(msg string) error { return &ProcessingError{msg: msg} }

func IsProcessing(err error) bool {
	_, ok := errors.AsType[*ProcessingError](err)
	return ok
}

// CoordinatesError reports latitude/longitude supplied asymmetrically.
type CoordinatesError struct {
	msg string
}

func (e *CoordinatesError) Error() string { return e.msg }

func NewCoordinates(msg string) error { return &CoordinatesError{msg: msg} }

func IsCoordinates(err error) bool {
	_, ok := errors.AsType[*CoordinatesError](err)
	return ok
}

// ValidationError reports invalid operation inputs, such as mismatched
// sort-column/direction lengths or an out-of-range page.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string { return e.msg }

func NewValidation(msg string) error { return &ValidationError{msg: msg} }

func IsValidation(err error) bool {
	_, ok := errors.AsType[*ValidationError](err)
	return ok
}
