package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidState = errors.New("invalid state")
	ErrValidation   = errors.New("validation failed")
	ErrConflict     = errors.New("conflict")
)

type Kind string

const (
	KindUser       Kind = "USER"
	KindRestaurant Kind = "RESTAURANT"
	KindMenuItem   Kind = "MENU_ITEM"
	KindOrder      Kind = "ORDER"
)

// NotFoundError reports a missing entity. ID holds the unresolved identifier(s).
type NotFoundError struct {
	Kind Kind
	ID   any
}

func NotFound(kind Kind, id any) *NotFoundError {
	return &NotFoundError{Kind: kind, ID: id}
}

func (e *NotFoundError) Error() string {
	switch e.Kind {
	case KindUser:
		return fmt.Sprintf("User not found with id: %v", e.ID)
	case KindRestaurant:
		return fmt.Sprintf("Restaurant not found with id: %v", e.ID)
	case KindMenuItem:
		return fmt.Sprintf("Menu item not found with id: %v", e.ID)
	case KindOrder:
		return fmt.Sprintf("Order not found with id: %v", e.ID)
	}
	return fmt.Sprintf("%s not found with id: %v", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// InvalidStateError reports an operation attempted from a status that does not allow it.
type InvalidStateError struct {
	Operation string
	Current   string
	Reason    string
}

func InvalidState(operation, current, reason string) *InvalidStateError {
	return &InvalidStateError{Operation: operation, Current: current, Reason: reason}
}

func (e *InvalidStateError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s: %s (current status %s)", e.Operation, e.Reason, e.Current)
	}
	return fmt.Sprintf("%s not allowed from status %s", e.Operation, e.Current)
}

func (e *InvalidStateError) Is(target error) bool { return target == ErrInvalidState }

// Validation wraps ErrValidation with a message for the request boundary.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsPermanent reports errors that redelivery cannot fix.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidState) || errors.Is(err, ErrValidation)
}
