package bookstore

import (
	"errors"
	"fmt"
)

var (
	ErrValidation = errors.New("validation failed")

	ErrNotFound      = errors.New("not found")
	ErrUserNotFound  = fmt.Errorf("user %w", ErrNotFound)
	ErrStoreNotFound = fmt.Errorf("store %w", ErrNotFound)
	ErrBookNotFound  = fmt.Errorf("book %w", ErrNotFound)
	ErrOrderNotFound = fmt.Errorf("order %w", ErrNotFound)

	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")

	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInsufficientStock = errors.New("insufficient stock")

	ErrConflict         = errors.New("conflict")
	ErrEmailTaken       = fmt.Errorf("%w: user already exists", ErrConflict)
	ErrStoreExists      = fmt.Errorf("%w: owner already has a store", ErrConflict)
	ErrDuplicateRequest = fmt.Errorf("%w: duplicate request key", ErrConflict)

	// ErrIntegrity marks a persistence failure after an earlier step of the
	// same unit succeeded. The unit is rolled back; the error is logged.
	ErrIntegrity = errors.New("integrity failure")
)

// ValidationError rejects malformed or out-of-range input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func Invalid(field, msg string) error { return &ValidationError{Field: field, Message: msg} }

// Rejection is a business-rule refusal whose Message is shown to the client
// verbatim ("Insufficient store balance for update").
type Rejection struct {
	Kind    error
	Message string
}

func (r *Rejection) Error() string { return r.Message }
func (r *Rejection) Unwrap() error { return r.Kind }

func Reject(kind error, msg string) error { return &Rejection{Kind: kind, Message: msg} }

func IsNotFound(err error) bool          { return errors.Is(err, ErrNotFound) }
func IsForbidden(err error) bool         { return errors.Is(err, ErrForbidden) }
func IsConflict(err error) bool          { return errors.Is(err, ErrConflict) }
func IsValidation(err error) bool        { return errors.Is(err, ErrValidation) }
func IsUnauthenticated(err error) bool   { return errors.Is(err, ErrUnauthenticated) }
func IsInsufficientFunds(err error) bool { return errors.Is(err, ErrInsufficientFunds) }
func IsInsufficientStock(err error) bool { return errors.Is(err, ErrInsufficientStock) }

// IsBusiness reports whether err is a client-correctable rejection as opposed
// to an infrastructure or integrity failure.
func IsBusiness(err error) bool {
	return IsValidation(err) || IsNotFound(err) || IsForbidden(err) || IsConflict(err) ||
		IsUnauthenticated(err) || IsInsufficientFunds(err) || IsInsufficientStock(err)
}
