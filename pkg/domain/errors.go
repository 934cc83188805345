package domain

import (
	"errors"
	"fmt"
)

// Common domain errors
var (
	// ErrNotFound is returned when a requested resource is not found
	ErrNotFound = errors.New("resource not found")
	// ErrAlreadyExists is returned when trying to create a resource that already exists
	ErrAlreadyExists = errors.New("resource already exists")
	// ErrLockNotAvailable is returned when a row lock could not be acquired
	ErrLockNotAvailable = errors.New("lock not available")
	// ErrUnauthenticated is returned when a credential does not resolve to a business
	ErrUnauthenticated = errors.New("unauthenticated")
)

// Code identifies a ledger rule violation. Codes are stable and safe to
// expose to API clients.
type Code string

const (
	CodeInvalidAmount          Code = "invalid_amount"
	CodeInvalidID              Code = "invalid_id"
	CodeInvalidTransactionType Code = "invalid_transaction_type"
	CodeSameAccount            Code = "same_account"
	CodeNotOwner               Code = "not_owner"
	CodeAccountNotFound        Code = "account_not_found"
	CodeCurrencyMismatch       Code = "currency_mismatch"
	CodeInsufficientBalance    Code = "insufficient_balance"
	CodeOperationInProgress    Code = "operation_in_progress"
	CodeBusinessNotFound       Code = "business_not_found"
)

// Role names which account a not-found error refers to.
type Role string

const (
	RoleSource      Role = "source"
	RoleDestination Role = "destination"
	RoleAccount     Role = "account"
)

// Error is a business-rule outcome. It travels as a regular error value and
// is rendered to clients as a structured payload, never as a transport failure.
type Error struct {
	Code    Code
	Message string

	Field        string
	Role         Role
	FromCurrency string
	ToCurrency   string
	Available    int64
	Required     int64
}

func (e *Error) Error() string {
	switch e.Code {
	case CodeCurrencyMismatch:
		return fmt.Sprintf("%s: %s -> %s", e.Message, e.FromCurrency, e.ToCurrency)
	case CodeInsufficientBalance:
		return fmt.Sprintf("%s: available %d, required %d", e.Message, e.Available, e.Required)
	default:
		return e.Message
	}
}

// Is matches any *Error with the same code, so the sentinels below work with
// errors.Is regardless of the details carried.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Sentinels for errors.Is.
var (
	ErrInvalidAmount          = &Error{Code: CodeInvalidAmount, Message: "Amount must be positive"}
	ErrInvalidID              = &Error{Code: CodeInvalidID, Message: "Invalid id format"}
	ErrInvalidTransactionType = &Error{Code: CodeInvalidTransactionType, Message: "Invalid transaction_type. Must be 'credit' or 'debit'"}
	ErrSameAccount            = &Error{Code: CodeSameAccount, Message: "Cannot transfer to the same account"}
	ErrNotOwner               = &Error{Code: CodeNotOwner, Message: "Account does not belong to this business"}
	ErrAccountNotFound        = &Error{Code: CodeAccountNotFound, Message: "Account not found"}
	ErrCurrencyMismatch       = &Error{Code: CodeCurrencyMismatch, Message: "Currency mismatch"}
	ErrInsufficientBalance    = &Error{Code: CodeInsufficientBalance, Message: "Insufficient balance"}
	ErrOperationInProgress    = &Error{Code: CodeOperationInProgress, Message: "Operation in progress"}
	ErrBusinessNotFound       = &Error{Code: CodeBusinessNotFound, Message: "Business not found"}
)

// InvalidID reports a malformed identifier in the named request field.
func InvalidID(field string) *Error {
	return &Error{
		Code:    CodeInvalidID,
		Message: fmt.Sprintf("Invalid %s format", field),
		Field:   field,
	}
}

// AccountNotFound reports a missing account in the given role.
func AccountNotFound(role Role) *Error {
	msg := "Account not found"
	switch role {
	case RoleSource:
		msg = "Source account not found"
	case RoleDestination:
		msg = "Destination account not found"
	}
	return &Error{Code: CodeAccountNotFound, Message: msg, Role: role}
}

func CurrencyMismatch(from, to string) *Error {
	return &Error{
		Code:         CodeCurrencyMismatch,
		Message:      ErrCurrencyMismatch.Message,
		FromCurrency: from,
		ToCurrency:   to,
	}
}

func InsufficientBalance(available, required int64) *Error {
	return &Error{
		Code:      CodeInsufficientBalance,
		Message:   ErrInsufficientBalance.Message,
		Available: available,
		Required:  required,
	}
}

// AsError extracts a ledger rule error from err.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
