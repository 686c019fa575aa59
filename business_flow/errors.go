// Package businessflow contains the core business logic and use cases for recurring invoicing workflows
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Account and customer errors
	ErrAccountNotFound  = errors.New("account not found")
	ErrAccountInactive  = errors.New("account is inactive")
	ErrCustomerNotFound = errors.New("customer not found")
	ErrCustomerInactive = errors.New("customer is inactive")

	// Schedule errors
	ErrScheduleNotFound         = errors.New("schedule not found")
	ErrScheduleNotActive        = errors.New("schedule is not active")
	ErrScheduleAccessDenied     = errors.New("schedule access denied")
	ErrScheduleUpdateNotAllowed = errors.New("schedule update not allowed")
	ErrInvalidFrequency         = errors.New("invalid frequency")
	ErrInvalidInterval          = errors.New("interval must be at least 1")
	ErrInvalidDayOfMonth        = errors.New("day of month must be between 1 and 28")
	ErrLineItemsRequired        = errors.New("at least one line item is required")
	ErrInvalidStatusTransition  = errors.New("invalid status transition")
	ErrEndDateBeforeStart       = errors.New("end date cannot be before start date")
	ErrInvalidAmount            = errors.New("invalid amount")

	// Invoice errors
	ErrInvoiceNotFound        = errors.New("invoice not found")
	ErrInvoiceAccessDenied    = errors.New("invoice access denied")
	ErrInvoiceNumberConflict  = errors.New("invoice number conflict")
	ErrScheduleNotDue         = errors.New("schedule is not due for generation")

	// Price change errors
	ErrPriceChangeNotFound       = errors.New("price change not found")
	ErrPriceChangeAlreadyApplied = errors.New("price change already applied")
	ErrEffectiveDateInPast       = errors.New("effective date cannot be in the past")

	// Infrastructure errors
	ErrCacheNotAvailable = errors.New("cache not available")

	// Filter errors
	ErrInvalidPage     = errors.New("page must be at least 1")
	ErrInvalidPageSize = errors.New("page size must be between 1 and 100")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewBusinessErrorf(code, message string, err error, args ...any) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: fmt.Sprintf(message, args...),
		Err:     err,
	}
}

func IsAccountNotFound(err error) bool {
	return errors.Is(err, ErrAccountNotFound)
}

func IsAccountInactive(err error) bool {
	return errors.Is(err, ErrAccountInactive)
}

func IsCustomerNotFound(err error) bool {
	return errors.Is(err, ErrCustomerNotFound)
}

func IsCustomerInactive(err error) bool {
	return errors.Is(err, ErrCustomerInactive)
}

func IsScheduleNotFound(err error) bool {
	return errors.Is(err, ErrScheduleNotFound)
}

func IsScheduleNotActive(err error) bool {
	return errors.Is(err, ErrScheduleNotActive)
}

func IsScheduleAccessDenied(err error) bool {
	return errors.Is(err, ErrScheduleAccessDenied)
}

func IsScheduleUpdateNotAllowed(err error) bool {
	return errors.Is(err, ErrScheduleUpdateNotAllowed)
}

func IsInvalidFrequency(err error) bool {
	return errors.Is(err, ErrInvalidFrequency)
}

func IsInvalidInterval(err error) bool {
	return errors.Is(err, ErrInvalidInterval)
}

func IsInvalidDayOfMonth(err error) bool {
	return errors.Is(err, ErrInvalidDayOfMonth)
}

func IsLineItemsRequired(err error) bool {
	return errors.Is(err, ErrLineItemsRequired)
}

func IsInvalidStatusTransition(err error) bool {
	return errors.Is(err, ErrInvalidStatusTransition)
}

func IsEndDateBeforeStart(err error) bool {
	return errors.Is(err, ErrEndDateBeforeStart)
}

func IsInvalidAmount(err error) bool {
	return errors.Is(err, ErrInvalidAmount)
}

func IsInvoiceNotFound(err error) bool {
	return errors.Is(err, ErrInvoiceNotFound)
}

func IsInvoiceAccessDenied(err error) bool {
	return errors.Is(err, ErrInvoiceAccessDenied)
}

func IsInvoiceNumberConflict(err error) bool {
	return errors.Is(err, ErrInvoiceNumberConflict)
}

func IsScheduleNotDue(err error) bool {
	return errors.Is(err, ErrScheduleNotDue)
}

func IsPriceChangeNotFound(err error) bool {
	return errors.Is(err, ErrPriceChangeNotFound)
}

func IsPriceChangeAlreadyApplied(err error) bool {
	return errors.Is(err, ErrPriceChangeAlreadyApplied)
}

func IsEffectiveDateInPast(err error) bool {
	return errors.Is(err, ErrEffectiveDateInPast)
}

func IsCacheNotAvailable(err error) bool {
	return errors.Is(err, ErrCacheNotAvailable)
}
