package errors

import (
	"errors"
	"fmt"
)

// Domain errors
var (
	ErrInvalidLoanParameters  = errors.New("invalid loan parameters")
	ErrLoanNotFound           = errors.New("loan not found")
	ErrRepaymentNotFound      = errors.New("repayment not found")
	ErrGuarantorNotFound      = errors.New("guarantor not found")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrGuarantorsUnresolved   = errors.New("guarantors have not all approved")
	ErrRepaymentAlreadyPaid   = errors.New("repayment already paid")
	ErrUnauthorized           = errors.New("unauthorized")
	ErrForbidden              = errors.New("forbidden")
)

// BusinessError represents a business logic error
type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

// NewBusinessError creates a new business error
func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Error codes
const (
	ErrCodeInvalidLoanParameters  = "INVALID_LOAN_PARAMETERS"
	ErrCodeLoanNotFound           = "LOAN_NOT_FOUND"
	ErrCodeRepaymentNotFound      = "REPAYMENT_NOT_FOUND"
	ErrCodeGuarantorNotFound      = "GUARANTOR_NOT_FOUND"
	ErrCodeInvalidStateTransition = "INVALID_STATE_TRANSITION"
	ErrCodeGuarantorsUnresolved   = "GUARANTORS_UNRESOLVED"
	ErrCodeRepaymentAlreadyPaid   = "REPAYMENT_ALREADY_PAID"
	ErrCodeUnauthorized           = "UNAUTHORIZED"
	ErrCodeForbidden              = "FORBIDDEN"
	ErrCodeDatabaseError          = "DATABASE_ERROR"
	ErrCodeCacheError             = "CACHE_ERROR"
	ErrCodeNotificationError      = "NOTIFICATION_ERROR"
)

// CodeOf returns the business code carried by err, or "" for plain errors.
func CodeOf(err error) string {
	var be *BusinessError
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}

// Wrap common errors with business context
func WrapInvalidLoanParameters(reason string) *BusinessError {
	return NewBusinessError(
		ErrCodeInvalidLoanParameters,
		reason,
		ErrInvalidLoanParameters,
	)
}

func WrapLoanNotFound(loanID string) *BusinessError {
	return NewBusinessError(
		ErrCodeLoanNotFound,
		fmt.Sprintf("Loan with ID %s not found", loanID),
		ErrLoanNotFound,
	)
}

func WrapRepaymentNotFound(repaymentID string) *BusinessError {
	return NewBusinessError(
		ErrCodeRepaymentNotFound,
		fmt.Sprintf("Repayment with ID %s not found", repaymentID),
		ErrRepaymentNotFound,
	)
}

func WrapGuarantorNotFound(loanID, memberID string) *BusinessError {
	return NewBusinessError(
		ErrCodeGuarantorNotFound,
		fmt.Sprintf("Member %s is not a guarantor of loan %s", memberID, loanID),
		ErrGuarantorNotFound,
	)
}

func WrapInvalidStateTransition(entity, from, to string) *BusinessError {
	return NewBusinessError(
		ErrCodeInvalidStateTransition,
		fmt.Sprintf("%s cannot move from %s to %s", entity, from, to),
		ErrInvalidStateTransition,
	)
}

func WrapLoanNotActive(loanID, status string) *BusinessError {
	return NewBusinessError(
		ErrCodeInvalidStateTransition,
		fmt.Sprintf("Loan %s is %s, repayments need an active loan", loanID, status),
		ErrInvalidStateTransition,
	)
}

func WrapGuarantorsUnresolved(loanID string) *BusinessError {
	return NewBusinessError(
		ErrCodeGuarantorsUnresolved,
		fmt.Sprintf("Loan %s still has guarantors pending approval", loanID),
		ErrGuarantorsUnresolved,
	)
}

func WrapRepaymentAlreadyPaid(repaymentID string) *BusinessError {
	return NewBusinessError(
		ErrCodeRepaymentAlreadyPaid,
		fmt.Sprintf("Repayment %s is already paid", repaymentID),
		ErrRepaymentAlreadyPaid,
	)
}

func WrapUnauthorized(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeUnauthorized,
		"session is missing or invalid",
		errors.Join(ErrUnauthorized, err),
	)
}

func WrapForbidden(loanID string) *BusinessError {
	return NewBusinessError(
		ErrCodeForbidden,
		fmt.Sprintf("Loan %s belongs to another member", loanID),
		ErrForbidden,
	)
}

func WrapDatabaseError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeDatabaseError,
		"database operation failed",
		err,
	)
}

func WrapCacheError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeCacheError,
		"Cache operation failed",
		err,
	)
}

func WrapNotificationError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeNotificationError,
		"notification delivery failed",
		err,
	)
}
