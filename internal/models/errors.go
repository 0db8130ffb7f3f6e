package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a domain error for the HTTP layer.
type ErrorKind string

const (
	KindValidation      ErrorKind = "validation"
	KindNotFound        ErrorKind = "not_found"
	KindConflict        ErrorKind = "conflict"
	KindExternalFailure ErrorKind = "external_failure"
	KindIntegrityAlert  ErrorKind = "integrity_alert"
)

// DomainError is the structured (kind, message) pair every service error
// surfaces as. Handlers map Kind to an HTTP status; Message is safe to show.
type DomainError struct {
	Kind    ErrorKind
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

// Is makes two domain errors with the same code equal under errors.Is,
// so sentinel comparison works after wrapping.
func (e *DomainError) Is(target error) bool {
	var de *DomainError
	if errors.As(target, &de) {
		return de.Code == e.Code
	}
	return false
}

func newDomainError(kind ErrorKind, code, message string) *DomainError {
	return &DomainError{Kind: kind, Code: code, Message: message}
}

var (
	ErrTitleNotFound = newDomainError(KindNotFound, "TITLE_NOT_FOUND", "title not found")
	ErrUserNotFound  = newDomainError(KindNotFound, "USER_NOT_FOUND", "user not found")
	ErrLoanNotFound  = newDomainError(KindNotFound, "LOAN_NOT_FOUND", "loan not found")
	ErrCopyNotFound  = newDomainError(KindNotFound, "COPY_NOT_FOUND", "copy not found")

	ErrNoCopyAvailable      = newDomainError(KindConflict, "NO_COPY_AVAILABLE", "no copy of this title is available")
	ErrCopyUnavailable      = newDomainError(KindConflict, "COPY_UNAVAILABLE", "the requested copy is not available")
	ErrAlreadyBorrowing     = newDomainError(KindConflict, "ALREADY_BORROWING", "user already has an open loan for this title")
	ErrRenewalLimitExceeded = newDomainError(KindConflict, "RENEWAL_LIMIT_EXCEEDED", "loan has reached its renewal limit")
	ErrLoanOverdue          = newDomainError(KindConflict, "LOAN_OVERDUE", "overdue loans cannot be renewed")
	ErrLoanAlreadyClosed    = newDomainError(KindConflict, "LOAN_ALREADY_CLOSED", "loan is already closed")
	ErrWrongPaymentMethod   = newDomainError(KindConflict, "WRONG_PAYMENT_METHOD", "payment method does not match the prepared payment")
	ErrPaymentNotPending    = newDomainError(KindConflict, "PAYMENT_NOT_PENDING", "no pending payment on this loan")
	ErrCopiesOutstanding    = newDomainError(KindConflict, "COPIES_OUTSTANDING", "all copies must be available before the title can be removed")
	ErrEmailTaken           = newDomainError(KindConflict, "EMAIL_TAKEN", "email is already registered")
	ErrUserLocked           = newDomainError(KindConflict, "USER_LOCKED", "account is locked")

	ErrInconsistentCopyState = newDomainError(KindIntegrityAlert, "INCONSISTENT_COPY_STATE", "copy state does not match the loan that should hold it")

	ErrGatewayMisconfigured = newDomainError(KindExternalFailure, "GATEWAY_MISCONFIGURED", "payment gateway is not configured")
	ErrInvalidSignature     = newDomainError(KindExternalFailure, "INVALID_SIGNATURE", "payment callback signature mismatch")
	ErrPaymentRejected      = newDomainError(KindExternalFailure, "PAYMENT_REJECTED", "payment was rejected by the processor")
)

// Validation builds a request-specific validation error.
func Validation(format string, args ...interface{}) *DomainError {
	return &DomainError{
		Kind:    KindValidation,
		Code:    "VALIDATION_ERROR",
		Message: fmt.Sprintf(format, args...),
	}
}
