package models

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindNotFound               ErrorKind = "not_found"
	KindConflict               ErrorKind = "conflict"
	KindForbidden              ErrorKind = "forbidden"
	KindInvalid                ErrorKind = "invalid"
	KindUnauthorized           ErrorKind = "unauthorized"
	KindReconciliationRequired ErrorKind = "reconciliation_required"
	KindUpstreamFailure        ErrorKind = "upstream_failure"
)

// AppError is a domain failure with a kind for transport mapping and a stable code.
type AppError struct {
	Kind    ErrorKind
	Code    string
	Message string
}

func (e *AppError) Error() string {
	return e.Message
}

var (
	ErrEventNotFound   = &AppError{Kind: KindNotFound, Code: "event_not_found", Message: "event not found"}
	ErrTicketNotFound  = &AppError{Kind: KindNotFound, Code: "ticket_not_found", Message: "ticket not found"}
	ErrPaymentNotFound = &AppError{Kind: KindNotFound, Code: "payment_not_found", Message: "payment not found"}
	ErrUserNotFound    = &AppError{Kind: KindNotFound, Code: "user_not_found", Message: "user not found"}

	ErrAlreadyBooked    = &AppError{Kind: KindConflict, Code: "already_booked", Message: "ticket already booked for this event"}
	ErrAlreadyCancelled = &AppError{Kind: KindConflict, Code: "already_cancelled", Message: "ticket already cancelled"}
	ErrAlreadyUsed      = &AppError{Kind: KindConflict, Code: "already_used", Message: "ticket already used"}
	ErrSoldOut          = &AppError{Kind: KindConflict, Code: "sold_out", Message: "no tickets available for this event"}
	ErrEventCancelled   = &AppError{Kind: KindConflict, Code: "event_cancelled", Message: "this event has been cancelled"}
	ErrTicketCancelled  = &AppError{Kind: KindConflict, Code: "ticket_cancelled", Message: "ticket has been cancelled"}
	ErrUserExists       = &AppError{Kind: KindConflict, Code: "user_exists", Message: "email or username already in use"}

	ErrNotOwner  = &AppError{Kind: KindForbidden, Code: "not_owner", Message: "resource does not belong to the user"}
	ErrForbidden = &AppError{Kind: KindForbidden, Code: "forbidden", Message: "not authorized"}

	ErrInvalidEvent        = &AppError{Kind: KindInvalid, Code: "invalid_event", Message: "invalid or free event"}
	ErrPaidEvent           = &AppError{Kind: KindInvalid, Code: "invalid_event", Message: "event requires payment"}
	ErrInvalidInput        = &AppError{Kind: KindInvalid, Code: "invalid_input", Message: "invalid input"}
	ErrInvalidSignature    = &AppError{Kind: KindInvalid, Code: "invalid_signature", Message: "invalid payment signature"}
	ErrUnsupportedProvider = &AppError{Kind: KindInvalid, Code: "unsupported_provider", Message: "unsupported payment provider"}
	ErrWeakPassword        = &AppError{Kind: KindInvalid, Code: "weak_password", Message: "password is not strong enough"}

	ErrUnauthorized       = &AppError{Kind: KindUnauthorized, Code: "unauthorized", Message: "unauthorized"}
	ErrInvalidCredentials = &AppError{Kind: KindUnauthorized, Code: "invalid_credentials", Message: "invalid email or password"}
	ErrInvalidOTP         = &AppError{Kind: KindUnauthorized, Code: "invalid_otp", Message: "invalid or expired otp"}

	ErrReconciliationRequired = &AppError{Kind: KindReconciliationRequired, Code: "reconciliation_required", Message: "payment completed but ticket could not be issued"}
	ErrUpstreamFailure        = &AppError{Kind: KindUpstreamFailure, Code: "upstream_failure", Message: "upstream service unavailable"}
)

// Upstream wraps a collaborator failure so errors.Is(err, ErrUpstreamFailure) holds.
func Upstream(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrUpstreamFailure, err)
}

// Invalid reports a validation failure with a caller-facing message.
func Invalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, msg)
}

// AsAppError returns the first AppError in the chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

func KindOf(err error) ErrorKind {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Kind
	}
	return ""
}
