package models

import (
	"errors"
	"net/http"
)

// ErrorKind classifies application errors so transport code can map them to
// HTTP statuses without inspecting messages.
type ErrorKind string

const (
	ErrForbidden        ErrorKind = "forbidden"
	ErrNotFound         ErrorKind = "not_found"
	ErrInvalidReference ErrorKind = "invalid_reference"
	ErrExpired          ErrorKind = "expired"
	ErrAlreadyAccepted  ErrorKind = "already_accepted"
	ErrConflict         ErrorKind = "conflict"
	ErrExternalService  ErrorKind = "external_service"
	ErrInternal         ErrorKind = "internal_error"
)

// AppError is the error type returned by domain services. Message is safe to
// show to API clients; Details is for logs only.
type AppError struct {
	Kind    ErrorKind
	Message string
	Details error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Details
}

// HTTPStatus maps the error kind to a response status code.
func (e *AppError) HTTPStatus() int {
	switch e.Kind {
	case ErrForbidden:
		return http.StatusForbidden
	case ErrNotFound:
		return http.StatusNotFound
	case ErrInvalidReference:
		return http.StatusUnprocessableEntity
	case ErrExpired, ErrAlreadyAccepted:
		return http.StatusGone
	case ErrConflict:
		return http.StatusConflict
	case ErrExternalService:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func NewForbiddenError(message string) *AppError {
	return &AppError{Kind: ErrForbidden, Message: message}
}

func NewNotFoundError(message string) *AppError {
	return &AppError{Kind: ErrNotFound, Message: message}
}

func NewInvalidReferenceError(message string) *AppError {
	return &AppError{Kind: ErrInvalidReference, Message: message}
}

func NewExpiredError(message string) *AppError {
	return &AppError{Kind: ErrExpired, Message: message}
}

func NewAlreadyAcceptedError(message string) *AppError {
	return &AppError{Kind: ErrAlreadyAccepted, Message: message}
}

func NewConflictError(message string) *AppError {
	return &AppError{Kind: ErrConflict, Message: message}
}

func NewExternalServiceError(message string) *AppError {
	return &AppError{Kind: ErrExternalService, Message: message}
}

func NewInternalError(message string) *AppError {
	return &AppError{Kind: ErrInternal, Message: message}
}

// AsAppError returns err as an *AppError, wrapping unknown errors as internal
// so unexpected failures never leak driver or SQL details to clients.
func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return &AppError{Kind: ErrInternal, Message: "something went wrong", Details: err}
}
