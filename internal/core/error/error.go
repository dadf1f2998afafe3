package errx

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	// SystemErrorMessage is a user-facing fallback when internal errors occur.
	SystemErrorMessage = "internal server error"
	// RedisErrorMessage describes Redis related failures.
	RedisErrorMessage = "redis operation failed"
	// RedisNotFoundMessage describes a missing Redis key.
	RedisNotFoundMessage = "redis key not found"
	// ProviderErrorMessage describes generation/search backend failures.
	ProviderErrorMessage = "capability provider failed"
	// IndexUnavailableMessage describes a missing or empty similarity index.
	IndexUnavailableMessage = "similarity index unavailable"
)

// Error taxonomy shared by the capability adapters, handlers and transport.
var (
	// ErrProvider marks a generation or search backend that is unreachable,
	// unauthenticated or returned malformed output.
	ErrProvider = errors.New("provider error")
	// ErrIndexUnavailable marks a similarity index that is missing or empty.
	ErrIndexUnavailable = errors.New("index unavailable")
	// ErrPathEscape marks a download token resolving outside the permitted root.
	ErrPathEscape = errors.New("path escapes download root")
	// ErrNotFound marks a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrEmptyInput marks a handler precondition on required state fields.
	ErrEmptyInput = errors.New("required input is empty")
	// ErrMissingCredential marks a capability whose API key is not configured.
	ErrMissingCredential = errors.New("missing credential")
)

// AppError wraps an underlying error with an HTTP status and safe message.
type AppError struct {
	Err     error
	Status  int
	Message string
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError with the provided information.
func New(err error, status int, message string) *AppError {
	return &AppError{
		Err:     err,
		Status:  status,
		Message: message,
	}
}

// WrapProvider tags err as a ProviderError while keeping the cause inspectable.
func WrapProvider(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrProvider) {
		return err
	}
	return New(fmt.Errorf("%w: %w", ErrProvider, err), http.StatusBadGateway, ProviderErrorMessage)
}

// WrapIndex tags err as IndexUnavailable.
func WrapIndex(err error) error {
	if err == nil {
		return New(ErrIndexUnavailable, http.StatusServiceUnavailable, IndexUnavailableMessage)
	}
	if errors.Is(err, ErrIndexUnavailable) {
		return err
	}
	return New(fmt.Errorf("%w: %w", ErrIndexUnavailable, err), http.StatusServiceUnavailable, IndexUnavailableMessage)
}

// StatusOf maps any error to the HTTP status it should surface as.
func StatusOf(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Status != 0 {
		return appErr.Status
	}
	switch {
	case errors.Is(err, ErrPathEscape):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrEmptyInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrProvider):
		return http.StatusBadGateway
	case errors.Is(err, ErrIndexUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
