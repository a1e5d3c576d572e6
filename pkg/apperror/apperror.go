package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrForbidden = errors.New("forbidden")
	ErrDuplicate = errors.New("duplicate")
)

// AppError carries an HTTP status and a user-facing message alongside the cause.
type AppError struct {
	Code    int
	Message string
	Err     error
}

func New(code int, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func BadRequest(message string, err error) *AppError {
	return New(http.StatusBadRequest, message, err)
}

func Unauthorized(message string, err error) *AppError {
	return New(http.StatusUnauthorized, message, err)
}

func Forbidden(message string) *AppError {
	return New(http.StatusForbidden, message, ErrForbidden)
}

func NotFound(message string) *AppError {
	return New(http.StatusNotFound, message, ErrNotFound)
}

func Internal(message string, err error) *AppError {
	return New(http.StatusInternalServerError, message, err)
}

// Status maps any error to an HTTP status code and a message safe to show.
func Status(err error) (int, string) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code, appErr.Message
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, ErrDuplicate):
		return http.StatusConflict, "duplicate"
	}
	return http.StatusInternalServerError, "internal server error"
}
