package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/parsebank-dev/parsebank/internal/model"
)

// APIError is the JSON body of every error response.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewBadRequestError creates a 400 error.
func NewBadRequestError(message string, cause error) *APIError {
	return withCause(&APIError{Status: http.StatusBadRequest, Code: "BAD_REQUEST", Message: message}, cause)
}

// NewTooLargeError creates a 413 error.
func NewTooLargeError(limit int64) *APIError {
	return &APIError{
		Status:  http.StatusRequestEntityTooLarge,
		Code:    "PAYLOAD_TOO_LARGE",
		Message: fmt.Sprintf("file exceeds %d bytes", limit),
	}
}

// NewInternalError creates a 500 error.
func NewInternalError(message string, cause error) *APIError {
	return withCause(&APIError{Status: http.StatusInternalServerError, Code: "INTERNAL_ERROR", Message: message}, cause)
}

func withCause(e *APIError, cause error) *APIError {
	if cause != nil {
		e.Details = cause.Error()
	}
	return e
}

// documentError maps a pipeline or acquire failure to its response.
func documentError(err error) *APIError {
	switch {
	case errors.Is(err, model.ErrUnsupportedFileType):
		return withCause(&APIError{
			Status:  http.StatusUnsupportedMediaType,
			Code:    "UNSUPPORTED_FILE_TYPE",
			Message: "file type is not supported",
		}, err)
	case errors.Is(err, model.ErrUnreadableDocument):
		return withCause(&APIError{
			Status:  http.StatusUnprocessableEntity,
			Code:    "UNREADABLE_DOCUMENT",
			Message: "document could not be read",
		}, err)
	case errors.Is(err, context.DeadlineExceeded):
		return withCause(&APIError{
			Status:  http.StatusGatewayTimeout,
			Code:    "TIMEOUT",
			Message: "extraction timed out",
		}, err)
	}
	return NewInternalError("extraction failed", err)
}

// ErrorHandler renders every error as an APIError.
// Usage: e.HTTPErrorHandler = api.ErrorHandler
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var apiErr *APIError
	var httpErr *echo.HTTPError
	switch {
	case errors.As(err, &apiErr):
	case errors.As(err, &httpErr):
		apiErr = &APIError{
			Status:  httpErr.Code,
			Code:    httpCode(httpErr.Code),
			Message: fmt.Sprintf("%v", httpErr.Message),
		}
	default:
		apiErr = NewInternalError("an unexpected error occurred", err)
	}

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(apiErr.Status)
		return
	}
	_ = c.JSON(apiErr.Status, apiErr)
}

func httpCode(status int) string {
	switch status {
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusMethodNotAllowed:
		return "METHOD_NOT_ALLOWED"
	case http.StatusRequestEntityTooLarge:
		return "PAYLOAD_TOO_LARGE"
	}
	return "HTTP_ERROR"
}
