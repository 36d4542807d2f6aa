package users

import (
	"net/http"

	"github.com/Overland-East-Bay/carpool-api/internal/domain"
)

// Error is an application-layer error that can be mapped to an HTTP response.
// When it originates from a domain rule, Err holds the domain sentinel.
type Error struct {
	Status  int
	Code    string
	Message string
	Details map[string]any

	Err error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	return e.Code
}

func (e *Error) Unwrap() error { return e.Err }

func fromDomain(de *domain.Error) *Error {
	status := http.StatusInternalServerError
	switch de.Kind {
	case domain.KindNotFound:
		status = http.StatusNotFound
	case domain.KindUnauthorized:
		status = http.StatusUnauthorized
	case domain.KindInvalidInput:
		status = http.StatusUnprocessableEntity
	case domain.KindConflict:
		status = http.StatusConflict
	}
	return &Error{Status: status, Code: de.Code, Message: de.Message, Err: de}
}

func validationError(field, msg string) *Error {
	return &Error{
		Status:  http.StatusUnprocessableEntity,
		Code:    "VALIDATION_ERROR",
		Message: "invalid " + field,
		Details: map[string]any{field: msg},
	}
}
