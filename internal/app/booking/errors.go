package booking

import (
	"errors"
	"net/http"

	"github.com/Overland-East-Bay/carpool-api/internal/domain"
)

// Error is an application-layer error that can be mapped to an HTTP response.
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

var errRideModified = &Error{
	Status:  http.StatusConflict,
	Code:    "RIDE_MODIFIED",
	Message: "ride was modified concurrently; reload and retry",
}

// fromDomain maps a domain failure to its response status.
// A failed ownership check is a 403: the caller is authenticated, just not allowed.
func fromDomain(err error) error {
	var de *domain.Error
	if !errors.As(err, &de) {
		return err
	}
	status := http.StatusInternalServerError
	switch de.Kind {
	case domain.KindNotFound:
		status = http.StatusNotFound
	case domain.KindConflict:
		status = http.StatusConflict
	case domain.KindInvalidInput:
		status = http.StatusUnprocessableEntity
	case domain.KindNotParticipant:
		status = http.StatusForbidden
	case domain.KindUnauthorized:
		status = http.StatusUnauthorized
		if errors.Is(de, domain.ErrNotOwner) {
			status = http.StatusForbidden
		}
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
