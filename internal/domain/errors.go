package domain

import "errors"

// Kind classifies a domain failure so adapters can map it to a response without
// knowing every individual rule.
type Kind string

const (
	KindNotFound       Kind = "NOT_FOUND"
	KindConflict       Kind = "CONFLICT"
	KindInvalidInput   Kind = "INVALID_INPUT"
	KindUnauthorized   Kind = "UNAUTHORIZED"
	KindNotParticipant Kind = "NOT_PARTICIPANT"
)

// Error is a typed, synchronous domain failure. Values are compared by Code,
// so wrapped copies still match the sentinels below with errors.Is.
type Error struct {
	Kind    Kind
	Code    string
	Message string
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

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

func newError(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

// Ride creation.
var (
	ErrInvalidOriginDestination = newError(KindInvalidInput, "INVALID_ORIGIN_DESTINATION", "origin and destination must be different cities")
	ErrInvalidPrice             = newError(KindInvalidInput, "INVALID_PRICE", "seat price must be between 1 and 100")
	ErrInvalidSeatCount         = newError(KindInvalidInput, "INVALID_SEAT_COUNT", "seats must be between 1 and 10")
	ErrInvalidSchedule          = newError(KindInvalidInput, "INVALID_SCHEDULE", "departure time must be before arrival time")
	ErrOverlappingRide          = newError(KindConflict, "OVERLAPPING_RIDE", "driver already has a ride in that time interval")
)

// Seat-request lifecycle.
var (
	ErrAlreadyRequested = newError(KindConflict, "ALREADY_REQUESTED", "user already has a pending request on this ride")
	ErrAlreadyPassenger = newError(KindConflict, "ALREADY_PASSENGER", "user already holds a seat on this ride")
	ErrNoSeatsLeft      = newError(KindConflict, "NO_SEATS_LEFT", "ride has no seats left")
	ErrUserIsOwner      = newError(KindConflict, "USER_IS_OWNER", "the driver cannot request a seat on their own ride")
	ErrNotOwner         = newError(KindUnauthorized, "NOT_OWNER", "only the driver can perform this action")
	ErrRequestNotFound  = newError(KindNotFound, "REQUEST_NOT_FOUND", "no pending request from that user")
)

// Ratings.
var (
	ErrRaterNotPassenger    = newError(KindNotParticipant, "NOT_RIDE_PARTICIPANT", "both users must have shared the ride")
	ErrAlreadyRated         = newError(KindConflict, "ALREADY_RATED", "user was already rated by this rater for this ride")
	ErrInvalidScore         = newError(KindInvalidInput, "INVALID_SCORE", "score must be between 1 and 5")
	ErrInvalidRatingMessage = newError(KindInvalidInput, "INVALID_RATING_MESSAGE", "rating message cannot be longer than 200 characters")
)

// Lookups and identity.
var (
	ErrRideNotFound = newError(KindNotFound, "RIDE_NOT_FOUND", "ride not found")
	ErrUserNotFound = newError(KindNotFound, "USER_NOT_FOUND", "user not found")
	ErrLogin        = newError(KindUnauthorized, "LOGIN_ERROR", "invalid credentials")
)

// KindOf reports the Kind of a domain error, or "" when err is not one.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}
