package domain

// UserKey is the natural identity of a user (a national ID document number).
// It is immutable and globally unique.
type UserKey string

// RideID is the auto-assigned identifier of a persisted ride.
type RideID int64

// RequestID is the auto-assigned identifier of a pending seat request.
type RequestID int64

// RatingID is the auto-assigned identifier of a rating.
type RatingID int64
