package domain

import (
	"regexp"
	"time"
)

var (
	userKeyPattern = regexp.MustCompile(`^\d{8}[A-HJ-NP-TV-Z]$`)
	phonePattern   = regexp.MustCompile(`^(\+34|0034|34)?[6789]\d{8}$`)
)

// AdultAge is the minimum age to use the service.
const AdultAge = 18

// User is the domain representation of a registered user.
// Ride memberships and received ratings are relations owned by the ride and rating
// stores; they are not embedded here.
type User struct {
	Key UserKey

	FirstName string
	LastName  string
	Email     string
	Phone     string
	Birthdate time.Time // date-only semantics

	// PasswordHash is the stored credential. It never leaves the identity directory.
	PasswordHash string

	CreatedAt time.Time
}

// UserSummary is the public projection of a user attached to rides and ratings.
type UserSummary struct {
	Key       UserKey
	FirstName string
	LastName  string
}

func (u User) Summary() UserSummary {
	return UserSummary{Key: u.Key, FirstName: u.FirstName, LastName: u.LastName}
}

// ValidUserKey reports whether k has the national ID format: eight digits and a control letter.
func ValidUserKey(k UserKey) bool {
	return userKeyPattern.MatchString(string(k))
}

// ValidPhone reports whether p is a Spanish mobile or landline number, optionally prefixed.
func ValidPhone(p string) bool {
	return phonePattern.MatchString(p)
}

// IsAdult reports whether someone born on birthdate is strictly older than AdultAge on today.
func IsAdult(birthdate, today time.Time) bool {
	y, m, d := today.Date()
	limit := time.Date(y-AdultAge, m, d, 0, 0, 0, 0, time.UTC)
	by, bm, bd := birthdate.Date()
	return time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC).Before(limit)
}
