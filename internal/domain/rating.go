package domain

import (
	"time"
	"unicode/utf8"
)

const (
	MinScore = 1
	MaxScore = 5

	MaxRatingMessageLen = 200
)

// Rating is a score one ride participant gives another after sharing the ride.
// At most one rating exists per (ride, rater, rated) triple.
type Rating struct {
	ID      RatingID
	RideID  RideID
	Rater   UserKey
	Rated   UserKey
	Score   int
	Message string

	CreatedAt time.Time
}

// CheckRating applies the rating eligibility rules in order: the rated user was on the ride,
// the rater has not rated them for this ride yet, the rater was on the ride, and the score
// and message are in range.
func CheckRating(ride Ride, rater, rated UserKey, score int, message string, alreadyRated bool) error {
	if !ride.HasPassenger(rated) {
		return ErrRaterNotPassenger
	}
	if alreadyRated {
		return ErrAlreadyRated
	}
	if !ride.HasPassenger(rater) {
		return ErrRaterNotPassenger
	}
	if score < MinScore || score > MaxScore {
		return ErrInvalidScore
	}
	if utf8.RuneCountInString(message) > MaxRatingMessageLen {
		return ErrInvalidRatingMessage
	}
	return nil
}
