package ratingrepo

import "errors"

var (
	// ErrAlreadyExists indicates a rating already exists for the (ride, rater, rated) triple.
	ErrAlreadyExists = errors.New("rating already exists")
)
