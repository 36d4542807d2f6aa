package riderepo

import "errors"

var (
	ErrNotFound = errors.New("ride not found")

	// ErrStale indicates the ride was saved by someone else since it was loaded.
	ErrStale = errors.New("ride was modified concurrently")

	// ErrOverlapping is returned by Create when the driver already has a ride
	// intersecting the new one.
	ErrOverlapping = errors.New("driver already has a ride in that interval")
)
