package ratingrepo

import (
	"context"

	"github.com/Overland-East-Bay/carpool-api/internal/domain"
)

type Repository interface {
	// Create assigns the rating ID. A second rating for the same (ride, rater, rated) triple
	// returns ErrAlreadyExists.
	Create(ctx context.Context, r domain.Rating) (domain.Rating, error)

	// Exists reports whether rater already rated rated for ride.
	Exists(ctx context.Context, ride domain.RideID, rater, rated domain.UserKey) (bool, error)

	// ListByRated returns the ratings a user received, newest first.
	ListByRated(ctx context.Context, rated domain.UserKey) ([]domain.Rating, error)
}
