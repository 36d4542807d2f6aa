package booking

import (
	"context"
	"time"

	"github.com/Overland-East-Bay/carpool-api/internal/domain"
)

// Actor is the caller of a mutating or identity-scoped operation, as presented by the
// transport. It is re-verified against the Directory on every call.
type Actor struct {
	Email      string
	Credential string
}

// Directory is the identity lookup the booking service depends on.
type Directory interface {
	Authenticate(ctx context.Context, email, password string) (domain.User, error)
	FindByKey(ctx context.Context, key domain.UserKey) (domain.User, error)
	Summaries(ctx context.Context, keys []domain.UserKey) (map[domain.UserKey]domain.UserSummary, error)
}

type CreateRideInput struct {
	Origin        string
	Destination   string
	DepartureTime time.Time
	ArrivalTime   time.Time
	Seats         int
	SeatPrice     float64
}

type RateUserInput struct {
	RideID  domain.RideID
	Rated   domain.UserKey
	Score   int
	Message string
}

// RideSummary is the public view of a ride used in search results and pending lists.
type RideSummary struct {
	ID              domain.RideID
	Driver          domain.UserSummary
	OriginCity      string
	DestinationCity string
	DepartureTime   time.Time
	ArrivalTime     time.Time
	Seats           int
	AvailableSeats  int
	SeatPrice       float64
}

// RideDetails is the view of a ride shown to its driver and confirmed passengers.
type RideDetails struct {
	RideSummary

	Passengers      []domain.UserSummary
	PendingRequests int
}

type RequestView struct {
	ID        domain.RequestID
	User      domain.UserSummary
	Message   string
	CreatedAt time.Time
}

type RatingView struct {
	ID        domain.RatingID
	RideID    domain.RideID
	Rater     domain.UserSummary
	Score     int
	Message   string
	CreatedAt time.Time
}
