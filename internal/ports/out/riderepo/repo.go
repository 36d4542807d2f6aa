package riderepo

import (
	"context"
	"time"

	"github.com/Overland-East-Bay/carpool-api/internal/domain"
)

// Repository persists ride aggregates: the ride row, its passenger memberships and its pending requests.
//
// Result ordering expectations:
// - List methods return rides ordered by DepartureTime ascending, then ID ascending.
type Repository interface {
	// Create assigns ID (and request IDs), sets Version to 1 and returns the stored ride.
	// It returns ErrOverlapping if the driver already has a ride intersecting
	// [DepartureTime, ArrivalTime).
	Create(ctx context.Context, r domain.Ride) (domain.Ride, error)

	// Save replaces passengers and requests of an existing ride. r.Version must match the
	// stored version, otherwise ErrStale is returned. The returned ride carries the new version.
	Save(ctx context.Context, r domain.Ride) (domain.Ride, error)

	GetByID(ctx context.Context, id domain.RideID) (domain.Ride, error)

	// GetVisibleTo returns the ride only when user is its driver or a confirmed passenger;
	// otherwise ErrNotFound.
	GetVisibleTo(ctx context.Context, id domain.RideID, user domain.UserKey) (domain.Ride, error)

	// ListOverlapping returns the driver's rides whose [departure, arrival) intersects [from, to).
	ListOverlapping(ctx context.Context, driver domain.UserKey, from, to time.Time) ([]domain.Ride, error)

	// ListByCityPairAndWindow matches normalized cities and from <= departure <= to.
	ListByCityPairAndWindow(ctx context.Context, origin, destination string, from, to time.Time) ([]domain.Ride, error)

	// ListByDriverAfter returns rides the user drives departing strictly after t.
	ListByDriverAfter(ctx context.Context, driver domain.UserKey, t time.Time) ([]domain.Ride, error)

	// ListByPassengerAfter returns rides the user is a member of (driver included) departing strictly after t.
	ListByPassengerAfter(ctx context.Context, user domain.UserKey, t time.Time) ([]domain.Ride, error)

	// ListByPendingRequesterAfter returns rides where the user has an open request, departing strictly after t.
	ListByPendingRequesterAfter(ctx context.Context, user domain.UserKey, t time.Time) ([]domain.Ride, error)
}
