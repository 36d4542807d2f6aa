package riderepo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Overland-East-Bay/carpool-api/internal/domain"
	"github.com/Overland-East-Bay/carpool-api/internal/ports/out/riderepo"
)

// Repo is an in-memory implementation of riderepo.Repository.
// It is safe for concurrent use.
type Repo struct {
	mu   sync.RWMutex
	byID map[domain.RideID]domain.Ride

	nextRideID    domain.RideID
	nextRequestID domain.RequestID
}

func NewRepo() *Repo {
	return &Repo{
		byID: make(map[domain.RideID]domain.Ride),
	}
}

func (r *Repo) Create(ctx context.Context, ride domain.Ride) (domain.Ride, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, cur := range r.byID {
		if cur.Driver == ride.Driver && cur.OverlapsInterval(ride.DepartureTime, ride.ArrivalTime) {
			return domain.Ride{}, riderepo.ErrOverlapping
		}
	}

	r.nextRideID++
	ride = ride.Clone()
	ride.ID = r.nextRideID
	ride.Version = 1
	r.assignRequestIDs(&ride)
	r.byID[ride.ID] = ride
	return ride.Clone(), nil
}

func (r *Repo) Save(ctx context.Context, ride domain.Ride) (domain.Ride, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.byID[ride.ID]
	if !ok {
		return domain.Ride{}, riderepo.ErrNotFound
	}
	if cur.Version != ride.Version {
		return domain.Ride{}, riderepo.ErrStale
	}
	ride = ride.Clone()
	ride.Version = cur.Version + 1
	r.assignRequestIDs(&ride)
	r.byID[ride.ID] = ride
	return ride.Clone(), nil
}

func (r *Repo) GetByID(ctx context.Context, id domain.RideID) (domain.Ride, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	ride, ok := r.byID[id]
	if !ok {
		return domain.Ride{}, riderepo.ErrNotFound
	}
	return ride.Clone(), nil
}

func (r *Repo) GetVisibleTo(ctx context.Context, id domain.RideID, user domain.UserKey) (domain.Ride, error) {
	ride, err := r.GetByID(ctx, id)
	if err != nil {
		return domain.Ride{}, err
	}
	if !ride.IsVisibleTo(user) {
		return domain.Ride{}, riderepo.ErrNotFound
	}
	return ride, nil
}

func (r *Repo) ListOverlapping(ctx context.Context, driver domain.UserKey, from, to time.Time) ([]domain.Ride, error) {
	return r.list(ctx, func(ride domain.Ride) bool {
		return ride.Driver == driver && ride.OverlapsInterval(from, to)
	})
}

func (r *Repo) ListByCityPairAndWindow(ctx context.Context, origin, destination string, from, to time.Time) ([]domain.Ride, error) {
	return r.list(ctx, func(ride domain.Ride) bool {
		return ride.OriginCity == origin &&
			ride.DestinationCity == destination &&
			!ride.DepartureTime.Before(from) &&
			!ride.DepartureTime.After(to)
	})
}

func (r *Repo) ListByDriverAfter(ctx context.Context, driver domain.UserKey, t time.Time) ([]domain.Ride, error) {
	return r.list(ctx, func(ride domain.Ride) bool {
		return ride.Driver == driver && ride.DepartureTime.After(t)
	})
}

func (r *Repo) ListByPassengerAfter(ctx context.Context, user domain.UserKey, t time.Time) ([]domain.Ride, error) {
	return r.list(ctx, func(ride domain.Ride) bool {
		return ride.HasPassenger(user) && ride.DepartureTime.After(t)
	})
}

func (r *Repo) ListByPendingRequesterAfter(ctx context.Context, user domain.UserKey, t time.Time) ([]domain.Ride, error) {
	return r.list(ctx, func(ride domain.Ride) bool {
		return ride.HasRequest(user) && ride.DepartureTime.After(t)
	})
}

func (r *Repo) list(ctx context.Context, keep func(domain.Ride) bool) ([]domain.Ride, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Ride, 0)
	for _, ride := range r.byID {
		if keep(ride) {
			out = append(out, ride.Clone())
		}
	}
	sortRides(out)
	return out, nil
}

// assignRequestIDs must be called with mu held.
func (r *Repo) assignRequestIDs(ride *domain.Ride) {
	for i := range ride.Requests {
		if ride.Requests[i].ID == 0 {
			r.nextRequestID++
			ride.Requests[i].ID = r.nextRequestID
		}
	}
}

func sortRides(rs []domain.Ride) {
	sort.Slice(rs, func(i, j int) bool {
		if rs[i].DepartureTime.Equal(rs[j].DepartureTime) {
			return rs[i].ID < rs[j].ID
		}
		return rs[i].DepartureTime.Before(rs[j].DepartureTime)
	})
}
