package domain

import "time"

const (
	MinSeatPrice = 1.0
	MaxSeatPrice = 100.0

	MinSeats = 1
	MaxSeats = 10
)

// RideRequest is a pending ask to join a ride. It is removed when accepted or denied;
// it never persists in an accepted or denied state.
type RideRequest struct {
	ID        RequestID
	User      UserKey
	Message   string
	CreatedAt time.Time
}

// Ride is a driver's offer to travel from OriginCity to DestinationCity during
// [DepartureTime, ArrivalTime).
//
// Passengers is the membership relation for this ride. The driver is always its first
// entry and occupies one of the Seats, so seat accounting never special-cases the driver.
type Ride struct {
	ID     RideID
	Driver UserKey

	// Cities are stored normalized (see NormalizeCity).
	OriginCity      string
	DestinationCity string

	DepartureTime time.Time
	ArrivalTime   time.Time

	Seats     int
	SeatPrice float64

	Passengers []UserKey
	Requests   []RideRequest

	// Version is bumped by the store on every save; a stale version is rejected.
	Version int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewRideParams is the validated input of ride creation.
type NewRideParams struct {
	Driver        UserKey
	Origin        string
	Destination   string
	DepartureTime time.Time
	ArrivalTime   time.Time
	Seats         int
	SeatPrice     float64
}

// NewRide validates p and builds an unsaved ride with the driver as the sole occupant.
// Overlap with the driver's other rides is checked by the caller against the store.
func NewRide(p NewRideParams, now time.Time) (Ride, error) {
	origin := NormalizeCity(p.Origin)
	destination := NormalizeCity(p.Destination)
	if origin == "" || destination == "" || origin == destination {
		return Ride{}, ErrInvalidOriginDestination
	}
	if p.SeatPrice < MinSeatPrice || p.SeatPrice > MaxSeatPrice {
		return Ride{}, ErrInvalidPrice
	}
	if p.Seats < MinSeats || p.Seats > MaxSeats {
		return Ride{}, ErrInvalidSeatCount
	}
	if !p.DepartureTime.Before(p.ArrivalTime) {
		return Ride{}, ErrInvalidSchedule
	}
	return Ride{
		Driver:          p.Driver,
		OriginCity:      origin,
		DestinationCity: destination,
		DepartureTime:   p.DepartureTime,
		ArrivalTime:     p.ArrivalTime,
		Seats:           p.Seats,
		SeatPrice:       p.SeatPrice,
		Passengers:      []UserKey{p.Driver},
		Requests:        []RideRequest{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// AvailableSeats is Seats minus the confirmed occupants (driver included).
func (r Ride) AvailableSeats() int {
	n := r.Seats - len(r.Passengers)
	if n < 0 {
		return 0
	}
	return n
}

func (r Ride) IsDriver(k UserKey) bool { return r.Driver == k }

func (r Ride) HasPassenger(k UserKey) bool {
	for _, p := range r.Passengers {
		if p == k {
			return true
		}
	}
	return false
}

func (r Ride) HasRequest(k UserKey) bool {
	return r.requestIndex(k) >= 0
}

// IsVisibleTo reports whether k may see the ride details: the driver or a confirmed passenger.
func (r Ride) IsVisibleTo(k UserKey) bool {
	return r.IsDriver(k) || r.HasPassenger(k)
}

// OverlapsInterval reports whether [DepartureTime, ArrivalTime) intersects [from, to).
func (r Ride) OverlapsInterval(from, to time.Time) bool {
	return Overlaps(r.DepartureTime, r.ArrivalTime, from, to)
}

// Overlaps is the strict half-open interval intersection test: touching intervals do not overlap.
func Overlaps(d1, a1, d2, a2 time.Time) bool {
	return d1.Before(a2) && d2.Before(a1)
}

// RequestSeat appends a pending request from user. No seat is reserved.
func (r *Ride) RequestSeat(user UserKey, message string, now time.Time) error {
	// The driver is also the first passenger, so this must run before HasPassenger
	// for the driver to get USER_IS_OWNER rather than ALREADY_PASSENGER.
	if r.IsDriver(user) {
		return ErrUserIsOwner
	}
	if r.HasRequest(user) {
		return ErrAlreadyRequested
	}
	if r.HasPassenger(user) {
		return ErrAlreadyPassenger
	}
	if len(r.Passengers) >= r.Seats {
		return ErrNoSeatsLeft
	}
	r.Requests = append(r.Requests, RideRequest{User: user, Message: message, CreatedAt: now})
	return nil
}

// AcceptRequest moves target's pending request into Passengers.
//
// The request is consumed before the seat check: when the ride is already full the
// request is gone and ErrNoSeatsLeft is returned. Callers persist the ride in both cases.
func (r *Ride) AcceptRequest(acting, target UserKey) error {
	if !r.IsDriver(acting) {
		return ErrNotOwner
	}
	if !r.removeRequest(target) {
		return ErrRequestNotFound
	}
	if r.AvailableSeats() == 0 {
		return ErrNoSeatsLeft
	}
	r.Passengers = append(r.Passengers, target)
	return nil
}

// DenyRequest discards target's pending request.
func (r *Ride) DenyRequest(acting, target UserKey) error {
	if !r.IsDriver(acting) {
		return ErrNotOwner
	}
	if !r.removeRequest(target) {
		return ErrRequestNotFound
	}
	return nil
}

func (r Ride) requestIndex(k UserKey) int {
	for i, req := range r.Requests {
		if req.User == k {
			return i
		}
	}
	return -1
}

func (r *Ride) removeRequest(k UserKey) bool {
	i := r.requestIndex(k)
	if i < 0 {
		return false
	}
	out := make([]RideRequest, 0, len(r.Requests)-1)
	out = append(out, r.Requests[:i]...)
	out = append(out, r.Requests[i+1:]...)
	r.Requests = out
	return true
}

// Clone returns a deep copy; stores hand out clones so callers never share slices.
func (r Ride) Clone() Ride {
	cp := r
	if r.Passengers != nil {
		cp.Passengers = append([]UserKey(nil), r.Passengers...)
	}
	if r.Requests != nil {
		cp.Requests = append([]RideRequest(nil), r.Requests...)
	}
	return cp
}

// SearchWindow returns the inclusive departure window used by ride search:
// from the given instant until the last instant of the same calendar day.
func SearchWindow(from time.Time) (time.Time, time.Time) {
	y, m, d := from.Date()
	end := time.Date(y, m, d, 23, 59, 59, int(time.Second-time.Nanosecond), from.Location())
	return from, end
}
