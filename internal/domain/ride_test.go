package domain

import (
	"errors"
	"testing"
	"time"
)

func hour(day, h int) time.Time {
	return time.Date(2026, 3, day, h, 0, 0, 0, time.UTC)
}

func newTestRide(t *testing.T, seats int) Ride {
	t.Helper()
	r, err := NewRide(NewRideParams{
		Driver:        "11111111H",
		Origin:        "Madrid",
		Destination:   "Málaga",
		DepartureTime: hour(3, 10),
		ArrivalTime:   hour(3, 12),
		Seats:         seats,
		SeatPrice:     10,
	}, hour(1, 9))
	if err != nil {
		t.Fatalf("NewRide: %v", err)
	}
	return r
}

func TestNewRide_Validation(t *testing.T) {
	t.Parallel()

	base := NewRideParams{
		Driver:        "11111111H",
		Origin:        "Madrid",
		Destination:   "Málaga",
		DepartureTime: hour(3, 10),
		ArrivalTime:   hour(3, 12),
		Seats:         3,
		SeatPrice:     10,
	}
	cases := []struct {
		name   string
		mutate func(*NewRideParams)
		want   error
	}{
		{"same city after normalization", func(p *NewRideParams) { p.Destination = " MAD rid" }, ErrInvalidOriginDestination},
		{"blank origin", func(p *NewRideParams) { p.Origin = "  " }, ErrInvalidOriginDestination},
		{"price below", func(p *NewRideParams) { p.SeatPrice = 0.99 }, ErrInvalidPrice},
		{"price above", func(p *NewRideParams) { p.SeatPrice = 100.01 }, ErrInvalidPrice},
		{"no seats", func(p *NewRideParams) { p.Seats = 0 }, ErrInvalidSeatCount},
		{"too many seats", func(p *NewRideParams) { p.Seats = 11 }, ErrInvalidSeatCount},
		{"arrival equals departure", func(p *NewRideParams) { p.ArrivalTime = p.DepartureTime }, ErrInvalidSchedule},
	}
	for _, tc := range cases {
		p := base
		tc.mutate(&p)
		if _, err := NewRide(p, hour(1, 9)); !errors.Is(err, tc.want) {
			t.Fatalf("%s: err=%v, want %v", tc.name, err, tc.want)
		}
	}

	for _, p := range []NewRideParams{
		func() NewRideParams { p := base; p.SeatPrice = MinSeatPrice; p.Seats = MinSeats; return p }(),
		func() NewRideParams { p := base; p.SeatPrice = MaxSeatPrice; p.Seats = MaxSeats; return p }(),
	} {
		if _, err := NewRide(p, hour(1, 9)); err != nil {
			t.Fatalf("bounds should be accepted: %v", err)
		}
	}
}

func TestNewRide_DriverOccupiesSeat(t *testing.T) {
	t.Parallel()

	r := newTestRide(t, 3)
	if len(r.Passengers) != 1 || r.Passengers[0] != r.Driver {
		t.Fatalf("passengers=%v, want only driver", r.Passengers)
	}
	if got := r.AvailableSeats(); got != 2 {
		t.Fatalf("AvailableSeats=%d, want 2", got)
	}
	if r.OriginCity != "madrid" || r.DestinationCity != "malaga" {
		t.Fatalf("cities=%q/%q, want normalized", r.OriginCity, r.DestinationCity)
	}
	if !r.IsVisibleTo(r.Driver) || r.IsVisibleTo("22222222J") {
		t.Fatalf("visibility should be limited to occupants")
	}
}

func TestRide_RequestSeat_DriverCheckPrecedesPassengerAndSeats(t *testing.T) {
	t.Parallel()

	// One seat, taken by the driver: the driver is both a passenger and facing a full ride.
	r := newTestRide(t, 1)
	if !r.HasPassenger(r.Driver) {
		t.Fatalf("driver should be listed as a passenger")
	}
	err := r.RequestSeat(r.Driver, "", hour(2, 9))
	if !errors.Is(err, ErrUserIsOwner) {
		t.Fatalf("driver request err=%v, want ErrUserIsOwner", err)
	}
	if errors.Is(err, ErrAlreadyPassenger) || errors.Is(err, ErrNoSeatsLeft) {
		t.Fatalf("driver request err=%v, should not report passenger or seat errors", err)
	}
}

func TestRide_RequestAcceptDeny(t *testing.T) {
	t.Parallel()

	r := newTestRide(t, 3)
	now := hour(2, 9)

	if err := r.RequestSeat(r.Driver, "", now); !errors.Is(err, ErrUserIsOwner) {
		t.Fatalf("driver request err=%v, want ErrUserIsOwner", err)
	}
	if err := r.RequestSeat("22222222J", "hi", now); err != nil {
		t.Fatalf("RequestSeat: %v", err)
	}
	if err := r.RequestSeat("22222222J", "again", now); !errors.Is(err, ErrAlreadyRequested) {
		t.Fatalf("double request err=%v, want ErrAlreadyRequested", err)
	}
	if got := r.AvailableSeats(); got != 2 {
		t.Fatalf("AvailableSeats after request=%d, want 2", got)
	}

	if err := r.AcceptRequest("22222222J", "22222222J"); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("accept by non-driver err=%v, want ErrNotOwner", err)
	}
	if err := r.AcceptRequest(r.Driver, "33333333P"); !errors.Is(err, ErrRequestNotFound) {
		t.Fatalf("accept unknown err=%v, want ErrRequestNotFound", err)
	}
	if err := r.AcceptRequest(r.Driver, "22222222J"); err != nil {
		t.Fatalf("AcceptRequest: %v", err)
	}
	if r.HasRequest("22222222J") || !r.HasPassenger("22222222J") {
		t.Fatalf("request should move to passengers")
	}
	if got := r.AvailableSeats(); got != 1 {
		t.Fatalf("AvailableSeats after accept=%d, want 1", got)
	}
	if err := r.RequestSeat("22222222J", "", now); !errors.Is(err, ErrAlreadyPassenger) {
		t.Fatalf("passenger request err=%v, want ErrAlreadyPassenger", err)
	}

	if err := r.RequestSeat("33333333P", "", now); err != nil {
		t.Fatalf("RequestSeat: %v", err)
	}
	if err := r.DenyRequest("22222222J", "33333333P"); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("deny by non-driver err=%v, want ErrNotOwner", err)
	}
	if err := r.DenyRequest(r.Driver, "33333333P"); err != nil {
		t.Fatalf("DenyRequest: %v", err)
	}
	if r.HasRequest("33333333P") || r.HasPassenger("33333333P") {
		t.Fatalf("denied request should be gone")
	}
	if got := r.AvailableSeats(); got != 1 {
		t.Fatalf("AvailableSeats after deny=%d, want 1", got)
	}
}

func TestRide_AcceptOnFullRideConsumesRequest(t *testing.T) {
	t.Parallel()

	r := newTestRide(t, 2)
	now := hour(2, 9)
	for _, u := range []UserKey{"22222222J", "33333333P"} {
		if err := r.RequestSeat(u, "", now); err != nil {
			t.Fatalf("RequestSeat(%s): %v", u, err)
		}
	}
	if err := r.AcceptRequest(r.Driver, "22222222J"); err != nil {
		t.Fatalf("AcceptRequest: %v", err)
	}
	if err := r.RequestSeat("44444444A", "", now); !errors.Is(err, ErrNoSeatsLeft) {
		t.Fatalf("request on full ride err=%v, want ErrNoSeatsLeft", err)
	}
	if err := r.AcceptRequest(r.Driver, "33333333P"); !errors.Is(err, ErrNoSeatsLeft) {
		t.Fatalf("accept on full ride err=%v, want ErrNoSeatsLeft", err)
	}
	if r.HasRequest("33333333P") {
		t.Fatalf("request should be consumed")
	}
	if len(r.Passengers) != r.Seats {
		t.Fatalf("passengers=%d, want %d", len(r.Passengers), r.Seats)
	}
}

func TestRide_CloneIsDeep(t *testing.T) {
	t.Parallel()

	r := newTestRide(t, 3)
	if err := r.RequestSeat("22222222J", "", hour(2, 9)); err != nil {
		t.Fatalf("RequestSeat: %v", err)
	}
	cp := r.Clone()
	if err := cp.AcceptRequest(cp.Driver, "22222222J"); err != nil {
		t.Fatalf("AcceptRequest: %v", err)
	}
	if len(r.Passengers) != 1 || len(r.Requests) != 1 {
		t.Fatalf("original mutated through clone: passengers=%v requests=%v", r.Passengers, r.Requests)
	}
}

func TestOverlaps(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name       string
		d2, a2     time.Time
		wantResult bool
	}{
		{"partial", hour(3, 11), hour(3, 13), true},
		{"contained", hour(3, 10), hour(3, 11), true},
		{"touching after", hour(3, 12), hour(3, 13), false},
		{"touching before", hour(3, 8), hour(3, 10), false},
		{"disjoint", hour(4, 10), hour(4, 12), false},
	}
	for _, tc := range cases {
		if got := Overlaps(hour(3, 10), hour(3, 12), tc.d2, tc.a2); got != tc.wantResult {
			t.Fatalf("%s: Overlaps=%v, want %v", tc.name, got, tc.wantResult)
		}
	}
}

func TestSearchWindow(t *testing.T) {
	t.Parallel()

	from := time.Date(2026, 3, 3, 9, 30, 0, 0, time.UTC)
	start, end := SearchWindow(from)
	if !start.Equal(from) {
		t.Fatalf("start=%s, want %s", start, from)
	}
	if !end.Before(time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)) || end.Before(time.Date(2026, 3, 3, 23, 59, 59, 0, time.UTC)) {
		t.Fatalf("end=%s, want last instant of the day", end)
	}

	loc := time.FixedZone("CET", 3600)
	_, end = SearchWindow(time.Date(2026, 3, 3, 22, 0, 0, 0, loc))
	if end.Day() != 3 || end.Location() != loc {
		t.Fatalf("end=%s, want end of day in the caller's zone", end)
	}
}
