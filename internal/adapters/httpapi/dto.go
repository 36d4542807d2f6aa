package httpapi

import (
	"time"

	"github.com/oapi-codegen/nullable"
	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/Overland-East-Bay/carpool-api/internal/app/booking"
	"github.com/Overland-East-Bay/carpool-api/internal/domain"
)

type RegisterUserRequest struct {
	Key       string              `json:"key"`
	FirstName string              `json:"firstName"`
	LastName  string              `json:"lastName"`
	Email     openapi_types.Email `json:"email"`
	Phone     string              `json:"phone"`
	Birthdate openapi_types.Date  `json:"birthdate"`
	Password  string              `json:"password"`
}

type UserProfile struct {
	Key       string              `json:"key"`
	FirstName string              `json:"firstName"`
	LastName  string              `json:"lastName"`
	Email     openapi_types.Email `json:"email"`
	Phone     string              `json:"phone"`
	Birthdate openapi_types.Date  `json:"birthdate"`
}

type UserResponse struct {
	User UserProfile `json:"user"`
}

type UserSummary struct {
	Key       string `json:"key"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
}

type CreateRideRequest struct {
	Origin        string    `json:"origin"`
	Destination   string    `json:"destination"`
	DepartureTime time.Time `json:"departureTime"`
	ArrivalTime   time.Time `json:"arrivalTime"`
	Seats         int       `json:"seats"`
	SeatPrice     float64   `json:"seatPrice"`
}

type RideSummary struct {
	ID              int64       `json:"id"`
	Driver          UserSummary `json:"driver"`
	OriginCity      string      `json:"originCity"`
	DestinationCity string      `json:"destinationCity"`
	DepartureTime   time.Time   `json:"departureTime"`
	ArrivalTime     time.Time   `json:"arrivalTime"`
	Seats           int         `json:"seats"`
	AvailableSeats  int         `json:"availableSeats"`
	SeatPrice       float64     `json:"seatPrice"`
}

type RideDetails struct {
	RideSummary
	Passengers      []UserSummary `json:"passengers"`
	PendingRequests int           `json:"pendingRequests"`
}

type RideResponse struct {
	Ride RideDetails `json:"ride"`
}

type RideSummaryResponse struct {
	Ride RideSummary `json:"ride"`
}

type RidesResponse struct {
	Rides []RideSummary `json:"rides"`
}

type RequestSeatRequest struct {
	Message nullable.Nullable[string] `json:"message,omitempty"`
}

type RideRequestView struct {
	ID        int64                     `json:"id"`
	User      UserSummary               `json:"user"`
	Message   nullable.Nullable[string] `json:"message"`
	CreatedAt time.Time                 `json:"createdAt"`
}

type RideRequestsResponse struct {
	Requests []RideRequestView `json:"requests"`
}

type RateUserRequest struct {
	RideID  int64                     `json:"rideId"`
	Score   int                       `json:"score"`
	Message nullable.Nullable[string] `json:"message,omitempty"`
}

type Rating struct {
	ID        int64                     `json:"id"`
	RideID    int64                     `json:"rideId"`
	Rater     UserSummary               `json:"rater"`
	Score     int                       `json:"score"`
	Message   nullable.Nullable[string] `json:"message"`
	CreatedAt time.Time                 `json:"createdAt"`
}

type RatingResponse struct {
	Rating Rating `json:"rating"`
}

type RatingsResponse struct {
	Ratings []Rating `json:"ratings"`
}

func userProfileFromDomain(u domain.User) UserProfile {
	return UserProfile{
		Key:       string(u.Key),
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     openapi_types.Email(u.Email),
		Phone:     u.Phone,
		Birthdate: openapi_types.Date{Time: u.Birthdate},
	}
}

func userSummaryFromDomain(s domain.UserSummary) UserSummary {
	return UserSummary{Key: string(s.Key), FirstName: s.FirstName, LastName: s.LastName}
}

func rideSummaryFromApp(r booking.RideSummary) RideSummary {
	return RideSummary{
		ID:              int64(r.ID),
		Driver:          userSummaryFromDomain(r.Driver),
		OriginCity:      r.OriginCity,
		DestinationCity: r.DestinationCity,
		DepartureTime:   r.DepartureTime.UTC(),
		ArrivalTime:     r.ArrivalTime.UTC(),
		Seats:           r.Seats,
		AvailableSeats:  r.AvailableSeats,
		SeatPrice:       r.SeatPrice,
	}
}

func rideSummariesFromApp(rs []booking.RideSummary) []RideSummary {
	out := make([]RideSummary, 0, len(rs))
	for _, r := range rs {
		out = append(out, rideSummaryFromApp(r))
	}
	return out
}

func rideDetailsFromApp(r booking.RideDetails) RideDetails {
	ps := make([]UserSummary, 0, len(r.Passengers))
	for _, p := range r.Passengers {
		ps = append(ps, userSummaryFromDomain(p))
	}
	return RideDetails{
		RideSummary:     rideSummaryFromApp(r.RideSummary),
		Passengers:      ps,
		PendingRequests: r.PendingRequests,
	}
}

func ratingFromApp(r booking.RatingView) Rating {
	return Rating{
		ID:        int64(r.ID),
		RideID:    int64(r.RideID),
		Rater:     userSummaryFromDomain(r.Rater),
		Score:     r.Score,
		Message:   nullableString(r.Message),
		CreatedAt: r.CreatedAt.UTC(),
	}
}

// nullableString renders an empty string as JSON null.
func nullableString(s string) nullable.Nullable[string] {
	if s == "" {
		return nullable.NewNullNullable[string]()
	}
	return nullable.NewNullableWithValue(s)
}

// stringFromNullable treats both an absent and a null field as empty.
func stringFromNullable(n nullable.Nullable[string]) string {
	if !n.IsSpecified() || n.IsNull() {
		return ""
	}
	v, err := n.Get()
	if err != nil {
		return ""
	}
	return v
}
