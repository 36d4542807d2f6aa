package itest

import (
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/Overland-East-Bay/carpool-api/internal/domain"
)

type userProfile struct {
	Key       string `json:"key"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
}

type userResponse struct {
	User userProfile `json:"user"`
}

type rideView struct {
	ID     int64 `json:"id"`
	Driver struct {
		Key string `json:"key"`
	} `json:"driver"`
	OriginCity      string `json:"originCity"`
	DestinationCity string `json:"destinationCity"`
	Seats           int    `json:"seats"`
	AvailableSeats  int    `json:"availableSeats"`
	Passengers      []struct {
		Key string `json:"key"`
	} `json:"passengers"`
	PendingRequests int `json:"pendingRequests"`
}

type rideResponse struct {
	Ride rideView `json:"ride"`
}

type ridesResponse struct {
	Rides []rideView `json:"rides"`
}

type requestsResponse struct {
	Requests []struct {
		User struct {
			Key string `json:"key"`
		} `json:"user"`
		Message *string `json:"message"`
	} `json:"requests"`
}

type ratingsResponse struct {
	Ratings []struct {
		RideID int64 `json:"rideId"`
		Rater  struct {
			Key string `json:"key"`
		} `json:"rater"`
		Score int `json:"score"`
	} `json:"ratings"`
}

const controlLetters = "TRWAGMYFPDXBNJZSQVHLCKE"

func randomUserKey() string {
	return fmt.Sprintf("%08d%c", rand.IntN(100_000_000), controlLetters[rand.IntN(len(controlLetters))])
}

// registerUser creates a fresh user and returns its key and credentials.
func registerUser(t *testing.T, s *testServer, first string) (string, *creds) {
	t.Helper()
	key := randomUserKey()
	c := &creds{
		email:    strings.ToLower(first) + "-" + uuid.NewString() + "@example.com",
		password: "secret-" + first,
	}
	status, body, _ := s.doJSON(t, http.MethodPost, "/users", nil, map[string]any{
		"key":       key,
		"firstName": "  " + first + "  ",
		"lastName":  "Tester",
		"email":     c.email,
		"phone":     "612 345 678",
		"birthdate": "1990-05-17",
		"password":  c.password,
	})
	requireStatus(t, status, body, http.StatusCreated)
	got := mustUnmarshal[userResponse](t, body)
	if got.User.Key != key || got.User.FirstName != first {
		t.Fatalf("registered user=%+v, want key %s first %s", got.User, key, first)
	}
	return key, c
}

func TestRides_EndToEnd(t *testing.T) {
	t.Parallel()

	for _, b := range backendsFromEnv(t) {
		t.Run(string(b), func(t *testing.T) {
			t.Parallel()
			s := newTestServer(t, b)

			driverKey, driver := registerUser(t, s, "Driver")
			p1Key, p1 := registerUser(t, s, "Ana")
			p2Key, p2 := registerUser(t, s, "Bea")
			p3Key, p3 := registerUser(t, s, "Carla")
			p4Key, p4 := registerUser(t, s, "Dani")
			_, outsider := registerUser(t, s, "Eva")

			suffix := strings.ReplaceAll(uuid.NewString(), "-", "")
			origin := "Má LAga " + suffix
			destination := "Jaén" + suffix

			createBody := map[string]any{
				"origin":        origin,
				"destination":   destination,
				"departureTime": "2026-03-03T10:00:00Z",
				"arrivalTime":   "2026-03-03T12:00:00Z",
				"seats":         5,
				"seatPrice":     12.5,
			}
			idemKey := "create-" + uuid.NewString()
			status, body, _ := s.doJSON(t, http.MethodPost, "/rides", driver, createBody, "Idempotency-Key", idemKey)
			requireStatus(t, status, body, http.StatusCreated)
			created := mustUnmarshal[rideResponse](t, body).Ride
			if created.AvailableSeats != 4 || len(created.Passengers) != 1 || created.Passengers[0].Key != driverKey {
				t.Fatalf("created ride=%+v, want driver as only occupant of 5 seats", created)
			}
			if created.OriginCity != domain.NormalizeCity(origin) {
				t.Fatalf("originCity=%q, want %q", created.OriginCity, domain.NormalizeCity(origin))
			}
			rideID := created.ID

			// Replay with the same key and body.
			status, body, hdr := s.doJSON(t, http.MethodPost, "/rides", driver, createBody, "Idempotency-Key", idemKey)
			requireStatus(t, status, body, http.StatusCreated)
			if hdr.Get("Idempotent-Replayed") != "true" {
				t.Fatalf("expected Idempotent-Replayed header on replay")
			}
			if got := mustUnmarshal[rideResponse](t, body).Ride.ID; got != rideID {
				t.Fatalf("replayed ride id=%d, want %d", got, rideID)
			}

			// Same key, different payload.
			other := map[string]any{}
			for k, v := range createBody {
				other[k] = v
			}
			other["seats"] = 3
			status, body, _ = s.doJSON(t, http.MethodPost, "/rides", driver, other, "Idempotency-Key", idemKey)
			requireErrorCode(t, status, body, http.StatusConflict, "IDEMPOTENCY_KEY_REUSE")

			// Overlapping ride for the same driver.
			overlap := map[string]any{}
			for k, v := range createBody {
				overlap[k] = v
			}
			overlap["departureTime"] = "2026-03-03T11:00:00Z"
			overlap["arrivalTime"] = "2026-03-03T13:00:00Z"
			status, body, _ = s.doJSON(t, http.MethodPost, "/rides", driver, overlap, "Idempotency-Key", "overlap-"+uuid.NewString())
			requireErrorCode(t, status, body, http.StatusConflict, "OVERLAPPING_RIDE")

			// Search is public and matches normalized cities within the day.
			q := url.Values{}
			q.Set("origin", "malaga"+suffix)
			q.Set("destination", "JAEN"+suffix)
			q.Set("from", "2026-03-03T00:00:00Z")
			status, body, _ = s.doJSON(t, http.MethodGet, "/rides?"+q.Encode(), nil, nil)
			requireStatus(t, status, body, http.StatusOK)
			found := mustUnmarshal[ridesResponse](t, body).Rides
			if len(found) != 1 || found[0].ID != rideID {
				t.Fatalf("search=%+v, want ride %d", found, rideID)
			}
			q.Set("from", "2026-03-04T00:00:00Z")
			status, body, _ = s.doJSON(t, http.MethodGet, "/rides?"+q.Encode(), nil, nil)
			requireStatus(t, status, body, http.StatusOK)
			if got := mustUnmarshal[ridesResponse](t, body).Rides; len(got) != 0 {
				t.Fatalf("next-day search=%+v, want none", got)
			}

			ridePath := fmt.Sprintf("/rides/%d", rideID)

			// Requests.
			for _, c := range []*creds{p1, p2, p3, p4} {
				status, body, _ = s.doJSON(t, http.MethodPost, ridePath+"/requests", c, map[string]any{"message": "  hola  "})
				requireStatus(t, status, body, http.StatusCreated)
				if got := mustUnmarshal[rideResponse](t, body).Ride.AvailableSeats; got != 4 {
					t.Fatalf("availableSeats after request=%d, want 4", got)
				}
			}
			status, body, _ = s.doJSON(t, http.MethodPost, ridePath+"/requests", p1, nil)
			requireErrorCode(t, status, body, http.StatusConflict, "ALREADY_REQUESTED")
			status, body, _ = s.doJSON(t, http.MethodPost, ridePath+"/requests", driver, nil)
			requireErrorCode(t, status, body, http.StatusConflict, "USER_IS_OWNER")

			status, body, _ = s.doJSON(t, http.MethodGet, "/rides/pending/acceptance", p1, nil)
			requireStatus(t, status, body, http.StatusOK)
			if got := mustUnmarshal[ridesResponse](t, body).Rides; len(got) != 1 || got[0].ID != rideID {
				t.Fatalf("pending acceptance=%+v, want ride %d", got, rideID)
			}

			// Only the driver sees the request list; requesters cannot see the ride yet.
			status, body, _ = s.doJSON(t, http.MethodGet, ridePath+"/requests", p1, nil)
			requireErrorCode(t, status, body, http.StatusForbidden, "NOT_OWNER")
			status, body, _ = s.doJSON(t, http.MethodGet, ridePath, p1, nil)
			requireErrorCode(t, status, body, http.StatusNotFound, "RIDE_NOT_FOUND")

			status, body, _ = s.doJSON(t, http.MethodGet, ridePath+"/requests", driver, nil)
			requireStatus(t, status, body, http.StatusOK)
			reqs := mustUnmarshal[requestsResponse](t, body).Requests
			if len(reqs) != 4 {
				t.Fatalf("requests=%d, want 4", len(reqs))
			}
			if reqs[0].Message == nil || *reqs[0].Message != "hola" {
				t.Fatalf("request message=%v, want trimmed %q", reqs[0].Message, "hola")
			}

			// Accept three, deny one.
			for i, k := range []string{p1Key, p2Key, p3Key} {
				status, body, _ = s.doJSON(t, http.MethodPost, ridePath+"/passengers/"+k, driver, nil)
				requireStatus(t, status, body, http.StatusOK)
				got := mustUnmarshal[rideResponse](t, body).Ride
				if got.AvailableSeats != 3-i || got.PendingRequests != 3-i {
					t.Fatalf("after accept %d: available=%d pending=%d", i, got.AvailableSeats, got.PendingRequests)
				}
			}
			status, body, _ = s.doJSON(t, http.MethodPost, ridePath+"/passengers/"+p4Key, p1, nil)
			requireErrorCode(t, status, body, http.StatusForbidden, "NOT_OWNER")

			status, body, _ = s.doJSON(t, http.MethodDelete, ridePath+"/requests/"+p4Key, driver, nil)
			requireStatus(t, status, body, http.StatusNoContent)
			status, body, _ = s.doJSON(t, http.MethodDelete, ridePath+"/requests/"+p4Key, driver, nil)
			requireErrorCode(t, status, body, http.StatusNotFound, "REQUEST_NOT_FOUND")

			status, body, _ = s.doJSON(t, http.MethodGet, ridePath, p1, nil)
			requireStatus(t, status, body, http.StatusOK)
			seen := mustUnmarshal[rideResponse](t, body).Ride
			if len(seen.Passengers) != 4 || seen.AvailableSeats != 1 || seen.PendingRequests != 0 {
				t.Fatalf("ride as passenger=%+v, want 4 occupants, 1 seat left, no requests", seen)
			}

			status, body, _ = s.doJSON(t, http.MethodGet, "/rides/pending/passenger", p2, nil)
			requireStatus(t, status, body, http.StatusOK)
			if got := mustUnmarshal[ridesResponse](t, body).Rides; len(got) != 1 {
				t.Fatalf("pending as passenger=%d, want 1", len(got))
			}
			status, body, _ = s.doJSON(t, http.MethodGet, "/rides/pending/driver", driver, nil)
			requireStatus(t, status, body, http.StatusOK)
			if got := mustUnmarshal[ridesResponse](t, body).Rides; len(got) != 1 {
				t.Fatalf("pending as driver=%d, want 1", len(got))
			}

			// Ratings.
			rate := func(c *creds, rated string, score int) (int, []byte) {
				st, b, _ := s.doJSON(t, http.MethodPost, "/users/"+rated+"/ratings", c, map[string]any{"rideId": rideID, "score": score, "message": "great trip"})
				return st, b
			}
			status, body = rate(p1, driverKey, 5)
			requireStatus(t, status, body, http.StatusCreated)
			status, body = rate(p1, driverKey, 4)
			requireErrorCode(t, status, body, http.StatusConflict, "ALREADY_RATED")
			status, body = rate(p2, driverKey, 6)
			requireErrorCode(t, status, body, http.StatusUnprocessableEntity, "INVALID_SCORE")
			status, body = rate(p2, driverKey, 0)
			requireErrorCode(t, status, body, http.StatusUnprocessableEntity, "INVALID_SCORE")
			status, body = rate(outsider, driverKey, 3)
			requireErrorCode(t, status, body, http.StatusForbidden, "NOT_RIDE_PARTICIPANT")
			status, body = rate(p1, p4Key, 3)
			requireErrorCode(t, status, body, http.StatusForbidden, "NOT_RIDE_PARTICIPANT")

			status, body, _ = s.doJSON(t, http.MethodGet, "/users/me/ratings", driver, nil)
			requireStatus(t, status, body, http.StatusOK)
			ratings := mustUnmarshal[ratingsResponse](t, body).Ratings
			if len(ratings) != 1 || ratings[0].Rater.Key != p1Key || ratings[0].Score != 5 || ratings[0].RideID != rideID {
				t.Fatalf("ratings=%+v, want one 5 from %s", ratings, p1Key)
			}

			wantEvents := []domain.EventType{
				domain.EventRideCreated,
				domain.EventSeatRequested, domain.EventSeatRequested, domain.EventSeatRequested, domain.EventSeatRequested,
				domain.EventRequestAccepted, domain.EventRequestAccepted, domain.EventRequestAccepted,
				domain.EventRequestDenied,
				domain.EventUserRated,
			}
			if got := s.events.Types(); fmt.Sprint(got) != fmt.Sprint(wantEvents) {
				t.Fatalf("events=%v, want %v", got, wantEvents)
			}
		})
	}
}

func TestRides_AuthFailures(t *testing.T) {
	t.Parallel()

	for _, b := range backendsFromEnv(t) {
		t.Run(string(b), func(t *testing.T) {
			t.Parallel()
			s := newTestServer(t, b)
			_, c := registerUser(t, s, "Fran")

			status, body, hdr := s.doJSON(t, http.MethodGet, "/users/me", nil, nil)
			requireErrorCode(t, status, body, http.StatusUnauthorized, "UNAUTHORIZED")
			if hdr.Get("WWW-Authenticate") == "" {
				t.Fatalf("expected WWW-Authenticate header on 401")
			}

			status, body, _ = s.doJSON(t, http.MethodGet, "/users/me", &creds{email: c.email, password: "wrong"}, nil)
			requireErrorCode(t, status, body, http.StatusUnauthorized, "LOGIN_ERROR")

			status, body, _ = s.doJSON(t, http.MethodGet, "/users/me", c, nil)
			requireStatus(t, status, body, http.StatusOK)
			if got := mustUnmarshal[userResponse](t, body).User.Email; got != c.email {
				t.Fatalf("email=%q, want %q", got, c.email)
			}

			status, body, _ = s.doJSON(t, http.MethodGet, "/rides/999999", c, nil)
			requireErrorCode(t, status, body, http.StatusNotFound, "RIDE_NOT_FOUND")
			status, body, _ = s.doJSON(t, http.MethodGet, "/rides/not-a-number", c, nil)
			requireErrorCode(t, status, body, http.StatusNotFound, "RIDE_NOT_FOUND")
		})
	}
}
