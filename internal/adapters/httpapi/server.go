package httpapi

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/Overland-East-Bay/carpool-api/internal/app/booking"
	"github.com/Overland-East-Bay/carpool-api/internal/app/users"
	"github.com/Overland-East-Bay/carpool-api/internal/domain"
	"github.com/Overland-East-Bay/carpool-api/internal/ports/out/clock"
	"github.com/Overland-East-Bay/carpool-api/internal/ports/out/idempotency"
)

const maxBodyBytes = 1 << 20

// Server holds the handlers of the HTTP API.
type Server struct {
	Users   *users.Service
	Booking *booking.Service
	Idem    idempotency.Store
	Clock   clock.Clock

	log *zap.Logger
}

func NewServer(usersSvc *users.Service, bookingSvc *booking.Service, idem idempotency.Store, clk clock.Clock, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		Users:   usersSvc,
		Booking: bookingSvc,
		Idem:    idem,
		Clock:   clk,
		log:     log,
	}
}

func (s *Server) RegisterUser(w http.ResponseWriter, r *http.Request) {
	var body RegisterUserRequest
	if !s.decode(w, r, &body) {
		return
	}
	u, err := s.Users.Register(r.Context(), users.RegisterInput{
		Key:       body.Key,
		FirstName: body.FirstName,
		LastName:  body.LastName,
		Email:     string(body.Email),
		Phone:     body.Phone,
		Birthdate: body.Birthdate.Time,
		Password:  body.Password,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, UserResponse{User: userProfileFromDomain(u)})
}

func (s *Server) GetMyProfile(w http.ResponseWriter, r *http.Request) {
	creds, ok := s.credentials(w, r)
	if !ok {
		return
	}
	u, err := s.Users.GetProfile(r.Context(), creds.Email, creds.Password)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, UserResponse{User: userProfileFromDomain(u)})
}

func (s *Server) ListMyRatings(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	rs, err := s.Booking.ListMyRatings(r.Context(), actor)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	out := make([]Rating, 0, len(rs))
	for _, rt := range rs {
		out = append(out, ratingFromApp(rt))
	}
	writeJSON(w, http.StatusOK, RatingsResponse{Ratings: out})
}

func (s *Server) RateUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	var body RateUserRequest
	if !s.decode(w, r, &body) {
		return
	}
	rt, err := s.Booking.RateUser(r.Context(), actor, booking.RateUserInput{
		RideID:  domain.RideID(body.RideID),
		Rated:   userKeyParam(r),
		Score:   body.Score,
		Message: stringFromNullable(body.Message),
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, RatingResponse{Rating: ratingFromApp(rt)})
}

// CreateRide honours an optional Idempotency-Key header: a retry with the same body replays the
// stored response, the same key with a different body is rejected.
func (s *Server) CreateRide(w http.ResponseWriter, r *http.Request) {
	creds, ok := s.credentials(w, r)
	if !ok {
		return
	}
	var body CreateRideRequest
	if !s.decode(w, r, &body) {
		return
	}

	var (
		fp       idempotency.Fingerprint
		bodyHash string
	)
	idemKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	useIdem := idemKey != "" && s.Idem != nil
	if useIdem {
		// Replays are only served to the caller who stored them.
		u, err := s.Users.Authenticate(r.Context(), creds.Email, creds.Password)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		bodyHash, err = hashBody(body)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		fp = idempotency.Fingerprint{
			Key:    idempotency.Key(idemKey),
			User:   u.Key,
			Method: http.MethodPost,
			Route:  "/rides",
		}
		rec, found, err := s.Idem.Get(r.Context(), fp)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		if found {
			if rec.BodyHash != bodyHash {
				writeError(w, r, http.StatusConflict, "IDEMPOTENCY_KEY_REUSE", "idempotency key reuse with different payload", nil)
				return
			}
			w.Header().Set("Content-Type", rec.ContentType)
			w.Header().Set("Idempotent-Replayed", "true")
			w.WriteHeader(rec.StatusCode)
			_, _ = w.Write(rec.Body)
			return
		}
	}

	ride, err := s.Booking.CreateRide(r.Context(), actorOf(creds), booking.CreateRideInput{
		Origin:        body.Origin,
		Destination:   body.Destination,
		DepartureTime: body.DepartureTime,
		ArrivalTime:   body.ArrivalTime,
		Seats:         body.Seats,
		SeatPrice:     body.SeatPrice,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	resp, err := json.Marshal(RideResponse{Ride: rideDetailsFromApp(ride)})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if useIdem {
		if err := s.Idem.Put(r.Context(), fp, idempotency.Record{
			BodyHash:    bodyHash,
			StatusCode:  http.StatusCreated,
			ContentType: "application/json",
			Body:        resp,
			CreatedAt:   s.now(),
		}); err != nil {
			s.log.Warn("store idempotency record failed", zap.String("idempotency_key", idemKey), zap.Error(err))
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_, _ = w.Write(resp)
}

func (s *Server) FindRides(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	fromRaw := strings.TrimSpace(q.Get("from"))
	if fromRaw == "" {
		writeError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "invalid from", map[string]any{"from": "is required"})
		return
	}
	from, err := time.Parse(time.RFC3339, fromRaw)
	if err != nil {
		writeError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "invalid from", map[string]any{"from": "must be an RFC 3339 timestamp"})
		return
	}
	rs, err := s.Booking.FindRides(r.Context(), q.Get("origin"), q.Get("destination"), from)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, RidesResponse{Rides: rideSummariesFromApp(rs)})
}

func (s *Server) PendingAsDriver(w http.ResponseWriter, r *http.Request) {
	s.listPending(w, r, s.Booking.PendingAsDriver)
}

func (s *Server) PendingAsPassenger(w http.ResponseWriter, r *http.Request) {
	s.listPending(w, r, s.Booking.PendingAsPassenger)
}

func (s *Server) PendingAcceptance(w http.ResponseWriter, r *http.Request) {
	s.listPending(w, r, s.Booking.PendingAcceptance)
}

func (s *Server) GetRide(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	id, ok := rideIDParam(w, r)
	if !ok {
		return
	}
	ride, err := s.Booking.GetVisibleRide(r.Context(), actor, id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, RideResponse{Ride: rideDetailsFromApp(ride)})
}

func (s *Server) RequestSeat(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	id, ok := rideIDParam(w, r)
	if !ok {
		return
	}
	var body RequestSeatRequest
	if !s.decodeOptional(w, r, &body) {
		return
	}
	ride, err := s.Booking.RequestSeat(r.Context(), actor, id, stringFromNullable(body.Message))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, RideSummaryResponse{Ride: rideSummaryFromApp(ride)})
}

func (s *Server) ListRideRequests(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	id, ok := rideIDParam(w, r)
	if !ok {
		return
	}
	reqs, err := s.Booking.ListRideRequests(r.Context(), actor, id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	out := make([]RideRequestView, 0, len(reqs))
	for _, req := range reqs {
		out = append(out, RideRequestView{
			ID:        int64(req.ID),
			User:      userSummaryFromDomain(req.User),
			Message:   nullableString(req.Message),
			CreatedAt: req.CreatedAt.UTC(),
		})
	}
	writeJSON(w, http.StatusOK, RideRequestsResponse{Requests: out})
}

func (s *Server) AcceptRequest(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	id, ok := rideIDParam(w, r)
	if !ok {
		return
	}
	ride, err := s.Booking.AcceptRequest(r.Context(), actor, id, userKeyParam(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, RideResponse{Ride: rideDetailsFromApp(ride)})
}

func (s *Server) DenyRequest(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	id, ok := rideIDParam(w, r)
	if !ok {
		return
	}
	if err := s.Booking.DenyRequest(r.Context(), actor, id, userKeyParam(r)); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listPending(w http.ResponseWriter, r *http.Request, list func(context.Context, booking.Actor) ([]booking.RideSummary, error)) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	rs, err := list(r.Context(), actor)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, RidesResponse{Rides: rideSummariesFromApp(rs)})
}

func (s *Server) credentials(w http.ResponseWriter, r *http.Request) (Credentials, bool) {
	c, ok := CredentialsFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing credentials", nil)
		return Credentials{}, false
	}
	return c, true
}

func (s *Server) actor(w http.ResponseWriter, r *http.Request) (booking.Actor, bool) {
	c, ok := s.credentials(w, r)
	if !ok {
		return booking.Actor{}, false
	}
	return actorOf(c), true
}

func actorOf(c Credentials) booking.Actor {
	return booking.Actor{Email: c.Email, Credential: c.Password}
}

// decode reads a single JSON object, rejecting unknown fields.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	return s.decodeBody(w, r, dst, false)
}

// decodeOptional is decode for endpoints whose body may be absent. Emptiness is judged
// on the bytes read, so chunked requests without a Content-Length are handled too.
func (s *Server) decodeOptional(w http.ResponseWriter, r *http.Request, dst any) bool {
	return s.decodeBody(w, r, dst, true)
}

func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst any, optional bool) bool {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "BAD_REQUEST", "could not read request body", nil)
		return false
	}
	if len(raw) > maxBodyBytes {
		writeError(w, r, http.StatusRequestEntityTooLarge, "BODY_TOO_LARGE", "request body too large", nil)
		return false
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		if optional {
			return true
		}
		writeError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "missing request body", nil)
		return false
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "invalid request body", map[string]any{"body": err.Error()})
		return false
	}
	return true
}

func (s *Server) now() time.Time {
	if s.Clock == nil {
		return time.Now().UTC()
	}
	return s.Clock.Now()
}

func rideIDParam(w http.ResponseWriter, r *http.Request) (domain.RideID, bool) {
	raw := chi.URLParam(r, "rideId")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, http.StatusNotFound, domain.ErrRideNotFound.Code, domain.ErrRideNotFound.Message, nil)
		return 0, false
	}
	return domain.RideID(id), true
}

func userKeyParam(r *http.Request) domain.UserKey {
	return domain.UserKey(strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "userKey"))))
}

func hashBody(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("hash request body: %w", err)
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}
