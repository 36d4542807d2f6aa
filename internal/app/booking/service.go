package booking

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Overland-East-Bay/carpool-api/internal/domain"
	clockport "github.com/Overland-East-Bay/carpool-api/internal/ports/out/clock"
	"github.com/Overland-East-Bay/carpool-api/internal/ports/out/events"
	"github.com/Overland-East-Bay/carpool-api/internal/ports/out/ratingrepo"
	"github.com/Overland-East-Bay/carpool-api/internal/ports/out/riderepo"
)

// Service orchestrates the ride lifecycle: it authenticates the actor, loads the ride,
// applies the domain transition and persists the result.
//
// Transitions on one ride are serialized in-process by rideLocks; ride creation is
// serialized per driver so the overlap check and insert cannot interleave.
type Service struct {
	users   Directory
	rides   riderepo.Repository
	ratings ratingrepo.Repository
	events  events.Publisher
	clk     clockport.Clock
	log     *zap.Logger

	rideLocks   *keyedMutex[domain.RideID]
	driverLocks *keyedMutex[domain.UserKey]

	newEventID func() string
}

func NewService(
	users Directory,
	rides riderepo.Repository,
	ratings ratingrepo.Repository,
	publisher events.Publisher,
	clk clockport.Clock,
	log *zap.Logger,
) *Service {
	if publisher == nil {
		publisher = events.Nop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		users:       users,
		rides:       rides,
		ratings:     ratings,
		events:      publisher,
		clk:         clk,
		log:         log,
		rideLocks:   newKeyedMutex[domain.RideID](),
		driverLocks: newKeyedMutex[domain.UserKey](),
		newEventID:  uuid.NewString,
	}
}

// SetNewEventIDForTest overrides event ID generation for deterministic tests.
// It should not be used in production code.
func (s *Service) SetNewEventIDForTest(fn func() string) {
	if fn != nil {
		s.newEventID = fn
	}
}

func (s *Service) authenticate(ctx context.Context, a Actor) (domain.User, error) {
	if a.Email == "" || a.Credential == "" {
		return domain.User{}, fromDomain(domain.ErrLogin)
	}
	return s.users.Authenticate(ctx, a.Email, a.Credential)
}

func (s *Service) CreateRide(ctx context.Context, actor Actor, in CreateRideInput) (RideDetails, error) {
	driver, err := s.authenticate(ctx, actor)
	if err != nil {
		return RideDetails{}, err
	}

	now := s.clk.Now()
	ride, err := domain.NewRide(domain.NewRideParams{
		Driver:        driver.Key,
		Origin:        in.Origin,
		Destination:   in.Destination,
		DepartureTime: in.DepartureTime,
		ArrivalTime:   in.ArrivalTime,
		Seats:         in.Seats,
		SeatPrice:     in.SeatPrice,
	}, now)
	if err != nil {
		return RideDetails{}, fromDomain(err)
	}

	unlock := s.driverLocks.Lock(driver.Key)
	defer unlock()

	overlapping, err := s.rides.ListOverlapping(ctx, driver.Key, ride.DepartureTime, ride.ArrivalTime)
	if err != nil {
		return RideDetails{}, err
	}
	if len(overlapping) > 0 {
		return RideDetails{}, fromDomain(domain.ErrOverlappingRide)
	}

	// The repository re-checks overlap so creates from other processes are also caught.
	created, err := s.rides.Create(ctx, ride)
	if errors.Is(err, riderepo.ErrOverlapping) {
		return RideDetails{}, fromDomain(domain.ErrOverlappingRide)
	}
	if err != nil {
		return RideDetails{}, err
	}
	s.log.Info("ride created",
		zap.Int64("ride_id", int64(created.ID)),
		zap.String("driver", string(driver.Key)),
		zap.String("origin", created.OriginCity),
		zap.String("destination", created.DestinationCity),
	)
	s.publish(ctx, domain.Event{Type: domain.EventRideCreated, RideID: created.ID, Actor: driver.Key})

	return s.toDetails(ctx, created)
}

// FindRides returns rides between two cities departing from `from` until the end of that day.
// It needs no identity.
func (s *Service) FindRides(ctx context.Context, origin, destination string, from time.Time) ([]RideSummary, error) {
	o := domain.NormalizeCity(origin)
	if o == "" {
		return nil, validationError("origin", "must be non-empty")
	}
	d := domain.NormalizeCity(destination)
	if d == "" {
		return nil, validationError("destination", "must be non-empty")
	}
	if from.IsZero() {
		return nil, validationError("from", "must be a timestamp")
	}
	start, end := domain.SearchWindow(from)
	rs, err := s.rides.ListByCityPairAndWindow(ctx, o, d, start, end)
	if err != nil {
		return nil, err
	}
	return s.toSummaries(ctx, rs)
}

// GetVisibleRide returns the ride only to its driver or a confirmed passenger; anyone else
// gets RIDE_NOT_FOUND, same as for a missing ride.
func (s *Service) GetVisibleRide(ctx context.Context, actor Actor, id domain.RideID) (RideDetails, error) {
	u, err := s.authenticate(ctx, actor)
	if err != nil {
		return RideDetails{}, err
	}
	r, err := s.rides.GetVisibleTo(ctx, id, u.Key)
	if err != nil {
		if errors.Is(err, riderepo.ErrNotFound) {
			return RideDetails{}, fromDomain(domain.ErrRideNotFound)
		}
		return RideDetails{}, err
	}
	return s.toDetails(ctx, r)
}

func (s *Service) RequestSeat(ctx context.Context, actor Actor, id domain.RideID, message string) (RideSummary, error) {
	u, err := s.authenticate(ctx, actor)
	if err != nil {
		return RideSummary{}, err
	}

	unlock := s.rideLocks.Lock(id)
	defer unlock()

	r, err := s.loadRide(ctx, id)
	if err != nil {
		return RideSummary{}, err
	}
	if err := r.RequestSeat(u.Key, strings.TrimSpace(message), s.clk.Now()); err != nil {
		return RideSummary{}, fromDomain(err)
	}
	saved, err := s.save(ctx, r)
	if err != nil {
		return RideSummary{}, err
	}
	s.log.Info("seat requested", zap.Int64("ride_id", int64(id)), zap.String("user", string(u.Key)))
	s.publish(ctx, domain.Event{Type: domain.EventSeatRequested, RideID: id, Actor: u.Key, Target: saved.Driver})

	out, err := s.toSummaries(ctx, []domain.Ride{saved})
	if err != nil {
		return RideSummary{}, err
	}
	return out[0], nil
}

// AcceptRequest confirms target's pending request on a ride the actor drives.
//
// If the ride filled up in the meantime the request is still consumed and persisted as
// such, and NO_SEATS_LEFT is returned.
func (s *Service) AcceptRequest(ctx context.Context, actor Actor, id domain.RideID, target domain.UserKey) (RideDetails, error) {
	u, err := s.authenticate(ctx, actor)
	if err != nil {
		return RideDetails{}, err
	}

	unlock := s.rideLocks.Lock(id)
	defer unlock()

	r, err := s.loadRide(ctx, id)
	if err != nil {
		return RideDetails{}, err
	}

	acceptErr := r.AcceptRequest(u.Key, target)
	switch {
	case acceptErr == nil:
	case errors.Is(acceptErr, domain.ErrNoSeatsLeft):
		if _, err := s.save(ctx, r); err != nil {
			return RideDetails{}, err
		}
		s.log.Warn("request consumed without seat",
			zap.Int64("ride_id", int64(id)),
			zap.String("user", string(target)),
		)
		s.publish(ctx, domain.Event{Type: domain.EventRequestConsumed, RideID: id, Actor: u.Key, Target: target})
		return RideDetails{}, fromDomain(acceptErr)
	default:
		return RideDetails{}, fromDomain(acceptErr)
	}

	saved, err := s.save(ctx, r)
	if err != nil {
		return RideDetails{}, err
	}
	s.log.Info("request accepted", zap.Int64("ride_id", int64(id)), zap.String("user", string(target)))
	s.publish(ctx, domain.Event{Type: domain.EventRequestAccepted, RideID: id, Actor: u.Key, Target: target})
	return s.toDetails(ctx, saved)
}

func (s *Service) DenyRequest(ctx context.Context, actor Actor, id domain.RideID, target domain.UserKey) error {
	u, err := s.authenticate(ctx, actor)
	if err != nil {
		return err
	}

	unlock := s.rideLocks.Lock(id)
	defer unlock()

	r, err := s.loadRide(ctx, id)
	if err != nil {
		return err
	}
	if err := r.DenyRequest(u.Key, target); err != nil {
		return fromDomain(err)
	}
	if _, err := s.save(ctx, r); err != nil {
		return err
	}
	s.log.Info("request denied", zap.Int64("ride_id", int64(id)), zap.String("user", string(target)))
	s.publish(ctx, domain.Event{Type: domain.EventRequestDenied, RideID: id, Actor: u.Key, Target: target})
	return nil
}

// ListRideRequests returns the pending requests of a ride. Only the driver may see them.
func (s *Service) ListRideRequests(ctx context.Context, actor Actor, id domain.RideID) ([]RequestView, error) {
	u, err := s.authenticate(ctx, actor)
	if err != nil {
		return nil, err
	}
	r, err := s.loadRide(ctx, id)
	if err != nil {
		return nil, err
	}
	if !r.IsDriver(u.Key) {
		return nil, fromDomain(domain.ErrNotOwner)
	}

	keys := make([]domain.UserKey, 0, len(r.Requests))
	for _, req := range r.Requests {
		keys = append(keys, req.User)
	}
	sums, err := s.users.Summaries(ctx, keys)
	if err != nil {
		return nil, err
	}
	out := make([]RequestView, 0, len(r.Requests))
	for _, req := range r.Requests {
		out = append(out, RequestView{
			ID:        req.ID,
			User:      summaryOf(sums, req.User),
			Message:   req.Message,
			CreatedAt: req.CreatedAt,
		})
	}
	return out, nil
}

func (s *Service) PendingAsDriver(ctx context.Context, actor Actor) ([]RideSummary, error) {
	return s.pending(ctx, actor, s.rides.ListByDriverAfter)
}

func (s *Service) PendingAsPassenger(ctx context.Context, actor Actor) ([]RideSummary, error) {
	return s.pending(ctx, actor, s.rides.ListByPassengerAfter)
}

func (s *Service) PendingAcceptance(ctx context.Context, actor Actor) ([]RideSummary, error) {
	return s.pending(ctx, actor, s.rides.ListByPendingRequesterAfter)
}

func (s *Service) pending(
	ctx context.Context,
	actor Actor,
	list func(context.Context, domain.UserKey, time.Time) ([]domain.Ride, error),
) ([]RideSummary, error) {
	u, err := s.authenticate(ctx, actor)
	if err != nil {
		return nil, err
	}
	rs, err := list(ctx, u.Key, s.clk.Now())
	if err != nil {
		return nil, err
	}
	return s.toSummaries(ctx, rs)
}

// RateUser records the actor's rating of another participant of a shared ride.
func (s *Service) RateUser(ctx context.Context, actor Actor, in RateUserInput) (RatingView, error) {
	rater, err := s.authenticate(ctx, actor)
	if err != nil {
		return RatingView{}, err
	}
	if _, err := s.users.FindByKey(ctx, in.Rated); err != nil {
		return RatingView{}, err
	}
	r, err := s.loadRide(ctx, in.RideID)
	if err != nil {
		return RatingView{}, err
	}
	exists, err := s.ratings.Exists(ctx, r.ID, rater.Key, in.Rated)
	if err != nil {
		return RatingView{}, err
	}
	message := strings.TrimSpace(in.Message)
	if err := domain.CheckRating(r, rater.Key, in.Rated, in.Score, message, exists); err != nil {
		return RatingView{}, fromDomain(err)
	}

	created, err := s.ratings.Create(ctx, domain.Rating{
		RideID:    r.ID,
		Rater:     rater.Key,
		Rated:     in.Rated,
		Score:     in.Score,
		Message:   message,
		CreatedAt: s.clk.Now(),
	})
	if err != nil {
		if errors.Is(err, ratingrepo.ErrAlreadyExists) {
			return RatingView{}, fromDomain(domain.ErrAlreadyRated)
		}
		return RatingView{}, err
	}
	s.log.Info("user rated",
		zap.Int64("ride_id", int64(r.ID)),
		zap.String("rater", string(rater.Key)),
		zap.String("rated", string(in.Rated)),
		zap.Int("score", in.Score),
	)
	s.publish(ctx, domain.Event{Type: domain.EventUserRated, RideID: r.ID, Actor: rater.Key, Target: in.Rated, Score: in.Score})

	return RatingView{
		ID:        created.ID,
		RideID:    created.RideID,
		Rater:     rater.Summary(),
		Score:     created.Score,
		Message:   created.Message,
		CreatedAt: created.CreatedAt,
	}, nil
}

// ListMyRatings returns the ratings the actor received, newest first.
func (s *Service) ListMyRatings(ctx context.Context, actor Actor) ([]RatingView, error) {
	u, err := s.authenticate(ctx, actor)
	if err != nil {
		return nil, err
	}
	rs, err := s.ratings.ListByRated(ctx, u.Key)
	if err != nil {
		return nil, err
	}
	keys := make([]domain.UserKey, 0, len(rs))
	for _, r := range rs {
		keys = append(keys, r.Rater)
	}
	sums, err := s.users.Summaries(ctx, keys)
	if err != nil {
		return nil, err
	}
	out := make([]RatingView, 0, len(rs))
	for _, r := range rs {
		out = append(out, RatingView{
			ID:        r.ID,
			RideID:    r.RideID,
			Rater:     summaryOf(sums, r.Rater),
			Score:     r.Score,
			Message:   r.Message,
			CreatedAt: r.CreatedAt,
		})
	}
	return out, nil
}

func (s *Service) loadRide(ctx context.Context, id domain.RideID) (domain.Ride, error) {
	r, err := s.rides.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, riderepo.ErrNotFound) {
			return domain.Ride{}, fromDomain(domain.ErrRideNotFound)
		}
		return domain.Ride{}, err
	}
	return r, nil
}

func (s *Service) save(ctx context.Context, r domain.Ride) (domain.Ride, error) {
	r.UpdatedAt = s.clk.Now()
	saved, err := s.rides.Save(ctx, r)
	if err != nil {
		if errors.Is(err, riderepo.ErrStale) {
			return domain.Ride{}, errRideModified
		}
		return domain.Ride{}, err
	}
	return saved, nil
}

// publish runs after the transition is persisted; a failed publish is logged, never returned.
func (s *Service) publish(ctx context.Context, e domain.Event) {
	e.ID = s.newEventID()
	e.OccurredAt = s.clk.Now()
	if err := s.events.Publish(ctx, e); err != nil {
		s.log.Warn("publish event failed",
			zap.String("event_id", e.ID),
			zap.String("event_type", string(e.Type)),
			zap.Int64("ride_id", int64(e.RideID)),
			zap.Error(err),
		)
	}
}

func (s *Service) toSummaries(ctx context.Context, rs []domain.Ride) ([]RideSummary, error) {
	keys := make([]domain.UserKey, 0, len(rs))
	for _, r := range rs {
		keys = append(keys, r.Driver)
	}
	sums, err := s.users.Summaries(ctx, keys)
	if err != nil {
		return nil, err
	}
	out := make([]RideSummary, 0, len(rs))
	for _, r := range rs {
		out = append(out, toSummary(r, summaryOf(sums, r.Driver)))
	}
	return out, nil
}

func (s *Service) toDetails(ctx context.Context, r domain.Ride) (RideDetails, error) {
	sums, err := s.users.Summaries(ctx, r.Passengers)
	if err != nil {
		return RideDetails{}, err
	}
	passengers := make([]domain.UserSummary, 0, len(r.Passengers))
	for _, k := range r.Passengers {
		passengers = append(passengers, summaryOf(sums, k))
	}
	return RideDetails{
		RideSummary:     toSummary(r, summaryOf(sums, r.Driver)),
		Passengers:      passengers,
		PendingRequests: len(r.Requests),
	}, nil
}

func toSummary(r domain.Ride, driver domain.UserSummary) RideSummary {
	return RideSummary{
		ID:              r.ID,
		Driver:          driver,
		OriginCity:      r.OriginCity,
		DestinationCity: r.DestinationCity,
		DepartureTime:   r.DepartureTime,
		ArrivalTime:     r.ArrivalTime,
		Seats:           r.Seats,
		AvailableSeats:  r.AvailableSeats(),
		SeatPrice:       r.SeatPrice,
	}
}

// summaryOf falls back to the bare key when a user record is missing.
func summaryOf(sums map[domain.UserKey]domain.UserSummary, k domain.UserKey) domain.UserSummary {
	if s, ok := sums[k]; ok {
		return s
	}
	return domain.UserSummary{Key: k}
}
