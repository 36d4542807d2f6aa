package contracttest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Overland-East-Bay/carpool-api/internal/domain"
	idempotencyport "github.com/Overland-East-Bay/carpool-api/internal/ports/out/idempotency"
	ratingrepoport "github.com/Overland-East-Bay/carpool-api/internal/ports/out/ratingrepo"
	riderepoport "github.com/Overland-East-Bay/carpool-api/internal/ports/out/riderepo"
	userrepoport "github.com/Overland-East-Bay/carpool-api/internal/ports/out/userrepo"
)

type CleanupFunc = func()

type UserRepoFactory func(t *testing.T) (userrepoport.Repository, CleanupFunc)
type RideRepoFactory func(t *testing.T) (riderepoport.Repository, CleanupFunc)
type RatingRepoFactory func(t *testing.T) (ratingrepoport.Repository, CleanupFunc)
type IdemStoreFactory func(t *testing.T) (idempotencyport.Store, CleanupFunc)

// Suites may run against a shared database, so every key and city they create is unique.
func uniqueKey() domain.UserKey {
	return domain.UserKey("u-" + uuid.NewString())
}

func uniqueCity(prefix string) string {
	return domain.NormalizeCity(prefix + strings.ReplaceAll(uuid.NewString(), "-", ""))
}

func RunIdempotencyStore(t *testing.T, newStore IdemStoreFactory) {
	t.Helper()
	ctx := context.Background()

	store, cleanup := newStore(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	fp := idempotencyport.Fingerprint{
		Key:    idempotencyport.Key("k-" + uuid.NewString()),
		User:   uniqueKey(),
		Method: "POST",
		Route:  "/rides",
	}
	if _, ok, err := store.Get(ctx, fp); err != nil || ok {
		t.Fatalf("Get before Put: ok=%v err=%v, want miss", ok, err)
	}

	rec := idempotencyport.Record{
		BodyHash:    "hash-abc",
		StatusCode:  201,
		ContentType: "application/json",
		Body:        []byte(`{"id":1}`),
		CreatedAt:   time.Now().UTC().Truncate(time.Microsecond),
	}
	if err := store.Put(ctx, fp, rec); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, ok, err := store.Get(ctx, fp)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatalf("expected ok=true")
	}
	if string(got.Body) != `{"id":1}` || got.ContentType != "application/json" || got.StatusCode != 201 || got.BodyHash != "hash-abc" {
		t.Fatalf("unexpected record: %+v", got)
	}

	// Scoped by user.
	other := fp
	other.User = uniqueKey()
	if _, ok, err := store.Get(ctx, other); err != nil || ok {
		t.Fatalf("Get other user: ok=%v err=%v, want miss", ok, err)
	}

	// Overwrite semantics.
	rec2 := rec
	rec2.Body = []byte(`{"id":2}`)
	if err := store.Put(ctx, fp, rec2); err != nil {
		t.Fatalf("Put overwrite: %v", err)
	}
	got, ok, err = store.Get(ctx, fp)
	if err != nil || !ok || string(got.Body) != `{"id":2}` {
		t.Fatalf("expected overwritten record, got ok=%v err=%v body=%q", ok, err, string(got.Body))
	}
}

func RunUserRepo(t *testing.T, newRepo UserRepoFactory) {
	t.Helper()
	ctx := context.Background()

	repo, cleanup := newRepo(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	key := uniqueKey()
	email := string(key) + "@Example.com"
	u := domain.User{
		Key:          key,
		FirstName:    "Ana",
		LastName:     "García",
		Email:        email,
		Phone:        "612345678",
		Birthdate:    time.Date(1990, 5, 17, 0, 0, 0, 0, time.UTC),
		PasswordHash: "$2a$04$hash",
		CreatedAt:    time.Now().UTC().Truncate(time.Microsecond),
	}
	if err := repo.Create(ctx, u); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := repo.GetByKey(ctx, key)
	if err != nil {
		t.Fatalf("GetByKey: %v", err)
	}
	if got.Key != key || got.FirstName != "Ana" || got.LastName != "García" || got.Email != email || got.PasswordHash != u.PasswordHash {
		t.Fatalf("GetByKey unexpected: %+v", got)
	}
	if !got.Birthdate.Equal(u.Birthdate) {
		t.Fatalf("Birthdate=%v, want %v", got.Birthdate, u.Birthdate)
	}

	got, err = repo.GetByEmail(ctx, strings.ToUpper(email))
	if err != nil {
		t.Fatalf("GetByEmail (case-insensitive): %v", err)
	}
	if got.Key != key {
		t.Fatalf("GetByEmail key=%q, want %q", got.Key, key)
	}

	if _, err := repo.GetByKey(ctx, uniqueKey()); !errors.Is(err, userrepoport.ErrNotFound) {
		t.Fatalf("GetByKey unknown err=%v, want ErrNotFound", err)
	}
	if _, err := repo.GetByEmail(ctx, "nobody-"+uuid.NewString()+"@example.com"); !errors.Is(err, userrepoport.ErrNotFound) {
		t.Fatalf("GetByEmail unknown err=%v, want ErrNotFound", err)
	}

	dup := u
	dup.Email = "other-" + uuid.NewString() + "@example.com"
	if err := repo.Create(ctx, dup); !errors.Is(err, userrepoport.ErrAlreadyExists) {
		t.Fatalf("Create duplicate key err=%v, want ErrAlreadyExists", err)
	}

	sameEmail := u
	sameEmail.Key = uniqueKey()
	sameEmail.Email = strings.ToLower(email)
	if err := repo.Create(ctx, sameEmail); !errors.Is(err, userrepoport.ErrEmailInUse) {
		t.Fatalf("Create duplicate email err=%v, want ErrEmailInUse", err)
	}

	second := u
	second.Key = uniqueKey()
	second.Email = string(second.Key) + "@example.com"
	if err := repo.Create(ctx, second); err != nil {
		t.Fatalf("Create second: %v", err)
	}
	list, err := repo.ListByKeys(ctx, []domain.UserKey{key, second.Key, uniqueKey()})
	if err != nil {
		t.Fatalf("ListByKeys: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("ListByKeys len=%d, want 2", len(list))
	}
	empty, err := repo.ListByKeys(ctx, nil)
	if err != nil || len(empty) != 0 {
		t.Fatalf("ListByKeys(nil)=%v err=%v, want empty", empty, err)
	}
}

func RunRideRepo(t *testing.T, newRepo RideRepoFactory) {
	t.Helper()
	ctx := context.Background()

	repo, cleanup := newRepo(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	driver := uniqueKey()
	passenger := uniqueKey()
	requester := uniqueKey()
	origin := uniqueCity("jaen")
	destination := uniqueCity("malaga")

	base := time.Now().UTC().Add(48 * time.Hour).Truncate(24 * time.Hour)
	newRide := func(dep time.Time, dur time.Duration) domain.Ride {
		return domain.Ride{
			Driver:          driver,
			OriginCity:      origin,
			DestinationCity: destination,
			DepartureTime:   dep,
			ArrivalTime:     dep.Add(dur),
			Seats:           4,
			SeatPrice:       12.5,
			Passengers:      []domain.UserKey{driver},
			Requests:        []domain.RideRequest{},
			CreatedAt:       base,
			UpdatedAt:       base,
		}
	}

	morning, err := repo.Create(ctx, newRide(base.Add(10*time.Hour), 2*time.Hour))
	if err != nil {
		t.Fatalf("Create morning: %v", err)
	}
	if morning.ID == 0 || morning.Version != 1 {
		t.Fatalf("Create morning id=%d version=%d, want id assigned and version 1", morning.ID, morning.Version)
	}
	afternoon, err := repo.Create(ctx, newRide(base.Add(16*time.Hour), time.Hour))
	if err != nil {
		t.Fatalf("Create afternoon: %v", err)
	}
	nextDay, err := repo.Create(ctx, newRide(base.Add(34*time.Hour), time.Hour))
	if err != nil {
		t.Fatalf("Create nextDay: %v", err)
	}

	got, err := repo.GetByID(ctx, morning.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Driver != driver || got.Seats != 4 || got.SeatPrice != 12.5 || len(got.Passengers) != 1 || got.Passengers[0] != driver {
		t.Fatalf("GetByID unexpected: %+v", got)
	}
	if !got.DepartureTime.Equal(morning.DepartureTime) || !got.ArrivalTime.Equal(morning.ArrivalTime) {
		t.Fatalf("GetByID times=%v..%v, want %v..%v", got.DepartureTime, got.ArrivalTime, morning.DepartureTime, morning.ArrivalTime)
	}
	if _, err := repo.GetByID(ctx, domain.RideID(1<<62)); !errors.Is(err, riderepoport.ErrNotFound) {
		t.Fatalf("GetByID unknown err=%v, want ErrNotFound", err)
	}

	// Save: requests get IDs, passengers are replaced, version advances.
	got.Requests = append(got.Requests, domain.RideRequest{User: requester, Message: "hi", CreatedAt: base})
	got.Passengers = append(got.Passengers, passenger)
	saved, err := repo.Save(ctx, got)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if saved.Version != 2 {
		t.Fatalf("Save version=%d, want 2", saved.Version)
	}
	if len(saved.Requests) != 1 || saved.Requests[0].ID == 0 || saved.Requests[0].Message != "hi" {
		t.Fatalf("Save requests=%+v, want one with assigned id", saved.Requests)
	}

	// Stale version is rejected.
	if _, err := repo.Save(ctx, got); !errors.Is(err, riderepoport.ErrStale) {
		t.Fatalf("Save stale err=%v, want ErrStale", err)
	}

	reloaded, err := repo.GetByID(ctx, morning.ID)
	if err != nil {
		t.Fatalf("GetByID after save: %v", err)
	}
	if len(reloaded.Passengers) != 2 || reloaded.Passengers[0] != driver || reloaded.Passengers[1] != passenger {
		t.Fatalf("Passengers=%v, want [driver passenger]", reloaded.Passengers)
	}
	if len(reloaded.Requests) != 1 || reloaded.Requests[0].User != requester || reloaded.Requests[0].ID != saved.Requests[0].ID {
		t.Fatalf("Requests=%+v, want requester with stable id", reloaded.Requests)
	}

	// Visibility.
	for _, k := range []domain.UserKey{driver, passenger} {
		if _, err := repo.GetVisibleTo(ctx, morning.ID, k); err != nil {
			t.Fatalf("GetVisibleTo(%s): %v", k, err)
		}
	}
	if _, err := repo.GetVisibleTo(ctx, morning.ID, requester); !errors.Is(err, riderepoport.ErrNotFound) {
		t.Fatalf("GetVisibleTo(requester) err=%v, want ErrNotFound", err)
	}

	// Overlap: touching intervals do not overlap.
	ov, err := repo.ListOverlapping(ctx, driver, base.Add(11*time.Hour), base.Add(13*time.Hour))
	if err != nil {
		t.Fatalf("ListOverlapping: %v", err)
	}
	if len(ov) != 1 || ov[0].ID != morning.ID {
		t.Fatalf("ListOverlapping=%v, want [morning]", rideIDs(ov))
	}
	ov, err = repo.ListOverlapping(ctx, driver, base.Add(12*time.Hour), base.Add(13*time.Hour))
	if err != nil {
		t.Fatalf("ListOverlapping touching: %v", err)
	}
	if len(ov) != 0 {
		t.Fatalf("ListOverlapping touching=%v, want none", rideIDs(ov))
	}
	ov, err = repo.ListOverlapping(ctx, uniqueKey(), base.Add(11*time.Hour), base.Add(13*time.Hour))
	if err != nil || len(ov) != 0 {
		t.Fatalf("ListOverlapping other driver=%v err=%v, want none", rideIDs(ov), err)
	}

	// Create refuses an overlapping ride for the same driver.
	if _, err := repo.Create(ctx, newRide(base.Add(11*time.Hour), 2*time.Hour)); !errors.Is(err, riderepoport.ErrOverlapping) {
		t.Fatalf("Create overlapping err=%v, want ErrOverlapping", err)
	}
	ov, err = repo.ListOverlapping(ctx, driver, base.Add(10*time.Hour), base.Add(12*time.Hour))
	if err != nil || len(ov) != 1 {
		t.Fatalf("ListOverlapping after refused create=%v err=%v, want [morning]", rideIDs(ov), err)
	}

	// Concurrent creates of the same interval for one driver: exactly one wins. Touching is fine.
	racer := uniqueKey()
	racerOrigin := uniqueCity("cadiz")
	const attempts = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		refused   int
	)
	for range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r := newRide(base.Add(20*time.Hour), time.Hour)
			r.Driver = racer
			r.Passengers = []domain.UserKey{racer}
			r.OriginCity = racerOrigin
			_, err := repo.Create(ctx, r)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, riderepoport.ErrOverlapping):
				refused++
			default:
				t.Errorf("concurrent Create: %v", err)
			}
		}()
	}
	wg.Wait()
	if succeeded != 1 || refused != attempts-1 {
		t.Fatalf("concurrent Create succeeded=%d refused=%d, want 1 and %d", succeeded, refused, attempts-1)
	}
	touching := newRide(base.Add(21*time.Hour), time.Hour)
	touching.Driver = racer
	touching.Passengers = []domain.UserKey{racer}
	touching.OriginCity = racerOrigin
	if _, err := repo.Create(ctx, touching); err != nil {
		t.Fatalf("Create touching: %v", err)
	}

	// City pair window is inclusive at both ends and ordered by departure.
	endOfDay := base.Add(24*time.Hour - time.Nanosecond)
	found, err := repo.ListByCityPairAndWindow(ctx, origin, destination, base.Add(10*time.Hour), endOfDay)
	if err != nil {
		t.Fatalf("ListByCityPairAndWindow: %v", err)
	}
	if ids := rideIDs(found); len(ids) != 2 || ids[0] != morning.ID || ids[1] != afternoon.ID {
		t.Fatalf("ListByCityPairAndWindow=%v, want [%d %d]", ids, morning.ID, afternoon.ID)
	}
	found, err = repo.ListByCityPairAndWindow(ctx, destination, origin, base, endOfDay)
	if err != nil || len(found) != 0 {
		t.Fatalf("ListByCityPairAndWindow reversed=%v err=%v, want none", rideIDs(found), err)
	}

	// Pending lists use a strict "after".
	after := base.Add(10 * time.Hour)
	drv, err := repo.ListByDriverAfter(ctx, driver, after)
	if err != nil {
		t.Fatalf("ListByDriverAfter: %v", err)
	}
	if ids := rideIDs(drv); len(ids) != 2 || ids[0] != afternoon.ID || ids[1] != nextDay.ID {
		t.Fatalf("ListByDriverAfter=%v, want [%d %d]", ids, afternoon.ID, nextDay.ID)
	}
	pas, err := repo.ListByPassengerAfter(ctx, passenger, base)
	if err != nil {
		t.Fatalf("ListByPassengerAfter: %v", err)
	}
	if ids := rideIDs(pas); len(ids) != 1 || ids[0] != morning.ID {
		t.Fatalf("ListByPassengerAfter=%v, want [%d]", ids, morning.ID)
	}
	pas, err = repo.ListByPassengerAfter(ctx, driver, base)
	if err != nil || len(pas) != 3 {
		t.Fatalf("ListByPassengerAfter(driver)=%v err=%v, want all three", rideIDs(pas), err)
	}
	req, err := repo.ListByPendingRequesterAfter(ctx, requester, base)
	if err != nil {
		t.Fatalf("ListByPendingRequesterAfter: %v", err)
	}
	if ids := rideIDs(req); len(ids) != 1 || ids[0] != morning.ID {
		t.Fatalf("ListByPendingRequesterAfter=%v, want [%d]", ids, morning.ID)
	}
	req, err = repo.ListByPendingRequesterAfter(ctx, requester, after)
	if err != nil || len(req) != 0 {
		t.Fatalf("ListByPendingRequesterAfter past=%v err=%v, want none", rideIDs(req), err)
	}

	// Removing the request drops it from the pending view.
	reloaded.Requests = nil
	if _, err := repo.Save(ctx, reloaded); err != nil {
		t.Fatalf("Save without requests: %v", err)
	}
	req, err = repo.ListByPendingRequesterAfter(ctx, requester, base)
	if err != nil || len(req) != 0 {
		t.Fatalf("ListByPendingRequesterAfter after removal=%v err=%v, want none", rideIDs(req), err)
	}
}

func RunRatingRepo(t *testing.T, newRepo RatingRepoFactory) {
	t.Helper()
	ctx := context.Background()

	repo, cleanup := newRepo(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	rater := uniqueKey()
	other := uniqueKey()
	rated := uniqueKey()
	ride := domain.RideID(time.Now().UnixNano() % 1_000_000_000)
	t0 := time.Now().UTC().Truncate(time.Microsecond)

	ok, err := repo.Exists(ctx, ride, rater, rated)
	if err != nil || ok {
		t.Fatalf("Exists before create=%v err=%v, want false", ok, err)
	}

	first, err := repo.Create(ctx, domain.Rating{RideID: ride, Rater: rater, Rated: rated, Score: 4, Message: "good", CreatedAt: t0})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if first.ID == 0 {
		t.Fatalf("Create id=0, want assigned")
	}
	ok, err = repo.Exists(ctx, ride, rater, rated)
	if err != nil || !ok {
		t.Fatalf("Exists after create=%v err=%v, want true", ok, err)
	}
	// Direction matters.
	ok, err = repo.Exists(ctx, ride, rated, rater)
	if err != nil || ok {
		t.Fatalf("Exists reversed=%v err=%v, want false", ok, err)
	}

	if _, err := repo.Create(ctx, domain.Rating{RideID: ride, Rater: rater, Rated: rated, Score: 2, CreatedAt: t0}); !errors.Is(err, ratingrepoport.ErrAlreadyExists) {
		t.Fatalf("Create duplicate err=%v, want ErrAlreadyExists", err)
	}

	second, err := repo.Create(ctx, domain.Rating{RideID: ride, Rater: other, Rated: rated, Score: 5, CreatedAt: t0.Add(time.Minute)})
	if err != nil {
		t.Fatalf("Create second: %v", err)
	}

	list, err := repo.ListByRated(ctx, rated)
	if err != nil {
		t.Fatalf("ListByRated: %v", err)
	}
	if len(list) != 2 || list[0].ID != second.ID || list[1].ID != first.ID {
		t.Fatalf("ListByRated=%+v, want newest first", list)
	}
	if list[1].Message != "good" || list[1].Score != 4 || list[1].Rater != rater {
		t.Fatalf("ListByRated[1]=%+v, want first rating", list[1])
	}
}

func rideIDs(rs []domain.Ride) []domain.RideID {
	out := make([]domain.RideID, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.ID)
	}
	return out
}
