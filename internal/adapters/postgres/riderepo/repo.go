package riderepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Overland-East-Bay/carpool-api/internal/domain"
	"github.com/Overland-East-Bay/carpool-api/internal/ports/out/riderepo"
)

// Repo is a Postgres implementation of riderepo.Repository.
//
// A ride aggregate spans three tables: rides, ride_passengers (ordered by position, driver first)
// and ride_requests. Save rewrites the two child tables inside the version-checked transaction.
type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

const selectRide = `
	SELECT id, driver_key, origin_city, destination_city, departure_time, arrival_time,
	       seats, seat_price, version, created_at, updated_at
	FROM rides
`

const orderRides = ` ORDER BY departure_time ASC, id ASC`

func (r *Repo) Create(ctx context.Context, ride domain.Ride) (domain.Ride, error) {
	if r.pool == nil {
		return domain.Ride{}, errors.New("nil postgres pool")
	}
	out := ride.Clone()
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		// Serializes creates per driver across processes until commit.
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, string(ride.Driver)); err != nil {
			return err
		}
		var overlapping bool
		err := tx.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM rides
				WHERE driver_key = $1 AND departure_time < $3 AND $2 < arrival_time
			)
		`, string(ride.Driver), ride.DepartureTime.UTC(), ride.ArrivalTime.UTC()).Scan(&overlapping)
		if err != nil {
			return err
		}
		if overlapping {
			return riderepo.ErrOverlapping
		}

		var id int64
		err = tx.QueryRow(ctx, `
			INSERT INTO rides (
				driver_key,
				origin_city,
				destination_city,
				departure_time,
				arrival_time,
				seats,
				seat_price,
				version,
				created_at,
				updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, 1, $8, $9)
			RETURNING id
		`,
			string(ride.Driver),
			ride.OriginCity,
			ride.DestinationCity,
			ride.DepartureTime.UTC(),
			ride.ArrivalTime.UTC(),
			ride.Seats,
			ride.SeatPrice,
			ride.CreatedAt.UTC(),
			ride.UpdatedAt.UTC(),
		).Scan(&id)
		if err != nil {
			return err
		}
		out.ID = domain.RideID(id)
		out.Version = 1
		if err := insertPassengers(ctx, tx, out.ID, out.Passengers); err != nil {
			return err
		}
		return insertNewRequests(ctx, tx, out.ID, out.Requests)
	})
	if err != nil {
		return domain.Ride{}, err
	}
	return out, nil
}

func (r *Repo) Save(ctx context.Context, ride domain.Ride) (domain.Ride, error) {
	if r.pool == nil {
		return domain.Ride{}, errors.New("nil postgres pool")
	}
	out := ride.Clone()
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			UPDATE rides
			SET version = version + 1, updated_at = $3
			WHERE id = $1 AND version = $2
			RETURNING version
		`, int64(ride.ID), ride.Version, ride.UpdatedAt.UTC()).Scan(&out.Version)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				var exists bool
				if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM rides WHERE id = $1)`, int64(ride.ID)).Scan(&exists); err != nil {
					return err
				}
				if !exists {
					return riderepo.ErrNotFound
				}
				return riderepo.ErrStale
			}
			return err
		}

		if _, err := tx.Exec(ctx, `DELETE FROM ride_passengers WHERE ride_id = $1`, int64(ride.ID)); err != nil {
			return err
		}
		if err := insertPassengers(ctx, tx, ride.ID, out.Passengers); err != nil {
			return err
		}

		keep := make([]int64, 0, len(out.Requests))
		for _, req := range out.Requests {
			if req.ID != 0 {
				keep = append(keep, int64(req.ID))
			}
		}
		if _, err := tx.Exec(ctx, `DELETE FROM ride_requests WHERE ride_id = $1 AND NOT (id = ANY($2))`, int64(ride.ID), keep); err != nil {
			return err
		}
		return insertNewRequests(ctx, tx, ride.ID, out.Requests)
	})
	if err != nil {
		return domain.Ride{}, err
	}
	return out, nil
}

func (r *Repo) GetByID(ctx context.Context, id domain.RideID) (domain.Ride, error) {
	rs, err := r.query(ctx, selectRide+` WHERE id = $1`, int64(id))
	if err != nil {
		return domain.Ride{}, err
	}
	if len(rs) == 0 {
		return domain.Ride{}, riderepo.ErrNotFound
	}
	return rs[0], nil
}

func (r *Repo) GetVisibleTo(ctx context.Context, id domain.RideID, user domain.UserKey) (domain.Ride, error) {
	rs, err := r.query(ctx, selectRide+`
		WHERE id = $1
		  AND EXISTS (SELECT 1 FROM ride_passengers p WHERE p.ride_id = rides.id AND p.user_key = $2)
	`, int64(id), string(user))
	if err != nil {
		return domain.Ride{}, err
	}
	if len(rs) == 0 {
		return domain.Ride{}, riderepo.ErrNotFound
	}
	return rs[0], nil
}

func (r *Repo) ListOverlapping(ctx context.Context, driver domain.UserKey, from, to time.Time) ([]domain.Ride, error) {
	return r.query(ctx, selectRide+`
		WHERE driver_key = $1 AND departure_time < $3 AND $2 < arrival_time
	`+orderRides, string(driver), from.UTC(), to.UTC())
}

func (r *Repo) ListByCityPairAndWindow(ctx context.Context, origin, destination string, from, to time.Time) ([]domain.Ride, error) {
	return r.query(ctx, selectRide+`
		WHERE origin_city = $1 AND destination_city = $2
		  AND departure_time >= $3 AND departure_time <= $4
	`+orderRides, origin, destination, from.UTC(), to.UTC())
}

func (r *Repo) ListByDriverAfter(ctx context.Context, driver domain.UserKey, t time.Time) ([]domain.Ride, error) {
	return r.query(ctx, selectRide+`
		WHERE driver_key = $1 AND departure_time > $2
	`+orderRides, string(driver), t.UTC())
}

func (r *Repo) ListByPassengerAfter(ctx context.Context, user domain.UserKey, t time.Time) ([]domain.Ride, error) {
	return r.query(ctx, selectRide+`
		WHERE departure_time > $2
		  AND EXISTS (SELECT 1 FROM ride_passengers p WHERE p.ride_id = rides.id AND p.user_key = $1)
	`+orderRides, string(user), t.UTC())
}

func (r *Repo) ListByPendingRequesterAfter(ctx context.Context, user domain.UserKey, t time.Time) ([]domain.Ride, error) {
	return r.query(ctx, selectRide+`
		WHERE departure_time > $2
		  AND EXISTS (SELECT 1 FROM ride_requests q WHERE q.ride_id = rides.id AND q.user_key = $1)
	`+orderRides, string(user), t.UTC())
}

// query loads the ride rows and then their passengers and requests in two batched reads.
func (r *Repo) query(ctx context.Context, sql string, args ...any) ([]domain.Ride, error) {
	if r.pool == nil {
		return nil, errors.New("nil postgres pool")
	}
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	rides, err := pgx.CollectRows(rows, scanRide)
	if err != nil {
		return nil, err
	}
	if len(rides) == 0 {
		return []domain.Ride{}, nil
	}

	ids := make([]int64, 0, len(rides))
	idx := make(map[domain.RideID]int, len(rides))
	for i, ride := range rides {
		ids = append(ids, int64(ride.ID))
		idx[ride.ID] = i
	}

	prow, err := r.pool.Query(ctx, `
		SELECT ride_id, user_key FROM ride_passengers
		WHERE ride_id = ANY($1)
		ORDER BY ride_id, position
	`, ids)
	if err != nil {
		return nil, err
	}
	defer prow.Close()
	for prow.Next() {
		var (
			rideID int64
			key    string
		)
		if err := prow.Scan(&rideID, &key); err != nil {
			return nil, err
		}
		i := idx[domain.RideID(rideID)]
		rides[i].Passengers = append(rides[i].Passengers, domain.UserKey(key))
	}
	if err := prow.Err(); err != nil {
		return nil, err
	}

	qrow, err := r.pool.Query(ctx, `
		SELECT id, ride_id, user_key, message, created_at FROM ride_requests
		WHERE ride_id = ANY($1)
		ORDER BY ride_id, id
	`, ids)
	if err != nil {
		return nil, err
	}
	defer qrow.Close()
	for qrow.Next() {
		var (
			req    domain.RideRequest
			id     int64
			rideID int64
			key    string
		)
		if err := qrow.Scan(&id, &rideID, &key, &req.Message, &req.CreatedAt); err != nil {
			return nil, err
		}
		req.ID = domain.RequestID(id)
		req.User = domain.UserKey(key)
		req.CreatedAt = req.CreatedAt.UTC()
		i := idx[domain.RideID(rideID)]
		rides[i].Requests = append(rides[i].Requests, req)
	}
	return rides, qrow.Err()
}

func scanRide(row pgx.CollectableRow) (domain.Ride, error) {
	var (
		ride   domain.Ride
		id     int64
		driver string
	)
	err := row.Scan(
		&id,
		&driver,
		&ride.OriginCity,
		&ride.DestinationCity,
		&ride.DepartureTime,
		&ride.ArrivalTime,
		&ride.Seats,
		&ride.SeatPrice,
		&ride.Version,
		&ride.CreatedAt,
		&ride.UpdatedAt,
	)
	if err != nil {
		return domain.Ride{}, err
	}
	ride.ID = domain.RideID(id)
	ride.Driver = domain.UserKey(driver)
	ride.DepartureTime = ride.DepartureTime.UTC()
	ride.ArrivalTime = ride.ArrivalTime.UTC()
	ride.CreatedAt = ride.CreatedAt.UTC()
	ride.UpdatedAt = ride.UpdatedAt.UTC()
	ride.Passengers = []domain.UserKey{}
	ride.Requests = []domain.RideRequest{}
	return ride, nil
}

func insertPassengers(ctx context.Context, tx pgx.Tx, rideID domain.RideID, passengers []domain.UserKey) error {
	for i, p := range passengers {
		if _, err := tx.Exec(ctx, `
			INSERT INTO ride_passengers (ride_id, user_key, position) VALUES ($1, $2, $3)
		`, int64(rideID), string(p), i); err != nil {
			return fmt.Errorf("insert passenger %s: %w", p, err)
		}
	}
	return nil
}

// insertNewRequests stores requests without an ID and writes the assigned IDs back into reqs.
func insertNewRequests(ctx context.Context, tx pgx.Tx, rideID domain.RideID, reqs []domain.RideRequest) error {
	for i := range reqs {
		if reqs[i].ID != 0 {
			continue
		}
		var id int64
		if err := tx.QueryRow(ctx, `
			INSERT INTO ride_requests (ride_id, user_key, message, created_at)
			VALUES ($1, $2, $3, $4)
			RETURNING id
		`, int64(rideID), string(reqs[i].User), reqs[i].Message, reqs[i].CreatedAt.UTC()).Scan(&id); err != nil {
			return fmt.Errorf("insert request %s: %w", reqs[i].User, err)
		}
		reqs[i].ID = domain.RequestID(id)
	}
	return nil
}
