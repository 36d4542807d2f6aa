package ratingrepo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/Overland-East-Bay/carpool-api/internal/adapters/postgres"
	"github.com/Overland-East-Bay/carpool-api/internal/domain"
	"github.com/Overland-East-Bay/carpool-api/internal/ports/out/ratingrepo"
)

// Repo is a Postgres implementation of ratingrepo.Repository.
type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

func (r *Repo) Create(ctx context.Context, rating domain.Rating) (domain.Rating, error) {
	if r.pool == nil {
		return domain.Rating{}, errors.New("nil postgres pool")
	}
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO ratings (ride_id, rater_key, rated_key, score, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`,
		int64(rating.RideID),
		string(rating.Rater),
		string(rating.Rated),
		rating.Score,
		rating.Message,
		rating.CreatedAt.UTC(),
	).Scan(&id)
	if err != nil {
		if pe, ok := postgres.AsPgError(err); ok && pe.Code == postgres.UniqueViolationCode {
			return domain.Rating{}, ratingrepo.ErrAlreadyExists
		}
		return domain.Rating{}, err
	}
	rating.ID = domain.RatingID(id)
	return rating, nil
}

func (r *Repo) Exists(ctx context.Context, ride domain.RideID, rater, rated domain.UserKey) (bool, error) {
	if r.pool == nil {
		return false, errors.New("nil postgres pool")
	}
	var ok bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM ratings WHERE ride_id = $1 AND rater_key = $2 AND rated_key = $3
		)
	`, int64(ride), string(rater), string(rated)).Scan(&ok)
	return ok, err
}

func (r *Repo) ListByRated(ctx context.Context, rated domain.UserKey) ([]domain.Rating, error) {
	if r.pool == nil {
		return nil, errors.New("nil postgres pool")
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, ride_id, rater_key, rated_key, score, message, created_at
		FROM ratings
		WHERE rated_key = $1
		ORDER BY created_at DESC, id DESC
	`, string(rated))
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Rating, error) {
		var (
			out          domain.Rating
			id, rideID   int64
			rater, ratee string
		)
		if err := row.Scan(&id, &rideID, &rater, &ratee, &out.Score, &out.Message, &out.CreatedAt); err != nil {
			return domain.Rating{}, err
		}
		out.ID = domain.RatingID(id)
		out.RideID = domain.RideID(rideID)
		out.Rater = domain.UserKey(rater)
		out.Rated = domain.UserKey(ratee)
		out.CreatedAt = out.CreatedAt.UTC()
		return out, nil
	})
}
