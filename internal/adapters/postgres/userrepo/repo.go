package userrepo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/Overland-East-Bay/carpool-api/internal/adapters/postgres"
	"github.com/Overland-East-Bay/carpool-api/internal/domain"
	"github.com/Overland-East-Bay/carpool-api/internal/ports/out/userrepo"
)

// Repo is a Postgres implementation of userrepo.Repository.
type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

const selectUser = `
	SELECT user_key, first_name, last_name, email, phone, birthdate, password_hash, created_at
	FROM users
`

func (r *Repo) Create(ctx context.Context, u domain.User) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO users (
			user_key,
			first_name,
			last_name,
			email,
			phone,
			birthdate,
			password_hash,
			created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		string(u.Key),
		u.FirstName,
		u.LastName,
		u.Email,
		u.Phone,
		pgtype.Date{Time: u.Birthdate, Valid: true},
		u.PasswordHash,
		u.CreatedAt.UTC(),
	)
	if err != nil {
		if pe, ok := postgres.AsPgError(err); ok && pe.Code == postgres.UniqueViolationCode {
			switch pe.ConstraintName {
			case "users_email_lower_unique":
				return userrepo.ErrEmailInUse
			default:
				return userrepo.ErrAlreadyExists
			}
		}
		return err
	}
	return nil
}

func (r *Repo) GetByKey(ctx context.Context, key domain.UserKey) (domain.User, error) {
	if r.pool == nil {
		return domain.User{}, errors.New("nil postgres pool")
	}
	return scanUser(r.pool.QueryRow(ctx, selectUser+` WHERE user_key = $1`, string(key)))
}

func (r *Repo) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	if r.pool == nil {
		return domain.User{}, errors.New("nil postgres pool")
	}
	return scanUser(r.pool.QueryRow(ctx, selectUser+` WHERE lower(email) = lower($1)`, email))
}

func (r *Repo) ListByKeys(ctx context.Context, keys []domain.UserKey) ([]domain.User, error) {
	if r.pool == nil {
		return nil, errors.New("nil postgres pool")
	}
	if len(keys) == 0 {
		return []domain.User{}, nil
	}
	ks := make([]string, 0, len(keys))
	for _, k := range keys {
		ks = append(ks, string(k))
	}
	rows, err := r.pool.Query(ctx, selectUser+` WHERE user_key = ANY($1)`, ks)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.User, 0, len(keys))
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func scanUser(row pgx.Row) (domain.User, error) {
	var (
		u         domain.User
		key       string
		birthdate pgtype.Date
	)
	if err := row.Scan(&key, &u.FirstName, &u.LastName, &u.Email, &u.Phone, &birthdate, &u.PasswordHash, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, userrepo.ErrNotFound
		}
		return domain.User{}, err
	}
	u.Key = domain.UserKey(key)
	u.Birthdate = birthdate.Time.UTC()
	u.CreatedAt = u.CreatedAt.UTC()
	return u, nil
}
