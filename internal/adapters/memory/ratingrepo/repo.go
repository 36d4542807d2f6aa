package ratingrepo

import (
	"context"
	"sort"
	"sync"

	"github.com/Overland-East-Bay/carpool-api/internal/domain"
	"github.com/Overland-East-Bay/carpool-api/internal/ports/out/ratingrepo"
)

type key struct {
	rideID domain.RideID
	rater  domain.UserKey
	rated  domain.UserKey
}

// Repo is an in-memory implementation of ratingrepo.Repository.
// It is safe for concurrent use.
type Repo struct {
	mu     sync.RWMutex
	m      map[key]domain.Rating
	nextID domain.RatingID
}

func NewRepo() *Repo {
	return &Repo{m: make(map[key]domain.Rating)}
}

func (r *Repo) Create(ctx context.Context, rating domain.Rating) (domain.Rating, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	k := key{rideID: rating.RideID, rater: rating.Rater, rated: rating.Rated}
	if _, ok := r.m[k]; ok {
		return domain.Rating{}, ratingrepo.ErrAlreadyExists
	}
	r.nextID++
	rating.ID = r.nextID
	r.m[k] = rating
	return rating, nil
}

func (r *Repo) Exists(ctx context.Context, ride domain.RideID, rater, rated domain.UserKey) (bool, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.m[key{rideID: ride, rater: rater, rated: rated}]
	return ok, nil
}

func (r *Repo) ListByRated(ctx context.Context, rated domain.UserKey) ([]domain.Rating, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Rating, 0)
	for k, v := range r.m {
		if k.rated == rated {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}
