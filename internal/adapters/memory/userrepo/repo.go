package userrepo

import (
	"context"
	"strings"
	"sync"

	"github.com/Overland-East-Bay/carpool-api/internal/domain"
	"github.com/Overland-East-Bay/carpool-api/internal/ports/out/userrepo"
)

// Repo is an in-memory implementation of userrepo.Repository.
// It is safe for concurrent use.
type Repo struct {
	mu sync.RWMutex

	byKey      map[domain.UserKey]domain.User
	keyByEmail map[string]domain.UserKey
}

func NewRepo() *Repo {
	return &Repo{
		byKey:      make(map[domain.UserKey]domain.User),
		keyByEmail: make(map[string]domain.UserKey),
	}
}

func (r *Repo) Create(ctx context.Context, u domain.User) error {
	_ = ctx
	if u.Key == "" {
		return userrepo.ErrAlreadyExists // treat empty key as invalid; the service validates first
	}
	email := strings.ToLower(u.Email)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byKey[u.Key]; ok {
		return userrepo.ErrAlreadyExists
	}
	if _, ok := r.keyByEmail[email]; ok {
		return userrepo.ErrEmailInUse
	}
	r.byKey[u.Key] = u
	r.keyByEmail[email] = u.Key
	return nil
}

func (r *Repo) GetByKey(ctx context.Context, key domain.UserKey) (domain.User, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byKey[key]
	if !ok {
		return domain.User{}, userrepo.ErrNotFound
	}
	return u, nil
}

func (r *Repo) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	key, ok := r.keyByEmail[strings.ToLower(email)]
	if !ok {
		return domain.User{}, userrepo.ErrNotFound
	}
	u, ok := r.byKey[key]
	if !ok {
		return domain.User{}, userrepo.ErrNotFound
	}
	return u, nil
}

func (r *Repo) ListByKeys(ctx context.Context, keys []domain.UserKey) ([]domain.User, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.User, 0, len(keys))
	seen := make(map[domain.UserKey]struct{}, len(keys))
	for _, k := range keys {
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		if u, ok := r.byKey[k]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}
