package userrepo

import (
	"context"

	"github.com/Overland-East-Bay/carpool-api/internal/domain"
)

// Repository provides access to persisted users.
//
// Email lookups are case-insensitive; implementations store the email as given.
type Repository interface {
	Create(ctx context.Context, u domain.User) error

	GetByKey(ctx context.Context, key domain.UserKey) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)

	// ListByKeys returns the users found for keys, in no particular order. Unknown keys are skipped.
	ListByKeys(ctx context.Context, keys []domain.UserKey) ([]domain.User, error)
}
