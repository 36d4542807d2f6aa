package ratingrepo

import (
	"testing"

	"github.com/Overland-East-Bay/carpool-api/internal/adapters/contracttest"
	"github.com/Overland-East-Bay/carpool-api/internal/adapters/postgres/testutil"
	ratingrepoport "github.com/Overland-East-Bay/carpool-api/internal/ports/out/ratingrepo"
)

func TestContract_PostgresRatingRepo(t *testing.T) {
	pool := testutil.OpenMigratedPool(t)

	contracttest.RunRatingRepo(t, func(t *testing.T) (ratingrepoport.Repository, func()) {
		t.Helper()
		return NewRepo(pool), nil
	})
}
