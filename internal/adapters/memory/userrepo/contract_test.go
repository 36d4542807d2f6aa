package userrepo

import (
	"testing"

	"github.com/Overland-East-Bay/carpool-api/internal/adapters/contracttest"
	userrepoport "github.com/Overland-East-Bay/carpool-api/internal/ports/out/userrepo"
)

func TestContract_UserRepo(t *testing.T) {
	contracttest.RunUserRepo(t, func(t *testing.T) (userrepoport.Repository, func()) {
		t.Helper()
		return NewRepo(), nil
	})
}
