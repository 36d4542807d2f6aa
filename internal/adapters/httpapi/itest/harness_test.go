package itest

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/Overland-East-Bay/carpool-api/internal/adapters/httpapi"
	memclock "github.com/Overland-East-Bay/carpool-api/internal/adapters/memory/clock"
	memevents "github.com/Overland-East-Bay/carpool-api/internal/adapters/memory/events"
	memidempotency "github.com/Overland-East-Bay/carpool-api/internal/adapters/memory/idempotency"
	memratingrepo "github.com/Overland-East-Bay/carpool-api/internal/adapters/memory/ratingrepo"
	memriderepo "github.com/Overland-East-Bay/carpool-api/internal/adapters/memory/riderepo"
	memuserrepo "github.com/Overland-East-Bay/carpool-api/internal/adapters/memory/userrepo"
	pgidempotency "github.com/Overland-East-Bay/carpool-api/internal/adapters/postgres/idempotency"
	pgratingrepo "github.com/Overland-East-Bay/carpool-api/internal/adapters/postgres/ratingrepo"
	pgriderepo "github.com/Overland-East-Bay/carpool-api/internal/adapters/postgres/riderepo"
	pgtestutil "github.com/Overland-East-Bay/carpool-api/internal/adapters/postgres/testutil"
	pguserrepo "github.com/Overland-East-Bay/carpool-api/internal/adapters/postgres/userrepo"
	"github.com/Overland-East-Bay/carpool-api/internal/app/booking"
	"github.com/Overland-East-Bay/carpool-api/internal/app/users"
	idempotencyport "github.com/Overland-East-Bay/carpool-api/internal/ports/out/idempotency"
	ratingrepoport "github.com/Overland-East-Bay/carpool-api/internal/ports/out/ratingrepo"
	riderepoport "github.com/Overland-East-Bay/carpool-api/internal/ports/out/riderepo"
	userrepoport "github.com/Overland-East-Bay/carpool-api/internal/ports/out/userrepo"
)

type backend string

const (
	backendMemory   backend = "memory"
	backendPostgres backend = "postgres"
)

func backendsFromEnv(t *testing.T) []backend {
	t.Helper()
	switch strings.ToLower(strings.TrimSpace(os.Getenv("ITEST_BACKEND"))) {
	case "", "memory":
		return []backend{backendMemory}
	case "postgres":
		return []backend{backendPostgres}
	case "all":
		return []backend{backendMemory, backendPostgres}
	default:
		t.Fatalf("unknown ITEST_BACKEND value (expected memory|postgres|all)")
		return nil
	}
}

type testServer struct {
	baseURL string
	client  *http.Client
	events  *memevents.Recorder
	clock   *memclock.ManualClock
}

// itestNow is the fixed clock reading; rides are scheduled relative to it.
var itestNow = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T, b backend) *testServer {
	t.Helper()

	clk := memclock.NewManualClock(itestNow)

	var (
		userRepo   userrepoport.Repository
		rideRepo   riderepoport.Repository
		ratingRepo ratingrepoport.Repository
		idemStore  idempotencyport.Store
	)

	switch b {
	case backendPostgres:
		pool := pgtestutil.OpenMigratedPool(t)
		userRepo = pguserrepo.NewRepo(pool)
		rideRepo = pgriderepo.NewRepo(pool)
		ratingRepo = pgratingrepo.NewRepo(pool)
		idemStore = pgidempotency.NewStore(pool, clk, 24*time.Hour)
	case backendMemory:
		userRepo = memuserrepo.NewRepo()
		rideRepo = memriderepo.NewRepo()
		ratingRepo = memratingrepo.NewRepo()
		idemStore = memidempotency.NewStore(clk, 24*time.Hour)
	default:
		t.Fatalf("unknown backend: %s", b)
	}

	rec := memevents.NewRecorder()
	userSvc := users.NewService(userRepo, clk, users.NewPasswordHasher(bcrypt.MinCost), nil)
	bookingSvc := booking.NewService(userSvc, rideRepo, ratingRepo, rec, clk, nil)
	api := httpapi.NewServer(userSvc, bookingSvc, idemStore, clk, nil)
	handler := httpapi.NewRouter(api)

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return &testServer{
		baseURL: srv.URL,
		client:  srv.Client(),
		events:  rec,
		clock:   clk,
	}
}

type creds struct {
	email    string
	password string
}

func (s *testServer) url(path string) string {
	if strings.HasPrefix(path, "/") {
		return s.baseURL + path
	}
	return s.baseURL + "/" + path
}

func (s *testServer) doJSON(t *testing.T, method string, path string, who *creds, body any, headers ...string) (int, []byte, http.Header) {
	t.Helper()

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, s.url(path), r)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if who != nil {
		req.SetBasicAuth(who.email, who.password)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := s.client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, out, resp.Header
}

type errorResponse struct {
	Error struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestID string `json:"requestId"`
	} `json:"error"`
}

func mustUnmarshal[T any](t *testing.T, b []byte) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v\nbody=%s", err, string(b))
	}
	return out
}

func requireStatus(t *testing.T, status int, body []byte, want int) {
	t.Helper()
	if status != want {
		t.Fatalf("status=%d want=%d body=%s", status, want, string(body))
	}
}

func requireErrorCode(t *testing.T, status int, body []byte, wantStatus int, wantCode string) {
	t.Helper()
	requireStatus(t, status, body, wantStatus)
	got := mustUnmarshal[errorResponse](t, body)
	if got.Error.Code != wantCode {
		t.Fatalf("error.code=%q want=%q body=%s", got.Error.Code, wantCode, string(body))
	}
	if got.Error.RequestID == "" {
		t.Fatalf("expected error.requestId to be set; body=%s", string(body))
	}
}
