package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type RouterOptions struct {
	// AuthMiddleware guards every route except health, registration and ride search.
	// Defaults to NewBasicAuthMiddleware().
	AuthMiddleware func(http.Handler) http.Handler

	Logger *zap.Logger
}

// NewRouter constructs the API HTTP router with default options.
func NewRouter(s *Server) http.Handler {
	return NewRouterWithOptions(s, RouterOptions{})
}

func NewRouterWithOptions(s *Server, opts RouterOptions) http.Handler {
	authMW := opts.AuthMiddleware
	if authMW == nil {
		authMW = NewBasicAuthMiddleware()
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)

	// Health endpoint is unauthenticated (used for infra checks).
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Post("/users", s.RegisterUser)
	r.Get("/rides", s.FindRides)

	r.Group(func(r chi.Router) {
		r.Use(authMW)

		r.Get("/users/me", s.GetMyProfile)
		r.Get("/users/me/ratings", s.ListMyRatings)
		r.Post("/users/{userKey}/ratings", s.RateUser)

		r.Post("/rides", s.CreateRide)
		r.Get("/rides/pending/driver", s.PendingAsDriver)
		r.Get("/rides/pending/passenger", s.PendingAsPassenger)
		r.Get("/rides/pending/acceptance", s.PendingAcceptance)

		r.Route("/rides/{rideId}", func(r chi.Router) {
			r.Get("/", s.GetRide)
			r.Post("/requests", s.RequestSeat)
			r.Get("/requests", s.ListRideRequests)
			r.Delete("/requests/{userKey}", s.DenyRequest)
			r.Post("/passengers/{userKey}", s.AcceptRequest)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "NOT_FOUND", "route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed", nil)
	})
	return r
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			defer func() {
				log.Info("http request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
					zap.String("request_id", middleware.GetReqID(r.Context())),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
