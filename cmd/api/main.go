package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/Overland-East-Bay/carpool-api/internal/adapters/httpapi"
	memevents "github.com/Overland-East-Bay/carpool-api/internal/adapters/memory/events"
	memidempotency "github.com/Overland-East-Bay/carpool-api/internal/adapters/memory/idempotency"
	memratingrepo "github.com/Overland-East-Bay/carpool-api/internal/adapters/memory/ratingrepo"
	memriderepo "github.com/Overland-East-Bay/carpool-api/internal/adapters/memory/riderepo"
	memuserrepo "github.com/Overland-East-Bay/carpool-api/internal/adapters/memory/userrepo"
	postgres "github.com/Overland-East-Bay/carpool-api/internal/adapters/postgres"
	pgidempotency "github.com/Overland-East-Bay/carpool-api/internal/adapters/postgres/idempotency"
	pgratingrepo "github.com/Overland-East-Bay/carpool-api/internal/adapters/postgres/ratingrepo"
	pgriderepo "github.com/Overland-East-Bay/carpool-api/internal/adapters/postgres/riderepo"
	pguserrepo "github.com/Overland-East-Bay/carpool-api/internal/adapters/postgres/userrepo"
	"github.com/Overland-East-Bay/carpool-api/internal/adapters/rabbitmq"
	"github.com/Overland-East-Bay/carpool-api/internal/app/booking"
	"github.com/Overland-East-Bay/carpool-api/internal/app/users"
	platformclock "github.com/Overland-East-Bay/carpool-api/internal/platform/clock"
	"github.com/Overland-East-Bay/carpool-api/internal/platform/config"
	"github.com/Overland-East-Bay/carpool-api/internal/platform/logging"
	"github.com/Overland-East-Bay/carpool-api/internal/ports/out/events"
	idempotencyport "github.com/Overland-East-Bay/carpool-api/internal/ports/out/idempotency"
	ratingrepoport "github.com/Overland-East-Bay/carpool-api/internal/ports/out/ratingrepo"
	riderepoport "github.com/Overland-East-Bay/carpool-api/internal/ports/out/riderepo"
	userrepoport "github.com/Overland-East-Bay/carpool-api/internal/ports/out/userrepo"
)

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(2)
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogDev)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(2)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("api exited", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clk := platformclock.NewSystemClock()

	var (
		userRepo   userrepoport.Repository
		rideRepo   riderepoport.Repository
		ratingRepo ratingrepoport.Repository
		idemStore  idempotencyport.Store
	)

	switch cfg.StorageBackend {
	case config.StoragePostgres:
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, postgres.PoolOptions{
			MaxConns:        cfg.DB.MaxConns,
			MinConns:        cfg.DB.MinConns,
			MaxConnIdleTime: cfg.DB.MaxConnIdleTime,
			MaxConnLifetime: cfg.DB.MaxConnLifetime,
			ConnectTimeout:  cfg.DB.ConnectTimeout,
		})
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		defer pool.Close()
		if err := postgres.Migrate(ctx, pool); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}

		userRepo = pguserrepo.NewRepo(pool)
		rideRepo = pgriderepo.NewRepo(pool)
		ratingRepo = pgratingrepo.NewRepo(pool)
		idemStore = pgidempotency.NewStore(pool, clk, cfg.IdempotencyTTL)
	default:
		userRepo = memuserrepo.NewRepo()
		rideRepo = memriderepo.NewRepo()
		ratingRepo = memratingrepo.NewRepo()
		idemStore = memidempotency.NewStore(clk, cfg.IdempotencyTTL)
	}
	log.Info("storage ready", zap.String("backend", cfg.StorageBackend))

	var publisher events.Publisher = events.Nop{}
	switch cfg.EventsBackend {
	case config.EventsRabbitMQ:
		conn, err := rabbitmq.Dial(ctx, cfg.AMQPURL, cfg.EventsExchange, log)
		if err != nil {
			return fmt.Errorf("rabbitmq: %w", err)
		}
		defer conn.Close()
		publisher = rabbitmq.NewPublisher(conn, log)
	case config.EventsMemory:
		publisher = memevents.NewRecorder()
	}
	log.Info("events ready", zap.String("backend", cfg.EventsBackend))

	userSvc := users.NewService(userRepo, clk, users.NewPasswordHasher(cfg.BcryptCost), log.Named("users"))
	bookingSvc := booking.NewService(userSvc, rideRepo, ratingRepo, publisher, clk, log.Named("booking"))

	api := httpapi.NewServer(userSvc, bookingSvc, idemStore, clk, log.Named("http"))
	handler := httpapi.NewRouterWithOptions(api, httpapi.RouterOptions{Logger: log.Named("access")})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("api listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
