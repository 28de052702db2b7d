// Package main is the entry point for the ride offer API server.
// Its sole responsibility is wiring dependencies together and starting the server.
// No business logic belongs here.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/redis/go-redis/v9"

	"github.com/pkordes/ridepost/internal/config"
	"github.com/pkordes/ridepost/internal/events"
	"github.com/pkordes/ridepost/internal/handler"
	"github.com/pkordes/ridepost/internal/location"
	"github.com/pkordes/ridepost/internal/maps"
	"github.com/pkordes/ridepost/internal/middleware"
	"github.com/pkordes/ridepost/internal/pricing"
	"github.com/pkordes/ridepost/internal/publish"
	"github.com/pkordes/ridepost/internal/repo"
	"github.com/pkordes/ridepost/internal/route"
	"github.com/pkordes/ridepost/internal/service"
	"github.com/pkordes/ridepost/internal/stopover"
	"github.com/pkordes/ridepost/internal/wizard"
	"github.com/pkordes/ridepost/migrations"
	"github.com/pkordes/ridepost/spec"
)

// sweepInterval is how often idle wizards are looked for.
const sweepInterval = time.Minute

func main() {
	// --- Config -----------------------------------------------------------
	cfg, err := config.Load()
	if err != nil {
		// Use plain stderr before the logger is configured.
		slog.Error("configuration error", "error", err)
		os.Exit(1)
	}

	// --- Logger -----------------------------------------------------------
	var logLevel slog.Level
	if err := logLevel.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Database ---------------------------------------------------------
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Verify the DB is reachable before accepting traffic.
	if err := pool.Ping(ctx); err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	slog.Info("database connection established")

	if err := migrate(ctx, pool); err != nil {
		slog.Error("failed to apply migrations", "error", err)
		os.Exit(1)
	}

	// --- Collaborators ----------------------------------------------------
	mapsClient := maps.NewClient(maps.Config{
		BaseURL:       cfg.MapsBaseURL,
		APIKey:        cfg.MapsAPIKey,
		RatePerSecond: cfg.MapsRatePerSecond,
		MaxRetries:    3,
	}, logger)

	var geocoder location.Geocoder = mapsClient
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			slog.Error("invalid REDIS_URL", "error", err)
			os.Exit(1)
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()
		geocoder = maps.NewGeocodeCache(rdb, cfg.GeocodeCacheTTL, mapsClient, logger)
		slog.Info("geocode cache enabled", "ttl", cfg.GeocodeCacheTTL)
	}

	places, err := stopover.LoadGazetteerFile(cfg.GazetteerPath)
	if err != nil {
		slog.Error("failed to load gazetteer", "error", err)
		os.Exit(1)
	}

	var notifier publish.Notifier = events.Discard{}
	if cfg.AMQPURL != "" {
		amqpPub, err := events.Dial(cfg.AMQPURL, cfg.AMQPExchange, logger)
		if err != nil {
			slog.Error("failed to connect to message broker", "error", err)
			os.Exit(1)
		}
		defer amqpPub.Close()
		notifier = amqpPub
		slog.Info("trip events enabled", "exchange", cfg.AMQPExchange)
	}

	pricer := pricing.New(cfg.Location, cfg.Currency)
	trips := repo.NewTripRepo(pool)

	registry := wizard.NewRegistry(wizard.Deps{
		Resolver:  location.NewResolver(geocoder, logger),
		Planner:   route.NewPlanner(mapsClient, logger),
		Suggester: stopover.NewSuggester(places, cfg.CorridorKm*1000),
		Pricer:    pricer,
		Publisher: publish.NewPublisher(trips, notifier, logger),
		Log:       logger,
	}, wizard.Session{
		Region:        cfg.MapsRegion,
		Location:      cfg.Location,
		LookupTimeout: cfg.LookupTimeout,
		MaxStopovers:  cfg.MaxStopovers,
	}, cfg.WizardIdleTimeout)

	sweeperDone := make(chan struct{})
	go func() {
		defer close(sweeperDone)
		registry.Run(ctx, sweepInterval)
	}()

	// --- Router -----------------------------------------------------------
	// Middleware is applied in order: RequestID → RealIP → Logger → Recoverer → CORS → body limit.
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewSlogLogger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.NewCORSHandler(cfg.CORSOrigins))
	r.Use(middleware.NewMaxBodySizeHandler(cfg.MaxBodyBytes))

	exports := service.NewExportService(trips, repo.NewStopoverRepo(pool))
	api := handler.NewServer(service.NewTripService(trips), exports, registry, pricer, logger).WithOpenAPI(spec.OpenAPI)
	r.Mount("/", api.Routes())

	// --- HTTP Server ------------------------------------------------------
	// WriteTimeout leaves room for a geocode and a route call in one request.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 2*cfg.LookupTimeout + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
	<-sweeperDone
	slog.Info("server stopped")
}

// migrate brings the schema up to date through goose before serving.
func migrate(ctx context.Context, pool *pgxpool.Pool) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	provider, err := goose.NewProvider(goose.DialectPostgres, db, migrations.FS)
	if err != nil {
		return err
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return err
	}
	for _, res := range results {
		slog.Info("migration applied", "version", res.Source.Version, "duration", res.Duration)
	}
	return nil
}
