package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"

	"spcs.org/internal/auth"
	"spcs.org/internal/complaint"
	"spcs.org/internal/config"
	"spcs.org/internal/geo"
	"spcs.org/internal/httpapi"
	"spcs.org/internal/notify"
	"spcs.org/internal/obs"
	"spcs.org/internal/otp"
	"spcs.org/internal/store/pg"
	"spcs.org/internal/stream"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	obs.Init()
	obs.InitBuildInfo(version, commit)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := pg.Open(ctx, cfg.PGDSN)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer store.Close()

	applied, err := store.Migrate(ctx)
	if err != nil {
		log.Fatalf("migrate: %v", err)
	}
	if len(applied) > 0 {
		obs.Info("migrations_applied", map[string]any{"names": applied})
	}

	stations := store.Stations()
	if err := seedStations(ctx, stations, cfg.StationsSeed); err != nil {
		log.Fatalf("seed stations: %v", err)
	}

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis url: %v", err)
		}
		rdb = redis.NewClient(opts)
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatalf("redis ping: %v", err)
		}
	}

	accounts := store.Accounts()
	sessions, err := auth.NewSessions(accounts, auth.WithSecret(cfg.JWTSecret))
	if err != nil {
		log.Fatalf("sessions: %v", err)
	}
	authSvc, err := auth.NewService(accounts, sessions)
	if err != nil {
		log.Fatalf("auth: %v", err)
	}

	otpOpts := []otp.Option{
		otp.WithDevelopment(!cfg.Production()),
		otp.WithSweepInterval(cfg.SweepInterval),
	}
	if rdb != nil {
		otpOpts = append(otpOpts, otp.WithStore(otp.NewRedisStore(rdb)))
	}
	if cfg.Twilio.Configured() {
		otpOpts = append(otpOpts, otp.WithSender(otp.NewTwilioSender(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.From)))
	}
	otpSvc, err := otp.NewService(otpOpts...)
	if err != nil {
		log.Fatalf("otp: %v", err)
	}

	var wg sync.WaitGroup
	registry := stream.NewRegistry()
	var publisher stream.Publisher = registry
	if rdb != nil {
		backplane := stream.NewRedisBackplane(rdb, registry)
		publisher = backplane
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := backplane.Run(ctx, nil); err != nil {
				obs.Error("realtime_backplane_stopped", map[string]any{"error": err})
			}
		}()
	}

	dispatcher := notify.NewDispatcher(store.Notifications(), publisher)
	resolver := geo.NewResolver(stations)
	complaints := complaint.NewService(store.Complaints(), resolver, dispatcher)

	readiness := httpapi.ReadyCheck{DB: store.DB(), Redis: rdb}
	api := httpapi.New(httpapi.Deps{
		Auth:          authSvc,
		OTP:           otpSvc,
		Complaints:    complaints,
		Notifications: dispatcher,
		Stations:      resolver,
		Realtime:      registry,
		Ready:         readiness,
		Version:       version,
	},
		httpapi.WithRateLimit(cfg.RateBurst, cfg.RatePerSec),
		httpapi.WithAllowedOrigins(cfg.AllowedOrigins()...),
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		otpSvc.Run(ctx)
	}()

	health := httpapi.NewHealthServer(readiness)
	if err := health.Refresh(ctx); err != nil {
		obs.Warn("readiness_failed", map[string]any{"error": err})
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		health.Run(ctx, cfg.HealthInterval)
	}()

	var grpcSrv *grpc.Server
	if cfg.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			log.Fatalf("grpc listen: %v", err)
		}
		grpcSrv = grpc.NewServer()
		health.Register(grpcSrv)
		go func() {
			obs.Info("grpc_listening", map[string]any{"addr": cfg.GRPCAddr})
			if err := grpcSrv.Serve(lis); err != nil {
				obs.Error("grpc_serve_failed", map[string]any{"error": err})
			}
		}()
	}

	// WriteTimeout stays zero: realtime streams are long-lived responses and
	// end when the base context is cancelled.
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		BaseContext:       func(net.Listener) context.Context { return ctx },
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		obs.Info("http_listening", map[string]any{"addr": srv.Addr, "version": version, "env": cfg.Env})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	obs.Info("shutting_down", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		obs.Warn("http_shutdown", map[string]any{"error": err})
	}
	if grpcSrv != nil {
		grpcSrv.GracefulStop()
	}
	wg.Wait()
	obs.Info("stopped", nil)
}

func seedStations(ctx context.Context, stations geo.StationStore, file string) error {
	seed := geo.DefaultStations()
	if file != "" {
		loaded, err := geo.LoadSeedFile(file)
		if err != nil {
			return err
		}
		seed = loaded
	}
	seeded, err := geo.SeedIfEmpty(ctx, stations, seed)
	if err != nil {
		return err
	}
	if seeded {
		obs.Info("stations_seeded", map[string]any{"count": len(seed)})
	}
	return nil
}
