package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/helphive/backend/internal/config"
	"github.com/helphive/backend/internal/handlers"
	"github.com/helphive/backend/internal/lock"
	"github.com/helphive/backend/internal/metrics"
	"github.com/helphive/backend/internal/services"
	"github.com/helphive/backend/internal/storage"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	store, err := openStore(ctx, cfg)
	cancel()
	if err != nil {
		log.Fatalf("Failed to open %s store: %v", cfg.StoreBackend, err)
	}

	locker, closeLocker := openLocker(cfg)

	recorder := metrics.New()
	opts := services.Options{
		StoreTimeout: cfg.StoreTimeout,
		LockTimeout:  cfg.StoreTimeout,
		Metrics:      recorder,
		Locker:       locker,
	}

	// Initialize services
	userService := services.NewUserService(store, opts)
	requestStore := services.NewRequestStore(store, opts)
	lifecycle := services.NewLifecycleService(requestStore, userService, store, locker, opts)

	if cfg.BootstrapAdminContact != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		admin, created, err := userService.EnsureAdmin(ctx, cfg.BootstrapAdminName, cfg.BootstrapAdminContact, cfg.BootstrapAdminPassword)
		cancel()
		if err != nil {
			log.Fatalf("Failed to bootstrap admin: %v", err)
		}
		if created {
			log.Printf("Bootstrap admin %s created", admin.ContactInfo)
		}
	}

	router := handlers.NewRouter(handlers.RouterConfig{
		Users:         userService,
		Lifecycle:     lifecycle,
		JWTSecret:     cfg.JWTSecret,
		JWTExpiration: cfg.JWTExpiration,
		CORSOrigins:   cfg.CORSOrigins,
		Metrics:       recorder.Handler(),
		Health:        store.Ping,
	})

	srv := &http.Server{
		Addr:              cfg.ServerAddress,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("Help Hive API server starting on %s (store=%s)", cfg.ServerAddress, cfg.StoreBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Println("Shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown: %v", err)
	}
	closeLocker()
	if err := store.Close(shutdownCtx); err != nil {
		log.Printf("Store close: %v", err)
	}
}

func openStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	switch cfg.StoreBackend {
	case config.BackendMongo:
		return storage.NewMongoStore(ctx, cfg.MongoURI, cfg.MongoDB)
	case config.BackendPostgres:
		return storage.OpenPostgres(ctx, cfg.DatabaseURL)
	default:
		if cfg.DataDir != "" {
			return storage.NewPersistentMemoryStore(cfg.DataDir)
		}
		log.Println("Warning: DATA_DIR is unset, data will not survive a restart")
		return storage.NewMemoryStore(), nil
	}
}

// openLocker uses Redis when configured so replicas serialise on the same
// keys. Without Redis the lock is process-local.
func openLocker(cfg *config.Config) (services.Locker, func()) {
	if cfg.RedisURL == "" {
		return lock.NewKeyedMutex(), func() {}
	}

	locker, err := lock.NewRedisLocker(cfg.RedisURL, cfg.LockTTL)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	log.Printf("Using Redis request locks (ttl=%s)", cfg.LockTTL)
	return locker, func() {
		if err := locker.Close(); err != nil {
			log.Printf("Redis close: %v", err)
		}
	}
}
