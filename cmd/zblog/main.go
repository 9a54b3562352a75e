package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"zblog/internal/api"
	"zblog/internal/config"
	"zblog/internal/content"
	"zblog/internal/ledger/devnet"
	"zblog/internal/orchestrator"
	"zblog/internal/services"
	"zblog/internal/session"
	"zblog/internal/storage"

	"github.com/joho/godotenv"
)

func main() {
	fmt.Println("🌟 Starting zBlog...")

	// 1. Load configuration
	_ = godotenv.Load()
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("❌ Invalid configuration: %v", err)
	}

	// 2. Configure logger
	var logLevel slog.Level
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("Configuration loaded",
		"network", cfg.NetworkPassphrase,
		"content_backend", cfg.ContentBackend,
		"session_backend", cfg.SessionBackend,
		"log_level", cfg.LogLevel,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var healthChecks []api.HealthCheck

	// 3. Content store
	var (
		backend    content.Backend
		activities storage.ActivityStore = storage.NewMemoryActivityLog()
	)
	switch cfg.ContentBackend {
	case config.BackendPostgres:
		repository, err := storage.NewPostgresRepository(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("❌ Failed to connect to database: %v", err)
		}
		defer repository.Close()
		slog.Info("Database connected successfully")

		backend = repository
		activities = repository
		healthChecks = append(healthChecks, api.HealthCheck{Name: "postgres", Ping: repository.Ping})
	case config.BackendS3:
		store, err := storage.NewObjectStore(ctx, storage.ObjectStoreConfig{
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			UseSSL:    cfg.S3UseSSL,
			PathStyle: true,
		})
		if err != nil {
			log.Fatalf("❌ Failed to connect to object store: %v", err)
		}
		slog.Info("Object store connected", "endpoint", cfg.S3Endpoint, "bucket", cfg.S3Bucket)

		backend = store
		healthChecks = append(healthChecks, api.HealthCheck{Name: "s3", Ping: store.Ping})
	default:
		backend = content.NewMemoryBackend()
	}

	// 4. Signature cache
	var sessionStorage session.Storage = session.NewMemoryStorage()
	if cfg.SessionBackend == config.BackendRedis {
		redisStorage, err := session.NewRedisStorage(ctx, session.RedisConfig{
			Addr:     cfg.RedisAddr,
			DB:       cfg.RedisDB,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			log.Fatalf("❌ Failed to connect to redis: %v", err)
		}
		defer redisStorage.Close()

		sessionStorage = redisStorage
		healthChecks = append(healthChecks, api.HealthCheck{Name: "redis", Ping: redisStorage.Ping})
	}

	// 5. Ledger
	chain, err := devnet.New(devnet.WithNetworkPassphrase(cfg.NetworkPassphrase))
	if err != nil {
		log.Fatalf("❌ Failed to start development ledger: %v", err)
	}
	slog.Info("Development ledger ready", "contract", chain.Address())

	// 6. Signing identity
	var signer *session.KeypairSigner
	if cfg.SignerSeed != "" {
		signer, err = session.NewKeypairSigner(cfg.SignerSeed)
	} else {
		signer, err = session.RandomKeypairSigner()
		slog.Warn("SIGNER_SEED not set, using an ephemeral identity")
	}
	if err != nil {
		log.Fatalf("❌ Failed to load signing identity: %v", err)
	}

	// 7. Orchestrator with services
	activityService := services.NewActivityService(activities)
	orch := orchestrator.New(orchestrator.Deps{
		Contract: chain,
		Platform: chain,
		Sessions: session.NewManager(chain, sessionStorage, session.Config{
			NetworkPassphrase: cfg.NetworkPassphrase,
			DurationDays:      cfg.DecryptionDurationDays,
		}),
		Content: content.NewCache(backend),
		Signer:  signer,
		Reads:   cfg.RetryStrategy(),
		Services: []services.Service{
			services.NewEventService(),
			activityService,
		},
	})
	slog.Info("Orchestrator ready",
		"signer", orch.SignerAddress(),
		"services", len(orch.Services()),
	)

	// 8. Start API server
	apiServer := api.NewServer(cfg.APIPort, orch, activityService, api.Options{
		DebugEndpoints: cfg.DebugEndpoints,
		HealthChecks:   healthChecks,
	})
	if err := apiServer.Start(); err != nil {
		log.Fatalf("❌ Failed to start API server: %v", err)
	}

	// 9. Wait for interrupt
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	slog.Warn("Interrupt received, shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("Error stopping API server", "error", err)
	}

	slog.Info("zBlog stopped")
}
