package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"account-service/internal/auth"
	"account-service/internal/config"
	"account-service/internal/feed"
	"account-service/internal/users"
	"account-service/migrations"
	"account-service/pkg/db"
	"account-service/pkg/jwt"
	"account-service/pkg/kafka"
	rredis "account-service/pkg/redis"
	"account-service/pkg/storage"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── 1. Configuration ──
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("could not read .env: %v", err)
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	// ── 2. JWT ──
	tokens, err := jwt.NewManager(cfg.JWTSecret, cfg.JWTTTL)
	if err != nil {
		log.Fatal(err)
	}

	// ── 3. User store ──
	var store users.Store
	switch cfg.StoreDriver {
	case config.StoreMemory:
		log.Println("using in-memory user store")
		store = users.NewMemoryStore()
	default:
		database, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal(err)
		}
		defer database.Close()

		if err := database.RunMigrations(ctx, migrations.FS); err != nil {
			log.Fatal("migrations failed:", err)
		}
		store = users.NewPostgresStore(database.Pool)
	}

	// ── 4. Picture storage ──
	var backend storage.Backend
	var uploadDir string
	switch cfg.StorageDriver {
	case config.StorageS3:
		s3Backend, err := storage.NewS3Backend(ctx, cfg.S3)
		if err != nil {
			log.Fatal(err)
		}
		backend = s3Backend
	default:
		disk, err := storage.NewDiskBackend(cfg.UploadDir)
		if err != nil {
			log.Fatal(err)
		}
		backend = disk
		uploadDir = disk.Dir()
	}

	deps := users.Deps{
		Store:    store,
		Hasher:   users.BcryptHasher{Cost: cfg.BcryptCost},
		Tokens:   tokens,
		Pictures: storage.NewIntake(backend),
	}

	// ── 5. Redis (optional) ──
	if cfg.RedisAddr != "" {
		redisClient, err := rredis.NewClient(cfg.RedisAddr, cfg.ProfileCacheTTL)
		if err != nil {
			log.Fatal(err)
		}
		defer redisClient.Close()
		deps.Cache = redisClient
	}

	// ── 6. Kafka (optional) ──
	var kafkaClient *kafka.Client
	if len(cfg.KafkaBrokers) > 0 {
		kafkaClient = kafka.NewClient(cfg.KafkaBrokers)
		defer kafkaClient.Close()

		if err := kafkaClient.EnsureTopics(ctx,
			kafka.TopicUserRegistered,
			kafka.TopicUserUpdated,
			kafka.TopicUserPasswordChanged,
		); err != nil {
			log.Fatal(err)
		}
		deps.Events = kafkaClient
	}

	// ── 7. Services ──
	userSvc := users.NewService(deps)

	// ── 8. Profile feed ──
	feedHub := feed.NewHub(tokens)
	if kafkaClient != nil {
		host, _ := os.Hostname()
		feed.NewConsumer(kafkaClient, feedHub, "profile-feed-"+host).Start(ctx)
	}

	// ── 9. HTTP router ──
	r := chi.NewRouter()
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"account-service"}`))
	})

	r.Mount("/auth", auth.NewHandler(userSvc, tokens).Routes())
	r.Mount("/user", users.NewHandler(userSvc, tokens).Routes())
	r.Mount("/ws", feedHub.Routes())
	if uploadDir != "" {
		r.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(uploadDir))))
	}

	// ── 10. Start server ──
	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}

	go func() {
		log.Printf("account-service listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err)
		}
	}()

	// ── 11. Graceful shutdown ──
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutCancel()
	srv.Shutdown(shutCtx)
	cancel() // stop consumers
}
