// Command server runs the tuition query tracker HTTP API.
//
//	@title						Quetras Tuition Query Tracker API
//	@version					1.0
//	@description				Students submit tuition queries (one per day); cashiers track, annotate and resolve them.
//	@BasePath					/api/v1
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Type "Bearer" followed by a space and the token from /auth/login.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-quetras-backend/internal/auth"
	"github.com/tbourn/go-quetras-backend/internal/config"
	"github.com/tbourn/go-quetras-backend/internal/events"
	httpapi "github.com/tbourn/go-quetras-backend/internal/http"
	"github.com/tbourn/go-quetras-backend/internal/notify"
	"github.com/tbourn/go-quetras-backend/internal/observability"
	"github.com/tbourn/go-quetras-backend/internal/repo"
	"github.com/tbourn/go-quetras-backend/internal/services"
	"github.com/tbourn/go-quetras-backend/internal/storage"
	"github.com/tbourn/go-quetras-backend/internal/sysutil"
)

var version = "dev"

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	sysutil.SetLogLevel(cfg.LogLevel)
	log.Logger = sysutil.NewLogger(os.Stderr, cfg.LogPretty, cfg.OTEL.ServiceName, version)
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup")
	}

	db, err := repo.Open(cfg.DB.Driver, sysutil.FirstNonEmpty(cfg.DB.DSN, cfg.DB.Path))
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DB.Driver).Msg("open database")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate")
	}

	var rdb *redis.Client
	if cfg.KVBackend == "redis" || cfg.Events.RedisEnabled {
		rdb, err = storage.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Fatal().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis")
		}
		defer rdb.Close()
	}
	kv := openKV(cfg.KVBackend, db, rdb)
	log.Info().Str("kv", cfg.KVBackend).Str("db", cfg.DB.Driver).Msg("storage ready")

	hub := events.NewHub()
	if cfg.Events.RedisEnabled {
		bridge := events.NewRedisBridge(rdb, hub, cfg.Events.Channel, log.Logger)
		go func() {
			if err := bridge.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("change relay stopped")
			}
		}()
	}

	loc, _ := cfg.Location() // validated by Load
	store := services.NewQueryStore(kv, hub, log.Logger)
	guard := services.NewSubmissionGuard(store, loc)

	inbox := notify.NewInbox(kv, log.Logger)
	senders := notify.Fanout{inbox}
	if cfg.AMQP.URL != "" {
		senders = append(senders, notify.NewAMQPPublisher(cfg.AMQP.URL, cfg.AMQP.Queue, log.Logger))
	}

	cache := services.NewViewCache(cfg.ViewCacheSize, cfg.ViewCacheTTL) // nil when size is 0
	querySvc := services.NewQueryService(store, guard, senders, cache, log.Logger)

	issuer := auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.JWTTTL)
	authSvc := services.NewAuthService(kv, issuer, log.Logger)
	created, err := authSvc.EnsureAdmin(ctx, services.RegisterInput{
		Name:     cfg.Auth.AdminName,
		Email:    cfg.Auth.AdminEmail,
		Password: cfg.Auth.AdminPassword,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("seed admin")
	}
	if created {
		log.Info().Str("email", cfg.Auth.AdminEmail).Msg("admin account created")
	}

	go purgeIdempotency(ctx, db, time.Hour)

	r := gin.New()
	httpapi.RegisterRoutes(r, cfg, httpapi.Deps{
		Queries: querySvc,
		Auth:    authSvc,
		Inbox:   inbox,
		Tokens:  issuer,
		Statter: statter(kv),
		DB:      db,
		Ping:    pinger(db, rdb),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("base_path", cfg.APIBasePath).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	if err := shutdownOTel(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("otel shutdown")
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func openKV(backend string, db *gorm.DB, rdb *redis.Client) storage.KV {
	switch backend {
	case "redis":
		return &storage.RedisKV{Client: rdb, Prefix: "quetras:"}
	case "memory":
		return storage.NewMemoryKV()
	default:
		return storage.NewSQLKV(db)
	}
}

func statter(kv storage.KV) storage.Statter {
	if s, ok := kv.(storage.Statter); ok {
		return s
	}
	return nil
}

// pinger checks the SQL database and, when configured, Redis.
func pinger(db *gorm.DB, rdb *redis.Client) func(context.Context) error {
	return func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			return err
		}
		if rdb != nil {
			return rdb.Ping(ctx).Err()
		}
		return nil
	}
}

func purgeIdempotency(ctx context.Context, db *gorm.DB, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			n, err := repo.PurgeExpiredIdempotency(ctx, db, now.UTC())
			if err != nil {
				log.Warn().Err(err).Msg("purge idempotency")
				continue
			}
			if n > 0 {
				log.Debug().Int64("removed", n).Msg("purged idempotency keys")
			}
		}
	}
}
