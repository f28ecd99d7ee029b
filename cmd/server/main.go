package main // Entry point package

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/guesthairspa/salon/internal/auth"
	"github.com/guesthairspa/salon/internal/config"
	"github.com/guesthairspa/salon/internal/database"
	"github.com/guesthairspa/salon/internal/handler"
	"github.com/guesthairspa/salon/internal/logging"
	"github.com/guesthairspa/salon/internal/middleware"
	"github.com/guesthairspa/salon/internal/notify"
	"github.com/guesthairspa/salon/internal/queue"
	"github.com/guesthairspa/salon/internal/repository"
	"github.com/guesthairspa/salon/internal/router"
	"github.com/guesthairspa/salon/internal/scheduler"
	"github.com/guesthairspa/salon/internal/service"
	"github.com/guesthairspa/salon/internal/storage"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// A missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.Env)
	slog.SetDefault(logger)

	db, err := database.Open(database.Options{
		Driver: cfg.DBDriver,
		User:   cfg.DBUser,
		Pass:   cfg.DBPass,
		Host:   cfg.DBHost,
		Port:   cfg.DBPort,
		Name:   cfg.DBName,
		Path:   cfg.DBPath,
	})
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() { _ = db.Close() }()

	if err := database.Migrate(db, cfg.DBDriver); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	promotionRepo := repository.NewPromotionRepo(db)
	contactRepo := repository.NewContactRepo(db)
	sessionRepo := repository.NewSessionRepo(db)

	if cfg.SeedDefaults {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		n, err := repository.SeedDefaultPromotions(ctx, promotionRepo)
		cancel()
		if err != nil {
			return fmt.Errorf("seed promotions: %w", err)
		}
		if n > 0 {
			slog.Info("seeded default promotions", "count", n)
		}
	}

	cacheCfg, err := config.LoadCacheConfig()
	if err != nil {
		return err
	}
	rlCfg, err := config.LoadRateLimitConfig()
	if err != nil {
		return err
	}
	redisCfg, err := config.LoadRedisConfig()
	if err != nil {
		return err
	}
	rdb := config.NewRedisClient(redisCfg)
	if rdb == nil {
		slog.Info("redis unavailable, response cache off and rate limits in memory")
	} else {
		defer func() { _ = rdb.Close() }()
	}

	trusted, err := cfg.TrustedProxyNets()
	if err != nil {
		return err
	}

	bucket, err := storage.NewLocalBucket(cfg.UploadsDir, storage.PromotionsBucket, cfg.PublicBaseURL)
	if err != nil {
		return err
	}

	gate, err := auth.NewGate(auth.Options{
		PasswordHash: cfg.AdminPasswordHash,
		Password:     cfg.AdminPassword,
		BcryptCost:   cfg.BcryptCost,
		JWTSecret:    cfg.JWTSecret,
		SessionTTL:   cfg.SessionTTL,
	}, sessionRepo)
	if err != nil {
		return fmt.Errorf("auth gate: %w", err)
	}

	var sender notify.Sender = notify.NewNoopSender()
	if cfg.ResendAPIKey != "" {
		sender = notify.NewResendSender(cfg.ResendAPIKey, cfg.NotifyEmailFrom)
	}
	notifier := notify.NewContactNotifier(sender, cfg.NotifyEmailTo)

	bg, stopBG := context.WithCancel(context.Background())
	defer stopBG()

	var publisher service.Publisher
	if cfg.RabbitMQURL != "" {
		publisher = queue.NewAMQPPublisher(cfg.RabbitMQURL)
		go func() {
			if err := queue.StartContactConsumer(bg, cfg.RabbitMQURL, notifier); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("contact consumer stopped", "error", err)
			}
		}()
	} else {
		publisher = queue.NewInlinePublisher(notifier)
	}

	promotionSvc := service.NewPromotionService(promotionRepo, bucket, cfg.MaxImageBytes, middleware.NewCachePurger(cacheCfg, rdb))
	contactSvc := service.NewContactService(contactRepo, publisher)
	dashboardSvc := service.NewDashboardService(promotionRepo, contactRepo)

	sched := scheduler.New(logger)
	if err := sched.AddSessionPurge(cfg.SessionPurgeSchedule, gate); err != nil {
		return fmt.Errorf("session purge schedule %q: %w", cfg.SessionPurgeSchedule, err)
	}
	sched.Start()
	defer sched.Stop()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(logging.RequestLogger(logger))
	// multipart overhead on top of the largest accepted picture
	e.Use(echomw.BodyLimit(fmt.Sprintf("%dK", cfg.MaxImageBytes/1024+1024)))

	router.Register(e, router.Deps{
		DB:         db,
		Redis:      rdb,
		Cache:      cacheCfg,
		RateLimit:  rlCfg,
		Gate:       gate,
		Promotions: handler.NewPromotionHandler(promotionSvc),
		Contacts:   handler.NewContactHandler(contactSvc),
		Dashboard:  handler.NewDashboardHandler(dashboardSvc),
		Auth:       handler.NewAuthHandler(gate),
		Bucket:     bucket,

		TrustedProxies: trusted,
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           e,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("listening", "addr", cfg.Addr(), "env", cfg.Env, "db", cfg.DBDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			stopBG()
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-bg.Done():
	}

	slog.Info("shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	slog.Info("server stopped")
	return nil
}
