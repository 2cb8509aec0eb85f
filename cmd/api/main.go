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
	"golang.org/x/time/rate"

	"storefront/internal/config"
	"storefront/internal/consumer"
	"storefront/internal/database"
	"storefront/internal/handler"
	"storefront/internal/monitor"
	appredis "storefront/internal/redis"
	"storefront/internal/repository"
	"storefront/internal/service/auth"
	"storefront/internal/service/catalog"
	"storefront/internal/service/favorite"
	"storefront/internal/service/notification"
	"storefront/internal/service/order"
	"storefront/internal/service/pricedrop"
	"storefront/internal/utils"
	"storefront/pkg/breaker"
	"storefront/pkg/limiter"
	"storefront/pkg/log"
	"storefront/pkg/queue"
	"storefront/pkg/snowflake"
	pkgutils "storefront/pkg/utils"
)

// set with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	loader := config.NewLoader("")
	cfg, err := loader.Load()
	if err != nil {
		log.WithField("error", err.Error()).Fatal("Failed to load config")
	}

	if err := log.Init(log.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		Filename:   cfg.Log.Filename,
		MaxSize:    cfg.Log.MaxSize,
		MaxAge:     cfg.Log.MaxAge,
		MaxBackups: cfg.Log.MaxBackups,
		Compress:   cfg.Log.Compress,
	}); err != nil {
		log.WithField("error", err.Error()).Fatal("Failed to initialize logger")
	}

	// only the log level is applied live; everything else needs a restart
	loader.Watch(func(next *config.Config) {
		if err := log.SetLevel(next.Log.Level); err != nil {
			log.WithField("error", err.Error()).Warn("Ignoring invalid log level")
			return
		}
		log.WithField("level", next.Log.Level).Info("Config reloaded")
	}, func(err error) {
		log.WithField("error", err.Error()).Warn("Config reload rejected")
	})

	switch cfg.Server.Mode {
	case gin.ReleaseMode, gin.TestMode:
		gin.SetMode(cfg.Server.Mode)
	default:
		gin.SetMode(gin.DebugMode)
	}
	pkgutils.RegisterCustomValidators()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		log.WithField("error", err.Error()).Fatal("Failed to initialize database")
	}
	if cfg.Database.AutoMigrate {
		if err := database.AutoMigrate(db); err != nil {
			log.WithField("error", err.Error()).Fatal("Failed to migrate schema")
		}
	} else if missing, err := database.MissingTables(db); err != nil {
		log.WithField("error", err.Error()).Warn("Failed to inspect schema")
	} else if len(missing) > 0 {
		log.WithField("tables", missing).Warn("Schema is missing tables; run with database.auto_migrate enabled")
	}

	rdb, err := appredis.New(ctx, cfg.Redis)
	if err != nil {
		log.WithField("error", err.Error()).Fatal("Failed to initialize redis")
	}

	var (
		metrics       *monitor.MetricsCollector
		authRecorder  auth.Recorder
		orderRecorder order.Recorder
		checkRecorder pricedrop.Recorder
	)
	if cfg.Metrics.Enabled {
		metrics = monitor.NewMetricsCollector(cfg.Metrics.Namespace)
		authRecorder, orderRecorder, checkRecorder = metrics, metrics, metrics
	}

	tracer, err := monitor.NewTracer(monitor.NewTracerConfig(cfg.Tracing, version, config.Env()))
	if err != nil {
		log.WithField("error", err.Error()).Fatal("Failed to initialize tracer")
	}

	userRepo := repository.NewUserRepository(db)
	productRepo := repository.NewProductRepository(db)
	favoriteRepo := repository.NewFavoriteRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	orderRepo := repository.NewOrderRepository(db)

	ids, err := snowflake.NewGenerator(cfg.Order.NodeID)
	if err != nil {
		log.WithField("error", err.Error()).Fatal("Failed to create order number generator")
	}

	jwtManager := utils.NewJWTManager(
		cfg.Security.JWT.Secret,
		cfg.Security.JWT.Issuer,
		cfg.Security.JWT.Expire,
		cfg.Security.JWT.RefreshTTL,
	)

	authService := auth.NewAuthService(userRepo, jwtManager, rdb, auth.Options{
		MaxLoginAttempts: cfg.Security.MaxLoginAttempts,
		LoginLockout:     cfg.Security.LoginLockout,
		AdminEmails:      cfg.Security.AdminEmails,
		Recorder:         authRecorder,
	})

	detector := pricedrop.NewDetector(favoriteRepo, productRepo, notificationRepo, pricedrop.Options{
		MaxFavoritesPerCheck: cfg.Notification.MaxFavoritesPerCheck,
		Formatter:            pkgutils.NewCurrencyFormatter(cfg.Notification.Locale, cfg.Notification.CurrencySymbol),
		Redis:                rdb,
		LockTTL:              cfg.Notification.CheckLockTTL,
		Recorder:             checkRecorder,
	})

	messageQueue, err := queue.NewMemoryQueue(queue.MemoryQueueConfig{
		BufferSize: cfg.Queue.BufferSize,
		Timeout:    cfg.Queue.PublishTimeout,
	}, func(topic string, _ []byte, err error) {
		log.WithFields(map[string]interface{}{
			"topic": topic,
			"error": err.Error(),
		}).Error("Queue handler failed")
	})
	if err != nil {
		log.WithField("error", err.Error()).Fatal("Failed to create message queue")
	}

	var (
		publisher catalog.Publisher
		breakers  []*breaker.CircuitBreaker
	)
	if cfg.Notification.AsyncPriceDrop {
		publishBreaker := catalog.NewPublishBreaker(breaker.Config{Timeout: 30 * time.Second})
		breakers = append(breakers, publishBreaker)
		publisher = catalog.GuardPublisher(messageQueue, publishBreaker)
		if err := consumer.NewPriceDropConsumer(detector, messageQueue, cfg.Notification.CheckLockTTL).Start(ctx); err != nil {
			log.WithField("error", err.Error()).Fatal("Failed to start price-drop consumer")
		}
	}

	favoriteService := favorite.NewFavoriteService(favoriteRepo, productRepo)
	notificationService := notification.NewNotificationService(notificationRepo, productRepo)
	orderService := order.NewOrderService(orderRepo, ids, orderRecorder)
	catalogService := catalog.NewCatalogService(productRepo, detector, publisher)

	if metrics != nil {
		sqlDB, err := db.DB()
		if err != nil {
			log.WithField("error", err.Error()).Fatal("Failed to access connection pool")
		}
		go metrics.StartCollection(ctx, 15*time.Second, monitor.Sources{
			DB:       sqlDB.Stats,
			Queue:    messageQueue.Stats,
			Breakers: breakers,
		})
	}

	routes := handler.Router{
		Auth:         handler.NewAuthHandler(authService),
		Favorite:     handler.NewFavoriteHandler(favoriteService),
		Notification: handler.NewNotificationHandler(notificationService, detector),
		Order:        handler.NewOrderHandler(orderService),
		Product:      handler.NewProductHandler(catalogService),
		Health: handler.NewHealthHandler(version, map[string]handler.HealthCheck{
			"database": func(ctx context.Context) error { return database.Health(ctx, db) },
			"redis":    func(ctx context.Context) error { return appredis.Health(ctx, rdb) },
			"queue":    func(context.Context) error { return messageQueue.Health() },
		}),
		Validator:      authService,
		CORS:           cfg.Security.CORS,
		RequestTimeout: cfg.Server.RequestTimeout,
		Metrics:        metrics,
		MetricsPath:    cfg.Metrics.Path,
		Tracer:         tracer,
	}
	if cfg.RateLimit.Enabled {
		rl := cfg.RateLimit
		routes.GlobalLimiter = limiter.NewTokenBucketLimiter(rate.Limit(rl.Global.RPS), rl.Global.Burst)

		perIP := limiter.NewKeyedLimiter(rate.Limit(rl.PerIP.RPS), rl.PerIP.Burst, rl.PerIP.TTL)
		go perIP.StartCleanup(ctx, rl.PerIP.TTL)
		routes.IPLimiter = perIP

		// Redis-backed so the bound holds across replicas
		window := time.Duration(float64(rl.PriceCheck.Burst) / rl.PriceCheck.RPS * float64(time.Second))
		routes.PriceCheckLimiter = limiter.NewSlidingWindowLimiter(rdb, "price_check", rl.PriceCheck.Burst, window)
	}

	server := &http.Server{
		Addr:           cfg.Server.GetAddr(),
		Handler:        handler.NewRouter(routes),
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderMB << 20,
	}

	go func() {
		log.WithFields(map[string]interface{}{
			"addr":    server.Addr,
			"mode":    cfg.Server.Mode,
			"version": version,
			"config":  loader.ConfigFileUsed(),
		}).Info("Starting HTTP server")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithField("error", err.Error()).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithField("error", err.Error()).Error("Server forced to shutdown")
	}

	// stop background loops before their dependencies go away
	stop()
	if err := messageQueue.Close(); err != nil {
		log.WithField("error", err.Error()).Warn("Failed to close message queue")
	}
	if err := tracer.Shutdown(shutdownCtx); err != nil {
		log.WithField("error", err.Error()).Warn("Failed to flush traces")
	}
	if err := database.Close(db); err != nil {
		log.WithField("error", err.Error()).Warn("Failed to close database")
	}
	if err := rdb.Close(); err != nil {
		log.WithField("error", err.Error()).Warn("Failed to close redis")
	}

	log.Info("Server exited")
}
