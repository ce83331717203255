package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/flicky/ezpc-api/internal/config"
	"github.com/flicky/ezpc-api/internal/handler"
	"github.com/flicky/ezpc-api/internal/idempotency"
	"github.com/flicky/ezpc-api/internal/metrics"
	"github.com/flicky/ezpc-api/internal/middleware"
	"github.com/flicky/ezpc-api/internal/notify"
	"github.com/flicky/ezpc-api/internal/repository"
	"github.com/flicky/ezpc-api/internal/service"
	"github.com/flicky/ezpc-api/internal/storage"
	"github.com/flicky/ezpc-api/internal/worker"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		log.Error("load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Storage
	repos, closeStorage, err := openStorage(ctx, cfg, log)
	if err != nil {
		log.Error("open storage", "driver", cfg.Storage.Driver, "error", err)
		os.Exit(1)
	}
	defer closeStorage()

	// Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Error("connect to Redis", "error", err)
		os.Exit(1)
	}
	log.Info("connected to Redis")

	// RabbitMQ
	amqpConn, err := amqp.Dial(cfg.RabbitMQ.URL)
	if err != nil {
		log.Error("connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer amqpConn.Close()

	publishCh, err := amqpConn.Channel()
	if err != nil {
		log.Error("open RabbitMQ channel", "error", err)
		os.Exit(1)
	}
	defer publishCh.Close()

	if err := worker.DeclareEventQueues(publishCh); err != nil {
		log.Error("declare event queues", "error", err)
		os.Exit(1)
	}

	consumeCh, err := amqpConn.Channel()
	if err != nil {
		log.Error("open RabbitMQ consumer channel", "error", err)
		os.Exit(1)
	}
	defer consumeCh.Close()
	if err := consumeCh.Qos(1, 0, false); err != nil {
		log.Error("set consumer QoS", "error", err)
		os.Exit(1)
	}
	log.Info("connected to RabbitMQ")

	// Optional integrations
	var notifier worker.Notifier
	if cfg.SMTP.Host != "" {
		notifier = notify.NewMailer(notify.Config{
			Host:      cfg.SMTP.Host,
			Port:      cfg.SMTP.Port,
			Username:  cfg.SMTP.Username,
			Password:  cfg.SMTP.Password,
			From:      cfg.SMTP.From,
			TLSPolicy: cfg.SMTP.TLSPolicy,
		})
	} else {
		log.Warn("SMTP_HOST not set, order e-mails disabled")
	}

	var images service.ImagePresigner
	if cfg.Minio.Endpoint != "" {
		store, err := storage.NewImageStore(storage.Config{
			Endpoint:      cfg.Minio.Endpoint,
			AccessKey:     cfg.Minio.AccessKey,
			SecretKey:     cfg.Minio.SecretKey,
			Bucket:        cfg.Minio.Bucket,
			Region:        cfg.Minio.Region,
			UseSSL:        cfg.Minio.UseSSL,
			PublicBaseURL: cfg.Minio.PublicBaseURL,
			PresignExpiry: cfg.Minio.PresignExpiry,
		})
		if err != nil {
			log.Error("create image store", "error", err)
			os.Exit(1)
		}
		if err := store.EnsureBucket(ctx); err != nil {
			log.Error("ensure image bucket", "bucket", cfg.Minio.Bucket, "error", err)
			os.Exit(1)
		}
		images = store
	} else {
		log.Warn("MINIO_ENDPOINT not set, image uploads disabled")
	}

	// Services
	authSvc := service.NewAuthService(repos.Users, cfg.JWT.Secret, cfg.JWT.Expiration)
	productSvc := service.NewProductService(repos.Products, redisClient, log)
	cartSvc := service.NewCartService(repos.Carts, repos.Products)
	wishlistSvc := service.NewWishlistService(repos.Wishlists, repos.Products)
	addressSvc := service.NewAddressService(repos.Users)
	orderSvc := service.NewOrderService(
		repos.Orders,
		idempotency.NewRedisStore(redisClient, cfg.Order.IdempotencyTTL),
		worker.NewPublisher(publishCh),
		service.CartClearMode(cfg.Order.CartClear),
		log,
	)
	reviewSvc := service.NewReviewService(repos.Reviews, repos.Orders, repos.Products, repos.Users, productSvc, log)
	settingsSvc := service.NewSettingsService(repos.Settings)
	uploadSvc := service.NewUploadService(images)

	// Handlers
	authH := handler.NewAuthHandler(authSvc)
	productH := handler.NewProductHandler(productSvc)
	cartH := handler.NewCartHandler(cartSvc)
	wishlistH := handler.NewWishlistHandler(wishlistSvc)
	addressH := handler.NewAddressHandler(addressSvc)
	orderH := handler.NewOrderHandler(orderSvc)
	reviewH := handler.NewReviewHandler(reviewSvc)
	settingsH := handler.NewSettingsHandler(settingsSvc)
	uploadH := handler.NewUploadHandler(uploadSvc)
	healthH := handler.NewHealthHandler().
		Register(cfg.Storage.Driver, repos.Pinger.Ping).
		Register("redis", func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }).
		Register("rabbitmq", func(context.Context) error {
			if amqpConn.IsClosed() {
				return amqp.ErrClosed
			}
			return nil
		})

	// Worker
	notificationWorker := worker.NewNotificationWorker(consumeCh, repos.Orders, repos.Users, notifier, redisClient, log)

	// Router
	gin.SetMode(cfg.Server.Mode)
	router := gin.New()
	router.Use(gin.Recovery(), middleware.Metrics())
	if cfg.Server.Mode == gin.DebugMode {
		router.Use(gin.Logger())
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Idempotency-Key"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/healthz", healthH.Healthz)
	router.GET("/readyz", healthH.Readyz)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	authMW := middleware.AuthMiddleware(cfg.JWT.Secret)

	v1 := router.Group("/api/v1")
	{
		auth := v1.Group("/auth")
		auth.POST("/register", authH.Register)
		auth.POST("/login", authH.Login)
		auth.GET("/me", authMW, authH.Me)

		v1.GET("/settings", settingsH.Get)

		products := v1.Group("/products")
		products.GET("", productH.List)
		products.GET("/:id", productH.GetByID)
		products.GET("/:id/reviews", reviewH.List)
		products.GET("/:id/reviews/eligibility", authMW, reviewH.Eligibility)
		products.POST("/:id/reviews", authMW, reviewH.Submit)

		cart := v1.Group("/cart", authMW)
		cart.GET("", cartH.GetCart)
		cart.DELETE("", cartH.Clear)
		cart.POST("/items", cartH.AddItem)
		cart.PUT("/items/:productId", cartH.UpdateItem)
		cart.DELETE("/items/:productId", cartH.DeleteItem)

		wishlist := v1.Group("/wishlist", authMW)
		wishlist.GET("", wishlistH.List)
		wishlist.POST("/:productId/toggle", wishlistH.Toggle)

		addresses := v1.Group("/addresses", authMW)
		addresses.GET("", addressH.List)
		addresses.POST("", addressH.Add)
		addresses.PUT("/:id", addressH.Update)
		addresses.DELETE("/:id", addressH.Delete)
		addresses.POST("/:id/default", addressH.SetDefault)

		orders := v1.Group("/orders", authMW)
		orders.POST("", orderH.CreateOrder)
		orders.GET("", orderH.ListOrders)
		orders.GET("/:id", orderH.GetOrder)
		orders.POST("/:id/cancel", orderH.CancelOrder)

		admin := v1.Group("/admin", authMW, middleware.AdminOnly())
		admin.GET("/products", productH.AdminList)
		admin.GET("/products/:id", productH.AdminGet)
		admin.POST("/products", productH.Create)
		admin.PUT("/products/:id", productH.Update)
		admin.DELETE("/products/:id", productH.Delete)
		admin.POST("/products/:id/restore", productH.Restore)
		admin.GET("/orders", orderH.AdminListOrders)
		admin.PATCH("/orders/:id/status", orderH.UpdateStatus)
		admin.PUT("/settings", settingsH.Put)
		admin.POST("/uploads/images", uploadH.PresignImage)
	}

	if err := notificationWorker.Start(ctx); err != nil {
		log.Error("start notification worker", "error", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info("starting HTTP server", "port", cfg.Server.Port, "storage", cfg.Storage.Driver)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", "error", err)
	}

	notificationWorker.Stop()
	time.Sleep(500 * time.Millisecond)
	cancel()
	log.Info("server stopped")
}

// openStorage connects the configured backend, prepares its schema and
// returns the repositories built on it.
func openStorage(ctx context.Context, cfg *config.Config, log *slog.Logger) (repository.Set, func(), error) {
	switch cfg.Storage.Driver {
	case "mongo":
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Mongo.URI))
		if err != nil {
			return repository.Set{}, nil, fmt.Errorf("connect to MongoDB: %w", err)
		}
		closeFn := func() { _ = client.Disconnect(context.Background()) }
		if err := client.Ping(ctx, nil); err != nil {
			closeFn()
			return repository.Set{}, nil, fmt.Errorf("ping MongoDB: %w", err)
		}
		db := client.Database(cfg.Mongo.Database)
		if err := repository.EnsureIndexes(ctx, db); err != nil {
			closeFn()
			return repository.Set{}, nil, err
		}
		log.Info("connected to MongoDB", "database", cfg.Mongo.Database)
		return repository.NewMongoSet(db), closeFn, nil

	default:
		poolCfg, err := pgxpool.ParseConfig(cfg.DB.DSN())
		if err != nil {
			return repository.Set{}, nil, fmt.Errorf("parse db config: %w", err)
		}
		poolCfg.MaxConns = cfg.DB.MaxConns

		dbPool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return repository.Set{}, nil, fmt.Errorf("connect to database: %w", err)
		}
		if err := dbPool.Ping(ctx); err != nil {
			dbPool.Close()
			return repository.Set{}, nil, fmt.Errorf("ping database: %w", err)
		}
		if err := repository.Migrate(ctx, dbPool); err != nil {
			dbPool.Close()
			return repository.Set{}, nil, err
		}
		log.Info("connected to PostgreSQL")
		return repository.NewPostgresSet(dbPool), dbPool.Close, nil
	}
}
