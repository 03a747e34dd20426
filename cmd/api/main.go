package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/GTDGit/fabric_api/internal/cache"
	"github.com/GTDGit/fabric_api/internal/config"
	"github.com/GTDGit/fabric_api/internal/database"
	"github.com/GTDGit/fabric_api/internal/handler"
	"github.com/GTDGit/fabric_api/internal/middleware"
	"github.com/GTDGit/fabric_api/internal/repository"
	"github.com/GTDGit/fabric_api/internal/service"
	"github.com/GTDGit/fabric_api/internal/sse"
	"github.com/GTDGit/fabric_api/internal/utils"
	"github.com/GTDGit/fabric_api/internal/worker"
	"github.com/GTDGit/fabric_api/pkg/paystack"
)

// main is the application entrypoint for the fabric store API.
func main() {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// 2. Setup logger
	setupLogger(cfg.Env)
	utils.SetJWTSecret(cfg.JWT.Secret)
	utils.SetExposeErrorDetail(!cfg.IsProduction())
	log.Info().Str("env", cfg.Env).Msg("starting fabric api")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Connect database
	db, err := database.Connect(ctx, &cfg.DB)
	if err != nil {
		log.Error().Err(err).Msg("database connection failed")
		fmt.Fprintf(os.Stderr, "database connection failed: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	// 3a. Run migrations
	if err := runMigrations(db.DB); err != nil {
		log.Error().Err(err).Msg("migration failed")
		fmt.Fprintf(os.Stderr, "migration failed: %v\n", err)
		os.Exit(1)
	}
	log.Info().Msg("migrations completed successfully")

	// 3b. Connect to Redis
	redisClient, err := cache.NewRedisClient(&cfg.Redis)
	if err != nil {
		log.Error().Err(err).Msg("redis connection failed")
		fmt.Fprintf(os.Stderr, "redis connection failed: %v\n", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected successfully")

	productCache := cache.NewProductCache(redisClient, cfg.Redis.ProductCacheTTL)
	authLimiter := cache.NewRateLimiter(redisClient, "auth", cfg.Redis.AuthRateLimit, cfg.Redis.AuthRateWindow)

	// 4. Initialize external clients
	gateway := paystack.NewClient(paystack.Config{
		SecretKey: cfg.Paystack.SecretKey,
		BaseURL:   cfg.Paystack.BaseURL,
		Timeout:   cfg.Paystack.Timeout,
		Debug:     !cfg.IsProduction(),
	})

	var storage *service.S3Storage
	if cfg.S3.Bucket != "" {
		storage, err = service.NewS3Storage(ctx, &cfg.S3)
		if err != nil {
			log.Error().Err(err).Msg("object storage init failed")
			fmt.Fprintf(os.Stderr, "object storage init failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		log.Warn().Msg("S3_BUCKET not set, image upload disabled")
	}

	pool, err := service.NewNotifyPool(cfg.Worker.NotifyPoolSize)
	if err != nil {
		log.Error().Err(err).Msg("worker pool init failed")
		os.Exit(1)
	}
	defer pool.Release()

	hub := sse.NewHub()

	// 5. Initialize repositories
	counterRepo := repository.NewCounterRepository(db)
	userRepo := repository.NewUserRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	productRepo := repository.NewProductRepository(db)
	orderRepo := repository.NewOrderRepository(db, counterRepo)
	reviewRepo := repository.NewReviewRepository(db)
	wishlistRepo := repository.NewWishlistRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)

	// 6. Initialize services
	notificationSvc := service.NewNotificationService(notificationRepo, userRepo, sse.NewHubNotifier(hub), service.NewMailer(&cfg.SMTP), pool)
	settingsSvc := service.NewSettingsService(settingsRepo)
	if err := settingsSvc.Bootstrap(ctx); err != nil {
		log.Error().Err(err).Msg("settings bootstrap failed")
		os.Exit(1)
	}

	authSvc := service.NewAuthService(userRepo, notificationSvc, cfg.JWT.AccessTTL, cfg.JWT.RefreshTTL, cfg.Store.FrontendURL)
	if cfg.Store.AdminEmail != "" {
		if err := authSvc.BootstrapAdmin(ctx, cfg.Store.AdminEmail, cfg.Store.AdminPassword, cfg.Store.AdminName); err != nil {
			log.Error().Err(err).Msg("admin bootstrap failed")
			os.Exit(1)
		}
	}

	categorySvc := service.NewCategoryService(categoryRepo)
	productSvc := service.NewProductService(productRepo, categoryRepo, productCache, notificationSvc)
	productSvc.UseStoreSettings(settingsSvc)
	orderSvc := service.NewOrderService(orderRepo, productRepo, userRepo, settingsSvc, gateway, notificationSvc, productCache, cfg.Paystack.CallbackURL)
	paymentSvc := service.NewPaymentService(orderRepo, gateway, notificationSvc, productCache, cfg.Paystack.SecretKey)
	reviewSvc := service.NewReviewService(reviewRepo, productRepo, orderRepo, productCache, notificationSvc)
	wishlistSvc := service.NewWishlistService(wishlistRepo, productRepo)

	// 7. Initialize handlers
	handlers := &Handlers{
		Health: handler.NewHealthHandler(map[string]handler.Pinger{
			"database": handler.PingFunc(func(ctx context.Context) error { return database.Ping(ctx, db) }),
			"redis":    redisClient,
		}),
		Auth:         handler.NewAuthHandler(authSvc),
		Product:      handler.NewProductHandler(productSvc, storage),
		Category:     handler.NewCategoryHandler(categorySvc),
		Order:        handler.NewOrderHandler(orderSvc),
		Payment:      handler.NewPaymentHandler(paymentSvc),
		Review:       handler.NewReviewHandler(reviewSvc),
		Wishlist:     handler.NewWishlistHandler(wishlistSvc),
		Notification: handler.NewNotificationHandler(notificationSvc),
		Settings:     handler.NewSettingsHandler(settingsSvc),
		SSE:          handler.NewSSEHandler(hub),
	}

	// 8. Initialize middleware
	jwtMw := middleware.NewJWTMiddleware()

	// 9. Setup router
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORSMiddleware(cfg.Store.AllowedOrigins))
	router.Use(middleware.LoggingMiddleware())
	setupRoutes(router, handlers, jwtMw, middleware.RateLimit(authLimiter))

	// 10. Start workers
	go worker.NewPaymentReconcileWorker(
		paymentSvc,
		cfg.Worker.ReconcileInterval,
		cfg.Worker.ReconcileStaleAfter,
		cfg.Worker.ReconcileMaxAge,
	).Start(ctx)

	sched, err := worker.NewScheduler(counterRepo, cfg.Worker.CounterPruneSpec, cfg.Worker.CounterRetention)
	if err != nil {
		log.Error().Err(err).Str("spec", cfg.Worker.CounterPruneSpec).Msg("invalid counter prune schedule")
		os.Exit(1)
	}
	sched.Start()

	// 11. Start HTTP server
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// 12. Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// 13. Cancel context to stop workers
	cancel()
	<-sched.Stop().Done()

	// 14. Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited")
}

// Handlers groups all HTTP handlers used by the server.
type Handlers struct {
	Health       *handler.HealthHandler
	Auth         *handler.AuthHandler
	Product      *handler.ProductHandler
	Category     *handler.CategoryHandler
	Order        *handler.OrderHandler
	Payment      *handler.PaymentHandler
	Review       *handler.ReviewHandler
	Wishlist     *handler.WishlistHandler
	Notification *handler.NotificationHandler
	Settings     *handler.SettingsHandler
	SSE          *handler.SSEHandler
}

// setupRoutes registers all routes.
func setupRoutes(router *gin.Engine, handlers *Handlers, jwtMiddleware *middleware.JWTMiddleware, authLimit gin.HandlerFunc) {
	router.GET("/health", handlers.Health.GetHealth)

	v1 := router.Group("/api/v1")
	requireAuth := jwtMiddleware.Handle()
	requireAdmin := middleware.RequireAdmin()

	// Auth
	auth := v1.Group("/auth")
	{
		auth.POST("/register", authLimit, handlers.Auth.Register)
		auth.POST("/login", authLimit, handlers.Auth.Login)
		auth.POST("/refresh-token", authLimit, handlers.Auth.RefreshToken)
		auth.POST("/forgot-password", authLimit, handlers.Auth.ForgotPassword)
		auth.POST("/reset-password/:token", authLimit, handlers.Auth.ResetPassword)
		auth.GET("/me", requireAuth, handlers.Auth.Me)
	}

	// Products
	products := v1.Group("/products")
	{
		products.GET("", handlers.Product.GetProducts)
		products.GET("/filters/options", handlers.Product.GetFilterOptions)
		products.GET("/:id", handlers.Product.GetProduct)
		products.POST("/:id/check-stock", handlers.Product.CheckStock)

		admin := products.Group("", requireAuth, requireAdmin)
		admin.GET("/admin/all", handlers.Product.AdminGetProducts)
		admin.GET("/admin/:id", handlers.Product.AdminGetProduct)
		admin.POST("", handlers.Product.CreateProduct)
		admin.POST("/upload", handlers.Product.UploadImage)
		admin.POST("/bulk/publish", handlers.Product.BulkPublish)
		admin.POST("/bulk/status", handlers.Product.BulkStatus)
		admin.PUT("/:id", handlers.Product.UpdateProduct)
		admin.DELETE("/:id", handlers.Product.DeleteProduct)
	}

	// Categories
	categories := v1.Group("/categories")
	{
		categories.GET("", jwtMiddleware.Optional(), handlers.Category.GetCategories)
		categories.GET("/tree", jwtMiddleware.Optional(), handlers.Category.GetTree)
		categories.GET("/slug/:slug", handlers.Category.GetCategoryBySlug)
		categories.GET("/:id", handlers.Category.GetCategory)

		admin := categories.Group("", requireAuth, requireAdmin)
		admin.POST("", handlers.Category.CreateCategory)
		admin.PUT("/:id", handlers.Category.UpdateCategory)
		admin.DELETE("/:id", handlers.Category.DeleteCategory)
	}

	// Orders
	orders := v1.Group("/orders", requireAuth)
	{
		orders.POST("", handlers.Order.PlaceOrder)
		orders.GET("/my", handlers.Order.GetMyOrders)
		orders.GET("/:id", handlers.Order.GetOrder)
		orders.POST("/:id/cancel", handlers.Order.CancelOrder)

		orders.GET("", requireAdmin, handlers.Order.AdminGetOrders)
		orders.PATCH("/:id/status", requireAdmin, handlers.Order.UpdateOrderStatus)
	}

	// Payments (callback and webhook are unauthenticated)
	payments := v1.Group("/payments")
	{
		payments.GET("/verify/:reference", handlers.Payment.Verify)
		payments.POST("/webhook", handlers.Payment.Webhook)
	}

	// Reviews
	reviews := v1.Group("/reviews")
	{
		reviews.GET("/product/:productId", handlers.Review.GetProductReviews)

		customer := reviews.Group("", requireAuth)
		customer.POST("", handlers.Review.CreateReview)
		customer.GET("/my", handlers.Review.GetMyReviews)
		customer.PUT("/:id", handlers.Review.UpdateReview)
		customer.DELETE("/:id", handlers.Review.DeleteReview)
		customer.POST("/:id/vote/helpful", handlers.Review.VoteHelpful)
		customer.POST("/:id/vote/not-helpful", handlers.Review.VoteNotHelpful)
		customer.DELETE("/:id/vote", handlers.Review.RemoveVote)

		customer.GET("", requireAdmin, handlers.Review.AdminGetReviews)
		customer.PATCH("/:id/publish", requireAdmin, handlers.Review.Publish)
		customer.PATCH("/:id/unpublish", requireAdmin, handlers.Review.Unpublish)
	}

	// Wishlist
	wishlist := v1.Group("/wishlist", requireAuth)
	{
		wishlist.GET("", handlers.Wishlist.GetWishlist)
		wishlist.DELETE("", handlers.Wishlist.Clear)
		wishlist.POST("/items", handlers.Wishlist.AddItem)
		wishlist.DELETE("/items/:productId", handlers.Wishlist.RemoveItem)
		wishlist.GET("/items/:productId/check", handlers.Wishlist.Check)
	}

	// Notifications
	notifications := v1.Group("/notifications")
	{
		// SSE authenticates through the token query parameter.
		notifications.GET("/stream", handlers.SSE.Stream)

		inbox := notifications.Group("", requireAuth)
		inbox.GET("", handlers.Notification.GetNotifications)
		inbox.GET("/unread-count", handlers.Notification.GetUnreadCount)
		inbox.PATCH("/read-all", handlers.Notification.MarkAllRead)
		inbox.PATCH("/:id/read", handlers.Notification.MarkRead)
		inbox.DELETE("/:id", handlers.Notification.DeleteNotification)
	}

	// Settings
	settings := v1.Group("/settings")
	{
		settings.GET("/public", handlers.Settings.GetPublicSettings)

		admin := settings.Group("", requireAuth, requireAdmin)
		admin.GET("", handlers.Settings.GetSettings)
		admin.PUT("/store", handlers.Settings.UpdateStore)
		admin.PUT("/shipping", handlers.Settings.UpdateShipping)
		admin.PUT("/payment", handlers.Settings.UpdatePayment)
	}
}

// runMigrations runs database migrations using golang-migrate.
func runMigrations(db *sql.DB) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres", driver)
	if err != nil {
		return fmt.Errorf("could not create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("could not run migrations: %w", err)
	}

	return nil
}

func setupLogger(env string) {
	if env == "production" {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
}
