package main

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ngvinh/circulib/internal/config"
	"github.com/ngvinh/circulib/internal/database"
	"github.com/ngvinh/circulib/internal/handlers"
	"github.com/ngvinh/circulib/internal/middleware"
	"github.com/ngvinh/circulib/internal/services"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	gin.SetMode(cfg.Server.Mode)

	db, err := database.New(cfg)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	redis, err := database.NewRedis(cfg)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer redis.Close()

	// Use the configured RSA key, or a throwaway dev key.
	jwtPrivateKey := cfg.JWT.PrivateKey
	if jwtPrivateKey == "" {
		jwtPrivateKey = getDefaultRSAPrivateKey()
	}

	authService, err := services.NewAuthService(
		jwtPrivateKey,
		time.Duration(cfg.JWT.ExpiryHours)*time.Hour,
		logger,
		redis.Client,
	)
	if err != nil {
		slog.Error("Failed to initialize auth service", "error", err)
		os.Exit(1)
	}

	userService := services.NewUserService(db.Queries, authService, logger)
	inventoryService := services.NewInventoryService(db.Queries)
	allocatorService := services.NewAllocatorService(db.Queries)
	catalogService := services.NewCatalogService(db.Queries, inventoryService, logger)
	vnpayService := services.NewVNPayService(cfg.VNPay, logger)
	finePolicy, err := services.NewFinePolicy(cfg.Fine)
	if err != nil {
		slog.Error("Failed to parse fine policy", "error", err)
		os.Exit(1)
	}
	loanService := services.NewLoanService(
		db.Queries, allocatorService, inventoryService, vnpayService,
		finePolicy, cfg.Loan, logger,
	)

	r := gin.New()

	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.SecurityHeaders())

	rateLimiter := middleware.NewRateLimiter(redis.Client)
	authMiddleware := middleware.NewAuthMiddleware(authService)

	healthHandler := handlers.NewHealthHandler(db, redis)
	authHandler := handlers.NewAuthHandler(userService)
	catalogHandler := handlers.NewCatalogHandler(catalogService)
	loanHandler := handlers.NewLoanHandler(loanService)
	paymentHandler := handlers.NewPaymentHandler(loanService, cfg.VNPay, logger)

	public := r.Group("/api/v1")
	{
		public.GET("/health", healthHandler.Health)

		auth := public.Group("/auth")
		auth.Use(rateLimiter.Limit(middleware.RateLimit{Requests: 10, Window: time.Minute}))
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
		}

		// Browsing the catalog needs no account.
		public.GET("/titles", catalogHandler.ListTitles)
		public.GET("/titles/isbn/:isbn", catalogHandler.GetTitleByISBN)
		public.GET("/titles/:id", catalogHandler.GetTitle)
		public.GET("/titles/:id/copies", catalogHandler.ListCopies)
		public.GET("/categories", catalogHandler.ListCategories)

		// The payment gateway calls back without a bearer token.
		public.GET("/payments/vnpay/return", paymentHandler.GatewayReturn)
	}

	protected := r.Group("/api/v1")
	protected.Use(authMiddleware.RequireAuth())
	protected.Use(rateLimiter.Limit(middleware.RateLimit{Requests: 120, Window: time.Minute}))
	{
		protected.GET("/profile", authHandler.Profile)
		protected.POST("/auth/logout", authHandler.Logout)

		protected.POST("/loans", loanHandler.OpenLoan)
		protected.GET("/loans", loanHandler.ListMyLoans)
		protected.POST("/loans/:id/renew", loanHandler.RenewLoan)
		protected.POST("/loans/:id/payment", loanHandler.PreparePayment)

		admin := protected.Group("/admin")
		admin.Use(authMiddleware.RequireAdmin())
		{
			admin.POST("/titles", catalogHandler.AddTitle)
			admin.DELETE("/titles/:id", catalogHandler.DeleteTitle)
			admin.POST("/titles/:id/restore", catalogHandler.RestoreTitle)
			admin.PUT("/copies/:id/status", catalogHandler.SetCopyStatus)
			admin.POST("/categories", catalogHandler.CreateCategory)
			admin.GET("/loans", loanHandler.ListAllLoans)
			admin.POST("/loans/:id/confirm-cash", loanHandler.ConfirmCash)
			admin.GET("/users", authHandler.ListUsers)
			admin.PATCH("/users/:id/lock", authHandler.SetUserLock)
		}
	}

	r.GET("/health", healthHandler.Health)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.Server.Port
	}

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("Starting server", "port", port, "mode", cfg.Server.Mode)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server exited")
}

// getDefaultRSAPrivateKey generates a throwaway RSA key for development.
// In production, configure a real key.
func getDefaultRSAPrivateKey() string {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		slog.Error("Failed to generate RSA key", "error", err)
		os.Exit(1)
	}

	privateKeyPEM := &pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(privateKey),
	}

	return string(pem.EncodeToMemory(privateKeyPEM))
}
