package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tablebooking/internal/cache"
	"tablebooking/internal/config"
	"tablebooking/internal/database"
	"tablebooking/internal/gateway"
	"tablebooking/internal/logging"
	"tablebooking/internal/middleware"
	"tablebooking/internal/modules/availability"
	"tablebooking/internal/modules/booking"
	"tablebooking/internal/modules/livefeed"
	"tablebooking/internal/modules/payment"
	"tablebooking/internal/modules/tableblock"
	"tablebooking/internal/modules/tables"
	"tablebooking/internal/pkg/jwt"
	"tablebooking/internal/repository"
)

func main() {
	configPath := flag.String("config", envOr("CONFIG_PATH", "config.yaml"), "path to the YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "tablebooking:", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log, logCloser, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if logCloser != nil {
		defer logCloser.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(cfg.Database.DSN, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := database.Close(db); err != nil {
			log.Error().Err(err).Msg("close database")
		}
	}()
	if err := database.Configure(db, cfg.Database.MaxOpenConns); err != nil {
		return fmt.Errorf("configure database: %w", err)
	}
	if cfg.Database.AutoMigrate {
		if err := database.Migrate(db); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		log.Info().Msg("schema migrated")
	}

	store := repository.NewStore(db, repository.StoreOptions{
		Timeout:      cfg.Store.Timeout,
		Serializable: cfg.Store.Serializable,
		LockNoWait:   cfg.Store.LockNoWait,
	})

	rdb := cache.NewRedisClient(cfg.Redis)
	if rdb != nil {
		defer rdb.Close()
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := cache.Ping(pingCtx, rdb)
		cancel()
		if err != nil {
			log.Warn().Err(err).Msg("redis unavailable; table listings will read the store")
		} else {
			log.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
		}
	}
	tableCache := cache.NewTableCache(rdb, cfg.Redis.TableTTL)

	hub := livefeed.NewHub(logging.Component(log, "livefeed"))
	defer hub.Close()

	loc := cfg.Venue.Location()
	window := availability.NewWindow(loc, cfg.Venue.MaxAdvanceDays, nil)
	engine := availability.NewEngine(window, tableCache, cfg.Venue.Slots, logging.Component(log, "availability"))

	availabilityService := availability.NewService(store, engine, logging.Component(log, "availability"))
	bookingService := booking.NewService(store, engine, hub, booking.Config{
		DepositAmount: cfg.Venue.DepositAmount,
		Currency:      cfg.Venue.Currency,
	}, logging.Component(log, "booking"))
	tableService := tables.NewService(store, tableCache, logging.Component(log, "tables"))
	blockService := tableblock.NewService(store, window, logging.Component(log, "tableblock"))
	paymentService := payment.NewService(store, gateway.NewClient(cfg.Gateway), hub, payment.Config{
		WebhookSecret:      cfg.Gateway.WebhookSecret,
		SignatureTolerance: cfg.Gateway.SignatureTolerance,
		Location:           loc,
	}, logging.Component(log, "payment"))

	jwtService := jwt.New(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	if isProd(cfg.App.Environment) {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(middleware.RequestLogger(logging.Component(log, "http")))

	r.GET("/health", func(c *gin.Context) {
		status, code := "ok", http.StatusOK
		if err := store.Ping(c.Request.Context()); err != nil {
			status, code = "store unavailable", http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{"status": status, "version": cfg.App.Version})
	})
	if cfg.Monitoring.PrometheusEnabled {
		r.GET(cfg.Monitoring.MetricsPath, gin.WrapH(promhttp.Handler()))
	}
	livefeed.NewHandler(hub).RegisterRoutes(r)

	availabilityHandler := availability.NewHandler(availabilityService)
	bookingHandler := booking.NewHandler(bookingService)
	tableHandler := tables.NewHandler(tableService)
	blockHandler := tableblock.NewHandler(blockService)
	paymentHandler := payment.NewHandler(paymentService, logging.Component(log, "payment"))

	v1 := r.Group("/api/v1")
	{
		availabilityHandler.RegisterRoutes(v1)
		bookingHandler.RegisterPublicRoutes(v1)
		tableHandler.RegisterPublicRoutes(v1)
		paymentHandler.RegisterPublicRoutes(v1)

		staff := v1.Group("/staff", middleware.JWTAuth(jwtService), middleware.RequireRole(jwt.RoleStaff, jwt.RoleAdmin))
		{
			bookingHandler.RegisterStaffRoutes(staff)
			blockHandler.RegisterRoutes(staff)
			paymentHandler.RegisterStaffRoutes(staff)
		}

		admin := v1.Group("/admin", middleware.JWTAuth(jwtService), middleware.AdminOnly())
		{
			tableHandler.RegisterAdminRoutes(admin)
			paymentHandler.RegisterAdminRoutes(admin)
		}
	}

	srv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      r,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.HTTP.Addr).Str("env", cfg.App.Environment).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	log.Info().Msg("server stopped")
	return nil
}

func isProd(env string) bool {
	return env == "prod" || env == "production" || env == "release"
}

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
