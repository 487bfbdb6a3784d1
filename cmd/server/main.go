package main

import (
	"context"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"jobtrack-service/internal/app"
	"jobtrack-service/internal/server"
)

func main() {
	ctx := context.Background()

	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL required")
	}

	logger := app.NewLogger(cfg)
	defer logger.Sync()

	pool, err := openPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to connect to db", zap.Error(err))
	}
	defer pool.Close()

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, availability cache disabled", zap.Error(err))
			rdb = nil
		}
	}

	appInstance := app.New(cfg, pool, rdb, logger)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()

	// Public surface: booking pages and the OAuth callback sit outside auth.
	router.GET("/oauth2callback", appInstance.GoogleOAuth2CallbackHandler)
	router.GET("/book/:slug", appInstance.GetBookingPageHandler)
	router.POST("/book/:slug", appInstance.CreateBookingHandler)

	api := router.Group("/api")
	api.Use(app.AuthMiddleware(cfg))
	{
		hosts := api.Group("/hosts")
		{
			hosts.POST("/:id/availability", appInstance.SetAvailabilityHandler)
			hosts.PUT("/:id/availability/:rule_id", appInstance.UpdateAvailabilityHandler)
			hosts.GET("/:id/availability", appInstance.ListAvailabilityHandler)
			hosts.DELETE("/:id/availability/:rule_id", appInstance.DeleteAvailabilityHandler)
			hosts.GET("/:id/slots", appInstance.GetSlotsHandler)
			hosts.GET("/:id/bookings", appInstance.ListBookingsHandler)
			hosts.GET("/:id/calendar/events", appInstance.GetCalendarEventsHandler)
			hosts.GET("/:id/emails", appInstance.ListEmailsHandler)
			hosts.POST("/:id/emails", appInstance.SendEmailHandler)
			hosts.GET("/:id/stages", appInstance.ListStagesHandler)
			hosts.PUT("/:id/stages/:stage_id", appInstance.UpdateStageHandler)
			hosts.GET("/:id/companies", appInstance.ListCompaniesHandler)
			hosts.POST("/:id/companies", appInstance.CreateCompanyHandler)
			hosts.PUT("/:id/companies/:company_id", appInstance.UpdateCompanyHandler)
			hosts.DELETE("/:id/companies/:company_id", appInstance.DeleteCompanyHandler)
		}
		api.DELETE("/bookings/:id", appInstance.CancelBookingHandler)
		api.GET("/calendar/auth", appInstance.GoogleAuthHandler)
	}

	logger.Info("starting server", zap.String("port", cfg.AppPort), zap.String("env", cfg.Env))
	server.Run(router, cfg.AppPort)
}

func openPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pcfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	pcfg.MaxConns = 10
	pcfg.MinConns = 1
	pcfg.MaxConnLifetime = 30 * time.Minute
	pcfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}
