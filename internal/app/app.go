package app

import (
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"jobtrack-service/internal/schedule"
)

// App wires the request handlers to their collaborators.
type App struct {
	DB     *pgxpool.Pool
	Cfg    *Config
	Logger *zap.Logger

	// Engine is the shared slot/booking engine; both the host calendar
	// surface and the public booking page go through it.
	Engine *schedule.Service
	Cache  *AvailabilityCache
}

// New assembles the application from its infrastructure pieces.
func New(cfg *Config, pool *pgxpool.Pool, rdb *redis.Client, logger *zap.Logger) *App {
	a := &App{DB: pool, Cfg: cfg, Logger: logger}
	store := &Store{DB: pool}
	cal := &GoogleCalendar{Cfg: cfg, Store: store}
	a.Engine = &schedule.Service{
		Rules:    store,
		Calendar: cal,
		Bookings: store,
		Notify:   &ConfirmationNotifier{Cfg: cfg, Store: store, Calendar: cal},
		Logger:   logger,
	}
	if rdb != nil {
		a.Cache = &AvailabilityCache{Client: rdb}
	}
	return a
}

// NewLogger builds the zap logger for the configured environment.
func NewLogger(cfg *Config) *zap.Logger {
	var zcfg zap.Config
	if cfg.IsProduction() {
		zcfg = zap.NewProductionConfig()
		zcfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	} else {
		zcfg = zap.NewDevelopmentConfig()
		zcfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
		zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	logger, err := zcfg.Build()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	return logger
}
