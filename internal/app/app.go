package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Dhoini/seatsync/internal/config"
	"github.com/Dhoini/seatsync/internal/db"
	"github.com/Dhoini/seatsync/internal/http/handlers"
	stripeint "github.com/Dhoini/seatsync/internal/integration/stripe"
	"github.com/Dhoini/seatsync/internal/kafka"
	"github.com/Dhoini/seatsync/internal/metrics"
	"github.com/Dhoini/seatsync/internal/middleware"
	"github.com/Dhoini/seatsync/internal/repository"
	"github.com/Dhoini/seatsync/internal/service"
	"github.com/Dhoini/seatsync/pkg/logger"
)

// Core holds the storage side shared by the HTTP server and the reconcile job.
type Core struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       *db.DBClient
	Store    *repository.PostgresStore
	Cache    *repository.RedisCacheRepository
	Slots    repository.SlotRepository
	Registry *prometheus.Registry
	Metrics  metrics.WebhookMetrics
	Sweeper  *service.Sweeper

	invalidator service.SlotInvalidator
}

// NewCore connects to Postgres and, when configured, Redis.
func NewCore(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Core, error) {
	if cfg.Database.DSN == "" {
		return nil, errors.New("missing required configuration: DATABASE_DSN")
	}
	dbClient, err := db.NewDBClient(ctx, cfg.Database.DSN, db.Options{
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	}, log)
	if err != nil {
		return nil, err
	}

	c := &Core{
		Config:   cfg,
		Logger:   log,
		DB:       dbClient,
		Store:    repository.NewPostgresStore(dbClient.DB, log),
		Registry: metrics.NewRegistry(),
	}
	c.Slots = c.Store
	c.Metrics = metrics.NewWebhookMetrics(c.Registry)

	if cfg.Redis.Addr != "" {
		cache, err := repository.NewRedisCacheRepository(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.SlotTTL, log)
		if err != nil {
			_ = dbClient.Close()
			return nil, err
		}
		cached := repository.NewCachedSlotRepository(c.Store, cache, log)
		c.Cache = cache
		c.Slots = cached
		c.invalidator = cached
	} else {
		log.Infow("Redis not configured, slot availability is read from Postgres")
	}

	c.Sweeper = service.NewSweeper(c.Store, c.invalidator, c.Metrics, log)
	return c, nil
}

// Close releases the connections opened by NewCore.
func (c *Core) Close() error {
	var errs []error
	if c.Cache != nil {
		errs = append(errs, c.Cache.Close())
	}
	errs = append(errs, c.DB.Close())
	return errors.Join(errs...)
}

// App is the container for everything the HTTP server needs.
type App struct {
	*Core
	Producer         kafka.Producer
	WebhookService   *service.WebhookService
	BillingService   *service.BillingService
	WebhookHandler   *handlers.WebhookHandler
	BillingHandler   *handlers.BillingHandler
	HealthHandler    *handlers.HealthHandler
	AuthMiddleware   *middleware.JWTMiddleware
	LoggerMiddleware gin.HandlerFunc
	CORSMiddleware   gin.HandlerFunc
}

// NewApp validates cfg and wires every component of the server.
func NewApp(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	core, err := NewCore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	var producer kafka.Producer = kafka.NopProducer{}
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err = kafka.NewKafkaProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
		if err != nil {
			_ = core.Close()
			return nil, fmt.Errorf("create kafka producer: %w", err)
		}
	} else {
		log.Infow("Kafka brokers not configured, seat change events are not published")
	}

	verifier, err := stripeint.NewVerifier(cfg.Stripe.WebhookSecret, cfg.Stripe.SignatureTolerance)
	if err != nil {
		_ = core.Close()
		return nil, err
	}
	stripeClient := stripeint.NewClient(stripeint.Config{
		APIKey:       cfg.Stripe.APIKey,
		FetchTimeout: cfg.Stripe.FetchTimeout,
		BackendURL:   cfg.Stripe.BackendURL,
	}, log)

	webhookService := service.NewWebhookService(core.Store, stripeClient, core.invalidator, producer, core.Metrics, log)
	billingService := service.NewBillingService(core.Store, core.Slots, cfg.Billing, log)

	webhookHandler, err := handlers.NewWebhookHandler(verifier, webhookService, log)
	if err != nil {
		_ = core.Close()
		return nil, err
	}

	return &App{
		Core:             core,
		Producer:         producer,
		WebhookService:   webhookService,
		BillingService:   billingService,
		WebhookHandler:   webhookHandler,
		BillingHandler:   handlers.NewBillingHandler(billingService, log),
		HealthHandler:    handlers.NewHealthHandler(core.Store),
		AuthMiddleware:   middleware.NewJWTMiddleware(&middleware.HMACTokenValidator{Secret: []byte(cfg.Auth.JWTSecret)}, log),
		LoggerMiddleware: middleware.RequestLogger(log),
		CORSMiddleware:   middleware.CORS(cfg.App.AllowedOrigins),
	}, nil
}

// Close flushes the producer and closes the storage connections.
func (a *App) Close() error {
	return errors.Join(a.Producer.Close(), a.Core.Close())
}
