package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"kobonz/internal/auth"
	"kobonz/internal/config"
	"kobonz/internal/database"
	"kobonz/internal/handlers"
	"kobonz/internal/kafka"
	"kobonz/internal/logger"
	"kobonz/internal/models"
	"kobonz/internal/redis"
	"kobonz/internal/services"
	"kobonz/internal/store"
	"kobonz/internal/store/memory"
	"kobonz/internal/store/postgres"
)

// Фабричные функции для подключения внешних сервисов (подменяемые в тестах).
var (
	dbConnect        = database.Connect
	redisConnect     = redis.Connect
	newKafkaProducer = kafka.NewProducer
	newKafkaConsumer = kafka.NewConsumer
	kafkaHealthCheck = handlers.CheckKafkaHealth
	loadConfig       = config.Load
	newLogger        = logger.New
)

// application агрегирует собранные зависимости.
type application struct {
	cfg      *config.Config
	log      *logger.Logger
	db       *database.DB
	store    store.Store
	redis    *redis.Client
	producer *kafka.Producer
	consumer *kafka.Consumer
	tracker  *services.ClickTracker
	mux      *http.ServeMux
	server   *http.Server
}

// routeHandlers обработчики, из которых собирается mux.
type routeHandlers struct {
	health     *handlers.HealthHandler
	rateLimit  *handlers.RateLimitHandler
	callable   *handlers.CallableHandler
	coupons    *handlers.CouponHandler
	tracking   *handlers.TrackingHandler
	cron       *handlers.CronHandler
	affiliates *handlers.AffiliateHandler
	accounts   *handlers.AccountHandler
	auth       *handlers.AuthMiddleware
	limiter    *services.RateLimiter
}

func main() {
	app, err := buildApplication()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build app: %v\n", err)
		os.Exit(1)
	}
	app.log.Info("Starting Kobonz server...")

	go func() {
		app.log.WithField("address", app.server.Addr).Info("HTTP server starting")
		if err := app.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			app.log.WithError(err).Fatal("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	app.log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	app.shutdown(ctx)
	app.log.Info("Server exited")
}

// buildApplication создает все зависимости. Redis и Kafka необязательны:
// без них отключаются кеш, блокировка sweeper'а и события.
func buildApplication() (*application, error) {
	cfg := loadConfig()
	log := newLogger(&cfg.Logger)

	tokens, err := auth.NewTokenManager(&cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("auth: %w", err)
	}

	if cfg.Earnings.CronSecret == "" {
		log.Warn("CRON_SECRET is not set, earnings sweep endpoint is closed")
	}

	app := &application{cfg: cfg, log: log}

	st, db, err := openStore(cfg, log)
	if err != nil {
		return nil, err
	}
	app.store = st
	app.db = db

	if cfg.Redis.Host != "" {
		client, err := redisConnect(&cfg.Redis, log)
		if err != nil {
			log.WithError(err).Warn("Redis unavailable, caching and sweep lock disabled")
		} else {
			app.redis = client
		}
	}

	var events services.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := newKafkaProducer(&cfg.Kafka, log)
		if err != nil {
			log.WithError(err).Warn("Kafka producer unavailable, domain events disabled")
		} else {
			app.producer = producer
			events = producer
		}
	}

	couponService := services.NewCouponService(st, app.redis, log, &cfg.Cache)
	redemptionService := services.NewRedemptionService(st, events, log, &cfg.Rewards).
		WithCouponInvalidator(couponService)
	affiliateService := services.NewAffiliateService(st, log)
	accountService := services.NewAccountService(st, tokens, events, log, &cfg.Rewards)
	sweeper := services.NewEarningsSweeper(st, app.redis, events, log, &cfg.Earnings)
	rateLimiter := services.NewRateLimiter(app.redis, log, &cfg.RateLimit)
	app.tracker = services.NewClickTracker(st, events, log, &cfg.Tracking)

	if len(cfg.Kafka.Brokers) > 0 {
		consumer, err := newKafkaConsumer(&cfg.Kafka, log)
		if err != nil {
			log.WithError(err).Warn("Kafka consumer unavailable, cache invalidation relies on TTL")
		} else {
			registerEventHandlers(consumer, couponService, log)
			if err := consumer.Start(); err != nil {
				_ = consumer.Stop()
				app.shutdown(context.Background())
				return nil, fmt.Errorf("kafka consumer start: %w", err)
			}
			app.consumer = consumer
		}
	}

	// интерфейсы health заполняются только реальными клиентами
	var dbHealth handlers.DBHealth
	if app.db != nil {
		dbHealth = app.db
	}
	var redisHealth handlers.RedisHealth
	if app.redis != nil {
		redisHealth = app.redis
	}

	routes := &routeHandlers{
		health:     handlers.NewHealthHandler(dbHealth, redisHealth, cfg.Kafka.Brokers, kafkaHealthCheck),
		rateLimit:  handlers.NewRateLimitHandler(rateLimiter, log, &cfg.RateLimit),
		callable:   handlers.NewCallableHandler(redemptionService, app.tracker, log),
		coupons:    handlers.NewCouponHandler(couponService, redemptionService, log, &cfg.Tracking),
		tracking:   handlers.NewTrackingHandler(affiliateService, app.tracker, log, &cfg.Tracking),
		cron:       handlers.NewCronHandler(sweeper, cfg.Earnings.CronSecret, log),
		affiliates: handlers.NewAffiliateHandler(affiliateService, log),
		accounts:   handlers.NewAccountHandler(accountService, log),
		auth:       handlers.NewAuthMiddleware(tokens, log),
		limiter:    rateLimiter,
	}

	app.tracker.Start()

	app.mux = setupRoutes(routes, log)
	app.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      app.mux,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	return app, nil
}

// openStore выбирает хранилище по STORE_DRIVER.
func openStore(cfg *config.Config, log *logger.Logger) (store.Store, *database.DB, error) {
	switch strings.ToLower(cfg.Store.Driver) {
	case "memory":
		log.Warn("Using in-memory store, data will not survive a restart")
		return memory.New(), nil, nil
	case "", "postgres":
		db, err := dbConnect(&cfg.Database, log, database.Options{MaxOpenConns: cfg.Store.MaxOpenConns})
		if err != nil {
			return nil, nil, fmt.Errorf("db connect: %w", err)
		}
		if cfg.Store.AutoMigrate {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := db.Migrate(ctx); err != nil {
				_ = db.Close()
				return nil, nil, fmt.Errorf("db migrate: %w", err)
			}
			log.Info("Database schema applied")
		}
		return postgres.New(db), db, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// shutdown останавливает компоненты в обратном порядке: сначала HTTP,
// затем очередь кликов, чтобы дописать принятые события.
func (app *application) shutdown(ctx context.Context) {
	if app.server != nil {
		if err := app.server.Shutdown(ctx); err != nil {
			app.log.WithError(err).Error("Server forced to shutdown")
		}
	}
	if app.tracker != nil {
		if err := app.tracker.Stop(ctx); err != nil {
			app.log.WithError(err).Warn("Click tracker did not drain in time")
		}
	}
	if app.consumer != nil {
		_ = app.consumer.Stop()
	}
	_ = app.producer.Close()
	_ = app.redis.Close()
	_ = app.db.Close()
}

// setupRoutes настраивает маршруты HTTP сервера
func setupRoutes(h *routeHandlers, log *logger.Logger) *http.ServeMux {
	mux := http.NewServeMux()

	applyAPI := func(next http.HandlerFunc) http.HandlerFunc {
		return corsMiddleware(handlers.RateLimitMiddleware(h.limiter, log, next))
	}
	applyRedeem := func(next http.HandlerFunc) http.HandlerFunc {
		return corsMiddleware(handlers.ScopedRateLimitMiddleware(h.limiter, services.ScopeRedeem, log, next))
	}
	applyCallable := func(scope string, next http.HandlerFunc) http.HandlerFunc {
		return corsMiddleware(handlers.CallableRateLimitMiddleware(h.limiter, scope, log, next))
	}

	// Health check endpoints
	mux.HandleFunc("/health", corsMiddleware(h.health.Health))
	mux.HandleFunc("/health/readiness", corsMiddleware(h.health.Readiness))
	mux.HandleFunc("/health/liveness", corsMiddleware(h.health.Liveness))

	// Rate limit status
	mux.HandleFunc("/api/rate-limit/status", applyAPI(h.rateLimit.Status))

	// Callable endpoints
	mux.HandleFunc("/api/callable/redeemCoupon", applyCallable(services.ScopeRedeem, h.auth.Callable(h.callable.RedeemCoupon)))
	mux.HandleFunc("/api/callable/trackCouponClick", applyCallable(services.ScopeDefault, h.callable.TrackCouponClick))

	// Public coupons
	mux.HandleFunc("/api/public/coupons", applyAPI(h.coupons.ListPublic))
	mux.HandleFunc("/api/public/coupons/", handlePublicCouponRoute(
		applyAPI(h.coupons.GetPublic),
		applyRedeem(h.auth.Optional(h.coupons.Redeem)),
	))

	// Affiliate redirect
	mux.HandleFunc("/go/", handlers.RateLimitMiddleware(h.limiter, log, h.tracking.Redirect))

	// Scheduler
	mux.HandleFunc("/api/cron/process-earnings", h.cron.ProcessEarnings)

	// Shop coupons
	mux.HandleFunc("/api/coupons", applyAPI(h.auth.Required(handleCouponsRoute(h.coupons))))
	mux.HandleFunc("/api/coupons/", applyAPI(h.auth.Required(handleCouponRoute(h.coupons))))

	// Affiliate dashboard
	mux.HandleFunc("/api/affiliate/links", applyAPI(h.auth.Required(handleAffiliateLinksRoute(h.affiliates))))
	mux.HandleFunc("/api/affiliate/earnings", applyAPI(h.auth.Required(h.affiliates.ListEarnings)))

	// Accounts
	mux.HandleFunc("/api/auth/register", applyAPI(h.accounts.Register))
	mux.HandleFunc("/api/auth/login", applyAPI(h.accounts.Login))
	mux.HandleFunc("/api/me", applyAPI(h.auth.Required(h.accounts.Me)))
	mux.HandleFunc("/api/me/ledger", applyAPI(h.auth.Required(h.accounts.Ledger)))
	mux.HandleFunc("/api/accounts/", applyAPI(h.auth.Required(h.accounts.Get)))

	return mux
}

// handlePublicCouponRoute разделяет карточку купона и погашение
func handlePublicCouponRoute(get, redeem http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/redeem") {
			redeem(w, r)
			return
		}
		get(w, r)
	}
}

// handleCouponsRoute обрабатывает коллекцию купонов магазина
func handleCouponsRoute(handler *handlers.CouponHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			handler.ListMine(w, r)
		case http.MethodPost:
			handler.Create(w, r)
		default:
			writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	}
}

// handleCouponRoute обрабатывает действия над отдельным купоном
func handleCouponRoute(handler *handlers.CouponHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/approve"):
			handler.Approve(w, r)
		case strings.HasSuffix(r.URL.Path, "/stats"):
			handler.Stats(w, r)
		default:
			writeErrorResponse(w, http.StatusNotFound, "Not found")
		}
	}
}

// handleAffiliateLinksRoute обрабатывает ссылки аффилиата
func handleAffiliateLinksRoute(handler *handlers.AffiliateHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			handler.ListLinks(w, r)
		case http.MethodPost:
			handler.CreateLink(w, r)
		default:
			writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	}
}

// registerEventHandlers регистрирует обработчики событий Kafka
func registerEventHandlers(consumer *kafka.Consumer, coupons *services.CouponService, log *logger.Logger) {
	consumer.RegisterHandler(models.EventTypeCouponRedeemed, coupons.HandleCouponRedeemed)

	consumer.RegisterHandler(models.EventTypeEarningReleased, func(ctx context.Context, event *models.Event) error {
		log.WithField("event_id", event.ID).Debug("Earning released")
		return nil
	})

	consumer.RegisterHandler(models.EventTypeReferralRewarded, func(ctx context.Context, event *models.Event) error {
		log.WithField("event_id", event.ID).Debug("Referral rewarded")
		return nil
	})
}

// corsMiddleware и другие helper функции
func corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}

func writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	type errorResponse struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
	})
}
