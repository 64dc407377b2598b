package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	validator "github.com/go-playground/validator/v10"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"

	"github.com/noah-isme/salon-pos/internal/activity"
	"github.com/noah-isme/salon-pos/internal/auth"
	"github.com/noah-isme/salon-pos/internal/billing"
	"github.com/noah-isme/salon-pos/internal/branch"
	"github.com/noah-isme/salon-pos/internal/catalog"
	"github.com/noah-isme/salon-pos/internal/common"
	"github.com/noah-isme/salon-pos/internal/config"
	"github.com/noah-isme/salon-pos/internal/events"
	"github.com/noah-isme/salon-pos/internal/health"
	"github.com/noah-isme/salon-pos/internal/inventory"
	"github.com/noah-isme/salon-pos/internal/loyalty"
	"github.com/noah-isme/salon-pos/internal/notify"
	"github.com/noah-isme/salon-pos/internal/obs"
	"github.com/noah-isme/salon-pos/internal/promotion"
	"github.com/noah-isme/salon-pos/internal/ratelimit"
	"github.com/noah-isme/salon-pos/internal/report"
	"github.com/noah-isme/salon-pos/internal/security"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "salonpos")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	tracingEnabled := envBool("OBS_ENABLE_TRACING", true)
	if tracingEnabled {
		sampling := envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0)
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "salon-pos-api",
			Endpoint:      envOrDefault("OBS_OTLP_ENDPOINT", ""),
			Exporter:      envOrDefault("OBS_TRACING_EXPORTER", "otlp"),
			SamplingRatio: sampling,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse database config")
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = "salon-pos-api"

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if metricsEnabled {
		if err := redisotel.InstrumentMetrics(redisClient); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}

	taskClient := asynq.NewClient(asynq.RedisClientOpt{Addr: redisOpts.Addr, Password: redisOpts.Password, DB: redisOpts.DB})
	defer func() {
		if err := taskClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close task client")
		}
	}()

	validate := validator.New()

	authService := &auth.Service{
		Pool:      pool,
		Secret:    []byte(cfg.JWTSecret),
		Issuer:    "salon-pos",
		AccessTTL: cfg.AccessTokenTTL,
	}
	authHandler := &auth.Handler{Service: authService, Validate: validate}
	authMiddleware := auth.Middleware{Service: authService}

	catalogService := &catalog.Service{Pool: pool, Redis: redisClient, CacheTTL: cfg.CatalogCacheTTL}
	catalogHandler := &catalog.Handler{Svc: catalogService, Validate: validate}

	inventoryService := &inventory.Service{Pool: pool}
	inventoryHandler := &inventory.Handler{Svc: inventoryService}

	promotionService := &promotion.Service{Store: promotion.PgStore{Pool: pool}}
	promotionHandler := &promotion.Handler{Svc: promotionService, Pool: pool, Validate: validate}

	loyaltyService := &loyalty.Service{
		Pool:       pool,
		Redis:      redisClient,
		PointValue: cfg.LoyaltyPointValue,
		EarnBps:    cfg.LoyaltyEarnBps,
		CacheTTL:   cfg.LoyaltyCacheTTL,
	}
	loyaltyHandler := &loyalty.Handler{Svc: loyaltyService}

	bus := &events.Bus{
		Store:     events.PgStore{Pool: pool},
		Scheduler: notify.Scheduler{Client: taskClient},
	}

	billingService := &billing.Service{
		Pool:       pool,
		Catalog:    catalogService,
		Inventory:  inventoryService,
		Promotions: promotionService,
		Loyalty:    loyaltyService,
		Bus:        bus,
		Logger:     &logger,
	}
	billingHandler := &billing.Handler{Svc: billingService, Validate: validate}

	branchService := &branch.Service{Pool: pool}
	branchHandler := &branch.Handler{Svc: branchService, Validate: validate}

	activityService := activity.Service{
		Store:        activity.PgStore{Pool: pool},
		Enabled:      envBool("ACTIVITY_LOG_ENABLED", true),
		SamplingRate: envFloat("ACTIVITY_LOG_SAMPLING_RATE", 1.0),
	}
	activityRecorder := activity.Recorder{
		Service: &activityService,
		OnError: func(err error) { logger.Error().Err(err).Msg("record activity") },
	}
	activityHandler := &activity.Handler{Store: activity.PgStore{Pool: pool}}

	reportService := &report.Service{Pool: pool, Redis: redisClient, CacheTTL: cfg.ReportCacheTTL}
	reportHandler := &report.Handler{Svc: reportService}

	idem := common.Idem{R: redisClient, TTL: cfg.IdempotencyTTL}

	loginLimit, err := ratelimit.New(redisClient, cfg.RateLimitLogin, "rl:login")
	if err != nil {
		logger.Fatal().Err(err).Msg("configure login rate limit")
	}
	checkoutLimit, err := ratelimit.New(redisClient, cfg.RateLimitCheckout, "rl:checkout")
	if err != nil {
		logger.Fatal().Err(err).Msg("configure checkout rate limit")
	}

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		buckets := obs.ParseBucketsCSV(envOrDefault("OBS_METRICS_BUCKETS_MS", ""))
		httpMetrics = obs.NewHTTPMetrics(metricsNamespace, buckets, nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if metricsEnabled && httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(security.Headers{Enable: true}.Middleware)
	r.Use(security.BodyLimit{Max: envInt64("SECURE_MAX_BODY_BYTES", 1<<20)}.Middleware)
	if envBool("SECURE_CSRF_ENABLED", false) {
		r.Use(security.CSRF{Header: envOrDefault("SECURE_CSRF_HEADER", "X-CSRF-Token")}.Middleware)
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	if envBool("OBS_ENABLE_PPROF", false) {
		user := envOrDefault("SECURE_PPROF_BASIC_AUTH_USER", "")
		pass := envOrDefault("SECURE_PPROF_BASIC_AUTH_PASS", "")
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), user, pass))
	}

	healthHandler := health.Handler{
		Checker:      readinessChecker{db: pool, redis: redisClient},
		DBTimeout:    envDurationMillis("HEALTH_READY_DB_TIMEOUT_MS", 500),
		RedisTimeout: envDurationMillis("HEALTH_READY_REDIS_TIMEOUT_MS", 300),
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Route("/auth", func(a chi.Router) {
			a.With(loginLimit).Post("/login", authHandler.Login)
			a.Group(func(protected chi.Router) {
				protected.Use(authMiddleware.RequireAuth)
				protected.Get("/me", authHandler.Me)
			})
		})

		v.Group(func(staff chi.Router) {
			staff.Use(authMiddleware.RequireAuth)

			staff.Get("/catalog/services", catalogHandler.Services)
			staff.Get("/catalog/products", catalogHandler.Products)

			staff.Get("/inventory/allocation", inventoryHandler.AllocationPreview)
			staff.Get("/inventory/scan/{batchNumber}", inventoryHandler.Scan)
			staff.Get("/inventory/stock", inventoryHandler.Stock)

			staff.Post("/promotions/validate", promotionHandler.ValidateCode)
			staff.Get("/promotions", promotionHandler.List)

			staff.Get("/loyalty/{clientID}", loyaltyHandler.Balance)
			staff.Get("/loyalty/{clientID}/history", loyaltyHandler.History)

			staff.Route("/bills", func(b chi.Router) {
				b.Post("/preview", billingHandler.Preview)
				b.With(checkoutLimit, idem.Middleware,
					activityRecorder.Middleware(activity.RouteConfig{Resource: "bills"}),
				).Post("/", billingHandler.Create)
				b.Get("/", billingHandler.List)
				b.Get("/{id}", billingHandler.Get)
			})
		})

		v.Route("/admin", func(admin chi.Router) {
			admin.Use(authMiddleware.RequireAuth)
			admin.Use(authMiddleware.RequireRole(common.RoleBranchManager, common.RoleSystemAdmin))

			admin.Get("/inventory/export", inventoryHandler.Export)
			admin.Get("/reports/sales", reportHandler.Sales)
			admin.Get("/reports/sales/export", reportHandler.Export)
			admin.Get("/activity", activityHandler.List)

			admin.With(activityRecorder.Middleware(activity.RouteConfig{Resource: "admin.promotions"})).
				Post("/promotions", promotionHandler.Create)
			admin.With(activityRecorder.Middleware(activity.RouteConfig{Resource: "admin.promotions", ResourceIDParam: "id"})).
				Delete("/promotions/{id}", promotionHandler.Deactivate)
			admin.Post("/catalog/services", catalogHandler.CreateService)
			admin.Post("/catalog/products", catalogHandler.CreateProduct)

			admin.Group(func(sys chi.Router) {
				sys.Use(authMiddleware.RequireRole(common.RoleSystemAdmin))
				sys.Get("/branches", branchHandler.List)
				sys.Get("/branches/{id}", branchHandler.Get)
				sys.Post("/branches", branchHandler.Create)
				sys.Put("/branches/{id}", branchHandler.Update)
			})
		})
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		stop, stopCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stopCancel()
		<-stop.Done()
		health.SetReady(false)
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("shutdown server")
		}
	}()

	logger.Info().Str("addr", srv.Addr).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
	logger.Info().Msg("server shutdown complete")
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

type readinessChecker struct {
	db    *pgxpool.Pool
	redis *redis.Client
}

func (c readinessChecker) PingDB(ctx context.Context, timeout time.Duration) error {
	if c.db == nil {
		return errors.New("db not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.db.Ping(ctx)
}

func (c readinessChecker) PingRedis(ctx context.Context, timeout time.Duration) error {
	if c.redis == nil {
		return errors.New("redis not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.redis.Ping(ctx).Err()
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return parsed
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	return int64(envInt(key, int(fallback)))
}

func envDurationMillis(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Millisecond
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	mux.Handle("/allocs", pprof.Handler("allocs"))
	mux.Handle("/goroutine", pprof.Handler("goroutine"))
	mux.Handle("/heap", pprof.Handler("heap"))
	mux.Handle("/mutex", pprof.Handler("mutex"))
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
