package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/salon-pos/internal/billing"
	"github.com/noah-isme/salon-pos/internal/branch"
	"github.com/noah-isme/salon-pos/internal/common"
	"github.com/noah-isme/salon-pos/internal/config"
	"github.com/noah-isme/salon-pos/internal/inventory"
	"github.com/noah-isme/salon-pos/internal/lock"
	"github.com/noah-isme/salon-pos/internal/notify"
	"github.com/noah-isme/salon-pos/internal/obs"
)

// receiptStore adapts the billing service to the notify worker's view of a
// receipt.
type receiptStore struct {
	bills *billing.Service
}

func (s receiptStore) Receipt(ctx context.Context, billID string) (notify.Receipt, error) {
	bill, branchName, err := s.bills.GetForReceipt(ctx, billID)
	if err != nil {
		return notify.Receipt{}, err
	}
	receipt := notify.Receipt{
		BillID:        bill.ID,
		ReceiptNumber: bill.ReceiptNumber,
		BranchName:    branchName,
		ClientName:    bill.ClientName,
		ClientEmail:   bill.ClientEmail,
		Subtotal:      bill.Totals.Subtotal,
		Discount:      bill.Totals.DiscountAmount + bill.Totals.PromotionDiscount + bill.Totals.LoyaltyDiscount,
		Total:         bill.Totals.Total,
		PaymentMethod: bill.PaymentMethod,
		CreatedAt:     bill.CreatedAt,
	}
	for _, item := range bill.Items {
		receipt.Lines = append(receipt.Lines, notify.ReceiptLine{
			Name:   item.Name,
			Qty:    item.Qty,
			Amount: item.Amount,
		})
	}
	return receipt, nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("component", "worker").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool := mustInitDatabase(ctx, cfg, logger)
	defer pool.Close()

	redisClient := mustInitRedis(ctx, cfg, logger)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()

	var sender common.EmailSender = common.NopEmailSender{}
	if cfg.EmailEnabled {
		sender = notify.NewHTTPEmailSender(cfg.EmailProviderURL, cfg.EmailAPIKey, cfg.EmailFrom, 10*time.Second)
	}

	billingService := &billing.Service{Pool: pool}
	inventoryService := &inventory.Service{Pool: pool}

	receiptHandler := notify.ReceiptEmailHandler{
		Store:  receiptStore{bills: billingService},
		Sender: sender,
		Logger: &logger,
	}
	lowStockHandler := notify.LowStockHandler{
		Inventory: inventoryService,
		Threshold: cfg.LowStockThreshold,
		AlertTo:   envOrDefault("LOW_STOCK_ALERT_TO", ""),
		Sender:    sender,
		Logger:    &logger,
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	srv := asynq.NewServer(
		asynq.RedisClientOpt{Addr: redisOpts.Addr, Password: redisOpts.Password, DB: redisOpts.DB},
		asynq.Config{
			Concurrency: envInt("WORKER_CONCURRENCY", 5),
			Queues:      map[string]int{"default": 1},
			Logger:      asynqLogger{logger},
		},
	)
	mux := asynq.NewServeMux()
	mux.HandleFunc(notify.TypeReceiptEmail, receiptHandler.Handle)
	mux.HandleFunc(notify.TypeLowStockScan, lowStockHandler.Handle)

	// Periodic low-stock sweep across branches. The redis lock keeps
	// multiple worker replicas from scanning the same cycle.
	locker := lock.Locker{R: redisClient}
	taskClient := asynq.NewClient(asynq.RedisClientOpt{Addr: redisOpts.Addr, Password: redisOpts.Password, DB: redisOpts.DB})
	defer func() { _ = taskClient.Close() }()
	go runLowStockSweep(ctx, logger, locker, cfg, taskClient, &branch.Service{Pool: pool})

	logger.Info().Msg("worker starting")
	if err := srv.Run(mux); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("worker stopped with error")
	} else {
		logger.Info().Msg("worker shutdown complete")
	}
}

func runLowStockSweep(ctx context.Context, logger zerolog.Logger, locker lock.Locker, cfg *config.Config, client *asynq.Client, branches *branch.Service) {
	interval := time.Duration(envInt("LOW_STOCK_SWEEP_MINUTES", 60)) * time.Minute
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		err := locker.WithLock(ctx, "sweep:low-stock", cfg.CheckoutLockTTL, func(ctx context.Context) error {
			all, err := branches.List(ctx)
			if err != nil {
				return err
			}
			for _, b := range all {
				if b.Status != "active" {
					continue
				}
				task, err := notify.NewLowStockScanTask(b.ID)
				if err != nil {
					return err
				}
				if _, err := client.EnqueueContext(ctx, task); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			logger.Error().Err(err).Msg("low stock sweep")
		}
	}
}

type asynqLogger struct {
	l zerolog.Logger
}

func (a asynqLogger) Debug(args ...interface{}) { a.l.Debug().Msgf("%v", args) }
func (a asynqLogger) Info(args ...interface{})  { a.l.Info().Msgf("%v", args) }
func (a asynqLogger) Warn(args ...interface{})  { a.l.Warn().Msgf("%v", args) }
func (a asynqLogger) Error(args ...interface{}) { a.l.Error().Msgf("%v", args) }
func (a asynqLogger) Fatal(args ...interface{}) { a.l.Fatal().Msgf("%v", args) }

func mustInitDatabase(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *pgxpool.Pool {
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse database config")
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}
	return pool
}

func mustInitRedis(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *redis.Client {
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}
	return redisClient
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

func envInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return parsed
		}
	}
	return fallback
}
