package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/ignatzorin/freelance-payments/internal/cache"
	"github.com/ignatzorin/freelance-payments/internal/config"
	"github.com/ignatzorin/freelance-payments/internal/db"
	"github.com/ignatzorin/freelance-payments/internal/goroutine"
	httpHandlers "github.com/ignatzorin/freelance-payments/internal/http/handlers"
	"github.com/ignatzorin/freelance-payments/internal/http/middleware"
	httpRouter "github.com/ignatzorin/freelance-payments/internal/http/router"
	"github.com/ignatzorin/freelance-payments/internal/idempotency"
	"github.com/ignatzorin/freelance-payments/internal/logger"
	"github.com/ignatzorin/freelance-payments/internal/metrics"
	"github.com/ignatzorin/freelance-payments/internal/outbox"
	"github.com/ignatzorin/freelance-payments/internal/payment"
	"github.com/ignatzorin/freelance-payments/internal/payment/paypal"
	"github.com/ignatzorin/freelance-payments/internal/payment/stripe"
	"github.com/ignatzorin/freelance-payments/internal/repository"
	"github.com/ignatzorin/freelance-payments/internal/service"
	"github.com/ignatzorin/freelance-payments/internal/storage"
	"github.com/ignatzorin/freelance-payments/internal/validation"
	"github.com/ignatzorin/freelance-payments/internal/ws"
)

const (
	accessTokenTTL   = 15 * time.Minute
	cacheCleanup     = time.Minute
	shutdownTimeout  = 10 * time.Second
	readHeaderTimout = 10 * time.Second
)

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: ошибка загрузки конфигурации: %v", err)
	}

	logger.Init(cfg.LogLevel)
	if cfg.Env == "development" {
		logger.SetTextFormatter()
	}

	// Суммы в JSON отдаются числами, а не строками.
	decimal.MarshalJSONWithoutQuotes = true
	if err := validation.Register(); err != nil {
		log.Fatalf("main: %v", err)
	}

	// Подключение к базе и миграции.
	dbConn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("main: ошибка подключения к базе: %v", err)
	}

	if err := db.RunMigrations(ctx, dbConn, cfg.MigrationsPath); err != nil {
		log.Fatalf("main: ошибка миграций: %v", err)
	}

	// Redis необязателен: без него ключи идемпотентности и лимиты живут в памяти процесса.
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = idempotency.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatalf("main: ошибка подключения к redis: %v", err)
		}
	}

	// Один кэш на процесс: курсы валют и in-memory идемпотентность.
	sharedCache := cache.New(cfg.IdempotencyTTL, nil)

	var idemStore idempotency.Store = idempotency.NewMemoryStore(sharedCache)
	if redisClient != nil {
		idemStore = idempotency.NewRedisStore(redisClient)
	}
	dedup, err := idempotency.NewManager(idemStore, cfg.IdempotencyTTL)
	if err != nil {
		log.Fatalf("main: %v", err)
	}

	rateStore, err := middleware.NewRateLimitStore(redisClient)
	if err != nil {
		log.Fatalf("main: %v", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.New(registry)

	evidence, err := storage.NewEvidenceStorage(cfg.EvidenceStoragePath, cfg.MaxUploadSizeMB)
	if err != nil {
		log.Fatalf("main: не удалось подготовить хранилище вложений: %v", err)
	}

	tokenManager := service.NewTokenManager(cfg.JWTSecret, accessTokenTTL)

	// Outbox.
	outboxRepo := outbox.NewRepository(dbConn)
	emitter := outbox.NewEmitter(outboxRepo)

	// Репозитории.
	walletDefaults := repository.WalletDefaults{
		MinWithdrawalAmount:     cfg.Payments.WithdrawalMinAmount,
		WithdrawalFeePercentage: cfg.Payments.WithdrawalFeePercent,
		Currency:                cfg.Payments.DefaultCurrency,
	}
	intentRepo := repository.NewPaymentIntentRepository(dbConn)
	serviceRepo := repository.NewServiceRepository(dbConn)
	ledgerRepo := repository.NewLedgerRepository(dbConn, walletDefaults, emitter)
	walletRepo := repository.NewWalletRepository(dbConn, walletDefaults)
	orderRepo := repository.NewOrderRepository(dbConn, walletDefaults, emitter)
	settlementRepo := repository.NewSettlementRepository(dbConn, emitter)
	disputeRepo := repository.NewDisputeRepository(dbConn, emitter)
	notificationRepo := repository.NewNotificationRepository(dbConn)

	// Вебсокеты и уведомления.
	hub := ws.NewHub()
	notificationService := service.NewNotificationService(notificationRepo, hub)

	dispatcher := outbox.NewDispatcher(outboxRepo, cfg.Outbox.PollInterval, cfg.Outbox.BatchSize, collector,
		outbox.LogHandler(),
		outbox.NotifyHandler(notificationService),
	)

	// Провайдеры подключаются только при наличии ключей.
	var providers []payment.Provider
	if cfg.Stripe.Enabled() {
		p, err := stripe.New(cfg.Stripe.SecretKey)
		if err != nil {
			log.Fatalf("main: stripe: %v", err)
		}
		providers = append(providers, p)
	} else {
		logger.Log.Warn("main: STRIPE_SECRET_KEY не задан, оплата через stripe отключена")
	}
	if cfg.PayPal.Enabled() {
		p, err := paypal.New(cfg.PayPal.ClientID, cfg.PayPal.ClientSecret, cfg.PayPal.Mode)
		if err != nil {
			log.Fatalf("main: paypal: %v", err)
		}
		providers = append(providers, p)
	} else {
		logger.Log.Warn("main: PAYPAL_CLIENT_ID не задан, оплата через paypal отключена")
	}

	// Сервисы.
	var rateSource service.RateSource
	if cfg.Payments.CurrencyRatesURL != "" {
		rateSource = service.NewHTTPRateSource(cfg.Payments.CurrencyRatesURL)
	}
	currencyService := service.NewCurrencyService(sharedCache, rateSource, cfg.Payments.CurrencyRatesTTL)
	ledgerService := service.NewLedgerService(ledgerRepo, walletRepo, service.LedgerSettings{
		CommissionPercent:    cfg.Payments.CommissionPercent,
		WithdrawalFeePercent: cfg.Payments.WithdrawalFeePercent,
	}, collector)
	gateway := service.NewPaymentGateway(intentRepo, serviceRepo, emitter, currencyService, ledgerService, dedup, collector,
		service.GatewaySettings{
			DefaultCurrency: cfg.Payments.DefaultCurrency,
			DevBypassAuth:   cfg.Payments.DevBypassAuth,
			DevUserID:       cfg.Payments.DevUserID,
		},
		providers...,
	)
	settlementService := service.NewSettlementService(settlementRepo, collector)
	orderService := service.NewOrderService(orderRepo)
	disputeService := service.NewDisputeService(disputeRepo, settlementService, orderRepo, evidence)

	// HTTP хэндлеры.
	var redisPinger httpHandlers.Pinger
	if redisClient != nil {
		redisPinger = httpHandlers.PingerFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}

	engine := httpRouter.SetupRouter(cfg, httpRouter.Deps{
		Tokens:         tokenManager,
		RateLimitStore: rateStore,
		Idempotency:    idemStore,
		Metrics:        collector,
		Registry:       registry,
	}, httpRouter.Handlers{
		Health:        httpHandlers.NewHealthHandler(dbConn, redisPinger),
		Payment:       httpHandlers.NewPaymentHandler(gateway),
		StripeWebhook: httpHandlers.NewStripeWebhookHandler(gateway, cfg.Stripe.WebhookSecret),
		Order:         httpHandlers.NewOrderHandler(orderService, settlementService),
		Wallet:        httpHandlers.NewWalletHandler(ledgerService),
		Dispute:       httpHandlers.NewDisputeHandler(disputeService),
		Notification:  httpHandlers.NewNotificationHandler(notificationService),
		WS:            httpHandlers.NewWSHandler(hub, tokenManager, cfg.AllowedOrigins),
	})

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           engine,
		ReadHeaderTimeout: readHeaderTimout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(goroutine.Guard(gctx, "ws hub", hub.Run))
	g.Go(goroutine.Guard(gctx, "outbox dispatcher", dispatcher.Run))
	g.Go(goroutine.Guard(gctx, "cache cleanup", func(ctx context.Context) error {
		return sharedCache.RunCleanup(ctx, cacheCleanup)
	}))
	g.Go(func() error {
		logger.Log.Infof("main: HTTP сервер запущен на порту %s", cfg.HTTPPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	// Завершаем сервер при получении сигнала или падении фоновой задачи.
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	runErr := g.Wait()
	if err := multierr.Combine(runErr, closeResources(dbConn, redisClient)); err != nil {
		logger.Log.WithError(err).Error("main: сервер завершился с ошибкой")
		log.Fatalf("main: %v", err)
	}
	logger.Log.Info("main: сервер остановлен")
}

// closeResources закрывает соединения с базой и redis.
func closeResources(dbConn *sqlx.DB, redisClient *redis.Client) error {
	err := dbConn.Close()
	if redisClient != nil {
		err = multierr.Append(err, redisClient.Close())
	}
	return err
}
