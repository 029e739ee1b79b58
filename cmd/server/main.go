package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/marketplace-backend/internal/audit"
	"github.com/ignatzorin/marketplace-backend/internal/config"
	"github.com/ignatzorin/marketplace-backend/internal/db"
	"github.com/ignatzorin/marketplace-backend/internal/domain/valueobject"
	httpHandlers "github.com/ignatzorin/marketplace-backend/internal/http/handlers"
	httpRouter "github.com/ignatzorin/marketplace-backend/internal/http/router"
	"github.com/ignatzorin/marketplace-backend/internal/logger"
	"github.com/ignatzorin/marketplace-backend/internal/notify"
	"github.com/ignatzorin/marketplace-backend/internal/payment"
	"github.com/ignatzorin/marketplace-backend/internal/ratelimit"
	"github.com/ignatzorin/marketplace-backend/internal/repository"
	"github.com/ignatzorin/marketplace-backend/internal/service"
	"github.com/ignatzorin/marketplace-backend/internal/storage"
	"github.com/ignatzorin/marketplace-backend/internal/ws"
)

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: ошибка загрузки конфигурации: %v", err)
	}

	// Инициализация логгера
	logLevel := "info"
	if cfg.Env == "development" {
		logLevel = "debug"
		logger.Init(logLevel)
		logger.SetTextFormatter()
	} else {
		logger.Init(logLevel)
	}

	// Подключение к базе и миграции.
	dbConn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("main: ошибка подключения к базе: %v", err)
	}
	defer safeClose(dbConn)

	if err := db.RunMigrations(ctx, dbConn, cfg.MigrationsPath); err != nil {
		log.Fatalf("main: ошибка миграций: %v", err)
	}

	// Вспомогательные сервисы.
	tokenManager := service.NewTokenManager(cfg.JWTSecret, cfg.RefreshSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)

	documentStorage, err := storage.NewDocumentStorage(cfg.DocumentStoragePath, cfg.MaxUploadSizeMB)
	if err != nil {
		log.Fatalf("main: не удалось подготовить файловое хранилище: %v", err)
	}

	paymentClient := payment.NewClient(cfg.PaymentBaseURL, cfg.PaymentSecretKey, cfg.PaymentWebhookSecret, cfg.PaymentTimeout)
	auditSink := audit.NewLogSink()
	rateLimiter := ratelimit.NewMemoryLimiter(
		ratelimit.Quota{Limit: cfg.RateLimitLimit, Period: cfg.RateLimitPeriod},
		ratelimit.DefaultQuotas(),
	)

	// Репозитории.
	userRepo := repository.NewUserRepository(dbConn)
	productRepo := repository.NewProductRepository(dbConn)
	orderRepo := repository.NewOrderRepository(dbConn)
	disputeRepo := repository.NewDisputeRepository(dbConn)
	sellerAppRepo := repository.NewSellerApplicationRepository(dbConn)
	supportRepo := repository.NewSupportRepository(dbConn)
	notificationRepo := repository.NewNotificationRepository(dbConn)

	notificationService := service.NewNotificationService(notificationRepo)

	// Вебсокеты.
	hub := ws.NewHub(ctx)
	hub.SetNotificationSaver(ws.NewNotificationServiceAdapter(notificationService))
	go hub.Run()

	// Каналы уведомлений: push через вебсокеты плюс внешние каналы
	// администратора (Telegram, SMS), если они настроены.
	var senders []notify.Sender
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.TelegramBotToken, cfg.TelegramChatID, cfg.NotifyTimeout))
	}
	if cfg.SMSGatewayURL != "" && cfg.SMSAPIKey != "" {
		senders = append(senders, notify.NewSMSSender(cfg.SMSGatewayURL, cfg.SMSAPIKey, cfg.SMSNotifyPhone, cfg.NotifyTimeout))
	}
	dispatcher := notify.NewCompositeDispatcher(
		ws.NewOrderNotifier(hub),
		notify.NewMultiDispatcher(cfg.NotifyTimeout, senders...),
	)

	// Сервисы.
	fees := valueobject.ProcessorFees{Percent: cfg.ProcessorFeePercent, Fixed: cfg.ProcessorFeeFixed}
	authService := service.NewAuthService(userRepo, tokenManager, auditSink)
	orderService := service.NewOrderService(
		orderRepo, productRepo, paymentClient, dispatcher, auditSink, rateLimiter,
		cfg.CommissionRate, fees, cfg.PaymentCurrency, cfg.PaymentSuccessURL, cfg.PaymentCancelURL,
	)
	disputeService := service.NewDisputeService(disputeRepo, orderRepo, paymentClient, dispatcher, auditSink, rateLimiter)
	sellerService := service.NewSellerService(sellerAppRepo, userRepo, dispatcher, auditSink, rateLimiter, cfg.SellerReapplyCooldown)
	supportService := service.NewSupportService(supportRepo, dispatcher, rateLimiter)

	// HTTP хэндлеры.
	authHandler := httpHandlers.NewAuthHandler(authService)
	profileHandler := httpHandlers.NewProfileHandler(userRepo, rateLimiter)
	catalogHandler := httpHandlers.NewCatalogHandler(productRepo)
	orderHandler := httpHandlers.NewOrderHandler(orderService)
	paymentHandler := httpHandlers.NewPaymentHandler(orderService, paymentClient)
	disputeHandler := httpHandlers.NewDisputeHandler(disputeService)
	sellerHandler := httpHandlers.NewSellerHandler(sellerService)
	supportHandler := httpHandlers.NewSupportHandler(supportService)
	notificationHandler := httpHandlers.NewNotificationHandler(notificationService)
	uploadHandler := httpHandlers.NewUploadHandler(documentStorage)
	wsHandler := httpHandlers.NewWSHandler(hub, tokenManager)
	healthHandler := httpHandlers.NewHealthHandler(dbConn)

	// Роутер.
	engine := httpRouter.SetupRouter(
		cfg,
		authHandler,
		profileHandler,
		catalogHandler,
		orderHandler,
		paymentHandler,
		disputeHandler,
		sellerHandler,
		supportHandler,
		notificationHandler,
		uploadHandler,
		wsHandler,
		healthHandler,
		tokenManager,
	)

	server := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: engine,
	}

	// Завершаем сервер при получении сигнала.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("main: ошибка остановки http сервера: %v", err)
		}
	}()

	log.Printf("main: HTTP сервер запущен на порту %s", cfg.HTTPPort)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("main: сервер завершился с ошибкой: %v", err)
	}
}

// safeClose закрывает соединение с базой.
func safeClose(db *sqlx.DB) {
	if err := db.Close(); err != nil {
		log.Printf("main: ошибка закрытия базы: %v", err)
	}
}
