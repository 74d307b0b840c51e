package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/noah-isme/campus-coin-api/internal/chain"
	"github.com/noah-isme/campus-coin-api/internal/config"
	"github.com/noah-isme/campus-coin-api/internal/database"
	"github.com/noah-isme/campus-coin-api/internal/handler"
	"github.com/noah-isme/campus-coin-api/internal/middleware"
	"github.com/noah-isme/campus-coin-api/internal/models"
	"github.com/noah-isme/campus-coin-api/internal/repository"
	"github.com/noah-isme/campus-coin-api/internal/router"
	"github.com/noah-isme/campus-coin-api/internal/service"
	cloud "github.com/noah-isme/campus-coin-api/pkg/cloudinary"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.Activity{},
		&models.ActivityRegistration{},
		&models.Wallet{},
		&models.TransactionLog{},
	); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	gateway, closeGateway, err := buildGateway(cfg, logger)
	if err != nil {
		log.Fatalf("failed to initialise chain gateway: %v", err)
	}
	defer closeGateway()

	publisher := buildPublisher(cfg, logger)

	validate := validator.New(validator.WithRequiredStructEnabled())

	userRepo := repository.NewUserRepository(db)
	activityRepo := repository.NewActivityRepository(db)
	registrationRepo := repository.NewRegistrationRepository(db)
	walletRepo := repository.NewWalletRepository(db)
	txLogRepo := repository.NewTransactionLogRepository(db)

	walletService := service.NewWalletService(walletRepo, userRepo, txLogRepo, gateway, redisClient, cfg.BalanceCacheTTL, logger)
	settlementService := service.NewSettlementService(walletRepo, gateway, publisher, logger)
	registrationService := service.NewRegistrationService(registrationRepo, activityRepo, userRepo, walletService, settlementService, logger)
	activityService := service.NewActivityService(activityRepo, gateway, validate, logger)
	reconciliationService := service.NewReconciliationService(walletRepo, registrationRepo, walletService, publisher, cfg.SettleGrace, logger)

	var evidenceService service.EvidenceService
	if cfg.CloudinaryCloudName != "" {
		uploader, err := cloud.New(cloud.Config{
			CloudName: cfg.CloudinaryCloudName,
			APIKey:    cfg.CloudinaryAPIKey,
			APISecret: cfg.CloudinaryAPISecret,
			Folder:    cfg.CloudinaryUploadFolder,
		}, logger)
		if err != nil {
			log.Fatalf("failed to create cloudinary client: %v", err)
		}
		evidenceService = service.NewEvidenceService(uploader, 5, logger)
	}

	activityHandler := handler.NewActivityHandler(activityService, logger)
	registrationHandler := handler.NewRegistrationHandler(registrationService, evidenceService, validate, logger)
	walletHandler := handler.NewWalletHandler(walletService, validate, logger)
	reconciliationHandler := handler.NewReconciliationHandler(reconciliationService, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		ActivityHandler:       activityHandler,
		RegistrationHandler:   registrationHandler,
		WalletHandler:         walletHandler,
		ReconciliationHandler: reconciliationHandler,
		DB:                    db,
		Gateway:               gateway,
		JWTMiddleware:         middleware.JWTProtected(cfg.JWTSecret),
	})

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.ReconcileSchedule, func() {
		if _, err := reconciliationService.Run(context.Background()); err != nil {
			logger.Error().Err(err).Msg("scheduled reconciliation failed")
		}
	}); err != nil {
		log.Fatalf("invalid reconciliation schedule %q: %v", cfg.ReconcileSchedule, err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

// buildGateway picks the EVM gateway when a node URL is configured and falls
// back to the in-process gateway for development runs.
func buildGateway(cfg config.Config, logger zerolog.Logger) (chain.Gateway, func(), error) {
	if cfg.ChainNodeURL == "" {
		logger.Warn().Msg("no chain node configured, using in-process gateway")
		keypair, err := chain.GenerateKeypair()
		if err != nil {
			return nil, nil, err
		}
		return chain.NewMemoryGateway(keypair.Address), func() {}, nil
	}

	gw, err := chain.NewEVMGateway(chain.EVMConfig{
		NodeURL:         cfg.ChainNodeURL,
		AuthorityKey:    cfg.ChainAuthorityKey,
		CoinAddress:     cfg.CoinContractAddress,
		RegistryAddress: cfg.RegistryContractAddr,
		ChainID:         cfg.ChainID,
		QueueCapacity:   cfg.ChainQueueCapacity,
		ReceiptTimeout:  cfg.ChainReceiptTimeout,
	}, logger)
	if err != nil {
		return nil, nil, err
	}
	return gw, gw.Close, nil
}

func buildPublisher(cfg config.Config, logger zerolog.Logger) service.EventPublisher {
	if cfg.NATSURL == "" {
		return service.NopPublisher{}
	}
	conn, err := nats.Connect(cfg.NATSURL, nats.Name(cfg.AppName))
	if err != nil {
		logger.Warn().Err(err).Msg("nats unavailable, settlement events disabled")
		return service.NopPublisher{}
	}
	return service.NewNATSPublisher(conn, cfg.EventSubjectBase, logger)
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
