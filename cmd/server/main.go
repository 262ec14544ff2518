package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/garyjia/fraudguard/internal/application/dispatcher"
	"github.com/garyjia/fraudguard/internal/application/port"
	"github.com/garyjia/fraudguard/internal/application/service"
	"github.com/garyjia/fraudguard/internal/config"
	"github.com/garyjia/fraudguard/internal/document"
	"github.com/garyjia/fraudguard/internal/infrastructure/dataset"
	"github.com/garyjia/fraudguard/internal/infrastructure/external/fraudapi"
	"github.com/garyjia/fraudguard/internal/infrastructure/external/lark"
	"github.com/garyjia/fraudguard/internal/infrastructure/persistence/repository"
	"github.com/garyjia/fraudguard/internal/infrastructure/persistence/sqlite"
	httpapi "github.com/garyjia/fraudguard/internal/interfaces/http"
	"github.com/garyjia/fraudguard/pkg/database"
	"github.com/garyjia/fraudguard/pkg/utils"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the YAML config file")
	flag.Parse()

	if _, err := os.Stat(*configPath); err != nil {
		*configPath = ""
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
		Service:    "fraudguard",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	kv := utils.NewKVLogger(logger)

	logger.Info("Starting fraud review server",
		zap.String("version", "1.0.0"),
		zap.Int("port", cfg.Server.Port),
		zap.String("fraud_api", cfg.FraudAPI.Endpoint))

	// Initialize database
	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	migrator := database.NewMigrator(db, logger)
	if err := migrator.RunMigrations(database.MigrationsFS(cfg.Database.MigrationsDir)); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	// Persistence
	claimRepo := repository.NewClaimRepository(db.DB, logger)
	txManager := sqlite.NewTxManager(db)

	// Events
	events := dispatcher.NewDispatcher(dispatcher.WithLogger(kv))
	defer events.Close()

	// Outbound integrations
	fraudClient := fraudapi.NewClient(fraudapi.Config{
		Endpoint: cfg.FraudAPI.Endpoint,
		Timeout:  cfg.FraudAPI.Timeout,
	}, logger)

	var sender port.MessageSender
	if cfg.Lark.Enabled {
		larkClient := lark.NewSDKClient(lark.Config{
			AppID:     cfg.Lark.AppID,
			AppSecret: cfg.Lark.AppSecret,
			ChatID:    cfg.Lark.ChatID,
			Timeout:   cfg.Lark.APITimeout,
			BaseURL:   cfg.Lark.BaseURL,
		})
		sender = lark.NewMessenger(larkClient, cfg.Lark.ChatID, logger)
		logger.Info("Lark notifications enabled", zap.String("chat_id", cfg.Lark.ChatID))
	}

	// Application services
	board := service.NewUploadBoard()
	uploads := service.NewUploadOrchestrator(board, fraudClient, events, kv,
		service.WithConcurrency(cfg.Upload.Concurrency))

	service.NewNotificationService(sender, kv).Register(events)
	service.NewClaimRecorder(board, claimRepo, kv).Register(events)

	claims := service.NewClaimsService(claimRepo, txManager,
		dataset.NewExcel(cfg.Dataset.Sheet, logger), cfg.Dataset.Path, kv)
	if _, err := claims.Seed(context.Background()); err != nil {
		logger.Fatal("Failed to seed claims", zap.Error(err))
	}

	analytics := service.NewAnalyticsService(claimRepo, kv)

	// HTTP server
	server := httpapi.NewServer(httpapi.ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		// Let an in-flight fraud API call finish before batches are cancelled
		BatchDrainTimeout: cfg.FraudAPI.Timeout + cfg.Server.ShutdownTimeout,
		MaxUploadSize:     cfg.Server.MaxUploadSize,
		AllowedOrigins:    cfg.Server.AllowedOrigins,
	}, httpapi.Services{
		Uploads:   uploads,
		Inspector: document.NewInspector(logger),
		Claims:    claims,
		Analytics: analytics,
	}, kv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil {
		logger.Error("Server stopped with error", zap.Error(err))
		return
	}

	logger.Info("Server exited successfully")
}
