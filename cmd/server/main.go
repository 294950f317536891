package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"chainhub.backend/internal/config"
	"chainhub.backend/internal/infrastructure/cache"
	"chainhub.backend/internal/infrastructure/chainabstraction"
	"chainhub.backend/internal/infrastructure/models"
	"chainhub.backend/internal/infrastructure/repositories"
	"chainhub.backend/internal/interfaces/http/handlers"
	"chainhub.backend/internal/interfaces/http/middleware"
	"chainhub.backend/internal/usecases"
	"chainhub.backend/pkg/logger"
	"chainhub.backend/pkg/redis"
)

var (
	loadDotenv = godotenv.Load
	loadCfg    = config.Load
	initLog    = logger.Init
	initRedis  = redis.Init
	openDB     = func(dsn string) (*gorm.DB, error) {
		return gorm.Open(postgres.New(postgres.Config{
			DSN:                  dsn,
			PreferSimpleProtocol: true,
		}), &gorm.Config{
			PrepareStmt: false,
		})
	}
	runServer = func(r *gin.Engine, port string) error { return r.Run(":" + port) }
	getStdDB  = func(db *gorm.DB) (*sql.DB, error) { return db.DB() }
)

func main() {
	if err := runMainProcess(); err != nil {
		log.Fatal(err)
	}
}

func runMainProcess() error {
	// Load .env file
	if err := loadDotenv(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Load configuration
	cfg := loadCfg()

	// Initialize Logger
	initLog(cfg.Server.Env)
	logger.Info(context.Background(), "Logger initialized", zap.String("env", cfg.Server.Env))

	// Initialize Redis
	if err := initRedis(cfg.Redis.URL, cfg.Redis.Password); err != nil {
		logger.Warn(context.Background(), "Redis unavailable, caching disabled", zap.Error(err))
	} else {
		logger.Info(context.Background(), "Redis initialized")
	}

	// Set Gin mode
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Connect to database using GORM
	dsn := cfg.Database.URL()
	db, err := openDB(dsn)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := getStdDB(db)
	if err != nil {
		return fmt.Errorf("failed to get generic database object: %w", err)
	}
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		log.Printf("⚠️ Database not available: %v (endpoints will return errors)", err)
	} else {
		log.Println("✅ Connected to PostgreSQL via GORM")
	}

	if err := db.AutoMigrate(
		&models.Profile{},
		&models.LinkedAccount{},
		&models.VirtualSession{},
		&models.Operation{},
		&models.Transaction{},
		&models.Batch{},
	); err != nil {
		log.Printf("⚠️ Auto-migration failed: %v", err)
	}

	// Initialize repositories
	profileRepo := repositories.NewProfileRepository(db)
	sessionRepo := repositories.NewVirtualSessionRepository(db)
	operationRepo := repositories.NewOperationRepository(db)
	transactionRepo := repositories.NewTransactionRepository(db)
	batchRepo := repositories.NewBatchRepository(db)
	uow := repositories.NewUnitOfWork(db)

	// Initialize cache layer
	cacheLayer := cache.New(redis.GetClient())
	coalescer := cache.NewCoalescer()

	// Initialize chain abstraction client
	providerClient := chainabstraction.NewClient(chainabstraction.Config{
		BaseURL:      cfg.Provider.BaseURL,
		WebsocketURL: cfg.Provider.WebsocketURL,
		APIKey:       cfg.Provider.APIKey,
		CallTimeout:  cfg.Provider.CallTimeout,
	})

	// Initialize usecases
	sessionPool := usecases.NewSessionPool(providerClient, sessionRepo)
	clusterManager := usecases.NewClusterManager(profileRepo, providerClient, cacheLayer, sessionPool, cfg.Provider.DefaultChainID)
	portfolioUsecase := usecases.NewPortfolioUsecase(sessionPool, providerClient, cacheLayer, coalescer, cfg.Cache.PortfolioTTL, cfg.Provider.DefaultChainID)
	operationBuilder := usecases.NewOperationBuilder(sessionPool, providerClient, cacheLayer, operationRepo, cfg.Cache.TokenIDTTL)
	submissionMonitor := usecases.NewSubmissionMonitor(providerClient, operationRepo, transactionRepo, portfolioUsecase)
	batchOrchestrator := usecases.NewBatchOrchestrator(clusterManager, operationBuilder, submissionMonitor, profileRepo, operationRepo, batchRepo, uow)

	// Initialize handlers
	profileHandler := handlers.NewProfileHandler(profileRepo, clusterManager, portfolioUsecase)
	operationHandler := handlers.NewOperationHandler(profileRepo, operationRepo, clusterManager, operationBuilder, submissionMonitor)
	batchHandler := handlers.NewBatchHandler(batchOrchestrator)

	// Initialize router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.LoggerMiddleware())

	registerHealthRoute(r)
	registerMetricsRoute(r)
	registerAPIV1Routes(r, routeDeps{
		profileHandler:   profileHandler,
		operationHandler: operationHandler,
		batchHandler:     batchHandler,
	})

	// Graceful shutdown: stop the status subscriptions and drain the monitor
	// queue before exiting.
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Println("🛑 Shutting down server...")
		providerClient.Close()
		submissionMonitor.Close()
		sqlDB.Close()
		os.Exit(0)
	}()

	// Start server
	log.Printf("🚀 ChainHub Backend starting on port %s", cfg.Server.Port)
	log.Printf("📚 API: http://localhost:%s/api/v1", cfg.Server.Port)
	log.Printf("❤️ Health: http://localhost:%s/health", cfg.Server.Port)

	if err := runServer(r, cfg.Server.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}
