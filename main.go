package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	_ "github.com/quarrydata/sync-engine/pkg/adapters/source/mssql"
	_ "github.com/quarrydata/sync-engine/pkg/adapters/source/mysql"
	_ "github.com/quarrydata/sync-engine/pkg/adapters/source/postgres"
	"github.com/quarrydata/sync-engine/pkg/config"
	"github.com/quarrydata/sync-engine/pkg/crypto"
	"github.com/quarrydata/sync-engine/pkg/database"
	"github.com/quarrydata/sync-engine/pkg/handlers"
	"github.com/quarrydata/sync-engine/pkg/logging"
	"github.com/quarrydata/sync-engine/pkg/middleware"
	"github.com/quarrydata/sync-engine/pkg/repositories"
	"github.com/quarrydata/sync-engine/pkg/services"
	"github.com/quarrydata/sync-engine/pkg/warehouse"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.NewLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting sync-engine",
		zap.String("version", cfg.Version),
		zap.String("env", cfg.Env),
		zap.String("database", logging.SanitizeConnectionString(cfg.Database.ConnectionString())))

	// Migrations run over database/sql; the pgx stdlib driver shares the
	// warehouse DSN with the pool below.
	migrationDB, err := sql.Open("pgx", cfg.Database.ConnectionString())
	if err != nil {
		logger.Fatal("Failed to open migration connection", zap.Error(err))
	}
	if err := database.RunMigrations(migrationDB, cfg.MigrationsPath, logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}
	if err := migrationDB.Close(); err != nil {
		logger.Warn("Failed to close migration connection", zap.Error(err))
	}

	db, err := database.Connect(ctx, &database.Config{
		URL:            cfg.Database.ConnectionString(),
		MaxConnections: cfg.Database.MaxConnections,
	})
	if err != nil {
		logger.Fatal("Failed to connect to warehouse", zap.Error(err))
	}
	defer db.Close()

	encryptor, err := crypto.NewEncryptor(cfg.CredentialsKey)
	if err != nil {
		logger.Fatal("Failed to initialize credential encryption", zap.Error(err))
	}

	// Repositories
	dsRepo := repositories.NewDatasourceRepository(db)
	taskRepo := repositories.NewSyncTaskRepository(db)
	metaRepo := repositories.NewTableMetadataRepository(db)

	// Services
	loader := warehouse.NewLoader(db, logger)
	dsService := services.NewDatasourceService(dsRepo, encryptor, cfg.Sync, logger)
	metadataService := services.NewMetadataService(metaRepo, taskRepo, loader, logger)
	syncService := services.NewSyncService(dsRepo, metadataService, loader, encryptor, cfg.Sync, logger)
	taskService := services.NewSyncTaskService(taskRepo, logger)

	// Handlers
	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, logger).RegisterRoutes(mux)
	handlers.NewDatasourcesHandler(dsService, logger).RegisterRoutes(mux)
	handlers.NewSyncHandler(syncService, logger).RegisterRoutes(mux)
	handlers.NewSyncTasksHandler(taskService, metadataService, logger).RegisterRoutes(mux)
	handlers.NewMetadataHandler(metadataService, logger).RegisterRoutes(mux)

	if cfg.Scheduler.Enabled {
		scheduler := services.NewScheduler(taskRepo, syncService, cfg.Scheduler.PollSeconds, logger)
		scheduler.Run(ctx)
	} else {
		logger.Info("Sync scheduler disabled")
	}

	server := &http.Server{
		Addr:              cfg.BindAddr + ":" + cfg.Port,
		Handler:           middleware.RequestLogger(logger)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("HTTP server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
	}
}
