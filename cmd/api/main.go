package main

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/corebooks/corebooks/internal/audit"
	"github.com/corebooks/corebooks/internal/ledger/adapter/memstore"
	"github.com/corebooks/corebooks/internal/ledger/adapter/repo"
	"github.com/corebooks/corebooks/internal/ledger/api"
	"github.com/corebooks/corebooks/internal/ledger/domain"
	"github.com/corebooks/corebooks/internal/ledger/service"
	"github.com/corebooks/corebooks/internal/platform/database"
	"github.com/corebooks/corebooks/internal/platform/logger"
	"github.com/corebooks/corebooks/internal/platform/middleware"
	"github.com/corebooks/corebooks/internal/platform/server"
)

func main() {
	// .env is optional; real deployments configure via config.yaml and
	// environment variables.
	_ = godotenv.Load()

	viper.SetConfigName("config")
	viper.AddConfigPath("configs")
	viper.AddConfigPath("../../configs")
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.mode", "debug")
	viper.SetDefault("storage.driver", "memory")
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.max_open_conns", 20)
	viper.SetDefault("audit.queue_size", 256)
	viper.AutomaticEnv()
	if err := viper.ReadInConfig(); err != nil {
		log.Printf("no config file found, using defaults: %v", err)
	}

	appLogger := logger.New(viper.GetString("server.mode"))
	defer func() { _ = appLogger.Sync() }()

	var store domain.Store
	switch driver := viper.GetString("storage.driver"); driver {
	case "postgres":
		db, err := database.NewPostgres(
			viper.GetString("database.dsn"),
			viper.GetInt("database.max_idle_conns"),
			viper.GetInt("database.max_open_conns"),
		)
		if err != nil {
			appLogger.Fatal("database connection failed", zap.Error(err))
		}
		if err := repo.Migrate(db); err != nil {
			appLogger.Fatal("database migration failed", zap.Error(err))
		}
		store = repo.New(db)
	case "memory":
		store = memstore.New()
	default:
		appLogger.Fatal("unknown storage driver", zap.String("driver", driver))
	}

	accountingSvc := service.NewAccountingService(store)
	reconcileSvc := service.NewReconciliationService(store, nil)
	billingSvc := service.NewBillingService(store)

	recorder := audit.NewRecorder(store, appLogger, viper.GetInt("audit.queue_size"))
	defer recorder.Close()

	auth := middleware.NewAuth(viper.GetStringMapString("auth.tokens"))
	handler := api.NewHandler(accountingSvc, reconcileSvc, billingSvc, appLogger)

	srv := server.New(
		appLogger,
		viper.GetString("server.port"),
		viper.GetString("server.mode"),
		handler,
		auth,
		recorder,
	)

	if err := srv.Run(); err != nil {
		appLogger.Fatal("server startup failed", zap.Error(err))
	}
}
