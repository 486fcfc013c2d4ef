package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/JoeShih716/go-bank-ledger/internal/app/identity"
	http_adapter "github.com/JoeShih716/go-bank-ledger/internal/app/ledger/adapter/in/http"
	memory_adapter "github.com/JoeShih716/go-bank-ledger/internal/app/ledger/adapter/out/memory"
	mysql_adapter "github.com/JoeShih716/go-bank-ledger/internal/app/ledger/adapter/out/mysql"
	"github.com/JoeShih716/go-bank-ledger/internal/app/ledger/adapter/out/webhook"
	"github.com/JoeShih716/go-bank-ledger/internal/app/ledger/usecase"
	"github.com/JoeShih716/go-bank-ledger/pkg/kvcache"
	"github.com/JoeShih716/go-bank-ledger/pkg/mysql"
	"github.com/JoeShih716/go-bank-ledger/pkg/wal"
)

// StorageMode selects the AccountStore/TransactionLog backing.
type StorageMode string

const (
	StorageModeMySQL  StorageMode = "mysql"
	StorageModeMemory StorageMode = "memory"
)

type Config struct {
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	Storage struct {
		Mode    StorageMode `yaml:"mode"`
		WALPath string      `yaml:"wal_path"`
	} `yaml:"storage"`
	MySQL mysql.Config        `yaml:"mysql"`
	Redis kvcache.RedisConfig `yaml:"redis"`
	Alert struct {
		WebhookURL string `yaml:"webhook_url"`
	} `yaml:"alert"`
	Coordinator struct {
		MaxRetries int           `yaml:"max_retries"`
		RetryBase  time.Duration `yaml:"retry_base"`
		OpTimeout  time.Duration `yaml:"op_timeout"`
	} `yaml:"coordinator"`
}

func main() {
	cfg := loadConfig()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Sync()

	// Outbound adapters: account store + transaction log.
	var (
		accounts usecase.AccountStore
		txlog    usecase.TransactionLog
	)
	switch cfg.Storage.Mode {
	case StorageModeMySQL:
		dbClient, err := mysql.NewClient(cfg.MySQL, logger)
		if err != nil {
			logger.Fatal("mysql connect failed", zap.Error(err))
		}
		defer dbClient.Close()
		if err := mysql_adapter.Migrate(dbClient); err != nil {
			logger.Fatal("mysql migration failed", zap.Error(err))
		}
		accounts = mysql_adapter.NewStore(dbClient)
		txlog = mysql_adapter.NewLog(dbClient)
		logger.Info("using mysql storage")
	case StorageModeMemory:
		walFile, err := wal.NewWAL(cfg.Storage.WALPath)
		if err != nil {
			logger.Fatal("wal open failed", zap.Error(err))
		}
		defer walFile.Close()
		memLog, err := memory_adapter.NewLog(walFile)
		if err != nil {
			logger.Fatal("wal replay failed", zap.Error(err))
		}
		accounts = memory_adapter.NewStore()
		txlog = memLog
		logger.Info("using in-memory storage", zap.String("wal", cfg.Storage.WALPath))
	default:
		logger.Fatal("invalid storage mode", zap.String("mode", string(cfg.Storage.Mode)))
	}

	// Identity collaborator: revocation list in Redis when configured,
	// in-process cache otherwise.
	var cache kvcache.Cache
	if cfg.Redis.Addr != "" {
		redisCache, err := kvcache.NewRedis(cfg.Redis)
		if err != nil {
			logger.Fatal("redis connect failed", zap.Error(err))
		}
		defer redisCache.Close()
		cache = redisCache
	} else {
		cache = kvcache.NewMemory()
	}
	resolver := identity.NewResolver(identity.NewRevocationList(cache), accounts)

	alerter := webhook.NewAlerter(cfg.Alert.WebhookURL, logger)

	core := usecase.NewTransferCoordinator(accounts, txlog, alerter, logger,
		usecase.WithRetryBudget(cfg.Coordinator.MaxRetries, cfg.Coordinator.RetryBase),
		usecase.WithTimeout(cfg.Coordinator.OpTimeout),
	)

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	http_adapter.NewServer(core, logger).Register(app, resolver)

	go func() {
		logger.Info("starting http server", zap.String("addr", cfg.Server.Addr))
		if err := app.Listen(cfg.Server.Addr); err != nil {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	if err := app.Shutdown(); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}
	logger.Info("server exited")
}

func loadConfig() Config {
	path := os.Getenv("LEDGER_CONFIG")
	if path == "" {
		path = "config/config.yaml"
	}
	cfgData, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("Failed to read config file: %v", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(cfgData, &cfg); err != nil {
		log.Fatalf("Failed to parse config: %v", err)
	}

	// Backfill defaults the yaml left out.
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Storage.Mode == "" {
		cfg.Storage.Mode = StorageModeMemory
	}
	if cfg.Storage.WALPath == "" {
		cfg.Storage.WALPath = "wal.log"
	}
	if cfg.MySQL.MaxOpenConns == 0 {
		cfg.MySQL.MaxOpenConns = 100
	}
	if cfg.MySQL.MaxIdleConns == 0 {
		cfg.MySQL.MaxIdleConns = 10
	}
	if cfg.MySQL.ConnMaxLifetime == 0 {
		cfg.MySQL.ConnMaxLifetime = 30 * time.Minute
	}
	if cfg.Coordinator.MaxRetries == 0 {
		cfg.Coordinator.MaxRetries = 5
	}
	if cfg.Coordinator.RetryBase == 0 {
		cfg.Coordinator.RetryBase = 5 * time.Millisecond
	}
	if cfg.Coordinator.OpTimeout == 0 {
		cfg.Coordinator.OpTimeout = 5 * time.Second
	}
	return cfg
}
