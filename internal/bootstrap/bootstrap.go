// Package bootstrap wires configuration into the adapters shared by the bot
// and the gateway binaries.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/gradesbot/gradesbot/config"
	"github.com/gradesbot/gradesbot/internal/domain/usage"
	"github.com/gradesbot/gradesbot/internal/infrastructure/external/notion"
	"github.com/gradesbot/gradesbot/internal/infrastructure/persistence/memory"
	"github.com/gradesbot/gradesbot/internal/infrastructure/persistence/postgres"
	"github.com/gradesbot/gradesbot/internal/infrastructure/persistence/redis"
	"github.com/gradesbot/gradesbot/internal/infrastructure/persistence/sqlite"
	"github.com/gradesbot/gradesbot/internal/interface/http/handlers"
	"github.com/gradesbot/gradesbot/internal/interface/presenter"
	"github.com/gradesbot/gradesbot/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// LOGGING
// ══════════════════════════════════════════════════════════════════════════════

// SetupLogger creates the process logger: JSON in production or when
// LOG_FORMAT=json, text otherwise. It becomes the slog default and installs
// the account redaction key.
func SetupLogger(cfg *config.Config) *slog.Logger {
	logger.SetRedactionKey(cfg.Observability.RedactionKey)

	opts := &slog.HandlerOptions{
		Level:     slogLevel(cfg.Observability.LogLevel),
		AddSource: cfg.IsDevelopment(),
	}

	var handler slog.Handler
	if cfg.IsProduction() || cfg.Observability.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	log := slog.New(handler)
	slog.SetDefault(log)
	return log
}

// NewRequestLogger creates the zap-backed logger used per HTTP request.
func NewRequestLogger(cfg *config.Config) *logger.Logger {
	return logger.New(logger.Options{
		Output:       os.Stdout,
		Level:        logger.ParseLevel(cfg.Observability.LogLevel),
		JSON:         cfg.IsProduction() || cfg.Observability.LogFormat == "json",
		RedactionKey: cfg.Observability.RedactionKey,
	})
}

func slogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// STORES
// ══════════════════════════════════════════════════════════════════════════════

// Stores are the usage store and chat registry selected by USAGE_STORE.
type Stores struct {
	Usage usage.Store
	Chats usage.ChatRegistry

	// Ping checks the backing connection. Nil for the memory store.
	Ping handlers.Pinger

	closeFn func()
}

// Close releases the backing connection.
func (s *Stores) Close() {
	if s.closeFn != nil {
		s.closeFn()
	}
}

// OpenStores connects to the configured usage store backend.
func OpenStores(ctx context.Context, cfg *config.Config, log *slog.Logger) (*Stores, error) {
	log = log.With("usage_store", string(cfg.Storage.UsageStore))

	switch cfg.Storage.UsageStore {
	case config.StoreSQLite:
		db, err := sqlite.Open(ctx, cfg.Storage.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		log.Info("usage store ready", "path", cfg.Storage.SQLitePath)
		return &Stores{
			Usage:   sqlite.NewUsageStore(db),
			Chats:   sqlite.NewChatRegistry(db),
			Ping:    db,
			closeFn: func() { _ = db.Close() },
		}, nil

	case config.StorePostgres:
		conn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if cfg.Database.RunMigrations {
			if err := postgres.NewMigrator(conn).Migrate(ctx); err != nil {
				conn.Close()
				return nil, fmt.Errorf("run migrations: %w", err)
			}
			log.Info("migrations applied")
		}
		log.Info("usage store ready")
		return &Stores{
			Usage:   postgres.NewUsageRepository(conn),
			Chats:   postgres.NewChatRepository(conn),
			Ping:    conn,
			closeFn: conn.Close,
		}, nil

	case config.StoreRedis:
		rcfg := redis.DefaultConfig()
		rcfg.URL = cfg.Redis.URL
		rcfg.Addr = cfg.Redis.Addr
		rcfg.Password = cfg.Redis.Password
		rcfg.DB = cfg.Redis.DB
		rcfg.PoolSize = cfg.Redis.PoolSize
		rcfg.KeyPrefix = cfg.Redis.KeyPrefix

		client, err := redis.NewClient(ctx, rcfg)
		if err != nil {
			return nil, err
		}
		log.Info("usage store ready")
		return &Stores{
			Usage:   redis.NewUsageStore(client),
			Chats:   redis.NewChatRegistry(client),
			Ping:    client,
			closeFn: func() { _ = client.Close() },
		}, nil

	case config.StoreMemory:
		log.Warn("usage store is in memory; quotas reset on restart")
		return &Stores{
			Usage: memory.NewUsageStore(),
			Chats: memory.NewChatRegistry(),
		}, nil
	}

	return nil, fmt.Errorf("unknown usage store %q", cfg.Storage.UsageStore)
}

// ══════════════════════════════════════════════════════════════════════════════
// RECORD STORE
// ══════════════════════════════════════════════════════════════════════════════

// NewNotionClient creates the record store client.
func NewNotionClient(cfg *config.Config, log *slog.Logger) *notion.Client {
	ncfg := notion.DefaultClientConfig(cfg.Notion.Token)
	ncfg.BaseURL = cfg.Notion.BaseURL
	ncfg.Version = cfg.Notion.Version
	ncfg.Timeout = cfg.Notion.Timeout
	ncfg.Databases = cfg.Notion.Databases
	ncfg.Throttle = notion.ThrottleConfig{
		RequestsPerSecond: cfg.Notion.RequestsPerSecond,
		BurstSize:         cfg.Notion.BurstSize,
	}
	ncfg.Logger = log
	return notion.NewClient(ncfg)
}

// NewPresenter creates the report presenter with the configured exam dates.
func NewPresenter(cfg *config.Config) *presenter.ReportPresenter {
	return presenter.NewReportPresenter(presenter.RemedialDates{
		FirstRound:  cfg.Remedial.FirstRound,
		SecondRound: cfg.Remedial.SecondRound,
	})
}
