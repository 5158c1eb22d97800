// Package cli holds the cobra commands of the marketplace binary.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"jobmate/marketplace-service/internal/config"
	"jobmate/marketplace-service/internal/db"
	"jobmate/marketplace-service/internal/marketplace"
	"jobmate/marketplace-service/internal/store/memory"
	"jobmate/marketplace-service/internal/store/mongo"
	"jobmate/marketplace-service/internal/store/postgres"
	"jobmate/marketplace-service/internal/store/sqlite"
)

// backend is what every store driver provides.
type backend interface {
	marketplace.Store
	marketplace.UserDirectory
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// openBackend connects the store selected by cfg.StoreDriver. The returned
// cleanup releases the underlying connection.
func openBackend(ctx context.Context, cfg *config.Config) (backend, func(), error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		pool, err := db.NewPostgresPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres: %w", err)
		}
		return postgres.New(pool), pool.Close, nil
	case config.DriverMongo:
		client, err := db.NewMongoClient(ctx, cfg.MongoURL)
		if err != nil {
			return nil, nil, fmt.Errorf("mongo: %w", err)
		}
		cleanup := func() { _ = client.Disconnect(context.Background()) }
		return mongo.New(client.Database(cfg.MongoDatabase)), cleanup, nil
	case config.DriverSQLite:
		s, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	case config.DriverMemory:
		return memory.New(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

// newLogger builds the process logger from LOG_LEVEL.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})).
		With("service", "marketplace-service")
}
