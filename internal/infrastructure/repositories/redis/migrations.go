package redis

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	schemaVersionKey = "astrelay:schema:version"
	schemaVersion    = 1
)

// Migrate upgrades the key schema to the current version. Downgrades are
// refused so an old binary cannot corrupt newer data.
func Migrate(ctx context.Context, client *redis.Client, logger *zap.SugaredLogger) error {
	current, err := client.Get(ctx, schemaVersionKey).Result()
	if err == redis.Nil {
		if err := client.Set(ctx, schemaVersionKey, schemaVersion, 0).Err(); err != nil {
			return fmt.Errorf("failed to initialize schema version: %w", err)
		}
		if logger != nil {
			logger.Infow("initialized redis schema", "version", schemaVersion)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	version, err := strconv.Atoi(current)
	if err != nil {
		return fmt.Errorf("invalid schema version %q: %w", current, err)
	}

	if version > schemaVersion {
		return fmt.Errorf("schema version %d is newer than this binary supports (%d)", version, schemaVersion)
	}

	// Future version bumps apply their steps here, then update the key.
	return nil
}
