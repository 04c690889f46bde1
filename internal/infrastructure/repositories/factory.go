package repositories

import (
	"context"

	"astrelay/internal/core/ports"
	"astrelay/internal/infrastructure/repositories/memory"
	redisrepo "astrelay/internal/infrastructure/repositories/redis"
	"astrelay/pkg/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RepositoryFactory creates repositories with fallback support
type RepositoryFactory struct {
	useRedis    bool
	redisClient *redis.Client
	logger      *zap.SugaredLogger
}

// NewRepositoryFactory creates a new repository factory
func NewRepositoryFactory(cfg *config.Config, logger *zap.SugaredLogger) (*RepositoryFactory, error) {
	factory := &RepositoryFactory{
		useRedis: cfg.Redis.Enabled,
		logger:   logger,
	}

	// Try to connect to Redis if enabled
	if cfg.Redis.Enabled {
		client, err := redisrepo.NewRedisClient(
			cfg.Redis.Address,
			cfg.Redis.Password,
			cfg.Redis.DB,
			cfg.Redis.PoolSize,
			logger,
		)
		if err != nil {
			logger.Warnw("failed to connect to Redis, falling back to memory repositories",
				"error", err,
			)
			factory.useRedis = false
		} else {
			factory.redisClient = client
			logger.Info("using Redis repositories")
		}
	}

	if !factory.useRedis {
		logger.Info("using memory repositories")
	}

	return factory, nil
}

// RedisClient exposes the shared client for the event bus; nil when Redis
// is disabled or unreachable.
func (f *RepositoryFactory) RedisClient() *redis.Client {
	if !f.useRedis {
		return nil
	}
	return f.redisClient
}

// CreatePresenceRepository creates a presence repository (Redis or memory with fallback)
func (f *RepositoryFactory) CreatePresenceRepository() ports.PresenceRepository {
	if f.useRedis && f.redisClient != nil {
		return redisrepo.NewRedisPresenceRepository(f.redisClient)
	}
	return memory.NewMemoryPresenceRepository()
}

// CreatePostRepository creates a post repository (Redis or memory with fallback)
func (f *RepositoryFactory) CreatePostRepository() ports.PostRepository {
	if f.useRedis && f.redisClient != nil {
		return redisrepo.NewRedisPostRepository(f.redisClient)
	}
	return memory.NewMemoryPostRepository()
}

// CreateConstellationRepository creates a constellation repository (Redis or memory with fallback)
func (f *RepositoryFactory) CreateConstellationRepository() ports.ConstellationRepository {
	if f.useRedis && f.redisClient != nil {
		return redisrepo.NewRedisConstellationRepository(f.redisClient)
	}
	return memory.NewMemoryConstellationRepository()
}

// CreateStreamRepository creates a stream repository (Redis or memory with
// fallback). The API and relay processes must share a backend so a stream
// created over REST can be joined over the websocket.
func (f *RepositoryFactory) CreateStreamRepository() ports.StreamRepository {
	if f.useRedis && f.redisClient != nil {
		return redisrepo.NewRedisStreamRepository(f.redisClient)
	}
	return memory.NewMemoryStreamRepository()
}

// CreateUserRepository creates a user repository (always memory; account
// persistence lives behind the upstream API, not this relay)
func (f *RepositoryFactory) CreateUserRepository() ports.UserRepository {
	return memory.NewMemoryUserRepository()
}

// Close closes Redis connection if used
func (f *RepositoryFactory) Close() error {
	if f.redisClient != nil {
		return redisrepo.CloseRedisClient(f.redisClient)
	}
	return nil
}

// HealthCheck checks Redis connection health
func (f *RepositoryFactory) HealthCheck(ctx context.Context) error {
	if f.useRedis && f.redisClient != nil {
		return f.redisClient.Ping(ctx).Err()
	}
	return nil
}
