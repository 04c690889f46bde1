package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"astrelay/internal/core/domain"
	"astrelay/internal/core/services"
	"astrelay/internal/infrastructure/distributed"
	"astrelay/internal/infrastructure/monitoring"
	"astrelay/internal/infrastructure/relay"
	repositories "astrelay/internal/infrastructure/repositories"
	"astrelay/pkg/config"
	"astrelay/pkg/logger"
	"astrelay/pkg/snapshot"
	"astrelay/pkg/tracing"
	"astrelay/pkg/utils"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		panic(err)
	}

	zapLogger := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLogger.Sync()
	log := zapLogger.Sugar()

	tp, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: "astrelay-relay",
		JaegerURL:   cfg.Tracing.JaegerURL,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		log.Fatalw("failed to initialize tracing", "error", err)
	}

	repoFactory, err := repositories.NewRepositoryFactory(cfg, log)
	if err != nil {
		log.Fatalw("failed to create repository factory", "error", err)
	}
	defer repoFactory.Close()

	collector := monitoring.NewPrometheusCollector()
	hub := relay.NewHub(log, collector)
	hub.SetPingInterval(cfg.Relay.PingInterval)

	presenceRepo := repoFactory.CreatePresenceRepository()
	postRepo := repoFactory.CreatePostRepository()
	streamRepo := repoFactory.CreateStreamRepository()
	constellationRepo := repoFactory.CreateConstellationRepository()
	userRepo := repoFactory.CreateUserRepository()

	presenceService := services.NewPresenceService(presenceRepo, hub)
	actionService := services.NewActionService(hub, cfg.Actions.Cooldown)
	streamService := services.NewStreamService(streamRepo, hub)
	constellationService := services.NewConstellationService(constellationRepo, hub)
	authService := services.NewAuthService(
		userRepo,
		cfg.Auth.JWTSecret,
		cfg.Auth.AccessTokenTTL,
		cfg.Auth.RefreshTokenTTL,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Cross-instance fan-out over Redis pub/sub.
	if client := repoFactory.RedisClient(); client != nil {
		bus := distributed.NewEventBus(client, utils.GenerateInstanceID(), log)
		hub.SetBridge(bus)
		defer bus.Close()

		g.Go(func() error {
			return bus.Subscribe(ctx, hub)
		})
	}

	// Snapshots of the shared world state survive restarts.
	if cfg.Snapshot.Enabled {
		snapService, err := buildSnapshotService(ctx, cfg)
		if err != nil {
			log.Fatalw("failed to initialize snapshots", "error", err)
		}

		restoreWorldState(ctx, snapService, constellationRepo, postRepo, log)

		collect := func(ctx context.Context) (*snapshot.Snapshot, error) {
			snap := &snapshot.Snapshot{}
			constellations, err := constellationRepo.List(ctx)
			if err != nil {
				return nil, err
			}
			if err := snap.SetEntity("constellations", constellations); err != nil {
				return nil, err
			}
			posts, err := postRepo.List(ctx, 200)
			if err != nil {
				return nil, err
			}
			if err := snap.SetEntity("posts", posts); err != nil {
				return nil, err
			}
			return snap, nil
		}

		scheduler := snapshot.NewScheduler(snapService, collect, cfg.Snapshot.Interval, 5, log)
		g.Go(func() error {
			err := scheduler.Run(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	wsServer := relay.NewWebSocketServer(
		hub,
		presenceService,
		actionService,
		streamService,
		constellationService,
		authService,
		log,
	)
	wsServer.SetPongTimeout(cfg.Relay.PongTimeout)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsServer.HandleWebSocket)
	mux.HandleFunc("/health", wsServer.HealthCheck)

	srv := &http.Server{
		Addr:    cfg.Relay.Address,
		Handler: mux,
	}

	g.Go(func() error {
		log.Infow("starting relay server", "address", cfg.Relay.Address)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	if cfg.Monitoring.PrometheusEnabled {
		metricsSrv := &http.Server{
			Addr:    ":" + strconv.Itoa(cfg.Monitoring.PrometheusPort),
			Handler: promhttp.Handler(),
		}
		g.Go(func() error {
			log.Infow("starting metrics server", "port", cfg.Monitoring.PrometheusPort)
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return metricsSrv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down relay server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Relay.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Errorw("relay exited with error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.Warnw("tracing shutdown failed", "error", err)
	}
	log.Info("relay stopped")
}

func buildSnapshotService(ctx context.Context, cfg *config.Config) (*snapshot.Service, error) {
	var storage snapshot.Storage
	var err error

	switch cfg.Snapshot.Backend {
	case "s3":
		storage, err = snapshot.NewS3StorageFromEnv(ctx, cfg.Snapshot.S3.Region, cfg.Snapshot.S3.Bucket, cfg.Snapshot.S3.Prefix)
	default:
		storage, err = snapshot.NewFileStorage(cfg.Snapshot.Dir)
	}
	if err != nil {
		return nil, err
	}
	return snapshot.NewService(storage, "1"), nil
}

// restoreWorldState seeds the repositories from the newest capture. A
// missing or unreadable snapshot means a cold start, not a fatal error.
func restoreWorldState(
	ctx context.Context,
	snapService *snapshot.Service,
	constellationRepo interface {
		Upsert(ctx context.Context, c *domain.Constellation) error
	},
	postRepo interface {
		Create(ctx context.Context, post *domain.Post) error
	},
	log interface {
		Infow(msg string, kv ...interface{})
		Warnw(msg string, kv ...interface{})
	},
) {
	snap, err := snapService.Latest(ctx)
	if err != nil {
		log.Warnw("snapshot restore failed", "error", err)
		return
	}
	if snap == nil {
		return
	}

	var constellations []*domain.Constellation
	if err := snap.Entity("constellations", &constellations); err == nil {
		for _, c := range constellations {
			if err := constellationRepo.Upsert(ctx, c); err != nil && !errors.Is(err, domain.ErrStaleRevision) {
				log.Warnw("failed to restore constellation", "id", c.ID, "error", err)
			}
		}
	}

	var posts []*domain.Post
	if err := snap.Entity("posts", &posts); err == nil {
		for _, p := range posts {
			if err := postRepo.Create(ctx, p); err != nil {
				log.Warnw("failed to restore post", "id", p.ID, "error", err)
			}
		}
	}

	log.Infow("world state restored from snapshot",
		"taken_at", snap.TakenAt,
		"constellations", len(constellations),
		"posts", len(posts),
	)
}
