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
	"astrelay/internal/core/ports"
	"astrelay/internal/core/services"
	httphandlers "astrelay/internal/handlers/http"
	"astrelay/internal/infrastructure/distributed"
	"astrelay/internal/infrastructure/middleware"
	"astrelay/internal/infrastructure/monitoring"
	repositories "astrelay/internal/infrastructure/repositories"
	"astrelay/pkg/config"
	"astrelay/pkg/logger"
	"astrelay/pkg/tracing"
	"astrelay/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

// engagementFlushInterval bounds how long coalesced reaction counters
// wait before a post_engagement_update goes out.
const engagementFlushInterval = 200 * time.Millisecond

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
		ServiceName: "astrelay-api",
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

	// The API process owns no websocket connections. Realtime events it
	// produces (new posts, engagement updates, stream membership) reach
	// clients through the Redis bus and the relay instances.
	var broadcaster ports.Broadcaster = nopBroadcaster{}
	if client := repoFactory.RedisClient(); client != nil {
		bus := distributed.NewEventBus(client, utils.GenerateInstanceID(), log)
		defer bus.Close()
		broadcaster = distributed.NewBusBroadcaster(bus, log)
	} else {
		log.Warn("redis disabled, API events will not reach relay clients")
	}

	postService := services.NewPostService(repoFactory.CreatePostRepository(), broadcaster, engagementFlushInterval)
	streamService := services.NewStreamService(repoFactory.CreateStreamRepository(), broadcaster)
	constellationService := services.NewConstellationService(repoFactory.CreateConstellationRepository(), broadcaster)
	zodiacService := services.NewZodiacService()
	authService := services.NewAuthService(
		repoFactory.CreateUserRepository(),
		cfg.Auth.JWTSecret,
		cfg.Auth.AccessTokenTTL,
		cfg.Auth.RefreshTokenTTL,
	)

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.ErrorHandlerMiddleware(log))
	router.Use(middleware.NewHTTPRateLimitMiddleware(cfg))
	if cfg.Tracing.Enabled {
		router.Use(middleware.TracingMiddleware())
	}

	httphandlers.NewAuthHandler(authService, zodiacService, cfg.Auth.AccessTokenTTL).SetupRoutes(router)
	httphandlers.NewPostHandler(postService, authService).SetupRoutes(router)
	httphandlers.NewStreamHandler(streamService, authService).SetupRoutes(router)
	httphandlers.NewConstellationHandler(constellationService, authService).SetupRoutes(router)
	httphandlers.NewZodiacHandler(zodiacService).SetupRoutes(router)

	health := monitoring.NewHealthChecker(5 * time.Second)
	if client := repoFactory.RedisClient(); client != nil {
		health.AddRedisProbe(client)
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/ready", func(c *gin.Context) {
		status := health.CheckAll(c.Request.Context())
		code := http.StatusOK
		if status.Status != "healthy" {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, status)
	})

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Infow("starting API server", "address", cfg.Server.Address)
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
		log.Info("shutting down API server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Errorw("API exited with error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.Warnw("tracing shutdown failed", "error", err)
	}
	log.Info("API stopped")
}

// nopBroadcaster drops events when no bus is configured.
type nopBroadcaster struct{}

func (nopBroadcaster) UserConnected(*domain.OnlineUser)                    {}
func (nopBroadcaster) UserDisconnected(domain.UserID)                      {}
func (nopBroadcaster) AvatarUpdated(domain.UserID, domain.Avatar)          {}
func (nopBroadcaster) ActionPerformed(*domain.RecentAction)                {}
func (nopBroadcaster) ConstellationUpdated(*domain.Constellation)          {}
func (nopBroadcaster) StreamJoined(domain.StreamID, domain.UserID, int)    {}
func (nopBroadcaster) StreamLeft(domain.StreamID, domain.UserID, int)      {}
func (nopBroadcaster) NewPost(*domain.Post)                                {}
func (nopBroadcaster) EngagementUpdated(domain.PostID, *domain.Engagement) {}
