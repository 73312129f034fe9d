package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-admission-api/api/swagger"
	"github.com/noah-isme/sma-admission-api/internal/dto"
	"github.com/noah-isme/sma-admission-api/internal/handler"
	"github.com/noah-isme/sma-admission-api/internal/repository"
	"github.com/noah-isme/sma-admission-api/internal/service"
	"github.com/noah-isme/sma-admission-api/pkg/cache"
	"github.com/noah-isme/sma-admission-api/pkg/config"
	"github.com/noah-isme/sma-admission-api/pkg/database"
	"github.com/noah-isme/sma-admission-api/pkg/jobs"
	"github.com/noah-isme/sma-admission-api/pkg/logger"
	"github.com/noah-isme/sma-admission-api/pkg/messaging"
	"github.com/noah-isme/sma-admission-api/pkg/resume"
)

// @title SMA Admission API
// @version 1.0.0
// @description Admission workflow, access policy and route guard
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry, err := config.LoadAreaRegistry(cfg.Workflow.AreaRegistryFile)
	if err != nil {
		logr.Fatal("failed to load area registry", zap.Error(err))
	}
	policy, err := service.NewAccessPolicy(registry)
	if err != nil {
		logr.Fatal("invalid area registry", zap.Error(err))
	}

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer db.Close()

	metrics := service.NewMetricsService()
	readiness := map[string]handler.ReadinessCheck{"postgres": db.PingContext}

	var redisClient *redis.Client
	if cfg.SubjectCache.Enabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, subject cache disabled", zap.Error(err))
		} else {
			readiness["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
		}
	}
	cacheRepo := repository.NewCacheRepository(redisClient, "admission")
	defer cacheRepo.Close() //nolint:errcheck
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.SubjectCache.TTL, logr, redisClient != nil)

	var publisher service.EventPublisher = service.NewLogPublisher(logr)
	if cfg.Notifications.BrokerURL != "" {
		rabbit, err := messaging.NewRabbitMQPublisher(cfg.Notifications.BrokerURL, cfg.Notifications.Queue, logr)
		if err != nil {
			logr.Warn("rabbitmq unavailable, logging notifications instead", zap.Error(err))
		} else {
			defer rabbit.Close() //nolint:errcheck
			publisher = rabbit
		}
	}
	notifier := service.NewNotificationService(publisher, metrics, logr, jobs.QueueConfig{
		Workers:    cfg.Notifications.Workers,
		MaxRetries: cfg.Notifications.Retries,
		RetryDelay: cfg.Notifications.RetryDelay,
		Logger:     logr,
	})
	notifier.Start(ctx)
	defer notifier.Stop()

	validate := validator.New()
	if err := dto.RegisterValidations(validate); err != nil {
		logr.Fatal("failed to register validations", zap.Error(err))
	}

	subjectRepo := repository.NewSubjectRepository(db, metrics)
	engine := service.NewTransitionEngine(subjectRepo, logr, service.WithPersistenceTimeout(cfg.Workflow.PersistenceTimeout))
	admission := service.NewAdmissionService(subjectRepo, engine, policy, validate, logr,
		service.WithSubjectCache(cacheSvc),
		service.WithNotifier(notifier),
		service.WithMetrics(metrics),
		service.WithMaxRetries(cfg.Workflow.MaxRetries),
	)
	guard := service.NewRouteGuard(policy, metrics)
	signer := resume.NewSigner(cfg.Resume.Secret, cfg.Resume.TTL)

	router := newRouter(routerDeps{
		logger:         logr,
		apiPrefix:      cfg.APIPrefix,
		allowedOrigins: cfg.CORS.AllowedOrigins,
		enableDocs:     cfg.Env != config.EnvProduction,
		metrics:        metrics,
		tokens:         service.NewTokenVerifier(cfg.JWT.Secret, cfg.JWT.Issuer),
		subjects:       admission.Callers(),
		guard:          guard,
		resume:         signer,
		subjectHandler: handler.NewSubjectHandler(admission, validate),
		accessHandler:  handler.NewAccessHandler(policy, guard, admission.Callers(), signer),
		metricsHandler: handler.NewMetricsHandler(metrics, readiness),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
