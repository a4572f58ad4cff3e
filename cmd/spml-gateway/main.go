package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/spml-provisioner/api/swagger"
	"github.com/noah-isme/spml-provisioner/internal/handler"
	"github.com/noah-isme/spml-provisioner/internal/middleware"
	"github.com/noah-isme/spml-provisioner/internal/repository"
	"github.com/noah-isme/spml-provisioner/internal/scheduler"
	"github.com/noah-isme/spml-provisioner/internal/service"
	"github.com/noah-isme/spml-provisioner/pkg/cache"
	"github.com/noah-isme/spml-provisioner/pkg/config"
	"github.com/noah-isme/spml-provisioner/pkg/database"
	"github.com/noah-isme/spml-provisioner/pkg/jobs"
	"github.com/noah-isme/spml-provisioner/pkg/logger"
	"github.com/noah-isme/spml-provisioner/pkg/mail"
	reqidmiddleware "github.com/noah-isme/spml-provisioner/pkg/middleware/requestid"
)

const shutdownTimeout = 15 * time.Second

// @title SPML Provisioning Gateway
// @version 1.0.0
// @description Receives the identity feed and keeps accounts, profiles and memberships in line with it.
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.basic BasicAuth
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	if err := run(cfg, logr); err != nil {
		logr.Fatal("gateway stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logr *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.RunMigrations(db.DB, logr); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}

	metrics := service.NewMetricsService()
	checks := map[string]handler.ReadinessCheck{"postgres": db.PingContext}

	var cacheRepo service.CacheRepository
	if cfg.Redis.Enabled {
		client, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer client.Close()
		redisRepo := repository.NewCacheRepository(client, logr)
		cacheRepo = redisRepo
		checks["redis"] = redisRepo.Ping
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.OrgTTL, logr, cfg.Redis.Enabled)

	templates, err := repository.NewTemplateRepository(cfg.SPML.TemplatesPath)
	if err != nil {
		return fmt.Errorf("load mail templates: %w", err)
	}
	sender, err := mail.New(cfg.Mail, logr)
	if err != nil {
		return fmt.Errorf("init mail: %w", err)
	}

	alerts := jobs.NewQueue("admin-alerts", service.NewAlertHandler(sender), jobs.QueueConfig{
		Workers: cfg.SPML.AlertWorkers,
		Logger:  logr,
	})
	if err := metrics.ObserveQueue("admin-alerts", alerts.Stats); err != nil {
		return err
	}
	alerts.Start(ctx)
	defer alerts.Stop()

	validate := validator.New()
	accounts := repository.NewAccountRepository(db)
	profileStore := service.NewProfileStore(repository.NewProfileRepository(db), logr)
	recorder := service.NewRequestRecorder(repository.NewRequestLogRepository(db), logr, nil)

	provisioning := service.NewProvisioningService(service.ProvisioningDeps{
		Mapper:     service.NewFieldMapper(validate, logr),
		Resolver:   service.NewIdentityResolver(accounts, validate, logr),
		Profiles:   profileStore,
		Reconciler: service.NewProfileReconciler(accounts, profileStore, service.NewMobileNormalizer(cfg.SPML.MobileCountryCode), cfg.SPML.EmailDomain, logr),
		Enrollments: service.NewEnrollmentSynchronizer(
			repository.NewCatalogRepository(db),
			alerts,
			metrics,
			service.EnrollmentConfig{AdminAlertAddress: cfg.SPML.AdminAlertAddress},
			logr,
			nil,
		),
		Notifications: service.NewNotificationService(accounts, templates, sender, metrics, service.NotificationConfig{
			From:     cfg.SPML.HelpFrom,
			FromName: cfg.SPML.HelpName,
		}, logr),
		Recorder:  recorder,
		Orgs:      service.NewOrgLookupService(repository.NewOrgRepository(db), cacheSvc, metrics, cfg.Cache.OrgTTL, logr),
		Metrics:   metrics,
		Validator: validate,
		Logger:    logr,
	})

	authSvc := service.NewAuthService(accounts, service.AuthConfig{
		ServiceLogin: cfg.SPML.ServiceLogin,
		Secret:       cfg.JWT.Secret,
		Expiry:       cfg.JWT.Expiration,
	}, logr)

	cronJobs, err := scheduler.New(recorder, scheduler.Config{
		PruneSchedule: cfg.SPML.PruneSchedule,
		LogRetention:  cfg.SPML.LogRetention,
	}, logr)
	if err != nil {
		return fmt.Errorf("schedule jobs: %w", err)
	}
	cronJobs.Start()
	defer cronJobs.Stop()

	go reloadTemplatesOnHangup(ctx, templates, logr)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.Recovery(logr))
	r.Use(logger.GinMiddleware(logr))
	r.Use(middleware.Metrics(metrics, "/metrics"))

	metricsHandler := handler.NewMetricsHandler(metrics, checks)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	spmlHandler := handler.NewSPMLHandler(provisioning, validate)
	spml := r.Group(cfg.APIPrefix + "/spml")
	spml.Use(middleware.RateLimit(ctx, cfg.SPML.RateLimitRPS, cfg.SPML.RateLimitBurst))
	spml.Use(middleware.FeedAuth(authSvc))
	spml.POST("/add", spmlHandler.Add)
	spml.POST("/modify", spmlHandler.Modify)
	spml.POST("/delete", spmlHandler.Delete)
	spml.POST("/batch", spmlHandler.Batch)
	spml.GET("/log/:login", spmlHandler.Log)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func reloadTemplatesOnHangup(ctx context.Context, templates *repository.TemplateRepository, logr *zap.Logger) {
	hangup := make(chan os.Signal, 1)
	signal.Notify(hangup, syscall.SIGHUP)
	defer signal.Stop(hangup)
	for {
		select {
		case <-ctx.Done():
			return
		case <-hangup:
			if err := templates.Reload(); err != nil {
				logr.Warn("mail template reload failed", zap.Error(err))
				continue
			}
			logr.Info("mail templates reloaded", zap.Int("templates", templates.Len()))
		}
	}
}
