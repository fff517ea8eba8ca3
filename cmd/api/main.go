package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/steward-api/internal/cache"
	"github.com/noah-isme/steward-api/internal/config"
	"github.com/noah-isme/steward-api/internal/database"
	"github.com/noah-isme/steward-api/internal/handler"
	"github.com/noah-isme/steward-api/internal/middleware"
	"github.com/noah-isme/steward-api/internal/repository"
	"github.com/noah-isme/steward-api/internal/router"
	"github.com/noah-isme/steward-api/internal/service"
	"github.com/noah-isme/steward-api/pkg/clerk"
	cloud "github.com/noah-isme/steward-api/pkg/cloudinary"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.AppName).Logger()

	db, err := database.Connect(database.Options{
		PostgresDSN: cfg.DatabaseURL,
		SQLitePath:  cfg.SQLitePath,
	})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("%v", err)
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(cfg.RedisURL)
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, caching disabled")
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName)
		if err != nil {
			logger.Warn().Err(err).Msg("nats unavailable, activity stream is node-local")
			natsConn = nil
		} else {
			defer natsConn.Drain()
		}
	}

	var billing service.BillingProvider
	if cfg.ClerkSecretKey != "" {
		client, err := clerk.New(clerk.Config{
			SecretKey: cfg.ClerkSecretKey,
			BaseURL:   cfg.ClerkAPIURL,
			Timeout:   cfg.BillingTimeout,
		}, logger)
		if err != nil {
			log.Fatalf("failed to create clerk client: %v", err)
		}
		billing = client
	} else {
		logger.Warn().Msg("billing provider not configured, every tenant runs on starter limits")
	}

	var storage service.FileStorage
	if cfg.CloudinaryEnabled() {
		photos, err := cloud.New(cloud.Config{
			CloudName: cfg.CloudinaryCloudName,
			APIKey:    cfg.CloudinaryAPIKey,
			APISecret: cfg.CloudinaryAPISecret,
			Folder:    cfg.CloudinaryUploadFolder,
		}, logger)
		if err != nil {
			log.Fatalf("failed to create cloudinary client: %v", err)
		}
		storage = photos
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	cacheStore := cache.New(redisClient, logger)

	store := repository.NewStore(db)
	dashboardRepo := repository.NewDashboardRepository(db)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stream := service.NewActivityStream(natsConn, cfg.NATSSubjectPrefix, logger)
	stream.Start(ctx)

	planService := service.NewPlanService(billing, store.Assets(), cacheStore, service.PlanCatalog{
		ProPlanIDs:     cfg.ProPlanIDs,
		StarterPlanIDs: cfg.StarterPlanIDs,
	}, cfg.PlanCacheTTL, logger)
	activityService := service.NewActivityService(store.Activity(), planService, stream, logger)
	dashboardService := service.NewDashboardService(dashboardRepo, cacheStore, cfg.DashboardCacheTTL, logger)
	assetService := service.NewAssetService(store, activityService, planService, dashboardService, validate, logger)
	assignmentService := service.NewAssignmentService(store, assetService, activityService, dashboardService, validate, logger)
	lifecycle := service.NewIncidentLifecycle(store, activityService, logger)
	incidentService := service.NewIncidentService(service.IncidentDeps{
		Store:      store,
		Assets:     assetService,
		Activity:   activityService,
		Lifecycle:  lifecycle,
		Plans:      planService,
		Dashboard:  dashboardService,
		Storage:    storage,
		MaxPhotoMB: cfg.UploadMaxMB,
	}, validate, logger)

	lifecycle.Start(ctx, cfg.SweepInterval)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    (cfg.UploadMaxMB + 1) * 1024 * 1024,
	})

	middleware.Register(app, middleware.Config{
		Logger:       &logger,
		AllowOrigins: cfg.CORSAllowOrigins,
		AccessLog:    cfg.AppEnv == "development",
	})
	router.Register(app, cfg, router.Dependencies{
		AssetHandler:      handler.NewAssetHandler(assetService, logger),
		AssignmentHandler: handler.NewAssignmentHandler(assignmentService, logger),
		IncidentHandler:   handler.NewIncidentHandler(incidentService, logger),
		ActivityHandler:   handler.NewActivityHandler(activityService, stream, logger),
		DashboardHandler:  handler.NewDashboardHandler(dashboardService, logger),
		BillingHandler:    handler.NewBillingHandler(planService, logger),
		Health: handler.HealthDependencies{
			Redis:   redisClient != nil,
			NATS:    natsConn != nil,
			Billing: billing != nil,
			Storage: storage != nil,
		},
		JWTMiddleware: middleware.JWTProtected(middleware.JWTConfig{
			Secret:       cfg.JWTSecret,
			PublicKeyPEM: cfg.JWTPublicKeyPEM,
		}),
		RateLimitMax:    cfg.RateLimitMax,
		RateLimitWindow: cfg.RateLimitWindow,
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(ctx, app)
}

func waitForShutdown(ctx context.Context, app *fiber.App) {
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
