package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/crm-bridge/api/swagger"
	"github.com/noah-isme/crm-bridge/internal/handler"
	"github.com/noah-isme/crm-bridge/internal/hubspot"
	"github.com/noah-isme/crm-bridge/internal/middleware"
	"github.com/noah-isme/crm-bridge/internal/repository"
	"github.com/noah-isme/crm-bridge/internal/service"
	"github.com/noah-isme/crm-bridge/pkg/cache"
	"github.com/noah-isme/crm-bridge/pkg/config"
	"github.com/noah-isme/crm-bridge/pkg/database"
	"github.com/noah-isme/crm-bridge/pkg/logger"
	corsmiddleware "github.com/noah-isme/crm-bridge/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/crm-bridge/pkg/middleware/requestid"
)

// @title CRM Bridge API
// @version 0.1.0
// @description HubSpot integration backend: OAuth credential lifecycle and company line-item retrieval
// @BasePath /
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

	credentialStore, stateStore := buildStores(cfg, logr)

	metricsSvc := service.NewMetricsService()
	oauthClient := hubspot.NewOAuthClient(cfg.HubSpot, nil)
	crmClient := hubspot.NewCRMClient(cfg.HubSpot, nil)
	tokenSvc := service.NewTokenService(credentialStore, oauthClient, logr, metricsSvc)
	lineItemSvc := service.NewLineItemService(crmClient, logr, metricsSvc)

	validate := validator.New()
	oauthHandler := handler.NewOAuthHandler(tokenSvc, stateStore, cfg.HubSpot, validate)
	lineItemHandler := handler.NewLineItemHandler(tokenSvc, lineItemSvc, cfg.Export.Enabled)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	r.GET("/oauth/start", oauthHandler.Start)
	r.GET("/oauth/callback", oauthHandler.Callback)

	api := r.Group("/api")
	api.Use(middleware.VerifySignature(cfg.HubSpot.WebhookSecret, logr))
	{
		api.GET("/companies/:companyId/line-items", lineItemHandler.Get)
	}

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env, "credential_store", cfg.CredentialStore.Backend)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

// buildStores selects the credential and state store backing per config.
// Redis and Postgres are hard requirements once selected; a bridge that
// silently fell back to memory would strand previously stored credentials.
func buildStores(cfg *config.Config, logr *zap.Logger) (repository.CredentialStore, repository.StateStore) {
	switch cfg.CredentialStore.Backend {
	case config.StoreRedis:
		client, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Fatalw("failed to connect redis", "error", err)
		}
		return repository.NewRedisCredentialStore(client),
			repository.NewRedisStateStore(client, cfg.HubSpot.StateTTL)
	case config.StorePostgres:
		db, err := database.NewPostgres(cfg.Database)
		if err != nil {
			logr.Sugar().Fatalw("failed to connect postgres", "error", err)
		}
		return repository.NewPostgresCredentialStore(db),
			repository.NewMemoryStateStore(cfg.HubSpot.StateTTL)
	default:
		return repository.NewMemoryCredentialStore(),
			repository.NewMemoryStateStore(cfg.HubSpot.StateTTL)
	}
}
