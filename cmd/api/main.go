package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/baggao-mto/citation-api/api/swagger"
	"github.com/baggao-mto/citation-api/internal/handler"
	"github.com/baggao-mto/citation-api/internal/middleware"
	"github.com/baggao-mto/citation-api/internal/models"
	"github.com/baggao-mto/citation-api/internal/repository"
	"github.com/baggao-mto/citation-api/internal/service"
	"github.com/baggao-mto/citation-api/pkg/cache"
	"github.com/baggao-mto/citation-api/pkg/config"
	"github.com/baggao-mto/citation-api/pkg/database"
	"github.com/baggao-mto/citation-api/pkg/export"
	"github.com/baggao-mto/citation-api/pkg/logger"
	corsmiddleware "github.com/baggao-mto/citation-api/pkg/middleware/cors"
	reqidmiddleware "github.com/baggao-mto/citation-api/pkg/middleware/requestid"
)

// @title Traffic Citation API
// @version 1.0.0
// @description Municipal traffic citation record-keeping service
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to database", "error", err)
	}
	defer db.Close()

	// Redis backs the catalog cache and the rate limiter. Both degrade
	// gracefully, so a missing Redis is a warning, not a fatal.
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching and rate limiting disabled", "error", err)
		redisClient = nil
	}

	validate := validator.New()
	metricsService := service.NewMetricsService()

	userRepo := repository.NewUserRepository(db)
	driverRepo := repository.NewDriverRepository(db)
	officerRepo := repository.NewOfficerRepository(db)
	violationTypeRepo := repository.NewViolationTypeRepository(db)
	citationRepo := repository.NewCitationRepository(db)

	var cacheService *service.CacheService
	if redisClient != nil {
		cacheRepo := repository.NewCacheRepository(redisClient)
		cacheService = service.NewCacheService(cacheRepo, metricsService, cfg.Catalog.CacheTTL, logr, true)
	}

	authService := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "citation-api",
		Audience:           []string{"citation-api"},
	})
	userService := service.NewUserService(userRepo, validate, logr)
	officerService := service.NewOfficerService(officerRepo, userRepo, validate, logr)

	var catalogService *service.ViolationTypeService
	if cacheService != nil && cfg.Catalog.CacheEnabled {
		catalogService = service.NewViolationTypeService(violationTypeRepo, cacheService, userRepo, validate, logr, cfg.Catalog.CacheTTL)
	} else {
		catalogService = service.NewViolationTypeService(violationTypeRepo, nil, userRepo, validate, logr, cfg.Catalog.CacheTTL)
	}

	citationService := service.NewCitationService(
		citationRepo, driverRepo, catalogService, userRepo,
		validate, logr, metricsService,
		cfg.Tickets.Floor, cfg.Tickets.AllocationRetries,
	)
	exportService := service.NewExportService(
		citationService,
		export.NewCSVExporter(),
		export.NewTicketPDF(cfg.Municipality, cfg.Province),
		logr,
	)

	authHandler := handler.NewAuthHandler(authService)
	userHandler := handler.NewUserHandler(userService)
	officerHandler := handler.NewOfficerHandler(officerService)
	violationTypeHandler := handler.NewViolationTypeHandler(catalogService)
	citationHandler := handler.NewCitationHandler(citationService, exportService)

	limit := func(action string, max int64) gin.HandlerFunc {
		if !cfg.RateLimit.Enabled || cacheService == nil {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimit(cacheService, logr, action, max, cfg.RateLimit.Window)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "database": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metricsService.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", limit("login", 5), authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", middleware.JWT(authService), authHandler.Logout)
		auth.POST("/change-password", middleware.JWT(authService), authHandler.ChangePassword)
	}

	protected := api.Group("")
	protected.Use(middleware.JWT(authService))
	{
		citations := protected.Group("/citations")
		{
			citations.GET("", citationHandler.List)
			citations.GET("/next-ticket", citationHandler.NextTicket)
			citations.GET("/export",
				middleware.Audit(userRepo, models.AuditActionExport, "citations"),
				citationHandler.Export)
			citations.GET("/:id", citationHandler.Get)
			citations.GET("/:id/ticket", citationHandler.Ticket)
			citations.POST("", limit("citation_submit", 10), citationHandler.Create)
			citations.PUT("/:id", limit("citation_update", 20), citationHandler.Update)
			citations.PATCH("/:id/status", limit("status_change", 30), citationHandler.UpdateStatus)
			citations.DELETE("/:id", middleware.AdminOnly(), citationHandler.Delete)
		}

		violationTypes := protected.Group("/violation-types")
		{
			violationTypes.GET("", violationTypeHandler.List)
			violationTypes.GET("/:id", violationTypeHandler.Get)
			violationTypes.POST("/propose", limit("catalog_mutation", 10), violationTypeHandler.Propose)
			violationTypes.POST("", middleware.AdminOnly(), limit("catalog_mutation", 10), violationTypeHandler.Create)
			violationTypes.PUT("/:id", middleware.AdminOnly(), limit("catalog_mutation", 10), violationTypeHandler.Update)
			violationTypes.PATCH("/:id/deactivate", middleware.AdminOnly(), limit("catalog_mutation", 10), violationTypeHandler.Deactivate)
			violationTypes.DELETE("/:id", middleware.AdminOnly(), limit("catalog_mutation", 10), violationTypeHandler.Delete)
		}

		officers := protected.Group("/officers")
		{
			officers.GET("", officerHandler.List)
			officers.GET("/:id", officerHandler.Get)
			officers.POST("", limit("officer_mutation", 10), officerHandler.Create)
			officers.PUT("/:id", limit("officer_mutation", 10), officerHandler.Update)
			officers.DELETE("/:id", middleware.AdminOnly(), officerHandler.Delete)
		}

		users := protected.Group("/users")
		users.Use(middleware.AdminOnly())
		{
			users.GET("", userHandler.List)
			users.GET("/:id", userHandler.Get)
			users.POST("", userHandler.Create)
			users.PUT("/:id", userHandler.Update)
			users.DELETE("/:id", userHandler.Delete)
		}
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
