package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/sma-fees-api/api/swagger"
	"github.com/noah-isme/sma-fees-api/internal/handler"
	"github.com/noah-isme/sma-fees-api/internal/middleware"
	"github.com/noah-isme/sma-fees-api/internal/models"
	"github.com/noah-isme/sma-fees-api/internal/repository"
	"github.com/noah-isme/sma-fees-api/internal/service"
	"github.com/noah-isme/sma-fees-api/pkg/cache"
	"github.com/noah-isme/sma-fees-api/pkg/config"
	"github.com/noah-isme/sma-fees-api/pkg/database"
	"github.com/noah-isme/sma-fees-api/pkg/export"
	"github.com/noah-isme/sma-fees-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-fees-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-fees-api/pkg/middleware/requestid"
)

// @title SMA Fees API
// @version 0.1.0
// @description Fee schedule and fine ledger engine
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, plan cache disabled", "error", err)
			redisClient = nil
		}
	}

	feeRepo := repository.NewFeeRepository(db)
	policyRepo := repository.NewFinePolicyRepository(db)
	ledgerRepo := repository.NewStudentFeeRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	userRepo := repository.NewUserRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	metricsSvc := service.NewMetricsService()
	authSvc := service.NewAuthService(userRepo, cfg.JWT.Secret, cfg.JWT.Expiration, nil, logr)
	feeSvc := service.NewFeeService(feeRepo, policyRepo, nil, logr)
	ledgerSvc := service.NewLedgerService(feeRepo, policyRepo, ledgerRepo, studentRepo, cacheRepo, metricsSvc, cfg.Fees.PlanCacheTTL, nil, logr)

	var paymentSvc *service.PaymentService
	if cfg.Fees.ReceiptsEnabled {
		renderer := export.NewReceiptRenderer(cfg.Fees.SchoolName)
		paymentSvc = service.NewPaymentService(ledgerRepo, paymentRepo, feeRepo, policyRepo, db, cacheRepo, metricsSvc, renderer, logr)
	} else {
		paymentSvc = service.NewPaymentService(ledgerRepo, paymentRepo, feeRepo, policyRepo, db, cacheRepo, metricsSvc, nil, logr)
	}

	authHandler := handler.NewAuthHandler(authSvc)
	feeHandler := handler.NewFeeHandler(feeSvc)
	ledgerHandler := handler.NewLedgerHandler(ledgerSvc)
	paymentHandler := handler.NewPaymentHandler(paymentSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

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
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)

	authed := api.Group("")
	authed.Use(middleware.JWT(authSvc))

	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleCashier)
	admin := middleware.RequireRoles(models.RoleAdmin)

	authed.GET("/fees", feeHandler.List)
	authed.GET("/fees/:id", feeHandler.Get)
	authed.POST("/fees", admin, feeHandler.Create)
	authed.PATCH("/fees/:id/active", admin, feeHandler.SetActive)
	authed.GET("/fees/:id/mappings", feeHandler.ListMappings)
	authed.POST("/fees/:id/mappings", admin, feeHandler.CreateMapping)

	authed.GET("/fine-policies", feeHandler.ListPolicies)
	authed.POST("/fine-policies", admin, feeHandler.CreatePolicy)
	authed.PATCH("/fine-policies/:id/active", admin, feeHandler.SetPolicyActive)

	authed.GET("/students/:studentId/plan", ledgerHandler.MonthlyPlan)
	authed.GET("/students/:studentId/ledger", ledgerHandler.GetLedger)
	authed.POST("/students/:studentId/ledger", staff, ledgerHandler.AssignFee)
	authed.POST("/students/:studentId/ledger/ensure", staff, ledgerHandler.EnsureRow)

	authed.POST("/payments", staff, paymentHandler.Record)
	authed.GET("/payments/:id/receipt", paymentHandler.Receipt)
	authed.GET("/student-fees/:id/payments", paymentHandler.List)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
