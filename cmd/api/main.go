package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/enrollment-query-api/api/swagger"
	"github.com/noah-isme/enrollment-query-api/internal/handler"
	"github.com/noah-isme/enrollment-query-api/internal/middleware"
	"github.com/noah-isme/enrollment-query-api/internal/repository"
	"github.com/noah-isme/enrollment-query-api/internal/service"
	"github.com/noah-isme/enrollment-query-api/pkg/cache"
	"github.com/noah-isme/enrollment-query-api/pkg/config"
	"github.com/noah-isme/enrollment-query-api/pkg/database"
	"github.com/noah-isme/enrollment-query-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/enrollment-query-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/enrollment-query-api/pkg/middleware/requestid"
)

// @title Enrollment Query API
// @version 1.0.0
// @description Student and course enrollment store with composable filter queries.
// @BasePath /api/v1
// @schemes http
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

	ctx := context.Background()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	if err := repository.EnsureSchema(ctx, db); err != nil {
		logr.Fatal("failed to ensure schema", zap.Error(err))
	}

	var redisClient *redis.Client
	if cfg.Query.CacheEnabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, query cache disabled", zap.Error(err))
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	metricsSvc := service.NewMetricsService()

	var cacheClient redis.UniversalClient
	if redisClient != nil {
		cacheClient = redisClient
	}
	cacheSvc := service.NewCacheService(repository.NewCacheRepository(cacheClient), metricsSvc, cfg.Query.CacheTTL, logr, cacheClient != nil)

	studentRepo := repository.NewStudentRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)

	defaultStrategy, err := service.ParseStrategy(cfg.Query.DefaultStrategy, service.StrategyIntersection)
	if err != nil {
		logr.Fatal("invalid DEFAULT_FILTER_STRATEGY", zap.Error(err))
	}

	querySvc := service.NewStudentQueryService(studentRepo, service.StudentQueryOptions{
		Cache:           cacheSvc,
		Metrics:         metricsSvc,
		Logger:          logr,
		DefaultStrategy: defaultStrategy,
		CacheTTL:        cfg.Query.CacheTTL,
	})

	if cfg.Seed.OnStart {
		seed := cfg.Seed.RandomSeed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		seeder := service.NewSeedService(studentRepo, courseRepo, enrollmentRepo, cacheSvc, rand.New(rand.NewSource(seed)), cfg.Seed.StudentCount, logr)
		if _, err := seeder.Seed(ctx); err != nil {
			logr.Fatal("failed to seed store", zap.Error(err))
		}
	}

	courseSvc := service.NewCourseService(courseRepo, studentRepo, cacheSvc, validator.New(), logr)
	exportSvc := service.NewExportService(querySvc, enrollmentRepo, nil, nil, logr)
	tokenSvc := service.NewTokenService(cfg.JWT.Secret)

	checks := map[string]handler.ReadinessCheck{
		"postgres": db.PingContext,
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	handler.RegisterRoutes(r, cfg.APIPrefix, handler.Handlers{
		Students: handler.NewStudentHandler(querySvc, exportSvc, courseSvc),
		Courses:  handler.NewCourseHandler(courseSvc),
		Metrics:  handler.NewMetricsHandler(metricsSvc, checks),
		AuditLog: logr.Named("audit"),
	}, tokenSvc)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env, "strategy", defaultStrategy, "query_cache", cacheSvc.Enabled())
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
