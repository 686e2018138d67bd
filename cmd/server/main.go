package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "taskflow/docs" // swagger docs

	"github.com/labstack/echo/v4"

	"taskflow/internal/auth"
	"taskflow/internal/cache"
	"taskflow/internal/config"
	"taskflow/internal/db"
	"taskflow/internal/handler"
	"taskflow/internal/realtime"
	"taskflow/internal/repository"
	"taskflow/internal/router"
	"taskflow/internal/service"
)

// @title Taskflow API
// @version 1.0
// @description Task management API with role-based permissions, scheduled housekeeping and productivity analytics.
// @host localhost:8080
// @BasePath /api
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gormDB, err := db.Open(cfg.DBDriver, cfg.DatabaseDSN, db.Options{
		MaxOpenConns: cfg.DBMaxOpen,
		MaxIdleConns: cfg.DBMaxIdle,
	})
	if err != nil {
		log.Fatalf("database init: %v", err)
	}

	// Drop tables if RESET_DB environment variable is set
	if os.Getenv("RESET_DB") == "true" {
		log.Println("RESET_DB=true detected, dropping all tables...")
		if err := db.Reset(gormDB); err != nil {
			log.Printf("Warning: failed to drop tables: %v", err)
		}
	}

	if err := db.Migrate(gormDB); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	cacheClient := cache.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)

	// Initialize repositories
	userRepo := repository.NewUserRepository(gormDB)
	taskRepo := repository.NewTaskRepository(gormDB)
	categoryRepo := repository.NewCategoryRepository(gormDB)

	// Initialize auth components
	jwtService := auth.NewJWTService(cfg.JWTSecret)
	tokenStore := auth.NewTokenStore(cacheClient)

	// Initialize services
	authService := service.NewAuthService(userRepo, jwtService, tokenStore)
	userService := service.NewUserService(userRepo, cacheClient)

	// Task changes are pushed to connected clients; the hub stops with the process.
	hub := realtime.NewHub()
	go hub.Run(ctx)
	taskService := service.WithTaskEvents(service.NewTaskService(taskRepo, userRepo, categoryRepo), hub)
	categoryService := service.NewCategoryService(categoryRepo)
	analyticsService := service.NewAnalyticsService(taskRepo, cfg.Location())
	housekeepingService := service.NewHousekeepingService(taskService, taskRepo)

	scheduler := service.NewSchedulerService(cfg.Location())
	if cfg.SchedulerEnabled {
		err := housekeepingService.Register(scheduler, service.JobSpecs{
			OverdueSweep:        cfg.OverdueSweepSpec,
			VisibilitySweep:     cfg.VisibilitySweepSpec,
			NotificationCleanup: cfg.NotificationCleanupSpec,
		}, cfg.JobTimeout)
		if err != nil {
			log.Fatalf("scheduler: %v", err)
		}
		scheduler.Start()
		log.Printf("Scheduler started with %d jobs", scheduler.Entries())
	}

	e := echo.New()
	router.Register(e, router.Deps{
		JWT:          jwtService,
		TokenStore:   tokenStore,
		Users:        userService,
		AllowOrigins: cfg.AllowOrigins,
		Health: map[string]func(ctx context.Context) error{
			"database": func(ctx context.Context) error {
				sqlDB, err := gormDB.DB()
				if err != nil {
					return err
				}
				return sqlDB.PingContext(ctx)
			},
			"redis": cacheClient.Ping,
		},
	}, router.Handlers{
		Auth:        handler.NewAuthHandler(authService),
		User:        handler.NewUserHandler(userService),
		Task:        handler.NewTaskHandler(taskService),
		Category:    handler.NewCategoryHandler(categoryService),
		Analytics:   handler.NewAnalyticsHandler(analyticsService),
		Maintenance: handler.NewMaintenanceHandler(housekeepingService),
		Realtime:    handler.NewRealtimeHandler(hub, handler.AllowedOrigins(cfg.AllowOrigins)),
	})

	log.Printf("Swagger documentation available at: %s", swaggerURL(cfg.SwaggerHost, cfg.ServerPort))

	go func() {
		addr := ":" + cfg.ServerPort
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server start: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown: %v", err)
	}
	scheduler.Stop()
	if err := cacheClient.Close(); err != nil {
		log.Printf("cache close: %v", err)
	}
	if sqlDB, err := gormDB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// swaggerURL may receive a host with or without a scheme.
func swaggerURL(host, port string) string {
	if host == "" {
		return "http://localhost:" + port + "/swagger/index.html"
	}
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "http://" + host
	}
	return strings.TrimRight(host, "/") + "/swagger/index.html"
}
