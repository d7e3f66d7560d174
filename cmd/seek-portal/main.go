package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/ashwinyue/seek-portal/internal/config"
	"github.com/ashwinyue/seek-portal/internal/database"
	"github.com/ashwinyue/seek-portal/internal/handler"
	"github.com/ashwinyue/seek-portal/internal/observability"
	"github.com/ashwinyue/seek-portal/internal/repository"
	"github.com/ashwinyue/seek-portal/internal/router"
	"github.com/ashwinyue/seek-portal/internal/service"
	"github.com/ashwinyue/seek-portal/internal/service/callback"
	"github.com/ashwinyue/seek-portal/internal/telemetry"
)

func main() {
	// 加载配置
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	observability.InitLogger(cfg.App.LogLevel, cfg.App.LogPretty)
	logger := observability.Component("main")

	// 设置 Gin 模式
	gin.SetMode(cfg.Server.Mode)

	ctx := context.Background()

	shutdownTracing, err := telemetry.Init(ctx, cfg.Telemetry.Endpoint, cfg.Telemetry.ServiceName, cfg.App.Version, cfg.Telemetry.Insecure)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init telemetry")
	}

	// 初始化数据库
	db, err := database.New(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init database")
	}
	defer db.Close()
	logger.Info().Str("dbname", cfg.Database.DBName).Msg("database connected")

	// 初始化 Redis（可选，用于会话缓存）
	var redisClient redis.UniversalClient
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.GetAddr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			logger.Warn().Err(err).Msg("redis unreachable, transcript cache will degrade to database reads")
		}
		cancel()
	}

	callback.SetupGlobalCallbacks(cfg.App.Debug)

	// 初始化各层
	repos := repository.NewRepositories(db.DB)
	services, err := service.NewServices(ctx, repos, cfg, redisClient)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init services")
	}
	defer services.Close()

	r := router.SetupRouter(handler.NewHandlers(services), cfg)

	// 创建 HTTP 服务器
	srv := &http.Server{
		Addr:         cfg.Server.GetAddr(),
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// 启动服务器
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")

	// 优雅关闭
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("telemetry shutdown failed")
	}

	logger.Info().Msg("server exited")
}
