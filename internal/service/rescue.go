package service

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"rescue-ranger/internal/cache"
	"rescue-ranger/internal/config"
	"rescue-ranger/internal/database"
	"rescue-ranger/internal/dedup"
	"rescue-ranger/internal/evaluator"
	httpapi "rescue-ranger/internal/http"
	"rescue-ranger/internal/mqtt"
	"rescue-ranger/internal/notifier"
	"rescue-ranger/internal/pipeline"
	"rescue-ranger/internal/repository"
)

// RescueService 服务聚合：打开外部连接并装配各层组件
type RescueService struct {
	config      *config.Config
	db          *sql.DB
	redisClient *redis.Client
	logger      *zap.Logger

	// 各层组件
	readingsRepo *repository.ReadingsRepository
	usersRepo    *repository.UsersRepository
	cacheManager *cache.CacheManager
	deduplicator *dedup.Deduplicator
	evaluator    *evaluator.Evaluator
	orchestrator *notifier.Orchestrator
	pipeline     *pipeline.Pipeline
	router       *httpapi.Router

	httpServer   *http.Server
	mqttClient   *mqtt.Client
	mqttConsumer *mqtt.Consumer

	sweepStop chan struct{}
}

// NewRescueService 创建服务
func NewRescueService(cfg *config.Config, logger *zap.Logger) (*RescueService, error) {
	// 1. 连接数据库
	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// 2. 连接 Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	s := &RescueService{
		config:      cfg,
		db:          db,
		redisClient: redisClient,
		logger:      logger,
		sweepStop:   make(chan struct{}),
	}

	// 3. 装配各层组件
	s.readingsRepo = repository.NewReadingsRepository(db, logger)
	s.usersRepo = repository.NewUsersRepository(db, logger)
	s.cacheManager = cache.NewCacheManager(cfg, redisClient, logger)
	s.deduplicator = dedup.NewDeduplicator(time.Duration(cfg.Notify.CooldownSeconds) * time.Second)
	s.evaluator = evaluator.NewEvaluator(evaluator.Thresholds{
		HeartRateLow:  cfg.Thresholds.HeartRateLow,
		HeartRateHigh: cfg.Thresholds.HeartRateHigh,
		SpO2Low:       cfg.Thresholds.SpO2Low,
	})

	channels := notifier.Channels{
		Email:    notifier.NewEmailChannel(cfg, logger),
		SMS:      notifier.NewSMSChannel(cfg, logger),
		Push:     notifier.NewPushChannel(cfg, logger),
		Dispatch: notifier.NewDispatchChannel(cfg, logger),
	}
	s.orchestrator = notifier.NewOrchestrator(notifier.Config{
		MaxAttempts:    cfg.Notify.MaxAttempts,
		BaseDelay:      time.Duration(cfg.Notify.BaseDelayMs) * time.Millisecond,
		MaxDelay:       time.Duration(cfg.Notify.MaxDelayMs) * time.Millisecond,
		AttemptTimeout: time.Duration(cfg.Notify.AttemptTimeout) * time.Second,
		Workers:        cfg.Notify.Workers,
		RatePerSec:     cfg.Notify.RatePerSec,
	}, channels, cfg.Dispatch.URL, logger)

	s.pipeline = pipeline.NewPipeline(
		s.readingsRepo,
		s.usersRepo,
		s.cacheManager,
		s.evaluator,
		s.deduplicator,
		s.orchestrator,
		logger,
	)

	// 4. HTTP 路由
	s.router = httpapi.NewRouter(logger)
	s.router.RegisterReadingRoutes(httpapi.NewReadingHandler(s.pipeline, logger))

	// 5. 可选的 MQTT 读数来源
	if cfg.MQTT.Enabled {
		mqttClient, err := mqtt.NewClient(&cfg.MQTT, logger)
		if err != nil {
			db.Close()
			redisClient.Close()
			return nil, fmt.Errorf("failed to create MQTT client: %w", err)
		}
		s.mqttClient = mqttClient
		s.mqttConsumer = mqtt.NewConsumer(&cfg.MQTT, mqttClient, s.pipeline, logger)
	}

	return s, nil
}

// Start 启动服务（阻塞直到 HTTP 服务退出）
func (s *RescueService) Start(ctx context.Context) error {
	if s.mqttConsumer != nil {
		if err := s.mqttConsumer.Start(); err != nil {
			return fmt.Errorf("failed to start MQTT consumer: %w", err)
		}
	}

	// 定期清理去重表中过期的记录
	go s.sweepLoop()

	s.httpServer = &http.Server{
		Addr:    s.config.HTTP.Addr,
		Handler: s.router,
	}

	s.logger.Info("Rescue ranger service started",
		zap.String("addr", s.config.HTTP.Addr),
		zap.Bool("mqtt_enabled", s.config.MQTT.Enabled),
	)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server error: %w", err)
	}
	return nil
}

// Stop 优雅停机：停止摄入来源，等在途通知完成，再关闭连接
func (s *RescueService) Stop() {
	close(s.sweepStop)

	if s.mqttConsumer != nil {
		s.mqttConsumer.Stop()
		s.mqttClient.Disconnect()
	}

	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP server shutdown error", zap.Error(err))
		}
	}

	// 在途的通知扇出跑完再断开外部连接
	s.pipeline.Drain()

	if s.redisClient != nil {
		s.redisClient.Close()
	}
	if s.db != nil {
		s.db.Close()
	}

	s.logger.Info("Rescue ranger service stopped")
}

// sweepLoop 按冷却窗口周期清理去重表
func (s *RescueService) sweepLoop() {
	interval := time.Duration(s.config.Notify.CooldownSeconds) * time.Second
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			removed := s.deduplicator.Sweep(time.Now())
			if removed > 0 {
				s.logger.Debug("Swept expired dedup entries", zap.Int("removed", removed))
			}
		case <-s.sweepStop:
			return
		}
	}
}
