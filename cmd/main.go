package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Gopher0727/ChatCore/config"
	"github.com/Gopher0727/ChatCore/internal/event"
	"github.com/Gopher0727/ChatCore/internal/handler"
	"github.com/Gopher0727/ChatCore/internal/pkg/kafka"
	"github.com/Gopher0727/ChatCore/internal/pkg/redis"
	"github.com/Gopher0727/ChatCore/internal/repository"
	"github.com/Gopher0727/ChatCore/internal/router"
	"github.com/Gopher0727/ChatCore/internal/service"
	"github.com/Gopher0727/ChatCore/internal/storage"
	"github.com/Gopher0727/ChatCore/middleware/jwt"
	logger "github.com/Gopher0727/ChatCore/middleware/log"
	"github.com/Gopher0727/ChatCore/utils/ratelimit"
	"github.com/Gopher0727/ChatCore/utils/snowflake"
)

func main() {
	configPath := flag.String("config", "./config.toml", "配置文件路径")
	issueFor := flag.String("issue-token", "", "为指定用户签发一对令牌后退出")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("配置初始化失败: %v", err)
	}

	zl, err := logger.NewLogger(&cfg.Logging)
	if err != nil {
		log.Fatalf("日志初始化失败: %v", err)
	}
	defer zl.Close()

	if err := run(cfg, zl.Logger, *issueFor); err != nil {
		zl.Error("服务异常退出", zap.Error(err))
		_ = zl.Close()
		os.Exit(1)
	}
}

func run(cfg *config.Config, zl *zap.Logger, issueFor string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tokens := jwt.NewTokenManager(
		cfg.JWT.Secret,
		cfg.JWT.Issuer,
		time.Duration(cfg.JWT.AccessTTLMinute)*time.Minute,
		time.Duration(cfg.JWT.RefreshTTLHour)*time.Hour,
	)

	// 初始化 Redis；不可用时降级为数据库序号，且不提供刷新令牌
	redisClient, err := redis.NewClient(&cfg.Redis)
	if err != nil {
		zl.Warn("redis 不可用，以降级模式运行", zap.Error(err))
		redisClient = nil
	} else {
		defer redisClient.Close()
	}

	if issueFor != "" {
		if redisClient == nil {
			return errors.New("issuing tokens requires redis")
		}
		pair, err := service.NewAuthService(tokens, redis.NewRefreshStore(redisClient)).IssueTokens(ctx, issueFor)
		if err != nil {
			return err
		}
		fmt.Printf("access_token=%s\nrefresh_token=%s\n", pair.AccessToken, pair.RefreshToken)
		return nil
	}

	// 初始化数据库（自动迁移）
	db, err := storage.Open(&cfg.Postgres)
	if err != nil {
		return fmt.Errorf("数据库初始化失败: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	// 事件分发：日志 + 可选的 Redis / Kafka 转发
	dispatcher := event.NewDispatcher(zl)
	dispatcher.SubscribeAll(event.LogSubscriber(zl.Named("events")))
	if redisClient != nil && cfg.Events.ForwardToRedis {
		dispatcher.SubscribeAll(event.RedisForwarder(redisClient, cfg.Events.RedisChannelPrefix))
	}
	if cfg.Kafka.Enabled || cfg.Events.ForwardToKafka {
		producer, err := kafka.NewProducer(&cfg.Kafka)
		if err != nil {
			return fmt.Errorf("kafka 生产者初始化失败: %w", err)
		}
		defer producer.Close()
		dispatcher.SubscribeAll(event.KafkaForwarder(producer))
	}

	ids, err := snowflake.NewGenerator(cfg.Snowflake.NodeID)
	if err != nil {
		return err
	}

	uows := repository.NewFactory(db, dispatcher, zl)

	// 初始化服务层
	var seq service.SeqGenerator = service.NewStoreSeq(uows)
	var authHandler *handler.AuthHandler
	if redisClient != nil {
		seq = service.NewRedisSeq(redisClient, uows)
		authHandler = handler.NewAuthHandler(service.NewAuthService(tokens, redis.NewRefreshStore(redisClient)), zl)
	}
	handlers := router.Handlers{
		Channel: handler.NewChannelHandler(service.NewChannelService(uows, zl), zl),
		Message: handler.NewMessageHandler(service.NewMessageService(uows, seq, ids, zl), zl),
		File:    handler.NewFileHandler(service.NewFileService(uows, zl), zl),
		Auth:    authHandler,
	}

	health := func(c *gin.Context) error {
		if err := sqlDB.PingContext(c.Request.Context()); err != nil {
			return err
		}
		if redisClient != nil {
			return redisClient.Ping(c.Request.Context())
		}
		return nil
	}

	// 基于 Redis 的按用户限流
	var limits router.Limits
	if redisClient != nil && cfg.RateLimit.Enabled {
		limiter := ratelimit.NewLimiter(redisClient, zl, cfg.RateLimit.FailOpen)
		apiRule, messageRule := ratelimit.RulesFrom(&cfg.RateLimit)
		limits.API = ratelimit.Middleware(limiter, "api", apiRule)
		limits.Messages = ratelimit.Middleware(limiter, "messages", messageRule)
	}

	gin.SetMode(cfg.Server.Mode)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router.New(zl, tokens, handlers, health, limits),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		zl.Info("正在启动服务器", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		zl.Info("正在关闭服务器")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
