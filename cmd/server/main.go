package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ha-Ezer/wecc/config"
	"github.com/ha-Ezer/wecc/internal/api/handler"
	"github.com/ha-Ezer/wecc/internal/api/router"
	"github.com/ha-Ezer/wecc/internal/model"
	"github.com/ha-Ezer/wecc/internal/repository"
	"github.com/ha-Ezer/wecc/internal/service"
	"github.com/ha-Ezer/wecc/pkg/database"
	applogger "github.com/ha-Ezer/wecc/pkg/logger"
	"github.com/ha-Ezer/wecc/pkg/mailer"
	"github.com/ha-Ezer/wecc/pkg/rabbitmq"
	"github.com/ha-Ezer/wecc/pkg/redis"
	"github.com/ha-Ezer/wecc/pkg/spreadsheet"
)

func main() {
	configPath := flag.String("config", "", "配置文件路径（默认查找 ./config/config.yaml）")
	flag.Parse()

	// 1. 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志
	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("应用启动中...",
		zap.Int("port", cfg.Server.Port),
		zap.String("log_level", cfg.Log.Level),
		zap.String("sheet_id", cfg.Sheet.ID),
	)

	// 3. 表格存储：工作簿不存在时建好表头
	store := spreadsheet.NewExcelStore(cfg.Sheet.DataDir)
	initCtx, initCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := store.Create(initCtx, cfg.Sheet.ID, cfg.Sheet.SheetName, model.SheetHeader); err != nil {
		logger.Fatal("初始化工作簿失败", zap.String("data_dir", cfg.Sheet.DataDir), zap.Error(err))
	}
	initCancel()

	// 4. 数据库（可选：通知 outbox）
	var db *gorm.DB
	if cfg.Database.Host != "" {
		db, err = database.NewDB(&cfg.Database, cfg.Log.Level, logger)
		if err != nil {
			logger.Warn("数据库连接失败，outbox 通知通道不可用", zap.Error(err))
			db = nil
		} else if err := database.RunMigrations(db, logger); err != nil {
			logger.Warn("数据库迁移失败，outbox 通知通道不可用", zap.Error(err))
			db = nil
		}
	}

	// 5. Redis（可选：连接失败时降级运行，提交接口不限流）
	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb, err = redis.NewClient(&cfg.Redis, logger)
		if err != nil {
			logger.Warn("Redis 连接失败，提交限流将不可用", zap.Error(err))
			rdb = nil
		}
	}

	// 6. RabbitMQ（可选：通知队列）
	var publisher *rabbitmq.Publisher
	if cfg.AMQP.URL != "" {
		publisher, err = rabbitmq.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Queue)
		if err != nil {
			logger.Warn("RabbitMQ 连接失败，队列通知通道不可用", zap.Error(err))
			publisher = nil
		} else {
			logger.Info("RabbitMQ 连接成功", zap.String("queue", publisher.Queue()))
		}
	}

	// 7. 依赖注入: Repository → Service → Handler
	repo := repository.NewRepository(store, cfg.Sheet.ID, cfg.Sheet.SheetName, db)
	channels := buildChannels(cfg, repo, publisher, logger)
	svc := service.NewService(cfg, repo, channels, logger)
	h := handler.NewHandler(svc, logger)

	// 8. 初始化路由
	engine := router.Setup(cfg, h, rdb, logger)

	// 9. 启动 HTTP 服务器（优雅关闭）
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("HTTP 服务器已启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP 服务器异常", zap.Error(err))
		}
	}()

	// 10. 监听系统信号，优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("收到关闭信号，开始优雅关闭...", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("服务器关闭异常", zap.Error(err))
	}

	if publisher != nil {
		if err := publisher.Close(); err != nil {
			logger.Warn("关闭 RabbitMQ 连接失败", zap.Error(err))
		}
	}
	if db != nil {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	}
	if rdb != nil {
		rdb.Close()
	}

	logger.Info("服务器已关闭")
}

// buildChannels 按优先级组装通知通道：主 SMTP → 备用 SMTP → 队列 → outbox
func buildChannels(cfg *config.Config, repo *repository.Repository, publisher *rabbitmq.Publisher, logger *zap.Logger) []service.NotificationChannel {
	var channels []service.NotificationChannel

	if cfg.Mail.SMTPHost != "" {
		sender := mailer.NewSMTPSender(cfg.Mail.SMTPHost, cfg.Mail.SMTPPort, cfg.Mail.Username, cfg.Mail.Password)
		channels = append(channels, service.NewMailChannel("smtp", cfg.Mail.From, sender))
	}
	if fb := cfg.Mail.Fallback; fb.SMTPHost != "" {
		sender := mailer.NewSMTPSender(fb.SMTPHost, fb.SMTPPort, fb.Username, fb.Password)
		channels = append(channels, service.NewMailChannel("smtp-fallback", cfg.Mail.From, sender))
	}
	if publisher != nil {
		channels = append(channels, service.NewQueueChannel(publisher))
	}
	if repo.Notification != nil {
		channels = append(channels, service.NewOutboxChannel(repo.Notification))
	}

	names := make([]string, 0, len(channels))
	for _, ch := range channels {
		names = append(names, ch.Name())
	}
	if len(channels) == 0 {
		logger.Warn("未配置任何通知通道，运维通知只会写入日志")
	} else {
		logger.Info("通知通道已就绪", zap.Strings("channels", names))
	}
	return channels
}
