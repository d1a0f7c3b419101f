package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"memberpay/internal/alipay"
	"memberpay/internal/config"
	"memberpay/internal/handler"
	"memberpay/internal/infrastructure/cache"
	"memberpay/internal/infrastructure/database"
	"memberpay/internal/infrastructure/mq"
	"memberpay/internal/job"
	"memberpay/pkg/idgen"
)

func main() {
	// 加载配置
	cfg := config.LoadConfig("config/config.yaml")

	// 日志
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	log.SetLevel(logrus.InfoLevel)

	// 初始化 ID 生成器
	idgen.Init(1)

	// 初始化 MySQL / Redis / Kafka
	db := database.InitMySQL(&cfg.MySQL)
	redisClient := cache.InitRedis(&cfg.Redis)

	producer, err := mq.NewProducer(&cfg.Kafka)
	if err != nil {
		log.Fatalf("创建 Kafka 生产者失败: %v", err)
	}
	defer producer.Close()

	// 支付宝网关客户端与验签器（启动时构造一次，显式注入）
	gateway, err := alipay.NewClient(&cfg.Alipay)
	if err != nil {
		log.Fatalf("初始化支付宝客户端失败: %v", err)
	}
	verifier, err := alipay.NewVerifierFromConfig(&cfg.Alipay, log)
	if err != nil {
		log.Fatalf("初始化支付宝验签器失败: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 启动后台任务
	outboxSender := job.NewOutboxSender(db, producer, cfg, log)
	go outboxSender.Start(ctx)

	orderTimeoutJob := job.NewOrderTimeoutJob(db, redisClient, cfg, log)
	go orderTimeoutJob.Start(ctx)

	// 设置路由
	router := handler.SetupRouter(db, redisClient, cfg, gateway, verifier, log)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Infof("服务启动，监听端口: %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("服务启动失败: %v", err)
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("正在关闭服务...")

	// 取消上下文，停止后台任务
	cancel()

	// 关闭 HTTP 服务（等待最多5秒）
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorf("服务关闭异常: %v", err)
	}

	log.Info("服务已关闭")
}
