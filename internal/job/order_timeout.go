package job

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"memberpay/internal/config"
	"memberpay/internal/infrastructure/lock"
	"memberpay/internal/service"
)

// OrderTimeoutJob 超时订单关闭任务
// 扫描前先抢分布式锁，多实例部署时同一轮扫描只有一个执行者
type OrderTimeoutJob struct {
	db           *gorm.DB
	rdb          *redis.Client
	orderService *service.OrderService
	cfg          *config.Config
	log          *logrus.Logger
	stopCh       chan struct{}
	interval     time.Duration
	batchSize    int
	holder       string
}

func NewOrderTimeoutJob(db *gorm.DB, rdb *redis.Client, cfg *config.Config, log *logrus.Logger) *OrderTimeoutJob {
	hostname, _ := os.Hostname()
	return &OrderTimeoutJob{
		db:           db,
		rdb:          rdb,
		orderService: service.NewOrderService(db, cfg, log),
		cfg:          cfg,
		log:          log,
		stopCh:       make(chan struct{}),
		interval:     30 * time.Second,
		batchSize:    100,
		holder:       fmt.Sprintf("%s-%d", hostname, os.Getpid()),
	}
}

func (j *OrderTimeoutJob) Start(ctx context.Context) {
	j.log.Info("[OrderTimeoutJob] 订单超时任务启动")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.log.Info("[OrderTimeoutJob] 收到停止信号，任务退出")
			return
		case <-j.stopCh:
			j.log.Info("[OrderTimeoutJob] 任务停止")
			return
		case <-ticker.C:
			j.runOnce(ctx)
		}
	}
}

func (j *OrderTimeoutJob) Stop() {
	close(j.stopCh)
}

func (j *OrderTimeoutJob) runOnce(ctx context.Context) {
	jobLock := lock.NewJobLock(j.rdb, "order_timeout", j.holder, j.interval)
	acquired, err := jobLock.TryLock(ctx)
	if err != nil {
		j.log.WithError(err).Error("[OrderTimeoutJob] 获取任务锁失败")
		return
	}
	if !acquired {
		return
	}
	defer jobLock.Unlock(ctx)

	closed, err := j.orderService.CloseExpiredOrders(ctx, j.batchSize)
	if err != nil {
		j.log.WithError(err).Error("[OrderTimeoutJob] 关闭超时订单失败")
		return
	}
	if closed > 0 {
		j.log.WithField("closed", closed).Info("[OrderTimeoutJob] 本次关闭超时订单")
	}
}
