package job

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"memberpay/internal/config"
	"memberpay/internal/infrastructure/mq"
	"memberpay/internal/model"
	"memberpay/internal/repository"
)

// OutboxSender 发件箱投递任务
// 轮询 PENDING 消息发往 Kafka，失败计数并在超限后标记 FAILED，
// 投递状态保留在表中可供排查
type OutboxSender struct {
	db         *gorm.DB
	outboxRepo *repository.OutboxRepository
	producer   *mq.Producer
	cfg        *config.Config
	log        *logrus.Logger
	stopCh     chan struct{}
	interval   time.Duration
	batchSize  int
}

func NewOutboxSender(db *gorm.DB, producer *mq.Producer, cfg *config.Config, log *logrus.Logger) *OutboxSender {
	return &OutboxSender{
		db:         db,
		outboxRepo: repository.NewOutboxRepository(db),
		producer:   producer,
		cfg:        cfg,
		log:        log,
		stopCh:     make(chan struct{}),
		interval:   100 * time.Millisecond,
		batchSize:  100,
	}
}

func (s *OutboxSender) Start(ctx context.Context) {
	s.log.Info("[OutboxSender] 消息发送任务启动")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("[OutboxSender] 收到停止信号，任务退出")
			return
		case <-s.stopCh:
			s.log.Info("[OutboxSender] 任务停止")
			return
		case <-ticker.C:
			s.processPendingMessages(ctx)
		}
	}
}

func (s *OutboxSender) Stop() {
	close(s.stopCh)
}

func (s *OutboxSender) processPendingMessages(ctx context.Context) {
	messages, err := s.outboxRepo.GetPendingMessages(ctx, s.batchSize)
	if err != nil {
		s.log.WithError(err).Error("[OutboxSender] 查询消息失败")
		return
	}

	for _, msg := range messages {
		s.sendMessage(ctx, msg)
	}
}

func (s *OutboxSender) sendMessage(ctx context.Context, msg *model.OutboxMessage) {
	err := s.producer.SendMessage(msg.Topic, msg.MessageKey, msg.Payload)

	if err == nil {
		if updateErr := s.outboxRepo.UpdateStatus(ctx, msg.ID, model.OutboxStatusSent); updateErr != nil {
			s.log.WithError(updateErr).WithField("id", msg.ID).Error("[OutboxSender] 更新消息状态失败")
		} else {
			s.log.WithFields(logrus.Fields{
				"id":    msg.ID,
				"topic": msg.Topic,
				"key":   msg.MessageKey,
			}).Info("[OutboxSender] 消息发送成功")
		}
		return
	}

	s.log.WithError(err).WithField("id", msg.ID).Warn("[OutboxSender] 消息发送失败")

	if err := s.outboxRepo.IncrementRetryCount(ctx, msg.ID); err != nil {
		s.log.WithError(err).WithField("id", msg.ID).Error("[OutboxSender] 增加重试次数失败")
	}

	if msg.RetryCount+1 >= s.cfg.Business.MaxRetryCount {
		if err := s.outboxRepo.MarkAsFailed(ctx, msg.ID); err != nil {
			s.log.WithError(err).WithField("id", msg.ID).Error("[OutboxSender] 标记消息失败状态失败")
		} else {
			s.log.WithField("id", msg.ID).Error("[OutboxSender] 消息超过最大重试次数，标记为失败")
		}
	}
}
