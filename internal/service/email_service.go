package service

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"memberpay/internal/config"
	"memberpay/internal/model"
	"memberpay/internal/repository"
)

var (
	ErrSendTooFrequent   = errors.New("发送过于频繁，请稍后再试")
	ErrSendLimitExceeded = errors.New("今日发送次数已达上限")
	ErrCodeInvalid       = errors.New("验证码错误或已过期")
)

// EmailCodeService 邮箱验证码
// 验证码与限频状态存 Redis，邮件投递任务写入发件箱由后台发送，
// 投递成功与否可在发件箱表中追溯
type EmailCodeService struct {
	rdb        *redis.Client
	cfg        *config.Config
	log        *logrus.Logger
	outboxRepo *repository.OutboxRepository
}

func NewEmailCodeService(rdb *redis.Client, outboxRepo *repository.OutboxRepository, cfg *config.Config, log *logrus.Logger) *EmailCodeService {
	return &EmailCodeService{
		rdb:        rdb,
		cfg:        cfg,
		log:        log,
		outboxRepo: outboxRepo,
	}
}

func codeKey(purpose, email string) string {
	return fmt.Sprintf("email:code:%s:%s", purpose, email)
}

func resendKey(purpose, email string) string {
	return fmt.Sprintf("email:code:resend:%s:%s", purpose, email)
}

func dailyEmailKey(email string) string {
	return fmt.Sprintf("email:code:daily:email:%s:%s", time.Now().Format("20060102"), email)
}

func dailyIPKey(ip string) string {
	return fmt.Sprintf("email:code:daily:ip:%s:%s", time.Now().Format("20060102"), ip)
}

// SendCode 生成并投递验证码
// 同一邮箱受重发间隔限制，邮箱和来源IP各有单日上限
func (s *EmailCodeService) SendCode(ctx context.Context, email, purpose, clientIP string) error {
	exists, err := s.rdb.Exists(ctx, resendKey(purpose, email)).Result()
	if err != nil {
		return err
	}
	if exists > 0 {
		return ErrSendTooFrequent
	}

	emailCount, err := s.rdb.Incr(ctx, dailyEmailKey(email)).Result()
	if err != nil {
		return err
	}
	if emailCount == 1 {
		s.rdb.Expire(ctx, dailyEmailKey(email), 24*time.Hour)
	}
	if emailCount > int64(s.cfg.Email.DailyLimitPerEmail) {
		return ErrSendLimitExceeded
	}

	ipCount, err := s.rdb.Incr(ctx, dailyIPKey(clientIP)).Result()
	if err != nil {
		return err
	}
	if ipCount == 1 {
		s.rdb.Expire(ctx, dailyIPKey(clientIP), 24*time.Hour)
	}
	if ipCount > int64(s.cfg.Email.DailyLimitPerIP) {
		return ErrSendLimitExceeded
	}

	code, err := randomCode(s.cfg.Email.CodeLength)
	if err != nil {
		return err
	}

	expire := time.Duration(s.cfg.Email.CodeExpireMinutes) * time.Minute
	if err := s.rdb.Set(ctx, codeKey(purpose, email), code, expire).Err(); err != nil {
		return err
	}

	interval := time.Duration(s.cfg.Email.ResendIntervalSeconds) * time.Second
	if err := s.rdb.Set(ctx, resendKey(purpose, email), "1", interval).Err(); err != nil {
		return err
	}

	payload, _ := json.Marshal(map[string]interface{}{
		"email":          email,
		"code":           code,
		"purpose":        purpose,
		"expire_minutes": s.cfg.Email.CodeExpireMinutes,
	})
	msg := &model.OutboxMessage{
		MessageKey: email,
		Topic:      s.cfg.Kafka.Topic.EmailSend,
		Payload:    string(payload),
		Status:     model.OutboxStatusPending,
	}
	if err := s.outboxRepo.Create(ctx, nil, msg); err != nil {
		return fmt.Errorf("写入邮件任务失败: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"email":   email,
		"purpose": purpose,
	}).Info("邮箱验证码已生成，投递任务已入队")
	return nil
}

// VerifyCode 校验验证码，校验通过即失效（一次性）
func (s *EmailCodeService) VerifyCode(ctx context.Context, email, purpose, code string) error {
	stored, err := s.rdb.Get(ctx, codeKey(purpose, email)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCodeInvalid
		}
		return err
	}

	if stored != code {
		return ErrCodeInvalid
	}

	s.rdb.Del(ctx, codeKey(purpose, email))
	return nil
}

func randomCode(length int) (string, error) {
	if length <= 0 {
		length = 6
	}
	digits := make([]byte, length)
	for i := range digits {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		digits[i] = byte('0' + n.Int64())
	}
	return string(digits), nil
}
