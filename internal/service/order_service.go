package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"memberpay/internal/config"
	"memberpay/internal/model"
	"memberpay/internal/repository"
)

type OrderService struct {
	db        *gorm.DB
	cfg       *config.Config
	log       *logrus.Logger
	orderRepo *repository.OrderRepository
}

func NewOrderService(db *gorm.DB, cfg *config.Config, log *logrus.Logger) *OrderService {
	return &OrderService{
		db:        db,
		cfg:       cfg,
		log:       log,
		orderRepo: repository.NewOrderRepository(db),
	}
}

func (s *OrderService) GetOrder(ctx context.Context, orderNo string) (*model.Order, error) {
	return s.orderRepo.GetByOrderNo(ctx, orderNo)
}

func (s *OrderService) ListUserOrders(ctx context.Context, userID int64, page, pageSize int) ([]*model.Order, int64, error) {
	return s.orderRepo.ListByUserID(ctx, userID, page, pageSize)
}

// CancelOrder 取消未支付订单（管理动作，支付路径不走这里）
func (s *OrderService) CancelOrder(ctx context.Context, orderNo string) error {
	order, err := s.orderRepo.GetByOrderNo(ctx, orderNo)
	if err != nil {
		return err
	}
	if !order.CanCancel() {
		return repository.ErrOrderStatusInvalid
	}
	return s.orderRepo.UpdateStatus(ctx, nil, orderNo, model.OrderStatusPending, model.OrderStatusCancelled)
}

// CloseExpiredOrders 关闭超过支付时限的待支付订单
func (s *OrderService) CloseExpiredOrders(ctx context.Context, limit int) (int, error) {
	timeout := time.Duration(s.cfg.Business.OrderTimeoutMinutes) * time.Minute
	before := time.Now().Add(-timeout)

	orders, err := s.orderRepo.GetExpiredPending(ctx, before, limit)
	if err != nil {
		return 0, err
	}

	closedCount := 0
	for _, order := range orders {
		err := s.orderRepo.UpdateStatus(ctx, nil, order.OrderNo, model.OrderStatusPending, model.OrderStatusCancelled)
		if err != nil {
			// 扫描期间被支付的订单会转移失败，跳过即可
			continue
		}
		closedCount++
		s.log.WithFields(logrus.Fields{
			"order_no": order.OrderNo,
			"user_id":  order.UserID,
		}).Info("超时订单已关闭")
	}
	return closedCount, nil
}
