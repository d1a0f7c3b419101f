package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"memberpay/internal/model"
)

var (
	ErrOrderNotFound      = errors.New("订单不存在")
	ErrOrderStatusInvalid = errors.New("订单状态不合法")
)

type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) Create(ctx context.Context, tx *gorm.DB, order *model.Order) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(order).Error
}

func (r *OrderRepository) GetByOrderNo(ctx context.Context, orderNo string) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).Where("order_no = ?", orderNo).First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

// MarkPaid 把订单从 PENDING 置为 PAID（CAS）
// 返回是否由本次调用完成状态翻转：并发通知同时到达时只有一个能翻转成功，
// 落败方观察到 false 后按已支付处理
func (r *OrderRepository) MarkPaid(ctx context.Context, tx *gorm.DB, orderNo, paymentMethod string, paidAt time.Time) (bool, error) {
	if tx == nil {
		tx = r.db
	}

	result := tx.WithContext(ctx).
		Model(&model.Order{}).
		Where("order_no = ? AND status = ?", orderNo, model.OrderStatusPending).
		Updates(map[string]interface{}{
			"status":         model.OrderStatusPaid,
			"payment_method": paymentMethod,
			"payment_time":   &paidAt,
		})

	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// UpdateStatus 按状态机流转订单状态
func (r *OrderRepository) UpdateStatus(ctx context.Context, tx *gorm.DB, orderNo string, fromStatus, toStatus string) error {
	if !model.CanTransitionTo(fromStatus, toStatus) {
		return ErrOrderStatusInvalid
	}

	if tx == nil {
		tx = r.db
	}

	result := tx.WithContext(ctx).
		Model(&model.Order{}).
		Where("order_no = ? AND status = ?", orderNo, fromStatus).
		Update("status", toStatus)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrOrderStatusInvalid
	}
	return nil
}

// GetExpiredPending 查询超过支付时限仍未支付的订单
func (r *OrderRepository) GetExpiredPending(ctx context.Context, before time.Time, limit int) ([]*model.Order, error) {
	var orders []*model.Order
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", model.OrderStatusPending, before).
		Limit(limit).
		Find(&orders).Error
	return orders, err
}

func (r *OrderRepository) ListByUserID(ctx context.Context, userID int64, page, pageSize int) ([]*model.Order, int64, error) {
	var orders []*model.Order
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Order{}).Where("user_id = ?", userID)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&orders).Error

	return orders, total, err
}
