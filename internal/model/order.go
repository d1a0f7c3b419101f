package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	OrderStatusPending   = "PENDING"
	OrderStatusPaid      = "PAID"
	OrderStatusCancelled = "CANCELLED"
	OrderStatusRefunded  = "REFUNDED"
)

// ValidStatusTransitions 订单状态机
// PAID 之后支付路径不再允许任何变更（退款状态仅为枚举预留）
var ValidStatusTransitions = map[string][]string{
	OrderStatusPending: {OrderStatusPaid, OrderStatusCancelled},
	OrderStatusPaid:    {OrderStatusRefunded},
}

func CanTransitionTo(currentStatus, targetStatus string) bool {
	allowedStatuses, exists := ValidStatusTransitions[currentStatus]
	if !exists {
		return false
	}
	for _, s := range allowedStatuses {
		if s == targetStatus {
			return true
		}
	}
	return false
}

const (
	ProductTypePoints       = "points"
	ProductTypeMember       = "member"
	ProductTypeSubscription = "subscription"
)

// PaymentMethodAlipay 支付渠道标识，写入订单和积分流水的 related_type
const PaymentMethodAlipay = "alipay"

// Order 订单表
// order_no 创建时生成且全局唯一；amount 创建后不可变；
// 状态只能沿 ValidStatusTransitions 单向流转
type Order struct {
	ID            int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderNo       string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"order_no"`
	UserID        int64           `gorm:"index;not null" json:"user_id"`
	ProductID     int64           `gorm:"not null" json:"product_id"`
	ProductType   string          `gorm:"type:varchar(20);not null" json:"product_type"`
	Amount        decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"amount"`
	Quantity      int             `gorm:"not null;default:1" json:"quantity"`
	Status        string          `gorm:"type:varchar(20);index;not null" json:"status"`
	PaymentMethod string          `gorm:"type:varchar(20)" json:"payment_method"`
	PaymentTime   *time.Time      `json:"payment_time"`
	Description   string          `gorm:"type:varchar(256)" json:"description"`
	CreatedAt     time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Order) TableName() string {
	return "orders"
}

func (o *Order) IsPaid() bool {
	return o.Status == OrderStatusPaid
}

func (o *Order) CanCancel() bool {
	return o.Status == OrderStatusPending
}
