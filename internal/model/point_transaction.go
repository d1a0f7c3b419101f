package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	PointTransactionTypeRecharge = "RECHARGE" // 充值入账
	PointTransactionTypeConsume  = "CONSUME"  // 消费扣减
	PointTransactionTypeRefund   = "REFUND"   // 退款（预留）
)

// PointTransaction 积分流水表
//
// 流水表设计原则：
// 1. 只追加，不修改，不删除
// 2. 每条流水记录交易后余额，便于校验缓存余额一致性
// 3. related_id + related_type 唯一索引兜底：同一订单的充值入账至多一条，
//    并发重复插入会触发唯一冲突并整体回滚
type PointTransaction struct {
	ID            int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	TransactionNo string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"transaction_no"`
	UserID        int64           `gorm:"index;not null" json:"user_id"`
	Type          string          `gorm:"type:varchar(20);not null" json:"type"`
	Points        int64           `gorm:"not null" json:"points"` // 数量为正，方向由 type 决定
	BalanceAfter  int64           `gorm:"not null" json:"balance_after"`
	Amount        decimal.Decimal `gorm:"type:decimal(10,2)" json:"amount"`
	Description   string          `gorm:"type:varchar(256)" json:"description"`
	RelatedID     *int64          `gorm:"uniqueIndex:uk_point_related" json:"related_id"`
	RelatedType   string          `gorm:"type:varchar(50);uniqueIndex:uk_point_related" json:"related_type"`
	CreatedAt     time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
}

func (PointTransaction) TableName() string {
	return "point_transactions"
}

// SignedPoints 带符号增量，入账为正、出账为负
func (t *PointTransaction) SignedPoints() int64 {
	if t.Type == PointTransactionTypeConsume {
		return -t.Points
	}
	return t.Points
}
