package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Member 会员账户表
// points 是积分流水的缓存值，任何修改必须与一条 PointTransaction 同事务写入，
// 保证 points == 流水带符号增量之和（对账不变式）
type Member struct {
	ID          int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID      int64           `gorm:"uniqueIndex;not null" json:"user_id"`
	MemberLevel int             `gorm:"not null;default:1" json:"member_level"`
	Points      int64           `gorm:"not null;default:0" json:"points"`
	Balance     decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0" json:"balance"`
	ExpiredAt   *time.Time      `json:"expired_at"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Member) TableName() string {
	return "members"
}

// IsExpired 会员是否已过期
func (m *Member) IsExpired() bool {
	if m.ExpiredAt == nil {
		return false
	}
	return time.Now().After(*m.ExpiredAt)
}
