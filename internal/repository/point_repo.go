package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"memberpay/internal/model"
)

type PointTransactionRepository struct {
	db *gorm.DB
}

func NewPointTransactionRepository(db *gorm.DB) *PointTransactionRepository {
	return &PointTransactionRepository{db: db}
}

func (r *PointTransactionRepository) Create(ctx context.Context, tx *gorm.DB, trans *model.PointTransaction) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(trans).Error
}

// GetByRelated 按来源查流水，未找到返回 nil
func (r *PointTransactionRepository) GetByRelated(ctx context.Context, relatedID int64, relatedType string) (*model.PointTransaction, error) {
	var trans model.PointTransaction
	err := r.db.WithContext(ctx).
		Where("related_id = ? AND related_type = ?", relatedID, relatedType).
		First(&trans).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &trans, nil
}

func (r *PointTransactionRepository) ListByUserID(ctx context.Context, userID int64, page, pageSize int) ([]*model.PointTransaction, int64, error) {
	var transactions []*model.PointTransaction
	var total int64

	query := r.db.WithContext(ctx).Model(&model.PointTransaction{}).Where("user_id = ?", userID)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&transactions).Error

	return transactions, total, err
}

// SumByUserID 按流水重算用户积分余额（对账用）
func (r *PointTransactionRepository) SumByUserID(ctx context.Context, userID int64) (int64, error) {
	var transactions []*model.PointTransaction
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Find(&transactions).Error
	if err != nil {
		return 0, err
	}

	var sum int64
	for _, t := range transactions {
		sum += t.SignedPoints()
	}
	return sum, nil
}
