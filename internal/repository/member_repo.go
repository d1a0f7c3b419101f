package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"memberpay/internal/model"
)

var (
	ErrMemberNotFound  = errors.New("会员不存在")
	ErrPointsNotEnough = errors.New("积分余额不足")
)

type MemberRepository struct {
	db *gorm.DB
}

func NewMemberRepository(db *gorm.DB) *MemberRepository {
	return &MemberRepository{db: db}
}

func (r *MemberRepository) GetByUserID(ctx context.Context, userID int64) (*model.Member, error) {
	var member model.Member
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&member).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, err
	}
	return &member, nil
}

func (r *MemberRepository) GetByUserIDTx(ctx context.Context, tx *gorm.DB, userID int64) (*model.Member, error) {
	var member model.Member
	err := tx.WithContext(ctx).Where("user_id = ?", userID).First(&member).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, err
	}
	return &member, nil
}

func (r *MemberRepository) GetOrCreate(ctx context.Context, userID int64) (*model.Member, error) {
	member, err := r.GetByUserID(ctx, userID)
	if err == nil {
		return member, nil
	}
	if !errors.Is(err, ErrMemberNotFound) {
		return nil, err
	}

	newMember := &model.Member{
		UserID:      userID,
		MemberLevel: 1,
		Points:      0,
	}

	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).
		Create(newMember).Error
	if err != nil {
		return nil, err
	}

	return r.GetByUserID(ctx, userID)
}

// AddPoints 原子加积分，必须与对应流水同事务调用
func (r *MemberRepository) AddPoints(ctx context.Context, tx *gorm.DB, userID int64, points int64) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.Member{}).
		Where("user_id = ?", userID).
		Update("points", gorm.Expr("points + ?", points))

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrMemberNotFound
	}
	return nil
}

// DeductPoints 原子扣积分，余额不足时拒绝
func (r *MemberRepository) DeductPoints(ctx context.Context, tx *gorm.DB, userID int64, points int64) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.Member{}).
		Where("user_id = ? AND points >= ?", userID, points).
		Update("points", gorm.Expr("points - ?", points))

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		if _, err := r.GetByUserIDTx(ctx, tx, userID); err != nil {
			return err
		}
		return ErrPointsNotEnough
	}
	return nil
}
