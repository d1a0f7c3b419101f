package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"memberpay/internal/model"
	"memberpay/internal/repository"
	"memberpay/pkg/idgen"
)

var (
	ErrInvalidPoints = errors.New("点数必须大于0")
)

// MemberService 会员积分账户
type MemberService struct {
	db         *gorm.DB
	log        *logrus.Logger
	memberRepo *repository.MemberRepository
	pointRepo  *repository.PointTransactionRepository
}

func NewMemberService(db *gorm.DB, log *logrus.Logger) *MemberService {
	return &MemberService{
		db:         db,
		log:        log,
		memberRepo: repository.NewMemberRepository(db),
		pointRepo:  repository.NewPointTransactionRepository(db),
	}
}

func (s *MemberService) GetAccount(ctx context.Context, userID int64) (*model.Member, error) {
	return s.memberRepo.GetOrCreate(ctx, userID)
}

// ConsumePoints 扣减积分
// 扣减与消费流水同事务落库，余额不足时整体拒绝
func (s *MemberService) ConsumePoints(ctx context.Context, userID int64, points int64, description string) (*model.PointTransaction, error) {
	if points <= 0 {
		return nil, ErrInvalidPoints
	}

	var transaction *model.PointTransaction
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.memberRepo.DeductPoints(ctx, tx, userID, points); err != nil {
			return err
		}

		member, err := s.memberRepo.GetByUserIDTx(ctx, tx, userID)
		if err != nil {
			return err
		}

		transaction = &model.PointTransaction{
			TransactionNo: idgen.GenerateTransactionNo(),
			UserID:        userID,
			Type:          model.PointTransactionTypeConsume,
			Points:        points,
			BalanceAfter:  member.Points,
			Description:   description,
		}
		return s.pointRepo.Create(ctx, tx, transaction)
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"user_id": userID,
		"points":  points,
	}).Info("积分消费成功")
	return transaction, nil
}

func (s *MemberService) ListTransactions(ctx context.Context, userID int64, page, pageSize int) ([]*model.PointTransaction, int64, error) {
	return s.pointRepo.ListByUserID(ctx, userID, page, pageSize)
}

// Reconcile 校验缓存余额与流水重算值的一致性
// 返回缓存值与重算值，两者不等说明存在绕过流水的余额修改
func (s *MemberService) Reconcile(ctx context.Context, userID int64) (cached int64, recomputed int64, err error) {
	member, err := s.memberRepo.GetByUserID(ctx, userID)
	if err != nil {
		return 0, 0, err
	}

	recomputed, err = s.pointRepo.SumByUserID(ctx, userID)
	if err != nil {
		return 0, 0, err
	}

	if member.Points != recomputed {
		s.log.WithFields(logrus.Fields{
			"user_id":    userID,
			"cached":     member.Points,
			"recomputed": recomputed,
		}).Error("积分余额与流水不一致")
		return member.Points, recomputed, fmt.Errorf("积分余额与流水不一致: %d != %d", member.Points, recomputed)
	}
	return member.Points, recomputed, nil
}
