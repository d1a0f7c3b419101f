package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memberpay/internal/model"
	"memberpay/internal/repository"
)

func TestGetAccountCreatesMember(t *testing.T) {
	db := newTestDB(t)
	svc := NewMemberService(db, newServiceLogger())
	ctx := context.Background()

	member, err := svc.GetAccount(ctx, 2001)
	require.NoError(t, err)
	assert.Equal(t, int64(2001), member.UserID)
	assert.Equal(t, int64(0), member.Points)

	// 再次获取返回同一账户
	again, err := svc.GetAccount(ctx, 2001)
	require.NoError(t, err)
	assert.Equal(t, member.ID, again.ID)
}

func TestConsumePoints(t *testing.T) {
	db := newTestDB(t)
	svc := NewMemberService(db, newServiceLogger())
	ctx := context.Background()

	seedMember(t, db, 2001, 600)

	transaction, err := svc.ConsumePoints(ctx, 2001, 200, "调用翻译服务")
	require.NoError(t, err)
	assert.Equal(t, model.PointTransactionTypeConsume, transaction.Type)
	assert.Equal(t, int64(200), transaction.Points)
	assert.Equal(t, int64(400), transaction.BalanceAfter)
	assert.Equal(t, int64(-200), transaction.SignedPoints())

	assert.Equal(t, int64(400), memberPoints(t, db, 2001))
}

func TestConsumePointsInsufficient(t *testing.T) {
	db := newTestDB(t)
	svc := NewMemberService(db, newServiceLogger())
	ctx := context.Background()

	seedMember(t, db, 2001, 100)

	_, err := svc.ConsumePoints(ctx, 2001, 500, "余额不足的扣减")
	assert.ErrorIs(t, err, repository.ErrPointsNotEnough)

	// 整体回滚，余额和流水都不变
	assert.Equal(t, int64(100), memberPoints(t, db, 2001))
	var count int64
	require.NoError(t, db.Model(&model.PointTransaction{}).Where("user_id = ?", 2001).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestConsumePointsInvalid(t *testing.T) {
	db := newTestDB(t)
	svc := NewMemberService(db, newServiceLogger())

	_, err := svc.ConsumePoints(context.Background(), 2001, 0, "非法数量")
	assert.ErrorIs(t, err, ErrInvalidPoints)

	_, err = svc.ConsumePoints(context.Background(), 2001, -10, "负数")
	assert.ErrorIs(t, err, ErrInvalidPoints)
}

func TestListTransactions(t *testing.T) {
	db := newTestDB(t)
	svc := NewMemberService(db, newServiceLogger())
	ctx := context.Background()

	seedMember(t, db, 2001, 1000)
	for i := 0; i < 3; i++ {
		_, err := svc.ConsumePoints(ctx, 2001, 100, "消费")
		require.NoError(t, err)
	}

	transactions, total, err := svc.ListTransactions(ctx, 2001, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, transactions, 2)
}

// 充值与消费交替后，缓存余额必须等于流水重算值
func TestReconcile(t *testing.T) {
	db := newTestDB(t)
	cfg := newTestConfig()
	log := newServiceLogger()
	rechargeSvc := NewRechargeService(db, cfg, &stubGateway{}, log)
	memberSvc := NewMemberService(db, log)
	ctx := context.Background()

	seedMember(t, db, 2001, 0)
	orderNo := createPendingOrder(t, rechargeSvc, 2001, 3)
	require.NoError(t, rechargeSvc.ConfirmPayment(ctx, &PaymentNotice{
		OrderNo:     orderNo,
		TotalAmount: "50.00",
		TradeStatus: "TRADE_SUCCESS",
	}))

	_, err := memberSvc.ConsumePoints(ctx, 2001, 120, "消费")
	require.NoError(t, err)

	cached, recomputed, err := memberSvc.Reconcile(ctx, 2001)
	require.NoError(t, err)
	assert.Equal(t, int64(380), cached)
	assert.Equal(t, int64(380), recomputed)
}

func TestReconcileMismatch(t *testing.T) {
	db := newTestDB(t)
	svc := NewMemberService(db, newServiceLogger())
	ctx := context.Background()

	// 绕过流水直接改余额，对账必须报警
	seedMember(t, db, 2001, 50)

	_, _, err := svc.Reconcile(ctx, 2001)
	assert.Error(t, err)
}
