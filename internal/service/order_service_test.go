package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memberpay/internal/model"
	"memberpay/internal/repository"
)

func TestCancelOrder(t *testing.T) {
	db := newTestDB(t)
	cfg := newTestConfig()
	log := newServiceLogger()
	rechargeSvc := NewRechargeService(db, cfg, &stubGateway{}, log)
	orderSvc := NewOrderService(db, cfg, log)
	ctx := context.Background()

	orderNo := createPendingOrder(t, rechargeSvc, 1001, 3)

	require.NoError(t, orderSvc.CancelOrder(ctx, orderNo))

	order, err := orderSvc.GetOrder(ctx, orderNo)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusCancelled, order.Status)

	// 已取消的订单不能再取消
	assert.ErrorIs(t, orderSvc.CancelOrder(ctx, orderNo), repository.ErrOrderStatusInvalid)
}

func TestCancelPaidOrder(t *testing.T) {
	db := newTestDB(t)
	cfg := newTestConfig()
	log := newServiceLogger()
	rechargeSvc := NewRechargeService(db, cfg, &stubGateway{}, log)
	orderSvc := NewOrderService(db, cfg, log)
	ctx := context.Background()

	seedMember(t, db, 1001, 0)
	orderNo := createPendingOrder(t, rechargeSvc, 1001, 3)
	require.NoError(t, rechargeSvc.ConfirmPayment(ctx, &PaymentNotice{
		OrderNo:     orderNo,
		TotalAmount: "50.00",
		TradeStatus: "TRADE_SUCCESS",
	}))

	assert.ErrorIs(t, orderSvc.CancelOrder(ctx, orderNo), repository.ErrOrderStatusInvalid)
}

func TestCancelOrderNotFound(t *testing.T) {
	db := newTestDB(t)
	orderSvc := NewOrderService(db, newTestConfig(), newServiceLogger())

	err := orderSvc.CancelOrder(context.Background(), "ORD20240115000000000000")
	assert.ErrorIs(t, err, repository.ErrOrderNotFound)
}

func TestListUserOrders(t *testing.T) {
	db := newTestDB(t)
	cfg := newTestConfig()
	log := newServiceLogger()
	rechargeSvc := NewRechargeService(db, cfg, &stubGateway{}, log)
	orderSvc := NewOrderService(db, cfg, log)
	ctx := context.Background()

	createPendingOrder(t, rechargeSvc, 1001, 3)
	createPendingOrder(t, rechargeSvc, 1001, 5)
	createPendingOrder(t, rechargeSvc, 2002, 3)

	orders, total, err := orderSvc.ListUserOrders(ctx, 1001, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, orders, 2)
}

func TestCloseExpiredOrders(t *testing.T) {
	db := newTestDB(t)
	cfg := newTestConfig()
	log := newServiceLogger()
	rechargeSvc := NewRechargeService(db, cfg, &stubGateway{}, log)
	orderSvc := NewOrderService(db, cfg, log)
	ctx := context.Background()

	// 超过支付时限的待支付订单
	stale := &model.Order{
		OrderNo:     "ORD20240114000000000001",
		UserID:      1001,
		ProductID:   3,
		ProductType: model.ProductTypePoints,
		Amount:      decimal.RequireFromString("50.00"),
		Quantity:    1,
		Status:      model.OrderStatusPending,
	}
	require.NoError(t, db.Create(stale).Error)
	expiredAt := time.Now().Add(-2 * time.Hour)
	require.NoError(t, db.Model(stale).Update("created_at", expiredAt).Error)

	// 新订单不在关闭范围
	freshNo := createPendingOrder(t, rechargeSvc, 1001, 3)

	closed, err := orderSvc.CloseExpiredOrders(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, 1, closed)

	staleOrder, err := orderSvc.GetOrder(ctx, stale.OrderNo)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusCancelled, staleOrder.Status)

	freshOrder, err := orderSvc.GetOrder(ctx, freshNo)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusPending, freshOrder.Status)
}

func TestCloseExpiredOrdersSkipsPaid(t *testing.T) {
	db := newTestDB(t)
	cfg := newTestConfig()
	log := newServiceLogger()
	orderSvc := NewOrderService(db, cfg, log)
	ctx := context.Background()

	paid := &model.Order{
		OrderNo:     "ORD20240114000000000002",
		UserID:      1001,
		ProductID:   3,
		ProductType: model.ProductTypePoints,
		Amount:      decimal.RequireFromString("50.00"),
		Quantity:    1,
		Status:      model.OrderStatusPaid,
	}
	require.NoError(t, db.Create(paid).Error)
	require.NoError(t, db.Model(paid).Update("created_at", time.Now().Add(-2*time.Hour)).Error)

	closed, err := orderSvc.CloseExpiredOrders(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, 0, closed)

	order, err := orderSvc.GetOrder(ctx, paid.OrderNo)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusPaid, order.Status)
}
