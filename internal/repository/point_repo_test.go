package repository

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memberpay/internal/model"
)

func TestPointRelatedUniqueIndex(t *testing.T) {
	db := newTestDB(t)
	repo := NewPointTransactionRepository(db)
	ctx := context.Background()

	orderID := int64(42)
	first := &model.PointTransaction{
		TransactionNo: "TXN20240115000000000001",
		UserID:        1001,
		Type:          model.PointTransactionTypeRecharge,
		Points:        500,
		BalanceAfter:  500,
		Amount:        decimal.RequireFromString("50.00"),
		RelatedID:     &orderID,
		RelatedType:   model.PaymentMethodAlipay,
	}
	require.NoError(t, repo.Create(ctx, nil, first))

	// 同一订单的第二条入账流水触发唯一索引冲突
	dup := &model.PointTransaction{
		TransactionNo: "TXN20240115000000000002",
		UserID:        1001,
		Type:          model.PointTransactionTypeRecharge,
		Points:        500,
		BalanceAfter:  1000,
		RelatedID:     &orderID,
		RelatedType:   model.PaymentMethodAlipay,
	}
	assert.Error(t, repo.Create(ctx, nil, dup))

	// 无来源的消费流水不受该索引约束
	for i, no := range []string{"TXN20240115000000000003", "TXN20240115000000000004"} {
		consume := &model.PointTransaction{
			TransactionNo: no,
			UserID:        1001,
			Type:          model.PointTransactionTypeConsume,
			Points:        int64(100 * (i + 1)),
			BalanceAfter:  0,
		}
		require.NoError(t, repo.Create(ctx, nil, consume))
	}
}

func TestGetByRelated(t *testing.T) {
	db := newTestDB(t)
	repo := NewPointTransactionRepository(db)
	ctx := context.Background()

	orderID := int64(7)
	require.NoError(t, repo.Create(ctx, nil, &model.PointTransaction{
		TransactionNo: "TXN20240115000000000005",
		UserID:        1001,
		Type:          model.PointTransactionTypeRecharge,
		Points:        500,
		BalanceAfter:  500,
		RelatedID:     &orderID,
		RelatedType:   model.PaymentMethodAlipay,
	}))

	got, err := repo.GetByRelated(ctx, 7, model.PaymentMethodAlipay)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "TXN20240115000000000005", got.TransactionNo)

	missing, err := repo.GetByRelated(ctx, 8, model.PaymentMethodAlipay)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSumByUserID(t *testing.T) {
	db := newTestDB(t)
	repo := NewPointTransactionRepository(db)
	ctx := context.Background()

	entries := []struct {
		no     string
		typ    string
		points int64
	}{
		{"TXN20240115000000000006", model.PointTransactionTypeRecharge, 500},
		{"TXN20240115000000000007", model.PointTransactionTypeConsume, 120},
		{"TXN20240115000000000008", model.PointTransactionTypeRecharge, 10},
	}
	for _, e := range entries {
		require.NoError(t, repo.Create(ctx, nil, &model.PointTransaction{
			TransactionNo: e.no,
			UserID:        1001,
			Type:          e.typ,
			Points:        e.points,
		}))
	}

	sum, err := repo.SumByUserID(ctx, 1001)
	require.NoError(t, err)
	assert.Equal(t, int64(390), sum)

	empty, err := repo.SumByUserID(ctx, 9999)
	require.NoError(t, err)
	assert.Equal(t, int64(0), empty)
}
