package handler

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memberpay/internal/model"
	"memberpay/pkg/response"
)

func TestListProducts(t *testing.T) {
	env := newTestEnv(t)

	w := env.get(t, "/api/v1/products/list")
	require.Equal(t, http.StatusOK, w.Code)

	resp := decodeResponse(t, w)
	assert.Equal(t, response.CodeSuccess, resp.Code)
	products := resp.Data.([]interface{})
	assert.NotEmpty(t, products)
}

func TestGetBalance(t *testing.T) {
	env := newTestEnv(t)

	// 首次查询自动建账，余额为 0
	w := env.get(t, "/api/v1/member/balance?user_id=1001")
	resp := decodeResponse(t, w)
	require.Equal(t, response.CodeSuccess, resp.Code)

	data := resp.Data.(map[string]interface{})
	assert.Equal(t, float64(1001), data["user_id"])
	assert.Equal(t, float64(0), data["points"])
}

func TestGetBalanceParamError(t *testing.T) {
	env := newTestEnv(t)

	w := env.get(t, "/api/v1/member/balance?user_id=abc")
	assert.Equal(t, response.CodeParamError, decodeResponse(t, w).Code)
}

func TestConsumePointsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.seedMember(t, 1001, 600)

	w := env.postJSON(t, "/api/v1/member/points/consume", gin.H{
		"user_id":     1001,
		"points":      200,
		"description": "调用服务",
	})
	resp := decodeResponse(t, w)
	require.Equal(t, response.CodeSuccess, resp.Code)

	data := resp.Data.(map[string]interface{})
	assert.Equal(t, float64(400), data["balance_after"])
}

func TestConsumePointsNotEnough(t *testing.T) {
	env := newTestEnv(t)
	env.seedMember(t, 1001, 100)

	w := env.postJSON(t, "/api/v1/member/points/consume", gin.H{
		"user_id": 1001,
		"points":  500,
	})
	assert.Equal(t, response.CodePointsNotEnough, decodeResponse(t, w).Code)
}

func TestOrderDetailAndCancel(t *testing.T) {
	env := newTestEnv(t)
	orderNo := env.createOrder(t, 1001, 3)

	w := env.get(t, "/api/v1/order/detail?order_no="+orderNo)
	resp := decodeResponse(t, w)
	require.Equal(t, response.CodeSuccess, resp.Code)

	w = env.postJSON(t, "/api/v1/order/cancel", gin.H{"order_no": orderNo})
	require.Equal(t, response.CodeSuccess, decodeResponse(t, w).Code)

	var order model.Order
	require.NoError(t, env.db.Where("order_no = ?", orderNo).First(&order).Error)
	assert.Equal(t, model.OrderStatusCancelled, order.Status)

	// 重复取消返回状态错误
	w = env.postJSON(t, "/api/v1/order/cancel", gin.H{"order_no": orderNo})
	assert.Equal(t, response.CodeOrderStatusInvalid, decodeResponse(t, w).Code)
}

func TestOrderDetailNotFound(t *testing.T) {
	env := newTestEnv(t)

	w := env.get(t, "/api/v1/order/detail?order_no=ORD20240115000000000000")
	assert.Equal(t, response.CodeOrderNotFound, decodeResponse(t, w).Code)
}

func TestListOrdersEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.createOrder(t, 1001, 3)
	env.createOrder(t, 1001, 5)

	w := env.get(t, "/api/v1/order/list?user_id=1001")
	resp := decodeResponse(t, w)
	require.Equal(t, response.CodeSuccess, resp.Code)

	data := resp.Data.(map[string]interface{})
	assert.Equal(t, float64(2), data["total"])
}

func TestSendAndVerifyEmailCode(t *testing.T) {
	env := newTestEnv(t)

	w := env.postJSON(t, "/api/v1/email/code/send", gin.H{
		"email":   "user@example.com",
		"purpose": "register",
	})
	require.Equal(t, response.CodeSuccess, decodeResponse(t, w).Code)

	// 重发受频率限制
	w = env.postJSON(t, "/api/v1/email/code/send", gin.H{
		"email":   "user@example.com",
		"purpose": "register",
	})
	assert.Equal(t, response.CodeSendTooFrequent, decodeResponse(t, w).Code)

	// 从发件箱取出验证码完成校验
	var msg model.OutboxMessage
	require.NoError(t, env.db.Where("topic = ?", "memberpay.email.send").First(&msg).Error)
	var payload struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &payload))

	w = env.postJSON(t, "/api/v1/email/code/verify", gin.H{
		"email":   "user@example.com",
		"purpose": "register",
		"code":    payload.Code,
	})
	assert.Equal(t, response.CodeSuccess, decodeResponse(t, w).Code)

	// 验证码一次性，重复校验失败
	w = env.postJSON(t, "/api/v1/email/code/verify", gin.H{
		"email":   "user@example.com",
		"purpose": "register",
		"code":    payload.Code,
	})
	assert.Equal(t, response.CodeParamError, decodeResponse(t, w).Code)
}

func TestVerifyEmailCodeWrong(t *testing.T) {
	env := newTestEnv(t)

	w := env.postJSON(t, "/api/v1/email/code/verify", gin.H{
		"email":   "user@example.com",
		"purpose": "register",
		"code":    "000000",
	})
	assert.Equal(t, response.CodeParamError, decodeResponse(t, w).Code)
}

func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t)

	w := env.get(t, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
}
