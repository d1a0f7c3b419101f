package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"memberpay/internal/repository"
	"memberpay/internal/service"
	"memberpay/pkg/response"
)

// 网关要求的应答原文：成功确认返回 success，其余一律 failure 促使网关重试
const (
	notifyAckSuccess = "success"
	notifyAckFailure = "failure"
)

// CreateRechargeRequest 创建充值订单请求
type CreateRechargeRequest struct {
	UserID     int64    `json:"user_id" binding:"required"`
	ProductID  int64    `json:"product_id" binding:"required"`
	Amount     *float64 `json:"amount"`
	ClientType string   `json:"client_type"`
}

// CreateRecharge 创建支付宝充值订单
// POST /api/v1/recharge/alipay/create
func (h *Handler) CreateRecharge(c *gin.Context) {
	if !h.cfg.Alipay.AlipayReady() {
		response.ServerError(c, "支付宝支付未配置，请联系管理员")
		return
	}

	var req CreateRechargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	clientType := req.ClientType
	if clientType == "" {
		clientType = "h5"
	}

	serviceReq := &service.CreateRechargeRequest{
		UserID:     req.UserID,
		ProductID:  req.ProductID,
		ClientType: clientType,
	}
	if req.Amount != nil {
		declared := decimal.NewFromFloat(*req.Amount)
		serviceReq.Amount = &declared
	}

	result, err := h.rechargeService.CreateOrder(c.Request.Context(), serviceReq)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrProductNotFound):
			response.BusinessError(c, response.CodeProductNotFound, err.Error())
		case errors.Is(err, service.ErrProductNotSupported):
			response.BusinessError(c, response.CodeProductNotSupported, err.Error())
		case errors.Is(err, service.ErrAmountMismatch):
			response.BusinessError(c, response.CodeAmountMismatch, "金额与产品配置不一致")
		case errors.Is(err, service.ErrGatewayUnavailable):
			response.BusinessError(c, response.CodeGatewayUnavailable, err.Error())
		default:
			response.ServerError(c, err.Error())
		}
		return
	}

	response.Success(c, result)
}

// AlipayReturn 支付宝同步回调（浏览器跳转）
// GET /api/v1/recharge/alipay/return
//
// 仅用于向用户展示结果，不作为支付完成依据，绝不修改订单或积分状态
func (h *Handler) AlipayReturn(c *gin.Context) {
	params := make(map[string]string)
	for k, v := range c.Request.URL.Query() {
		if len(v) > 0 {
			params[k] = v[0]
		}
	}

	if !h.verifier.Verify(params) {
		c.Data(http.StatusBadRequest, "text/html; charset=utf-8", []byte("<h1>验签失败</h1>"))
		return
	}

	if !h.verifier.MatchAppID(params["app_id"]) {
		c.Data(http.StatusBadRequest, "text/html; charset=utf-8", []byte("<h1>app_id 不匹配</h1>"))
		return
	}

	outTradeNo := params["out_trade_no"]
	tradeStatus := params["trade_status"]

	var body string
	if service.IsTradeSuccess(tradeStatus) {
		body = fmt.Sprintf("<h1>支付成功</h1><p>订单号: %s</p>", outTradeNo)
	} else {
		body = fmt.Sprintf("<h1>支付未完成</h1><p>订单号: %s</p><p>状态: %s</p>", outTradeNo, tradeStatus)
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(body))
}

// AlipayNotify 支付宝异步通知（服务端回调，支付完成的唯一可信来源）
// POST /api/v1/recharge/alipay/notify
//
// 应答必须是网关约定的原文；处理过程中的任何内部错误都降级为
// failure 应答，由网关按重试策略重发，不向传输层抛出异常
func (h *Handler) AlipayNotify(c *gin.Context) {
	defer func() {
		if r := recover(); r != nil {
			h.log.WithField("panic", fmt.Sprintf("%v", r)).Error("异步通知处理异常")
			c.String(http.StatusOK, notifyAckFailure)
		}
	}()

	if err := c.Request.ParseForm(); err != nil {
		h.log.Warn("异步通知表单解析失败")
		c.String(http.StatusOK, notifyAckFailure)
		return
	}

	params := make(map[string]string)
	for k, v := range c.Request.PostForm {
		if len(v) > 0 {
			params[k] = v[0]
		}
	}

	if !h.verifier.Verify(params) {
		h.log.Warn("异步通知验签失败")
		c.String(http.StatusOK, notifyAckFailure)
		return
	}

	if !h.verifier.MatchAppID(params["app_id"]) {
		c.String(http.StatusOK, notifyAckFailure)
		return
	}

	outTradeNo := params["out_trade_no"]
	totalAmount := params["total_amount"]
	if outTradeNo == "" || totalAmount == "" {
		h.log.Warn("异步通知缺少必要字段")
		c.String(http.StatusOK, notifyAckFailure)
		return
	}

	notice := &service.PaymentNotice{
		OrderNo:     outTradeNo,
		TotalAmount: totalAmount,
		TradeStatus: params["trade_status"],
		TradeNo:     params["trade_no"],
	}

	if err := h.rechargeService.ConfirmPayment(c.Request.Context(), notice); err != nil {
		// 具体原因已在服务层分级记录，应答只区分成功与否
		if !errors.Is(err, repository.ErrOrderNotFound) &&
			!errors.Is(err, service.ErrAmountMismatch) &&
			!errors.Is(err, service.ErrPaymentNotSuccessful) {
			h.log.WithFields(map[string]interface{}{
				"order_no": outTradeNo,
				"error":    err.Error(),
			}).Error("异步通知处理失败")
		}
		c.String(http.StatusOK, notifyAckFailure)
		return
	}

	c.String(http.StatusOK, notifyAckSuccess)
}
