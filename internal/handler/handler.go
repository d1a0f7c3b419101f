package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"memberpay/internal/catalog"
	"memberpay/internal/config"
	"memberpay/internal/repository"
	"memberpay/internal/service"
	"memberpay/pkg/response"
)

// SignVerifier 回调验签依赖
type SignVerifier interface {
	Verify(params map[string]string) bool
	MatchAppID(appID string) bool
}

// Handler 统一处理器，包含所有服务依赖
type Handler struct {
	cfg             *config.Config
	log             *logrus.Logger
	verifier        SignVerifier
	rechargeService *service.RechargeService
	orderService    *service.OrderService
	memberService   *service.MemberService
	emailService    *service.EmailCodeService
}

// NewHandler 创建处理器实例
func NewHandler(db *gorm.DB, rdb *redis.Client, cfg *config.Config, gateway service.PayURLBuilder, verifier SignVerifier, log *logrus.Logger) *Handler {
	return &Handler{
		cfg:             cfg,
		log:             log,
		verifier:        verifier,
		rechargeService: service.NewRechargeService(db, cfg, gateway, log),
		orderService:    service.NewOrderService(db, cfg, log),
		memberService:   service.NewMemberService(db, log),
		emailService: service.NewEmailCodeService(
			rdb, repository.NewOutboxRepository(db), cfg, log,
		),
	}
}

// ============================================================
// 产品目录
// ============================================================

// ListProducts 获取产品列表
// GET /api/v1/products/list
func (h *Handler) ListProducts(c *gin.Context) {
	response.Success(c, catalog.Products)
}

// ============================================================
// 会员账户
// ============================================================

// GetBalance 查询会员积分账户
// GET /api/v1/member/balance?user_id=xxx
func (h *Handler) GetBalance(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil {
		response.ParamError(c, "user_id 参数错误")
		return
	}

	member, err := h.memberService.GetAccount(c.Request.Context(), userID)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{
		"user_id":      member.UserID,
		"member_level": member.MemberLevel,
		"points":       member.Points,
		"expired_at":   member.ExpiredAt,
	})
}

// ListTransactions 查询积分流水
// GET /api/v1/member/transactions?user_id=xxx&page=1&page_size=10
func (h *Handler) ListTransactions(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil {
		response.ParamError(c, "user_id 参数错误")
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))

	transactions, total, err := h.memberService.ListTransactions(c.Request.Context(), userID, page, pageSize)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{
		"list":      transactions,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// ConsumePointsRequest 积分消费请求
type ConsumePointsRequest struct {
	UserID      int64  `json:"user_id" binding:"required"`
	Points      int64  `json:"points" binding:"required,gt=0"`
	Description string `json:"description"`
}

// ConsumePoints 积分消费
// POST /api/v1/member/points/consume
func (h *Handler) ConsumePoints(c *gin.Context) {
	var req ConsumePointsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	transaction, err := h.memberService.ConsumePoints(c.Request.Context(), req.UserID, req.Points, req.Description)
	if err != nil {
		if errors.Is(err, repository.ErrPointsNotEnough) {
			response.BusinessError(c, response.CodePointsNotEnough, err.Error())
			return
		}
		if errors.Is(err, repository.ErrMemberNotFound) {
			response.NotFound(c, err.Error())
			return
		}
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{
		"transaction_no": transaction.TransactionNo,
		"points":         transaction.Points,
		"balance_after":  transaction.BalanceAfter,
	})
}

// ============================================================
// 订单
// ============================================================

// GetOrder 查询订单详情
// GET /api/v1/order/detail?order_no=xxx
func (h *Handler) GetOrder(c *gin.Context) {
	orderNo := c.Query("order_no")
	if orderNo == "" {
		response.ParamError(c, "order_no 参数不能为空")
		return
	}

	order, err := h.orderService.GetOrder(c.Request.Context(), orderNo)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			response.BusinessError(c, response.CodeOrderNotFound, err.Error())
			return
		}
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, order)
}

// ListOrders 查询用户订单列表
// GET /api/v1/order/list?user_id=xxx&page=1&page_size=10
func (h *Handler) ListOrders(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil {
		response.ParamError(c, "user_id 参数错误")
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))

	orders, total, err := h.orderService.ListUserOrders(c.Request.Context(), userID, page, pageSize)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{
		"list":      orders,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// CancelOrder 取消订单
// POST /api/v1/order/cancel
func (h *Handler) CancelOrder(c *gin.Context) {
	var req struct {
		OrderNo string `json:"order_no" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.orderService.CancelOrder(c.Request.Context(), req.OrderNo); err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			response.BusinessError(c, response.CodeOrderNotFound, err.Error())
			return
		}
		if errors.Is(err, repository.ErrOrderStatusInvalid) {
			response.BusinessError(c, response.CodeOrderStatusInvalid, err.Error())
			return
		}
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{
		"message": "订单已取消",
	})
}

// ============================================================
// 邮箱验证码
// ============================================================

// SendEmailCodeRequest 发送验证码请求
type SendEmailCodeRequest struct {
	Email   string `json:"email" binding:"required,email"`
	Purpose string `json:"purpose" binding:"required"`
}

// SendEmailCode 发送邮箱验证码
// POST /api/v1/email/code/send
func (h *Handler) SendEmailCode(c *gin.Context) {
	var req SendEmailCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	err := h.emailService.SendCode(c.Request.Context(), req.Email, req.Purpose, c.ClientIP())
	if err != nil {
		if errors.Is(err, service.ErrSendTooFrequent) {
			response.BusinessError(c, response.CodeSendTooFrequent, err.Error())
			return
		}
		if errors.Is(err, service.ErrSendLimitExceeded) {
			response.BusinessError(c, response.CodeSendLimitExceeded, err.Error())
			return
		}
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{
		"message": "验证码已发送",
	})
}

// VerifyEmailCodeRequest 校验验证码请求
type VerifyEmailCodeRequest struct {
	Email   string `json:"email" binding:"required,email"`
	Purpose string `json:"purpose" binding:"required"`
	Code    string `json:"code" binding:"required"`
}

// VerifyEmailCode 校验邮箱验证码
// POST /api/v1/email/code/verify
func (h *Handler) VerifyEmailCode(c *gin.Context) {
	var req VerifyEmailCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.emailService.VerifyCode(c.Request.Context(), req.Email, req.Purpose, req.Code); err != nil {
		if errors.Is(err, service.ErrCodeInvalid) {
			response.ParamError(c, err.Error())
			return
		}
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{
		"message": "验证通过",
	})
}
