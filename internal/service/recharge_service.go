package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"memberpay/internal/alipay"
	"memberpay/internal/catalog"
	"memberpay/internal/config"
	"memberpay/internal/model"
	"memberpay/internal/repository"
	"memberpay/pkg/idgen"
)

var (
	ErrProductNotFound      = errors.New("产品不存在")
	ErrProductNotSupported  = errors.New("该产品类型不支持支付宝充值")
	ErrProductConfigInvalid = errors.New("点数产品配置不正确")
	ErrAmountMismatch       = errors.New("金额与订单不一致")
	ErrPaymentNotSuccessful = errors.New("支付未成功")
	ErrGatewayUnavailable   = errors.New("创建支付链接失败")
)

// errAlreadyPaid 并发确认时落败方的内部信号，对外表现为幂等成功
var errAlreadyPaid = errors.New("订单已支付")

// PayURLBuilder 网关收银台链接构造器
type PayURLBuilder interface {
	BuildPayURL(outTradeNo, totalAmount, subject, clientType string) (*alipay.PayURL, error)
}

// RechargeService 充值编排
// 负责创建待支付订单、构造网关跳转链接，以及处理网关异步确认的
// 订单状态翻转与积分入账
type RechargeService struct {
	db         *gorm.DB
	cfg        *config.Config
	log        *logrus.Logger
	gateway    PayURLBuilder
	orderRepo  *repository.OrderRepository
	memberRepo *repository.MemberRepository
	pointRepo  *repository.PointTransactionRepository
	outboxRepo *repository.OutboxRepository
}

func NewRechargeService(db *gorm.DB, cfg *config.Config, gateway PayURLBuilder, log *logrus.Logger) *RechargeService {
	return &RechargeService{
		db:         db,
		cfg:        cfg,
		log:        log,
		gateway:    gateway,
		orderRepo:  repository.NewOrderRepository(db),
		memberRepo: repository.NewMemberRepository(db),
		pointRepo:  repository.NewPointTransactionRepository(db),
		outboxRepo: repository.NewOutboxRepository(db),
	}
}

type CreateRechargeRequest struct {
	UserID     int64
	ProductID  int64
	Amount     *decimal.Decimal // 客户端声明金额，可为空；不为空时必须与目录价一致
	ClientType string
}

type CreateRechargeResult struct {
	OrderID      int64  `json:"order_id"`
	OrderNo      string `json:"order_no"`
	PayURL       string `json:"pay_url"`
	AlipayScheme string `json:"alipay_scheme,omitempty"`
}

// CreateOrder 创建支付宝充值订单
// 订单落库成功后才向调用方返回跳转链接，确保异步通知到达时一定能查到订单
func (s *RechargeService) CreateOrder(ctx context.Context, req *CreateRechargeRequest) (*CreateRechargeResult, error) {
	product := catalog.FindByID(req.ProductID)
	if product == nil {
		return nil, ErrProductNotFound
	}

	if product.Type != model.ProductTypePoints {
		return nil, ErrProductNotSupported
	}

	// 防御被篡改的客户端声明低价下单
	if req.Amount != nil && !req.Amount.Equal(product.Price) {
		s.log.WithFields(logrus.Fields{
			"user_id":         req.UserID,
			"product_id":      req.ProductID,
			"declared_amount": req.Amount.String(),
			"catalog_price":   product.Price.String(),
		}).Warn("客户端声明金额与产品价格不一致")
		return nil, ErrAmountMismatch
	}

	order := &model.Order{
		OrderNo:     idgen.GenerateOrderNo(),
		UserID:      req.UserID,
		ProductID:   product.ID,
		ProductType: product.Type,
		Amount:      product.Price,
		Quantity:    1,
		Status:      model.OrderStatusPending,
		Description: fmt.Sprintf("支付宝充值：%s", product.Name),
	}

	if err := s.orderRepo.Create(ctx, nil, order); err != nil {
		return nil, fmt.Errorf("创建订单失败: %w", err)
	}

	payURL, err := s.gateway.BuildPayURL(
		order.OrderNo,
		product.Price.StringFixed(2),
		product.Name,
		req.ClientType,
	)
	if err != nil {
		// 订单保留在 PENDING，由超时任务关闭
		s.log.WithFields(logrus.Fields{
			"order_no": order.OrderNo,
			"error":    err.Error(),
		}).Error("构造支付链接失败")
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	s.log.WithFields(logrus.Fields{
		"order_no":   order.OrderNo,
		"user_id":    req.UserID,
		"product_id": product.ID,
		"amount":     product.Price.String(),
	}).Info("充值订单已创建")

	return &CreateRechargeResult{
		OrderID:      order.ID,
		OrderNo:      order.OrderNo,
		PayURL:       payURL.PayURL,
		AlipayScheme: payURL.AlipayScheme,
	}, nil
}

// PaymentNotice 网关异步通知中与对账相关的字段
type PaymentNotice struct {
	OrderNo     string // out_trade_no
	TotalAmount string // 网关上报金额
	TradeStatus string
	TradeNo     string // 网关侧交易号
}

// IsTradeSuccess 网关的终态成功状态码
func IsTradeSuccess(tradeStatus string) bool {
	return tradeStatus == "TRADE_SUCCESS" || tradeStatus == "TRADE_FINISHED"
}

// ConfirmPayment 处理网关异步确认（验签已由调用方完成）
//
// 对任意次数的重复有效通知，积分只入账一次：
// 幂等判定依赖订单行上 PENDING -> PAID 的条件更新（CAS），
// 并以流水表 (related_id, related_type) 唯一索引兜底，
// 余额增量与状态翻转、流水落库同在一个事务内提交
func (s *RechargeService) ConfirmPayment(ctx context.Context, notice *PaymentNotice) error {
	order, err := s.orderRepo.GetByOrderNo(ctx, notice.OrderNo)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			s.log.WithField("order_no", notice.OrderNo).Warn("通知对应的订单不存在")
		}
		return err
	}

	reported, err := decimal.NewFromString(notice.TotalAmount)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"order_no":     notice.OrderNo,
			"total_amount": notice.TotalAmount,
		}).Warn("通知金额格式错误")
		return ErrAmountMismatch
	}

	// 金额校验先于幂等判定，重试通知携带不一致金额同样要暴露出来
	if !reported.Equal(order.Amount) {
		s.log.WithFields(logrus.Fields{
			"order_no":        order.OrderNo,
			"reported_amount": reported.String(),
			"order_amount":    order.Amount.String(),
			"trade_no":        notice.TradeNo,
		}).Error("通知金额与订单金额不一致，疑似篡改")
		return ErrAmountMismatch
	}

	if order.IsPaid() {
		s.log.WithField("order_no", order.OrderNo).Info("订单已支付，幂等返回")
		return nil
	}

	if !IsTradeSuccess(notice.TradeStatus) {
		s.log.WithFields(logrus.Fields{
			"order_no":     order.OrderNo,
			"trade_status": notice.TradeStatus,
		}).Warn("支付未成功，忽略通知")
		return ErrPaymentNotSuccessful
	}

	product := catalog.FindByID(order.ProductID)
	if product == nil || product.Type != model.ProductTypePoints {
		s.log.WithFields(logrus.Fields{
			"order_no":   order.OrderNo,
			"product_id": order.ProductID,
		}).Error("无法找到订单对应的点数产品")
		return ErrProductNotFound
	}
	if product.Points <= 0 {
		s.log.WithField("product_id", product.ID).Error("点数产品配置不正确")
		return ErrProductConfigInvalid
	}

	_, err = s.memberRepo.GetByUserID(ctx, order.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrMemberNotFound) {
			s.log.WithField("order_no", order.OrderNo).Error("订单用户没有会员信息，无法发放积分")
		}
		return err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		flipped, err := s.orderRepo.MarkPaid(ctx, tx, order.OrderNo, model.PaymentMethodAlipay, time.Now())
		if err != nil {
			return err
		}
		if !flipped {
			return errAlreadyPaid
		}

		if err := s.memberRepo.AddPoints(ctx, tx, order.UserID, product.Points); err != nil {
			return fmt.Errorf("积分入账失败: %w", err)
		}

		updated, err := s.memberRepo.GetByUserIDTx(ctx, tx, order.UserID)
		if err != nil {
			return err
		}

		orderID := order.ID
		transaction := &model.PointTransaction{
			TransactionNo: idgen.GenerateTransactionNo(),
			UserID:        order.UserID,
			Type:          model.PointTransactionTypeRecharge,
			Points:        product.Points,
			BalanceAfter:  updated.Points,
			Amount:        order.Amount,
			Description:   fmt.Sprintf("支付宝充值：%s", order.OrderNo),
			RelatedID:     &orderID,
			RelatedType:   model.PaymentMethodAlipay,
		}
		if err := s.pointRepo.Create(ctx, tx, transaction); err != nil {
			return fmt.Errorf("记录积分流水失败: %w", err)
		}

		payload, _ := json.Marshal(map[string]interface{}{
			"order_no":   order.OrderNo,
			"user_id":    order.UserID,
			"product_id": order.ProductID,
			"amount":     order.Amount.StringFixed(2),
			"points":     product.Points,
			"status":     model.OrderStatusPaid,
			"trade_no":   notice.TradeNo,
			"paid_at":    time.Now().Format(time.RFC3339),
		})
		outboxMsg := &model.OutboxMessage{
			MessageKey: order.OrderNo,
			Topic:      s.cfg.Kafka.Topic.PayResult,
			Payload:    string(payload),
			Status:     model.OutboxStatusPending,
		}
		return s.outboxRepo.Create(ctx, tx, outboxMsg)
	})

	if errors.Is(err, errAlreadyPaid) {
		// CAS 落败，确认赢家已把订单置为 PAID 后按幂等成功处理
		latest, lookupErr := s.orderRepo.GetByOrderNo(ctx, order.OrderNo)
		if lookupErr != nil {
			return lookupErr
		}
		if latest.IsPaid() {
			s.log.WithField("order_no", order.OrderNo).Info("并发通知已由其他请求处理，幂等返回")
			return nil
		}
		return repository.ErrOrderStatusInvalid
	}
	if err != nil {
		return err
	}

	s.log.WithFields(logrus.Fields{
		"order_no": order.OrderNo,
		"user_id":  order.UserID,
		"points":   product.Points,
	}).Info("支付确认处理成功，积分已入账")
	return nil
}
