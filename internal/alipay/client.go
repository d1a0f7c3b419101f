package alipay

import (
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	"memberpay/internal/config"
)

const (
	methodPagePay = "alipay.trade.page.pay"
	methodWapPay  = "alipay.trade.wap.pay"

	productCodePagePay = "FAST_INSTANT_TRADE_PAY"
	productCodeWapPay  = "QUICK_WAP_WAY"

	// ClientTypePC / ClientTypeH5 下单渠道
	ClientTypePC = "pc"
	ClientTypeH5 = "h5"
)

// Client 支付宝网关客户端
// 只负责本地签名并拼接收银台跳转链接，不发起网络请求；
// 进程启动时构造一次，显式注入使用方
type Client struct {
	cfg        *config.AlipayConfig
	privateKey *rsa.PrivateKey
}

// NewClient 加载商户私钥构造网关客户端
func NewClient(cfg *config.AlipayConfig) (*Client, error) {
	data, err := os.ReadFile(cfg.PrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("读取商户私钥失败: %w", err)
	}
	key, err := ParsePrivateKey(data)
	if err != nil {
		return nil, fmt.Errorf("解析商户私钥失败: %w", err)
	}
	return &Client{cfg: cfg, privateKey: key}, nil
}

// PayURL 收银台跳转目标
type PayURL struct {
	PayURL       string `json:"pay_url"`
	AlipayScheme string `json:"alipay_scheme,omitempty"` // h5 拉起支付宝 App 的 scheme
}

type bizContent struct {
	OutTradeNo  string `json:"out_trade_no"`
	TotalAmount string `json:"total_amount"`
	Subject     string `json:"subject"`
	ProductCode string `json:"product_code"`
}

// BuildPayURL 构造带签名的收银台跳转链接
// clientType 为 pc 时走电脑网站支付，否则走手机网站支付并附带 App 唤起 scheme
func (c *Client) BuildPayURL(outTradeNo, totalAmount, subject, clientType string) (*PayURL, error) {
	method := methodWapPay
	productCode := productCodeWapPay
	if clientType == ClientTypePC {
		method = methodPagePay
		productCode = productCodePagePay
	}

	biz, err := json.Marshal(bizContent{
		OutTradeNo:  outTradeNo,
		TotalAmount: totalAmount,
		Subject:     subject,
		ProductCode: productCode,
	})
	if err != nil {
		return nil, err
	}

	params := map[string]string{
		"app_id":      c.cfg.AppID,
		"method":      method,
		"format":      "json",
		"charset":     "utf-8",
		"sign_type":   "RSA2",
		"timestamp":   time.Now().Format("2006-01-02 15:04:05"),
		"version":     "1.0",
		"notify_url":  c.cfg.NotifyURL,
		"return_url":  c.cfg.ReturnURL,
		"biz_content": string(biz),
	}

	sign, err := SignContent(c.privateKey, CanonicalString(params))
	if err != nil {
		return nil, fmt.Errorf("签名失败: %w", err)
	}
	params["sign"] = sign

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	values := url.Values{}
	for _, k := range keys {
		values.Set(k, params[k])
	}
	payURL := c.cfg.GatewayURL + "?" + values.Encode()

	result := &PayURL{PayURL: payURL}
	if clientType != ClientTypePC && strings.HasPrefix(payURL, "http") {
		result.AlipayScheme = fmt.Sprintf(
			"alipays://platformapi/startapp?appId=20000067&url=%s",
			url.QueryEscape(payURL),
		)
	}
	return result, nil
}
