package alipay

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"memberpay/internal/config"
)

// ============================================================
// RSA2（SHA256withRSA）签名与验签
// ============================================================

var (
	ErrInvalidKey = errors.New("密钥格式不合法")
)

// CanonicalString 构造待签名字符串
// 规则：剔除 sign / sign_type 和空值参数，键按字典序排序，k=v 以 & 连接
func CanonicalString(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k, v := range params {
		if k == "sign" || k == "sign_type" || v == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	items := make([]string, 0, len(keys))
	for _, k := range keys {
		items = append(items, k+"="+params[k])
	}
	return strings.Join(items, "&")
}

// ParsePublicKey 解析支付宝公钥，接受 PEM 或裸 base64 两种形式
func ParsePublicKey(data []byte) (*rsa.PublicKey, error) {
	der := data
	if block, _ := pem.Decode(data); block != nil {
		der = block.Bytes
	} else {
		decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(data)))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
		}
		der = decoded
	}

	pub, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}

	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, ErrInvalidKey
	}
	return rsaPub, nil
}

// ParsePrivateKey 解析商户私钥，兼容 PKCS1 / PKCS8
func ParsePrivateKey(data []byte) (*rsa.PrivateKey, error) {
	der := data
	if block, _ := pem.Decode(data); block != nil {
		der = block.Bytes
	} else {
		decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(data)))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
		}
		der = decoded
	}

	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return key, nil
	}

	parsed, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, ErrInvalidKey
	}
	return key, nil
}

// SignContent 对待签名字符串做 SHA256withRSA 签名，返回 base64
func SignContent(key *rsa.PrivateKey, content string) (string, error) {
	digest := sha256.Sum256([]byte(content))
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, digest[:])
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

// Verifier 回调验签器
// 所有异常路径一律返回未通过，不向调用方抛错（fail closed）
type Verifier struct {
	appID     string
	publicKey *rsa.PublicKey
	log       *logrus.Logger
}

func NewVerifier(appID string, publicKey *rsa.PublicKey, log *logrus.Logger) *Verifier {
	return &Verifier{appID: appID, publicKey: publicKey, log: log}
}

// NewVerifierFromConfig 从配置加载支付宝公钥构造验签器
func NewVerifierFromConfig(cfg *config.AlipayConfig, log *logrus.Logger) (*Verifier, error) {
	data, err := os.ReadFile(cfg.PublicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("读取支付宝公钥失败: %w", err)
	}
	pub, err := ParsePublicKey(data)
	if err != nil {
		return nil, fmt.Errorf("解析支付宝公钥失败: %w", err)
	}
	return NewVerifier(cfg.AppID, pub, log), nil
}

// Verify 校验回调参数的 RSA2 签名
func (v *Verifier) Verify(params map[string]string) bool {
	sign := params["sign"]
	if sign == "" {
		v.log.Warn("回调签名为空")
		return false
	}

	content := CanonicalString(params)
	if content == "" {
		v.log.Warn("待验签字符串为空")
		return false
	}

	if v.publicKey == nil {
		v.log.Error("支付宝公钥未加载")
		return false
	}

	sig, err := base64.StdEncoding.DecodeString(sign)
	if err != nil {
		v.log.Warn("回调签名不是合法 base64")
		return false
	}

	digest := sha256.Sum256([]byte(content))
	if err := rsa.VerifyPKCS1v15(v.publicKey, crypto.SHA256, digest[:], sig); err != nil {
		v.log.Warn("回调验签未通过")
		return false
	}
	return true
}

// MatchAppID 校验回调声明的应用ID
// 回调未携带 app_id 时放行（部分通知不带），携带则必须与配置一致
func (v *Verifier) MatchAppID(appID string) bool {
	if appID == "" || v.appID == "" {
		return true
	}
	if appID != v.appID {
		v.log.WithField("app_id", appID).Warn("回调 app_id 与配置不一致")
		return false
	}
	return true
}
