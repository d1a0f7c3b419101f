package config

import (
	"log"

	"github.com/spf13/viper"
)

// Config 全局配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	MySQL    MySQLConfig    `mapstructure:"mysql"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Alipay   AlipayConfig   `mapstructure:"alipay"`
	Email    EmailConfig    `mapstructure:"email"`
	Business BusinessConfig `mapstructure:"business"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Brokers []string         `mapstructure:"brokers"`
	Topic   KafkaTopicConfig `mapstructure:"topic"`
}

type KafkaTopicConfig struct {
	PayResult string `mapstructure:"pay_result"`
	EmailSend string `mapstructure:"email_send"`
}

// AlipayConfig 支付宝网关配置
// private_key_path 是商户私钥，public_key_path 是支付宝验签公钥
type AlipayConfig struct {
	AppID          string `mapstructure:"app_id"`
	GatewayURL     string `mapstructure:"gateway_url"`
	PrivateKeyPath string `mapstructure:"private_key_path"`
	PublicKeyPath  string `mapstructure:"public_key_path"`
	NotifyURL      string `mapstructure:"notify_url"`
	ReturnURL      string `mapstructure:"return_url"`
}

type EmailConfig struct {
	CodeLength            int `mapstructure:"code_length"`
	CodeExpireMinutes     int `mapstructure:"code_expire_minutes"`
	ResendIntervalSeconds int `mapstructure:"resend_interval_seconds"`
	DailyLimitPerEmail    int `mapstructure:"daily_limit_per_email"`
	DailyLimitPerIP       int `mapstructure:"daily_limit_per_ip"`
}

type BusinessConfig struct {
	OrderTimeoutMinutes int `mapstructure:"order_timeout_minutes"`
	MaxRetryCount       int `mapstructure:"max_retry_count"`
}

// LoadConfig 加载配置文件
func LoadConfig(configPath string) *Config {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		log.Fatalf("读取配置文件失败: %v", err)
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		log.Fatalf("解析配置文件失败: %v", err)
	}

	return config
}

// AlipayReady 支付宝配置是否完整，不完整时充值通道不可用
func (c *AlipayConfig) AlipayReady() bool {
	return c.AppID != "" &&
		c.GatewayURL != "" &&
		c.PrivateKeyPath != "" &&
		c.PublicKeyPath != "" &&
		c.NotifyURL != "" &&
		c.ReturnURL != ""
}
