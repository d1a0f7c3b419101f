package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"memberpay/internal/config"
	"memberpay/internal/service"
)

// SetupRouter 配置路由
func SetupRouter(db *gorm.DB, rdb *redis.Client, cfg *config.Config, gateway service.PayURLBuilder, verifier SignVerifier, log *logrus.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(RecoveryMiddleware(log))
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware())

	h := NewHandler(db, rdb, cfg, gateway, verifier, log)

	api := r.Group("/api/v1")
	{
		api.GET("/products/list", h.ListProducts)

		recharge := api.Group("/recharge")
		{
			recharge.POST("/alipay/create", h.CreateRecharge)
			recharge.GET("/alipay/return", h.AlipayReturn)
			recharge.POST("/alipay/notify", h.AlipayNotify)
		}

		order := api.Group("/order")
		{
			order.GET("/detail", h.GetOrder)
			order.GET("/list", h.ListOrders)
			order.POST("/cancel", h.CancelOrder)
		}

		member := api.Group("/member")
		{
			member.GET("/balance", h.GetBalance)
			member.GET("/transactions", h.ListTransactions)
			member.POST("/points/consume", h.ConsumePoints)
		}

		email := api.Group("/email")
		{
			email.POST("/code/send", h.SendEmailCode)
			email.POST("/code/verify", h.VerifyEmailCode)
		}
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
