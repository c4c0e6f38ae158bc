package handler

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"shopbot/internal/config"
)

type Router struct {
	*gin.Engine
}

func NewRouter(
	conf config.HTTP,
	webhookHandler *WebhookHandler,
	healthHandler *HealthHandler,
	logger *zap.Logger) *Router {

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))

	if len(conf.AllowedOrigins) > 0 {
		corsConf := cors.DefaultConfig()
		corsConf.AllowOrigins = conf.AllowedOrigins
		corsConf.AllowMethods = []string{"GET", "POST"}
		router.Use(cors.New(corsConf))
	}

	router.GET("/healthz", healthHandler.Health)

	stripe := router.Group("/stripe")
	{
		stripe.POST("/webhook", webhookHandler.Handle)
	}

	return &Router{router}
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()

		fields := []zap.Field{
			zap.String("method", ctx.Request.Method),
			zap.String("path", ctx.Request.URL.Path),
			zap.Int("status", ctx.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		}
		if len(ctx.Errors) > 0 {
			fields = append(fields, zap.String("errors", ctx.Errors.String()))
		}
		logger.Debug("request", fields...)
	}
}
