package router

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Gopher0727/ChatCore/internal/handler"
	"github.com/Gopher0727/ChatCore/internal/metrics"
	"github.com/Gopher0727/ChatCore/middleware/jwt"
	logger "github.com/Gopher0727/ChatCore/middleware/log"
)

// Handlers 汇总所有 HTTP 处理器；Auth 为 nil 时不注册令牌路由
type Handlers struct {
	Channel *handler.ChannelHandler
	Message *handler.MessageHandler
	File    *handler.FileHandler
	Auth    *handler.AuthHandler
}

// Limits 为可选的限流中间件；nil 表示不限流
type Limits struct {
	API      gin.HandlerFunc
	Messages gin.HandlerFunc
}

// HealthCheck 返回依赖探活结果，nil 表示健康
type HealthCheck func(c *gin.Context) error

// New 创建 Gin 引擎并注册全部路由
func New(log *zap.Logger, tm *jwt.TokenManager, h Handlers, health HealthCheck, limits Limits) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))
	r.Use(metrics.Middleware())

	config := cors.DefaultConfig()
	config.AllowAllOrigins = true
	config.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", logger.TraceIDHeader}
	config.ExposeHeaders = []string{logger.TraceIDHeader}
	r.Use(cors.New(config))

	// 健康检查
	r.GET("/healthz", func(c *gin.Context) {
		if health != nil {
			if err := health(c); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1")
	if h.Auth != nil {
		RegisterAuthRoutes(v1, h.Auth)
	}

	authed := v1.Group("", jwt.Auth(tm))
	if limits.API != nil {
		authed.Use(limits.API)
	}
	RegisterChannelRoutes(authed, h.Channel, h.Message, h.File, limits.Messages)
	RegisterMessageRoutes(authed, h.Message)
	RegisterFileRoutes(authed, h.File)
	return r
}

// AuthHandler 接口定义（无需登录态）
func RegisterAuthRoutes(g *gin.RouterGroup, h *handler.AuthHandler) {
	authGroup := g.Group("/auth")
	{
		authGroup.POST("/refresh", h.Refresh) // 刷新令牌
		authGroup.POST("/logout", h.Logout)   // 吊销刷新令牌
	}
}

// ChannelHandler 接口定义
func RegisterChannelRoutes(g *gin.RouterGroup, ch *handler.ChannelHandler, mh *handler.MessageHandler, fh *handler.FileHandler, sendLimit gin.HandlerFunc) {
	send := []gin.HandlerFunc{mh.SendMessage}
	if sendLimit != nil {
		send = append([]gin.HandlerFunc{sendLimit}, send...)
	}

	channelGroup := g.Group("/channels")
	{
		channelGroup.POST("", ch.CreateChannel)              // 创建频道
		channelGroup.GET("", ch.ListChannels)                // 我加入的频道
		channelGroup.GET("/:id", ch.GetChannel)              // 频道详情
		channelGroup.PATCH("/:id", ch.UpdateChannel)         // 改名 / 修改描述
		channelGroup.POST("/:id/archive", ch.ArchiveChannel) // 归档
		channelGroup.GET("/:id/members", ch.ListMembers)     // 成员列表
		channelGroup.POST("/:id/members", ch.AddMember)      // 添加或恢复成员
		channelGroup.DELETE("/:id/members/:userID", ch.RemoveMember)
		channelGroup.PUT("/:id/members/:userID/role", ch.ChangeMemberRole)

		// 频道消息与文件
		channelGroup.POST("/:id/messages", send...)
		channelGroup.GET("/:id/messages", mh.ListMessages)
		channelGroup.GET("/:id/files", fh.ListChannelFiles)
	}
}

// MessageHandler 接口定义
func RegisterMessageRoutes(g *gin.RouterGroup, h *handler.MessageHandler) {
	messageGroup := g.Group("/messages")
	{
		messageGroup.PATCH("/:id", h.EditMessage)                      // 编辑
		messageGroup.DELETE("/:id", h.DeleteMessage)                   // 软删除
		messageGroup.POST("/:id/reactions", h.AddReaction)             // 添加或恢复表情回应
		messageGroup.DELETE("/:id/reactions/:emoji", h.RemoveReaction) // 取消表情回应
	}
}

// FileHandler 接口定义
func RegisterFileRoutes(g *gin.RouterGroup, h *handler.FileHandler) {
	fileGroup := g.Group("/files")
	{
		fileGroup.POST("", h.UploadFile)
		fileGroup.GET("/:id", h.GetFile)
		fileGroup.DELETE("/:id", h.DeleteFile)
		fileGroup.POST("/:id/restore", h.RestoreFile)
	}
}
