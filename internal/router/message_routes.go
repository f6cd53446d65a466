// Package router 提供 HTTP 路由注册
// 本文件定义消息相关路由
package router

import (
	"github.com/gin-gonic/gin"
)

// RegisterMessageRoutes 注册消息相关路由（需要认证）
func (rt *Router) RegisterMessageRoutes(rg *gin.RouterGroup) {
	messageGroup := rg.Group("/message")
	{
		messageGroup.POST("/send/text", rt.handlers.Message.SendText)        // 发送文本
		messageGroup.POST("/send-media/:type", rt.handlers.Message.SendMedia) // 发送媒体（image/voice/video/file）
		messageGroup.POST("/send-link", rt.handlers.Message.SendLink)        // 发送链接卡片
		messageGroup.POST("/send-card", rt.handlers.Message.SendCard)        // 发送名片
		messageGroup.POST("/recall", rt.handlers.Message.Recall)             // 撤回消息
		messageGroup.POST("/list", rt.handlers.Message.List)                 // 消息列表
		messageGroup.POST("/read/:uuid", rt.handlers.Message.MarkRead)       // 标记已读
	}
}
