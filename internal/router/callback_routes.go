// Package router 提供 HTTP 路由注册
// 本文件定义厂商回调路由
package router

import (
	"github.com/gin-gonic/gin"
)

// RegisterCallbackRoutes 注册回调路由（不经过认证）
// 厂商只会 POST，其他方法由 HandleMethodNotAllowed 回 405
func (rt *Router) RegisterCallbackRoutes(engine *gin.Engine) {
	engine.POST("/callback", rt.handlers.Callback.Receive)
}
