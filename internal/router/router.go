// Package router 提供 HTTP 路由注册
// 本文件是路由注册的入口，聚合所有子模块的路由
package router

import (
	"wechat_bridge_server/internal/handler"
	"wechat_bridge_server/internal/infrastructure/middleware"

	"github.com/gin-gonic/gin"
)

// Router 路由管理器，持有 handler 聚合对象
type Router struct {
	handlers *handler.Handlers
}

// NewRouter 创建路由管理器
func NewRouter(handlers *handler.Handlers) *Router {
	return &Router{handlers: handlers}
}

// RegisterRoutes 注册所有路由
// 回调路由不经过 JWT 认证，管理路由统一挂在 /admin 组并要求认证
func (rt *Router) RegisterRoutes(engine *gin.Engine) {
	rt.RegisterCallbackRoutes(engine)
	rt.RegisterAuthRoutes(engine)

	admin := engine.Group("/admin", middleware.JWTAuth())
	rt.RegisterDeviceRoutes(admin)
	rt.RegisterMessageRoutes(admin)
	rt.RegisterContactRoutes(admin)
	rt.RegisterApiAccountRoutes(admin)
}
