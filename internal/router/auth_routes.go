// Package router 提供 HTTP 路由注册
// 本文件定义管理端认证路由
package router

import (
	"github.com/gin-gonic/gin"
)

// RegisterAuthRoutes 注册认证路由（不经过认证）
func (rt *Router) RegisterAuthRoutes(engine *gin.Engine) {
	authGroup := engine.Group("/auth")
	{
		authGroup.POST("/login", rt.handlers.Auth.Login)     // 管理端登录
		authGroup.POST("/refresh", rt.handlers.Auth.Refresh) // 刷新 Access Token
	}
}
