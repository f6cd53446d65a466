// Package router 提供 HTTP 路由注册
// 本文件定义平台凭证路由
package router

import (
	"github.com/gin-gonic/gin"
)

// RegisterApiAccountRoutes 注册平台凭证路由（需要认证）
func (rt *Router) RegisterApiAccountRoutes(rg *gin.RouterGroup) {
	apiAccountGroup := rg.Group("/api-account")
	{
		apiAccountGroup.POST("/create", rt.handlers.ApiAccount.Create) // 创建凭证
		apiAccountGroup.GET("/list", rt.handlers.ApiAccount.List)      // 凭证列表
	}
}
