// Package router 提供 HTTP 路由注册
// 本文件定义联系人和群组路由
package router

import (
	"github.com/gin-gonic/gin"
)

// RegisterContactRoutes 注册联系人/群组路由（需要认证）
func (rt *Router) RegisterContactRoutes(rg *gin.RouterGroup) {
	contactGroup := rg.Group("/contact")
	{
		contactGroup.POST("/sync", rt.handlers.Contact.SyncContacts)          // 同步通讯录
		contactGroup.GET("/list/:deviceId", rt.handlers.Contact.ListContacts) // 联系人列表
	}

	groupGroup := rg.Group("/group")
	{
		groupGroup.POST("/sync", rt.handlers.Contact.SyncGroups)          // 同步群列表
		groupGroup.GET("/list/:deviceId", rt.handlers.Contact.ListGroups) // 群组列表
	}
}
