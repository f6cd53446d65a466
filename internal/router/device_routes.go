// Package router 提供 HTTP 路由注册
// 本文件定义设备会话相关路由
package router

import (
	"github.com/gin-gonic/gin"
)

// RegisterDeviceRoutes 注册设备相关路由（需要认证）
func (rt *Router) RegisterDeviceRoutes(rg *gin.RouterGroup) {
	deviceGroup := rg.Group("/device")
	{
		deviceGroup.POST("/create", rt.handlers.Device.Create)              // 创建设备
		deviceGroup.GET("/list", rt.handlers.Device.List)                   // 设备列表
		deviceGroup.GET("/detail/:deviceId", rt.handlers.Device.Get)        // 设备详情
		deviceGroup.POST("/login/start", rt.handlers.Device.StartLogin)     // 获取登录二维码
		deviceGroup.POST("/login/confirm", rt.handlers.Device.ConfirmLogin)            // 确认登录（长轮询）
		deviceGroup.POST("/login/confirm-short", rt.handlers.Device.ConfirmLoginShort) // 确认登录（短轮询）
		deviceGroup.POST("/login/code", rt.handlers.Device.InputCode)       // 输入验证码
		deviceGroup.POST("/login/relogin", rt.handlers.Device.ReLogin)      // 二次登录
		deviceGroup.POST("/logout", rt.handlers.Device.Logout)              // 登出
		deviceGroup.POST("/status", rt.handlers.Device.Status)              // 在线状态校准
	}
}
