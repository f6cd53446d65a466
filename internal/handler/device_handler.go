// Package handler 提供 HTTP 请求处理器
// 本文件处理设备会话相关的管理接口
package handler

import (
	"wechat_bridge_server/internal/dto/request"
	"wechat_bridge_server/internal/service/device"

	"github.com/gin-gonic/gin"
)

// DeviceHandler 设备请求处理器
type DeviceHandler struct {
	deviceSvc *device.SessionManager
}

// NewDeviceHandler 创建设备处理器实例
func NewDeviceHandler(deviceSvc *device.SessionManager) *DeviceHandler {
	return &DeviceHandler{deviceSvc: deviceSvc}
}

// Create 创建设备
// POST /device/create
func (h *DeviceHandler) Create(c *gin.Context) {
	var req request.CreateDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	data, err := h.deviceSvc.CreateDevice(c.Request.Context(), req.ApiAccountId, req.Proxy)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, data)
}

// List 设备列表
// GET /device/list
func (h *DeviceHandler) List(c *gin.Context) {
	data, err := h.deviceSvc.ListDevices()
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, data)
}

// Get 设备详情
// GET /device/:deviceId
func (h *DeviceHandler) Get(c *gin.Context) {
	data, err := h.deviceSvc.GetDevice(c.Param("deviceId"))
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, data)
}

// StartLogin 发起扫码登录，返回二维码
// POST /device/login/start
func (h *DeviceHandler) StartLogin(c *gin.Context) {
	var req request.StartLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	data, err := h.deviceSvc.StartLogin(c.Request.Context(), req.DeviceId, req.Province, req.City, req.Proxy)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, data)
}

// ConfirmLogin 确认登录（长轮询，最长等待数分钟）
// POST /device/login/confirm
func (h *DeviceHandler) ConfirmLogin(c *gin.Context) {
	var req request.DeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	data, err := h.deviceSvc.ConfirmLogin(c.Request.Context(), req.DeviceId)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, data)
}

// ConfirmLoginShort 确认登录（短轮询），立即返回当前进度
// POST /device/login/confirm-short
func (h *DeviceHandler) ConfirmLoginShort(c *gin.Context) {
	var req request.DeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	data, err := h.deviceSvc.ConfirmLoginShort(c.Request.Context(), req.DeviceId)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, data)
}

// InputCode 输入登录验证码
// POST /device/login/code
func (h *DeviceHandler) InputCode(c *gin.Context) {
	var req request.InputCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	data, err := h.deviceSvc.InputLoginCode(c.Request.Context(), req.DeviceId, req.Code)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, data)
}

// ReLogin 二次登录
// POST /device/login/relogin
func (h *DeviceHandler) ReLogin(c *gin.Context) {
	var req request.DeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	data, err := h.deviceSvc.ReLogin(c.Request.Context(), req.DeviceId)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, data)
}

// Logout 登出设备
// POST /device/logout
func (h *DeviceHandler) Logout(c *gin.Context) {
	var req request.DeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	loggedOut, err := h.deviceSvc.Logout(c.Request.Context(), req.DeviceId)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, gin.H{"loggedOut": loggedOut})
}

// Status 探测并校准在线状态
// POST /device/status
func (h *DeviceHandler) Status(c *gin.Context) {
	var req request.DeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	data, err := h.deviceSvc.ReconcileOnlineStatus(c.Request.Context(), req.DeviceId)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, data)
}
