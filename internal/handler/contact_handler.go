package handler

import (
	"wechat_bridge_server/internal/dto/request"
	"wechat_bridge_server/internal/service/contact"

	"github.com/gin-gonic/gin"
)

// ContactHandler 联系人/群组请求处理器
type ContactHandler struct {
	contactSvc *contact.Service
}

// NewContactHandler 创建联系人处理器实例
func NewContactHandler(contactSvc *contact.Service) *ContactHandler {
	return &ContactHandler{contactSvc: contactSvc}
}

// SyncContacts 全量同步通讯录
// POST /contact/sync
func (h *ContactHandler) SyncContacts(c *gin.Context) {
	var req request.DeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	data, err := h.contactSvc.SyncContacts(c.Request.Context(), req.DeviceId)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, data)
}

// SyncGroups 全量同步群列表
// POST /group/sync
func (h *ContactHandler) SyncGroups(c *gin.Context) {
	var req request.DeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	data, err := h.contactSvc.SyncGroups(c.Request.Context(), req.DeviceId)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, data)
}

// ListContacts 已同步的联系人列表
// GET /contact/list/:deviceId
func (h *ContactHandler) ListContacts(c *gin.Context) {
	data, err := h.contactSvc.ListContacts(c.Param("deviceId"))
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, data)
}

// ListGroups 已同步的群组列表
// GET /group/list/:deviceId
func (h *ContactHandler) ListGroups(c *gin.Context) {
	data, err := h.contactSvc.ListGroups(c.Param("deviceId"))
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, data)
}
