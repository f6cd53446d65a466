package handler

import (
	"strconv"

	"wechat_bridge_server/internal/dto/request"
	"wechat_bridge_server/internal/service/message"
	"wechat_bridge_server/pkg/errorx"

	"github.com/gin-gonic/gin"
)

// MessageHandler 消息请求处理器
type MessageHandler struct {
	messageSvc *message.Service
}

// NewMessageHandler 创建消息处理器实例
func NewMessageHandler(messageSvc *message.Service) *MessageHandler {
	return &MessageHandler{messageSvc: messageSvc}
}

// SendText 发送文本消息
// POST /message/send/text
func (h *MessageHandler) SendText(c *gin.Context) {
	var req request.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	data, err := h.messageSvc.SendTextMessage(c.Request.Context(), req.DeviceId, req.ReceiverId, req.GroupId, req.Content)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, data)
}

// SendMedia 发送媒体消息，:type 为 image/voice/video/file
// POST /message/send-media/:type
func (h *MessageHandler) SendMedia(c *gin.Context) {
	var req request.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	data, err := h.messageSvc.SendMediaMessage(c.Request.Context(), req.DeviceId, req.ReceiverId, req.GroupId,
		c.Param("type"), req.MediaUrl, req.MediaFileName)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, data)
}

// SendLink 发送链接卡片
// POST /message/send-link
func (h *MessageHandler) SendLink(c *gin.Context) {
	var req request.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	data, err := h.messageSvc.SendLinkMessage(c.Request.Context(), req.DeviceId, req.ReceiverId, req.GroupId,
		req.Title, req.Description, req.MediaUrl, req.ThumbUrl)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, data)
}

// SendCard 发送名片
// POST /message/send-card
func (h *MessageHandler) SendCard(c *gin.Context) {
	var req request.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	data, err := h.messageSvc.SendCardMessage(c.Request.Context(), req.DeviceId, req.ReceiverId, req.GroupId, req.CardWxId)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, data)
}

// Recall 撤回消息
// POST /message/recall
func (h *MessageHandler) Recall(c *gin.Context) {
	var req request.RecallMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	recalled, err := h.messageSvc.RecallMessage(c.Request.Context(), req.DeviceId, req.MessageId)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, gin.H{"recalled": recalled})
}

// List 消息列表
// POST /message/list
func (h *MessageHandler) List(c *gin.Context) {
	var req request.MessageListRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	data, err := h.messageSvc.GetMessageList(req.DeviceId, req.Limit, req.Offset)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, data)
}

// MarkRead 标记消息已读
// POST /message/read/:uuid
func (h *MessageHandler) MarkRead(c *gin.Context) {
	uuid, err := strconv.ParseInt(c.Param("uuid"), 10, 64)
	if err != nil {
		HandleError(c, errorx.ErrInvalidParam)
		return
	}
	if err := h.messageSvc.MarkRead(uuid); err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, nil)
}
