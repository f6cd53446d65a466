package handler

import (
	"errors"
	"io"
	"net/http"

	"wechat_bridge_server/internal/service/callback"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// CallbackHandler 厂商回调处理器
// 响应契约是和厂商约定死的：400 表示请求体有问题（厂商不重试），
// 500 表示处理失败（厂商会重试），200 表示已受理
type CallbackHandler struct {
	dispatcher *callback.Dispatcher
}

// NewCallbackHandler 创建回调处理器
func NewCallbackHandler(dispatcher *callback.Dispatcher) *CallbackHandler {
	return &CallbackHandler{dispatcher: dispatcher}
}

// Receive 接收厂商回调
// POST /callback
func (h *CallbackHandler) Receive(c *gin.Context) {
	// 回调处理 panic 不能带崩厂商的推送通道，兜底回 500 让其重试
	defer func() {
		if rec := recover(); rec != nil {
			zap.L().Error("callback handler panic", zap.Any("recover", rec))
			c.JSON(http.StatusInternalServerError, gin.H{
				"status":  "error",
				"message": "Failed to process callback",
			})
		}
	}()

	body, err := io.ReadAll(c.Request.Body)
	if err != nil || len(body) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Empty request body"})
		return
	}

	ev, err := callback.ParseEvent(body)
	if err != nil {
		if errors.Is(err, callback.ErrInvalidJSON) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid callback data"})
		return
	}

	if err := h.dispatcher.Dispatch(c.Request.Context(), ev); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  "error",
			"message": "Failed to process callback",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "Callback processed",
	})
}
