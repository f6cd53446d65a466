package handler

import (
	"wechat_bridge_server/internal/config"
	"wechat_bridge_server/internal/service"
)

// Handlers 聚合所有处理器实例
type Handlers struct {
	Auth       *AuthHandler
	Callback   *CallbackHandler
	Device     *DeviceHandler
	Message    *MessageHandler
	Contact    *ContactHandler
	ApiAccount *ApiAccountHandler
}

// NewHandlers 创建所有处理器实例
func NewHandlers(cfg *config.Config, services *service.Services) *Handlers {
	return &Handlers{
		Auth:       NewAuthHandler(&cfg.AdminConfig),
		Callback:   NewCallbackHandler(services.Dispatcher),
		Device:     NewDeviceHandler(services.Device),
		Message:    NewMessageHandler(services.Message),
		Contact:    NewContactHandler(services.Contact),
		ApiAccount: NewApiAccountHandler(services.ApiAccount),
	}
}
