// Package service 聚合所有业务服务，作为依赖注入入口
package service

import (
	"wechat_bridge_server/internal/config"
	"wechat_bridge_server/internal/dao/mysql/repository"
	"wechat_bridge_server/internal/dao/redis"
	"wechat_bridge_server/internal/infrastructure/mq"
	"wechat_bridge_server/internal/infrastructure/vendorapi"
	"wechat_bridge_server/internal/service/apiaccount"
	"wechat_bridge_server/internal/service/callback"
	"wechat_bridge_server/internal/service/contact"
	"wechat_bridge_server/internal/service/device"
	"wechat_bridge_server/internal/service/message"
)

// Services 业务服务聚合
type Services struct {
	ApiAccount *apiaccount.Service
	Device     *device.SessionManager
	Message    *message.Service
	Contact    *contact.Service
	Dispatcher *callback.Dispatcher

	Gateway   vendorapi.Gateway
	Publisher mq.Publisher
}

// InitServices 组装所有服务
// 凭证服务与厂商客户端互为依赖（客户端调用后计数），先建服务再注入网关
func InitServices(cfg *config.Config, repos *repository.Repositories) *Services {
	apiAccountService := apiaccount.NewService(repos)
	gateway := vendorapi.NewClient(&cfg.VendorConfig, apiAccountService)
	apiAccountService.SetGateway(gateway)

	publisher := mq.NewPublisher(&cfg.KafkaConfig)
	cache := redis.Adapter{}

	deviceService := device.NewSessionManager(repos, gateway, apiAccountService)
	messageService := message.NewService(repos, gateway, apiAccountService, cache, publisher)
	contactService := contact.NewService(repos, gateway, apiAccountService)
	dispatcher := callback.NewDispatcher(messageService, deviceService)

	return &Services{
		ApiAccount: apiAccountService,
		Device:     deviceService,
		Message:    messageService,
		Contact:    contactService,
		Dispatcher: dispatcher,
		Gateway:    gateway,
		Publisher:  publisher,
	}
}
