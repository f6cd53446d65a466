package mq

import "context"

// MessageEvent 消息落库后对外发布的事件
// 下游系统（机器人、归档、统计）消费此事件，不直接读业务库
type MessageEvent struct {
	Uuid        int64  `json:"uuid"`
	DeviceId    string `json:"deviceId"`
	MessageId   string `json:"messageId"`
	MessageType string `json:"messageType"`
	Direction   string `json:"direction"`
	SenderId    string `json:"senderId"`
	ReceiverId  string `json:"receiverId,omitempty"`
	GroupId     string `json:"groupId,omitempty"`
	Content     string `json:"content,omitempty"`
	MessageTime int64  `json:"messageTime"`
}

// Publisher 事件发布接口
// 解耦 Service 层和具体 MQ 实现，channel 模式用于单机部署和测试
type Publisher interface {
	// PublishMessageEvent 发布消息事件，key 为 deviceId 保证同设备有序
	PublishMessageEvent(ctx context.Context, event *MessageEvent) error
	// Close 关闭底层连接
	Close() error
}
