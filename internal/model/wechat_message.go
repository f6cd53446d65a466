// Package model 定义数据库实体模型
// 本文件定义消息模型，存储收到和发出的微信消息
package model

import (
	"database/sql"

	"gorm.io/gorm"
)

// 消息方向
const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// 消息类型，与厂商回调的 messageType 字段对应
const (
	MessageTypeText        = "text"
	MessageTypeImage       = "image"
	MessageTypeVoice       = "voice"
	MessageTypeVideo       = "video"
	MessageTypeFile        = "file"
	MessageTypeLink        = "link"
	MessageTypeEmoji       = "emoji"
	MessageTypeCard        = "card"
	MessageTypeMiniProgram = "mini_program"
	MessageTypeXml         = "xml"
	MessageTypeUnknown     = "unknown"
)

// NormalizeMessageType 将厂商消息类型收敛到已知枚举，未识别的归为 unknown
func NormalizeMessageType(t string) string {
	switch t {
	case MessageTypeText, MessageTypeImage, MessageTypeVoice, MessageTypeVideo,
		MessageTypeFile, MessageTypeLink, MessageTypeEmoji, MessageTypeCard,
		MessageTypeMiniProgram, MessageTypeXml:
		return t
	}
	return MessageTypeUnknown
}

// WeChatMessage 消息模型
// 对应数据库 wechat_message 表
// 入站消息由回调落库，出站消息在发送成功后落库；从不删除，软标记 valid
type WeChatMessage struct {
	gorm.Model

	// Uuid 本地消息唯一标识（雪花 ID）
	// 厂商回执到达前出站消息还没有 messageId，用本地 ID 先行占位
	Uuid int64 `gorm:"column:uuid;uniqueIndex;type:bigint;not null;comment:消息雪花ID"`

	// DeviceId 所属设备
	DeviceId string `gorm:"column:device_id;index;type:char(32);not null;comment:设备id"`

	// MessageId 厂商消息 ID，去重键 (device_id, message_id)
	// 出站消息在厂商确认前为空
	MessageId string `gorm:"column:message_id;index;type:varchar(100);comment:厂商消息id"`

	// VendorMsgId / VendorNewMsgId / VendorCreateTime 撤回消息所需的厂商原始标识
	// 入站时保留，缺失则无法撤回
	VendorMsgId      string `gorm:"column:vendor_msg_id;type:varchar(100);comment:厂商msgId"`
	VendorNewMsgId   string `gorm:"column:vendor_new_msg_id;type:varchar(100);comment:厂商newMsgId"`
	VendorCreateTime int64  `gorm:"column:vendor_create_time;comment:厂商消息时间戳"`

	// MessageType 消息类型，取值见上方常量
	MessageType string `gorm:"column:message_type;type:varchar(20);not null;comment:消息类型"`

	// Direction 消息方向：inbound / outbound
	Direction string `gorm:"column:direction;type:varchar(10);not null;comment:消息方向"`

	// 发送方
	SenderId   string `gorm:"column:sender_id;index;type:varchar(100);comment:发送者id"`
	SenderName string `gorm:"column:sender_name;type:varchar(100);comment:发送者昵称"`

	// 接收方：私聊消息 ReceiverId 非空，群聊消息 GroupId 非空，二者必居其一
	ReceiverId   string `gorm:"column:receiver_id;index;type:varchar(100);comment:接收者id"`
	ReceiverName string `gorm:"column:receiver_name;type:varchar(100);comment:接收者昵称"`
	GroupId      string `gorm:"column:group_id;index;type:varchar(100);comment:群id"`
	GroupName    string `gorm:"column:group_name;type:varchar(200);comment:群名称"`

	// Content 消息文本内容
	Content string `gorm:"column:content;type:text;comment:消息内容"`

	// 媒体消息附加字段
	MediaUrl      string `gorm:"column:media_url;type:varchar(500);comment:媒体url"`
	MediaFileName string `gorm:"column:media_file_name;type:varchar(255);comment:媒体文件名"`
	MediaFileSize int64  `gorm:"column:media_file_size;comment:媒体文件大小"`

	// MessageTime 消息时间（厂商时间戳换算）
	MessageTime sql.NullTime `gorm:"column:message_time;comment:消息时间"`

	// 已读/已回复标记
	IsRead    bool `gorm:"column:is_read;not null;default:false;comment:是否已读"`
	IsReplied bool `gorm:"column:is_replied;not null;default:false;comment:是否已回复"`

	// Valid 软删除标志
	Valid bool `gorm:"column:valid;not null;default:true;comment:是否有效"`
}

// TableName 指定表名
func (WeChatMessage) TableName() string {
	return "wechat_message"
}

// IsGroupMessage 是否群聊消息，groupId 非空即为群聊
func (m *WeChatMessage) IsGroupMessage() bool {
	return m.GroupId != ""
}
