// Package callback 接收并分发厂商回调事件
// 回调是厂商到本系统的唯一推送通道，解析和分发逻辑集中在此包
package callback

import (
	"encoding/json"
	"errors"
)

// 回调事件类型，对应请求体中的 type 字段
const (
	EventTypeMessage       = "message"
	EventTypeLogin         = "login"
	EventTypeStatus        = "status"
	EventTypeFriendRequest = "friend_request"
	EventTypeGroupInvite   = "group_invite"
)

// 解析阶段的错误，由 Handler 映射为 400 响应
var (
	ErrInvalidJSON = errors.New("invalid callback json")
	ErrInvalidData = errors.New("invalid callback data")
)

// MessagePayload 消息回调载荷
// 字段名与厂商协议一致，messageId 为去重键
// 发送方字段有 senderId / fromUser 两种写法，解析后统一到 SenderId
type MessagePayload struct {
	MessageId   string `json:"messageId"`
	MsgId       string `json:"msgId"`
	NewMsgId    string `json:"newMsgId"`
	CreateTime  int64  `json:"createTime"`
	MessageType string `json:"messageType"`
	SenderId    string `json:"senderId"`
	FromUser    string `json:"fromUser"`
	SenderName  string `json:"senderName"`
	ReceiverId  string `json:"receiverId"`
	GroupId     string `json:"groupId"`
	GroupName   string `json:"groupName"`
	Content     string `json:"content"`
	MediaUrl    string `json:"mediaUrl"`
	FileName    string `json:"fileName"`
	FileSize    int64  `json:"fileSize"`
	Timestamp   int64  `json:"timestamp"` // 消息时间，秒
}

// LoginPayload 登录结果回调载荷
// status 为 "success" 表示扫码登录完成，其余值视为登录失败
type LoginPayload struct {
	Status      string `json:"status"`
	WxId        string `json:"wxId"`
	Nickname    string `json:"nickname"`
	Avatar      string `json:"avatar"`
	AccessToken string `json:"accessToken"`
	Reason      string `json:"reason"`
}

// StatusPayload 在线状态变更回调载荷
type StatusPayload struct {
	Status string `json:"status"` // online / offline
	Reason string `json:"reason"`
}

// FriendRequestPayload 好友申请回调载荷
type FriendRequestPayload struct {
	FromWxId  string `json:"fromWxId"`
	Nickname  string `json:"nickname"`
	Greeting  string `json:"greeting"`
	Timestamp int64  `json:"timestamp"`
}

// GroupInvitePayload 群邀请回调载荷
type GroupInvitePayload struct {
	GroupId     string `json:"groupId"`
	GroupName   string `json:"groupName"`
	InviterWxId string `json:"inviterWxId"`
	Timestamp   int64  `json:"timestamp"`
}

// Event 解析后的回调事件
// Type 决定哪个载荷字段有效，其余为零值
type Event struct {
	Type     string
	DeviceId string

	Message       *MessagePayload
	Login         *LoginPayload
	Status        *StatusPayload
	FriendRequest *FriendRequestPayload
	GroupInvite   *GroupInvitePayload
}

// rawEvent 回调请求体的外层结构
// 载荷字段与 type/deviceId 平铺在同一层；data 为部分厂商版本的嵌套写法
type rawEvent struct {
	Type     string          `json:"type"`
	DeviceId string          `json:"deviceId"`
	Data     json.RawMessage `json:"data"`
}

// ParseEvent 解析回调请求体
// type 或 deviceId 缺失返回 ErrInvalidData；未知 type 不报错，由分发阶段记录并忽略
func ParseEvent(body []byte) (*Event, error) {
	var raw rawEvent
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, ErrInvalidJSON
	}
	if raw.Type == "" || raw.DeviceId == "" {
		return nil, ErrInvalidData
	}

	ev := &Event{Type: raw.Type, DeviceId: raw.DeviceId}

	// 载荷解析失败同样视为无效数据
	switch raw.Type {
	case EventTypeMessage:
		ev.Message = &MessagePayload{}
		if err := unmarshalPayload(body, raw.Data, ev.Message); err != nil {
			return nil, err
		}
		if ev.Message.SenderId == "" {
			ev.Message.SenderId = ev.Message.FromUser
		}
	case EventTypeLogin:
		ev.Login = &LoginPayload{}
		if err := unmarshalPayload(body, raw.Data, ev.Login); err != nil {
			return nil, err
		}
	case EventTypeStatus:
		ev.Status = &StatusPayload{}
		if err := unmarshalPayload(body, raw.Data, ev.Status); err != nil {
			return nil, err
		}
	case EventTypeFriendRequest:
		ev.FriendRequest = &FriendRequestPayload{}
		if err := unmarshalPayload(body, raw.Data, ev.FriendRequest); err != nil {
			return nil, err
		}
	case EventTypeGroupInvite:
		ev.GroupInvite = &GroupInvitePayload{}
		if err := unmarshalPayload(body, raw.Data, ev.GroupInvite); err != nil {
			return nil, err
		}
	}
	return ev, nil
}

// unmarshalPayload 先按平铺结构解析整个请求体，再用嵌套 data 覆盖同名字段
func unmarshalPayload(body []byte, data json.RawMessage, dst any) error {
	if err := json.Unmarshal(body, dst); err != nil {
		return ErrInvalidData
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, dst); err != nil {
			return ErrInvalidData
		}
	}
	return nil
}
