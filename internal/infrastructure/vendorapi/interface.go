// Package vendorapi 封装厂商网关的 HTTP 调用
// 本文件定义网关接口与数据类型，遵循依赖倒置原则
// Service 层依赖此接口而非具体实现，便于测试
package vendorapi

import (
	"context"
	"fmt"

	"wechat_bridge_server/internal/model"
)

// 厂商业务状态码
// 约定 1000 为成功，其余为业务性失败
const (
	CodeSuccess        = 1000 // 成功/在线
	CodeOffline        = 1001 // 设备离线
	CodePending        = 1002 // 等待扫码
	CodeNeedVerifyCode = 1003 // 需要输入验证码
	CodeExpired        = 1004 // 设备已被厂商回收
)

// APIError 厂商返回的业务错误（非 1000 状态码）
// 区别于传输层错误：收到了响应，但业务失败
type APIError struct {
	Code int
	Msg  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("vendor api error code=%d msg=%s", e.Code, e.Msg)
}

// TokenData 平台登录返回的 token 信息
type TokenData struct {
	AccessToken string `json:"accessToken"`
	ExpiresIn   int64  `json:"expiresIn"` // 秒，0 表示长期有效
}

// QRCodeData 登录二维码
type QRCodeData struct {
	QrCode    string `json:"qrCode"`    // 二维码原始内容
	QrCodeUrl string `json:"qrCodeUrl"` // 二维码图片地址
}

// LoginData 确认登录/二次登录的结果
// 由厂商状态码解释而来：1000 登录成功并携带身份字段，1002 等待扫码，1003 需要验证码
type LoginData struct {
	LoggedIn       bool
	Pending        bool
	NeedVerifyCode bool

	WxId        string `json:"wxId"`
	Nickname    string `json:"nickname"`
	Avatar      string `json:"avatar"`
	AccessToken string `json:"accessToken"` // 设备会话 token
}

// StatusData 在线状态探测结果
type StatusData struct {
	Code   int  // 厂商状态码，1000 在线
	Online bool // Code == 1000
}

// SendData 发送消息的厂商回执
// msgId/newMsgId/createTime 供撤回使用，落库时保留
type SendData struct {
	MessageId  string `json:"messageId"`
	MsgId      string `json:"msgId"`
	NewMsgId   string `json:"newMsgId"`
	CreateTime int64  `json:"createTime"`
}

// SendMessageRequest 发送消息请求，所有消息类型共用
type SendMessageRequest struct {
	DeviceId string
	Target   string // 接收方微信号或群 id
	Type     string // 消息类型，见 model 常量

	Content       string // 文本内容
	MediaUrl      string // 图片/语音/视频/文件地址
	MediaFileName string
	Title         string // 链接标题
	Description   string // 链接描述
	ThumbUrl      string // 链接缩略图
	CardWxId      string // 名片微信号
}

// RecallMessageRequest 撤回消息请求
type RecallMessageRequest struct {
	DeviceId   string
	MsgId      string
	NewMsgId   string
	CreateTime int64
}

// ContactData 联系人条目
type ContactData struct {
	WeChatId string `json:"wxId"`
	Nickname string `json:"nickname"`
	Remark   string `json:"remark"`
	Avatar   string `json:"avatar"`
}

// GroupData 群组条目
type GroupData struct {
	GroupId     string `json:"groupId"`
	GroupName   string `json:"groupName"`
	OwnerWxId   string `json:"ownerWxId"`
	MemberCount int    `json:"memberCount"`
	Avatar      string `json:"avatar"`
}

// CallRecorder 调用计数钩子
// 厂商客户端每次调用后触发，由凭证聚合在锁保护下递增计数
type CallRecorder interface {
	RecordCall(apiAccountId uint)
}

// Gateway 厂商网关接口
// 每个操作都携带显式超时；传输层错误以 error 返回，业务失败以 *APIError 或结果字段表达
type Gateway interface {
	// PlatformLogin 平台级登录，换取平台 token
	PlatformLogin(ctx context.Context, cred *model.WeChatApiAccount) (*TokenData, error)
	// CreateDevice 在厂商侧注册设备
	CreateDevice(ctx context.Context, cred *model.WeChatApiAccount, deviceId string) error
	// GetLoginQRCode 获取登录二维码
	GetLoginQRCode(ctx context.Context, cred *model.WeChatApiAccount, deviceId, province, city, proxy string) (*QRCodeData, error)
	// ConfirmLogin 确认登录（长轮询，厂商内部窗口约 215s）
	ConfirmLogin(ctx context.Context, cred *model.WeChatApiAccount, deviceId string) (*LoginData, error)
	// ConfirmLoginShort 确认登录（短轮询，立即返回当前状态）
	ConfirmLoginShort(ctx context.Context, cred *model.WeChatApiAccount, deviceId string) (*LoginData, error)
	// InputVerificationCode 输入登录验证码
	InputVerificationCode(ctx context.Context, cred *model.WeChatApiAccount, deviceId, code string) error
	// ReLogin 二次登录（设备未登出超过 20 天会被厂商回收，返回 CodeExpired）
	ReLogin(ctx context.Context, cred *model.WeChatApiAccount, deviceId string) (*LoginData, error)
	// Logout 登出设备
	Logout(ctx context.Context, cred *model.WeChatApiAccount, deviceId string) error
	// CheckOnlineStatus 探测设备在线状态
	CheckOnlineStatus(ctx context.Context, cred *model.WeChatApiAccount, deviceId string) (*StatusData, error)
	// SendMessage 发送消息（按 req.Type 路由到对应端点）
	SendMessage(ctx context.Context, cred *model.WeChatApiAccount, req *SendMessageRequest) (*SendData, error)
	// RecallMessage 撤回消息
	RecallMessage(ctx context.Context, cred *model.WeChatApiAccount, req *RecallMessageRequest) error
	// GetContactList 拉取通讯录
	GetContactList(ctx context.Context, cred *model.WeChatApiAccount, deviceId string) ([]ContactData, error)
	// GetGroupList 拉取群列表
	GetGroupList(ctx context.Context, cred *model.WeChatApiAccount, deviceId string) ([]GroupData, error)
}
