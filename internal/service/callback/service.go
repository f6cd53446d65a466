package callback

import (
	"context"

	"wechat_bridge_server/internal/model"
	"wechat_bridge_server/pkg/errorx"

	"go.uber.org/zap"
)

// MessageIngester 消息落库接口，由消息服务实现
// 返回落库（或已存在）的消息记录；返回 nil 记录表示载荷不完整、无法落库
type MessageIngester interface {
	IngestInbound(ctx context.Context, deviceId string, payload *MessagePayload) (*model.WeChatMessage, error)
}

// AccountUpdater 账号状态更新接口，由设备会话服务实现
type AccountUpdater interface {
	// ApplyLoginEvent 应用登录结果回调
	ApplyLoginEvent(ctx context.Context, deviceId string, success bool, wxId, nickname, avatar, accessToken string) error
	// ApplyStatusEvent 应用在线状态变更回调
	ApplyStatusEvent(ctx context.Context, deviceId string, online bool) error
}

// Dispatcher 回调分发器
// 按事件类型把回调路由到对应的业务服务
type Dispatcher struct {
	ingester MessageIngester
	accounts AccountUpdater
}

// NewDispatcher 创建回调分发器
func NewDispatcher(ingester MessageIngester, accounts AccountUpdater) *Dispatcher {
	return &Dispatcher{ingester: ingester, accounts: accounts}
}

// Dispatch 分发一条已解析的回调事件
// 返回 nil 表示已处理（含未知类型的忽略），返回错误由 Handler 统一回 500
func (d *Dispatcher) Dispatch(ctx context.Context, ev *Event) error {
	switch ev.Type {
	case EventTypeMessage:
		return d.dispatchMessage(ctx, ev)
	case EventTypeLogin:
		return d.dispatchLogin(ctx, ev)
	case EventTypeStatus:
		return d.dispatchStatus(ctx, ev)
	case EventTypeFriendRequest:
		// 暂不自动处理好友申请，记录后由管理端人工跟进
		zap.L().Info("friend request received",
			zap.String("deviceId", ev.DeviceId),
			zap.String("fromWxId", ev.FriendRequest.FromWxId),
			zap.String("nickname", ev.FriendRequest.Nickname))
		return nil
	case EventTypeGroupInvite:
		zap.L().Info("group invite received",
			zap.String("deviceId", ev.DeviceId),
			zap.String("groupId", ev.GroupInvite.GroupId),
			zap.String("inviterWxId", ev.GroupInvite.InviterWxId))
		return nil
	}

	// 未知类型不拒绝，避免厂商新增事件类型导致重试风暴
	zap.L().Warn("unknown callback event type",
		zap.String("type", ev.Type),
		zap.String("deviceId", ev.DeviceId))
	return nil
}

func (d *Dispatcher) dispatchMessage(ctx context.Context, ev *Event) error {
	record, err := d.ingester.IngestInbound(ctx, ev.DeviceId, ev.Message)
	if err != nil {
		zap.L().Error("message ingestion failed",
			zap.String("deviceId", ev.DeviceId),
			zap.String("messageId", ev.Message.MessageId),
			zap.Error(err))
		return errorx.ErrProcessFailed
	}
	if record == nil {
		zap.L().Error("message ingestion returned no record",
			zap.String("deviceId", ev.DeviceId),
			zap.String("messageId", ev.Message.MessageId))
		return errorx.ErrProcessFailed
	}
	return nil
}

func (d *Dispatcher) dispatchLogin(ctx context.Context, ev *Event) error {
	success := ev.Login.Status == "success"
	if !success {
		zap.L().Warn("login callback reported failure",
			zap.String("deviceId", ev.DeviceId),
			zap.String("status", ev.Login.Status),
			zap.String("reason", ev.Login.Reason))
	}

	err := d.accounts.ApplyLoginEvent(ctx, ev.DeviceId, success,
		ev.Login.WxId, ev.Login.Nickname, ev.Login.Avatar, ev.Login.AccessToken)
	if err != nil {
		zap.L().Error("apply login event failed",
			zap.String("deviceId", ev.DeviceId),
			zap.Error(err))
		return errorx.ErrProcessFailed
	}
	return nil
}

func (d *Dispatcher) dispatchStatus(ctx context.Context, ev *Event) error {
	online := ev.Status.Status == "online"
	if err := d.accounts.ApplyStatusEvent(ctx, ev.DeviceId, online); err != nil {
		zap.L().Error("apply status event failed",
			zap.String("deviceId", ev.DeviceId),
			zap.String("status", ev.Status.Status),
			zap.Error(err))
		return errorx.ErrProcessFailed
	}
	return nil
}
