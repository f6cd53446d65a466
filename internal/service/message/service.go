// Package message 实现消息的幂等落库、发送与撤回
package message

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"wechat_bridge_server/internal/dao/mysql/repository"
	"wechat_bridge_server/internal/dto/respond"
	"wechat_bridge_server/internal/infrastructure/mq"
	"wechat_bridge_server/internal/infrastructure/vendorapi"
	"wechat_bridge_server/internal/model"
	"wechat_bridge_server/internal/service/callback"
	"wechat_bridge_server/pkg/constants"
	"wechat_bridge_server/pkg/errorx"
	"wechat_bridge_server/pkg/util/snowflake"

	"go.uber.org/zap"
)

const timeLayout = "2006-01-02 15:04:05"

// Cache 缓存接口，redis.Adapter 结构化满足
// 允许为 nil，此时去重只走数据库
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	SetEx(ctx context.Context, key, value string, ttl time.Duration) error
	Submit(action func())
}

// CredentialProvider 平台凭证提供接口，由凭证服务实现
type CredentialProvider interface {
	CredentialFor(ctx context.Context, apiAccountId uint) (*model.WeChatApiAccount, error)
}

// Service 消息服务
// 实现 callback.MessageIngester，同时为管理端提供发送/撤回能力
type Service struct {
	repos     *repository.Repositories
	gateway   vendorapi.Gateway
	creds     CredentialProvider
	cache     Cache
	publisher mq.Publisher
}

var _ callback.MessageIngester = (*Service)(nil)

// NewService 创建消息服务
func NewService(repos *repository.Repositories, gateway vendorapi.Gateway, creds CredentialProvider, cache Cache, publisher mq.Publisher) *Service {
	return &Service{
		repos:     repos,
		gateway:   gateway,
		creds:     creds,
		cache:     cache,
		publisher: publisher,
	}
}

func dedupKey(deviceId, messageId string) string {
	return fmt.Sprintf("message:dedup:%s:%s", deviceId, messageId)
}

// IngestInbound 幂等落库一条入站消息（实现 callback.MessageIngester）
// 去重键为 (deviceId, messageId)：缓存快路径 + 数据库兜底
// 载荷缺少 senderId / messageType 时返回 nil 记录；
// messageId 可为空（预回执消息），此时跳过去重，仅以本地雪花 id 标识
func (s *Service) IngestInbound(ctx context.Context, deviceId string, payload *callback.MessagePayload) (*model.WeChatMessage, error) {
	if payload == nil || payload.SenderId == "" || payload.MessageType == "" {
		zap.L().Warn("inbound message payload incomplete",
			zap.String("deviceId", deviceId))
		return nil, nil
	}

	if payload.MessageId == "" {
		record := s.buildInbound(deviceId, payload)
		if err := s.repos.Message.Create(record); err != nil {
			return nil, err
		}
		s.publishEvent(record)
		return record, nil
	}

	key := dedupKey(deviceId, payload.MessageId)
	if s.cache != nil {
		if hit, err := s.cache.Get(ctx, key); err == nil && hit != "" {
			if existing, err := s.repos.Message.FindByDeviceAndMessageId(deviceId, payload.MessageId); err == nil {
				zap.L().Debug("duplicate message ignored (cache)",
					zap.String("deviceId", deviceId),
					zap.String("messageId", payload.MessageId))
				return existing, nil
			}
		}
	}

	existing, err := s.repos.Message.FindByDeviceAndMessageId(deviceId, payload.MessageId)
	if err == nil {
		s.cacheDedup(key)
		zap.L().Debug("duplicate message ignored",
			zap.String("deviceId", deviceId),
			zap.String("messageId", payload.MessageId))
		return existing, nil
	}
	if !errorx.IsNotFound(err) {
		return nil, err
	}

	record := s.buildInbound(deviceId, payload)
	if err := s.repos.Message.Create(record); err != nil {
		// 并发回调撞上唯一键，读回已落库的记录
		if errorx.IsConflict(err) {
			return s.repos.Message.FindByDeviceAndMessageId(deviceId, payload.MessageId)
		}
		return nil, err
	}

	s.cacheDedup(key)
	s.publishEvent(record)
	return record, nil
}

func (s *Service) buildInbound(deviceId string, payload *callback.MessagePayload) *model.WeChatMessage {
	messageTime := time.Now()
	if payload.Timestamp > 0 {
		messageTime = time.Unix(payload.Timestamp, 0)
	}

	record := &model.WeChatMessage{
		Uuid:             snowflake.GenerateID(),
		DeviceId:         deviceId,
		MessageId:        payload.MessageId,
		VendorMsgId:      payload.MsgId,
		VendorNewMsgId:   payload.NewMsgId,
		VendorCreateTime: payload.CreateTime,
		MessageType:      model.NormalizeMessageType(payload.MessageType),
		Direction:        model.DirectionInbound,
		SenderId:         payload.SenderId,
		SenderName:       payload.SenderName,
		Content:          payload.Content,
		MediaUrl:         payload.MediaUrl,
		MediaFileName:    payload.FileName,
		MediaFileSize:    payload.FileSize,
		MessageTime:      sql.NullTime{Time: messageTime, Valid: true},
		Valid:            true,
	}
	// 群聊和私聊互斥，群聊时 receiverId 不落库
	if payload.GroupId != "" {
		record.GroupId = payload.GroupId
		record.GroupName = payload.GroupName
	} else {
		record.ReceiverId = payload.ReceiverId
	}
	return record
}

// cacheDedup 异步写去重缓存，失败不影响主流程
func (s *Service) cacheDedup(key string) {
	if s.cache == nil {
		return
	}
	s.cache.Submit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), constants.REDIS_TIMEOUT*time.Minute)
		defer cancel()
		if err := s.cache.SetEx(ctx, key, "1", constants.MESSAGE_DEDUP_TTL); err != nil {
			zap.L().Warn("write dedup cache failed", zap.String("key", key), zap.Error(err))
		}
	})
}

// publishEvent 异步发布消息事件
func (s *Service) publishEvent(record *model.WeChatMessage) {
	if s.publisher == nil {
		return
	}
	event := &mq.MessageEvent{
		Uuid:        record.Uuid,
		DeviceId:    record.DeviceId,
		MessageId:   record.MessageId,
		MessageType: record.MessageType,
		Direction:   record.Direction,
		SenderId:    record.SenderId,
		ReceiverId:  record.ReceiverId,
		GroupId:     record.GroupId,
		Content:     record.Content,
	}
	if record.MessageTime.Valid {
		event.MessageTime = record.MessageTime.Time.Unix()
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.publisher.PublishMessageEvent(ctx, event); err != nil {
			zap.L().Warn("publish message event failed",
				zap.Int64("uuid", event.Uuid), zap.Error(err))
		}
	}()
}

// sendSpec 一次发送的类型相关参数
type sendSpec struct {
	msgType string
	content string
	fill    func(req *vendorapi.SendMessageRequest)
}

// send 发送消息的公共路径
// 设备必须在线；receiverId 和 groupId 二选一
func (s *Service) send(ctx context.Context, deviceId, receiverId, groupId string, spec sendSpec) (*respond.SendResult, error) {
	if (receiverId == "") == (groupId == "") {
		return nil, errorx.New(errorx.CodeInvalidParam, "exactly one of receiverId and groupId is required")
	}

	account, err := s.repos.Account.FindByDeviceId(deviceId)
	if err != nil {
		if errorx.IsNotFound(err) {
			return nil, errorx.Newf(errorx.CodeDeviceNotExist, "device %s not found", deviceId)
		}
		return nil, err
	}
	if !account.IsOnline() {
		return nil, errorx.Newf(errorx.CodeInvalidState, "device %s is not online", deviceId)
	}

	cred, err := s.creds.CredentialFor(ctx, account.ApiAccountId)
	if err != nil {
		return nil, err
	}

	target := receiverId
	if groupId != "" {
		target = groupId
	}
	req := &vendorapi.SendMessageRequest{
		DeviceId: deviceId,
		Target:   target,
		Type:     spec.msgType,
	}
	spec.fill(req)

	data, err := s.gateway.SendMessage(ctx, cred, req)
	if err != nil {
		return nil, errorx.Wrap(err, errorx.CodeVendorError, "send message")
	}

	record := &model.WeChatMessage{
		Uuid:             snowflake.GenerateID(),
		DeviceId:         deviceId,
		MessageId:        data.MessageId,
		VendorMsgId:      data.MsgId,
		VendorNewMsgId:   data.NewMsgId,
		VendorCreateTime: data.CreateTime,
		MessageType:      spec.msgType,
		Direction:        model.DirectionOutbound,
		SenderId:         account.WeChatId,
		ReceiverId:       receiverId,
		GroupId:          groupId,
		Content:          spec.content,
		MediaUrl:         req.MediaUrl,
		MediaFileName:    req.MediaFileName,
		MessageTime:      sql.NullTime{Time: time.Now(), Valid: true},
		Valid:            true,
	}
	if err := s.repos.Message.Create(record); err != nil {
		// 厂商已发出，落库失败只记日志，不让调用方误以为发送失败
		zap.L().Error("persist outbound message failed",
			zap.String("deviceId", deviceId), zap.Error(err))
	} else {
		s.publishEvent(record)
	}

	return &respond.SendResult{Uuid: record.Uuid, MessageId: record.MessageId, Success: true}, nil
}

// SendTextMessage 发送文本消息
func (s *Service) SendTextMessage(ctx context.Context, deviceId, receiverId, groupId, content string) (*respond.SendResult, error) {
	if content == "" {
		return nil, errorx.New(errorx.CodeInvalidParam, "content is required")
	}
	return s.send(ctx, deviceId, receiverId, groupId, sendSpec{
		msgType: model.MessageTypeText,
		content: content,
		fill:    func(req *vendorapi.SendMessageRequest) { req.Content = content },
	})
}

// SendMediaMessage 发送媒体消息（图片/语音/视频/文件）
func (s *Service) SendMediaMessage(ctx context.Context, deviceId, receiverId, groupId, msgType, mediaUrl, fileName string) (*respond.SendResult, error) {
	switch msgType {
	case model.MessageTypeImage, model.MessageTypeVoice, model.MessageTypeVideo, model.MessageTypeFile:
	default:
		return nil, errorx.Newf(errorx.CodeInvalidParam, "unsupported media type %s", msgType)
	}
	if mediaUrl == "" {
		return nil, errorx.New(errorx.CodeInvalidParam, "mediaUrl is required")
	}
	return s.send(ctx, deviceId, receiverId, groupId, sendSpec{
		msgType: msgType,
		fill: func(req *vendorapi.SendMessageRequest) {
			req.MediaUrl = mediaUrl
			req.MediaFileName = fileName
		},
	})
}

// SendLinkMessage 发送链接卡片
func (s *Service) SendLinkMessage(ctx context.Context, deviceId, receiverId, groupId, title, description, url, thumbUrl string) (*respond.SendResult, error) {
	if url == "" {
		return nil, errorx.New(errorx.CodeInvalidParam, "url is required")
	}
	return s.send(ctx, deviceId, receiverId, groupId, sendSpec{
		msgType: model.MessageTypeLink,
		content: title,
		fill: func(req *vendorapi.SendMessageRequest) {
			req.Title = title
			req.Description = description
			req.MediaUrl = url
			req.ThumbUrl = thumbUrl
		},
	})
}

// SendCardMessage 发送名片
func (s *Service) SendCardMessage(ctx context.Context, deviceId, receiverId, groupId, cardWxId string) (*respond.SendResult, error) {
	if cardWxId == "" {
		return nil, errorx.New(errorx.CodeInvalidParam, "cardWxId is required")
	}
	return s.send(ctx, deviceId, receiverId, groupId, sendSpec{
		msgType: model.MessageTypeCard,
		content: cardWxId,
		fill:    func(req *vendorapi.SendMessageRequest) { req.CardWxId = cardWxId },
	})
}

// RecallMessage 撤回消息
// 消息必须保留有厂商撤回标识（msgId/newMsgId/createTime），否则无法撤回
func (s *Service) RecallMessage(ctx context.Context, deviceId, messageId string) (bool, error) {
	record, err := s.repos.Message.FindByDeviceAndMessageId(deviceId, messageId)
	if err != nil {
		if errorx.IsNotFound(err) {
			return false, errorx.Newf(errorx.CodeNotFound, "message %s not found on device %s", messageId, deviceId)
		}
		return false, err
	}
	if record.VendorMsgId == "" || record.VendorNewMsgId == "" {
		return false, errorx.New(errorx.CodeInvalidState, "message lacks vendor identifiers, cannot recall")
	}

	account, err := s.repos.Account.FindByDeviceId(deviceId)
	if err != nil {
		return false, err
	}
	cred, err := s.creds.CredentialFor(ctx, account.ApiAccountId)
	if err != nil {
		return false, err
	}

	if err := s.gateway.RecallMessage(ctx, cred, &vendorapi.RecallMessageRequest{
		DeviceId:   deviceId,
		MsgId:      record.VendorMsgId,
		NewMsgId:   record.VendorNewMsgId,
		CreateTime: record.VendorCreateTime,
	}); err != nil {
		return false, errorx.Wrap(err, errorx.CodeVendorError, "recall message")
	}

	zap.L().Info("message recalled",
		zap.String("deviceId", deviceId), zap.String("messageId", messageId))
	return true, nil
}

// GetMessageList 按设备查询消息，时间倒序分页
func (s *Service) GetMessageList(deviceId string, limit, offset int) ([]respond.MessageRespond, error) {
	if limit <= 0 {
		limit = 50
	}
	records, err := s.repos.Message.FindByDeviceId(deviceId, limit, offset)
	if err != nil {
		return nil, err
	}

	list := make([]respond.MessageRespond, 0, len(records))
	for i := range records {
		list = append(list, toMessageRespond(&records[i]))
	}
	return list, nil
}

// MarkRead 标记消息已读
func (s *Service) MarkRead(uuid int64) error {
	return s.repos.Message.UpdateFlags(uuid, map[string]interface{}{"is_read": true})
}

// MarkReplied 标记消息已回复
func (s *Service) MarkReplied(uuid int64) error {
	return s.repos.Message.UpdateFlags(uuid, map[string]interface{}{"is_replied": true})
}

func toMessageRespond(m *model.WeChatMessage) respond.MessageRespond {
	r := respond.MessageRespond{
		Uuid:        m.Uuid,
		DeviceId:    m.DeviceId,
		MessageId:   m.MessageId,
		MessageType: m.MessageType,
		Direction:   m.Direction,
		SenderId:    m.SenderId,
		SenderName:  m.SenderName,
		ReceiverId:  m.ReceiverId,
		GroupId:     m.GroupId,
		GroupName:   m.GroupName,
		Content:     m.Content,
		MediaUrl:    m.MediaUrl,
		IsRead:      m.IsRead,
		IsReplied:   m.IsReplied,
	}
	if m.MessageTime.Valid {
		r.MessageTime = m.MessageTime.Time.Format(timeLayout)
	}
	return r
}
