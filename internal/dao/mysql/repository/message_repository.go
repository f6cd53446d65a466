package repository

import (
	"wechat_bridge_server/internal/model"

	"gorm.io/gorm"
)

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository 创建消息 Repository
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

// Create 创建消息
func (r *messageRepository) Create(message *model.WeChatMessage) error {
	if err := r.db.Create(message).Error; err != nil {
		return wrapDBError(err, "创建消息")
	}
	return nil
}

// FindByDeviceAndMessageId 按 (设备, 厂商消息id) 查找
// 回调重放时命中已有记录，保证幂等落库
func (r *messageRepository) FindByDeviceAndMessageId(deviceId, messageId string) (*model.WeChatMessage, error) {
	var message model.WeChatMessage
	if err := r.db.First(&message, "device_id = ? AND message_id = ?", deviceId, messageId).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询消息 device_id=%s message_id=%s", deviceId, messageId)
	}
	return &message, nil
}

// FindByUuid 按本地雪花 ID 查找
func (r *messageRepository) FindByUuid(uuid int64) (*model.WeChatMessage, error) {
	var message model.WeChatMessage
	if err := r.db.First(&message, "uuid = ?", uuid).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询消息 uuid=%d", uuid)
	}
	return &message, nil
}

// FindByDeviceId 按设备查询消息，按时间倒序分页
func (r *messageRepository) FindByDeviceId(deviceId string, limit, offset int) ([]model.WeChatMessage, error) {
	var messages []model.WeChatMessage
	if err := r.db.Where("device_id = ? AND valid = ?", deviceId, true).
		Order("created_at DESC").Limit(limit).Offset(offset).
		Find(&messages).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询消息列表 device_id=%s", deviceId)
	}
	return messages, nil
}

// UpdateFlags 更新已读/已回复标记
func (r *messageRepository) UpdateFlags(uuid int64, updates map[string]interface{}) error {
	if err := r.db.Model(&model.WeChatMessage{}).Where("uuid = ?", uuid).Updates(updates).Error; err != nil {
		return wrapDBErrorf(err, "更新消息标记 uuid=%d", uuid)
	}
	return nil
}
