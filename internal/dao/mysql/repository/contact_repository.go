package repository

import (
	"errors"

	"wechat_bridge_server/internal/model"

	"gorm.io/gorm"
)

type contactRepository struct {
	db *gorm.DB
}

// NewContactRepository 创建联系人 Repository
func NewContactRepository(db *gorm.DB) ContactRepository {
	return &contactRepository{db: db}
}

// Upsert 按 (设备, 微信id) 创建或更新联系人
func (r *contactRepository) Upsert(contact *model.WeChatContact) error {
	var existing model.WeChatContact
	err := r.db.First(&existing, "device_id = ? AND wechat_id = ?", contact.DeviceId, contact.WeChatId).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if err := r.db.Create(contact).Error; err != nil {
			return wrapDBError(err, "创建联系人")
		}
		return nil
	}
	if err != nil {
		return wrapDBErrorf(err, "查询联系人 device_id=%s wechat_id=%s", contact.DeviceId, contact.WeChatId)
	}

	existing.Nickname = contact.Nickname
	existing.Remark = contact.Remark
	existing.Avatar = contact.Avatar
	existing.Valid = true
	if err := r.db.Save(&existing).Error; err != nil {
		return wrapDBError(err, "更新联系人")
	}
	*contact = existing
	return nil
}

// FindByDeviceId 查询设备的所有联系人
func (r *contactRepository) FindByDeviceId(deviceId string) ([]model.WeChatContact, error) {
	var contacts []model.WeChatContact
	if err := r.db.Where("device_id = ? AND valid = ?", deviceId, true).Find(&contacts).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询联系人列表 device_id=%s", deviceId)
	}
	return contacts, nil
}
