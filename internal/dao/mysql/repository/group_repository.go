package repository

import (
	"errors"

	"wechat_bridge_server/internal/model"

	"gorm.io/gorm"
)

type groupRepository struct {
	db *gorm.DB
}

// NewGroupRepository 创建群组 Repository
func NewGroupRepository(db *gorm.DB) GroupRepository {
	return &groupRepository{db: db}
}

// Upsert 按 (设备, 群id) 创建或更新群组
func (r *groupRepository) Upsert(group *model.WeChatGroup) error {
	var existing model.WeChatGroup
	err := r.db.First(&existing, "device_id = ? AND group_id = ?", group.DeviceId, group.GroupId).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if err := r.db.Create(group).Error; err != nil {
			return wrapDBError(err, "创建群组")
		}
		return nil
	}
	if err != nil {
		return wrapDBErrorf(err, "查询群组 device_id=%s group_id=%s", group.DeviceId, group.GroupId)
	}

	existing.GroupName = group.GroupName
	existing.OwnerWxId = group.OwnerWxId
	existing.MemberCount = group.MemberCount
	existing.Avatar = group.Avatar
	existing.Valid = true
	if err := r.db.Save(&existing).Error; err != nil {
		return wrapDBError(err, "更新群组")
	}
	*group = existing
	return nil
}

// FindByDeviceId 查询设备的所有群组
func (r *groupRepository) FindByDeviceId(deviceId string) ([]model.WeChatGroup, error) {
	var groups []model.WeChatGroup
	if err := r.db.Where("device_id = ? AND valid = ?", deviceId, true).Find(&groups).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询群组列表 device_id=%s", deviceId)
	}
	return groups, nil
}
