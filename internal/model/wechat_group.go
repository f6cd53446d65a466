package model

import "gorm.io/gorm"

// WeChatGroup 群组模型
// 对应数据库 wechat_group 表，由同步命令批量刷新
type WeChatGroup struct {
	gorm.Model

	DeviceId    string `gorm:"column:device_id;index:idx_group_device_gid;type:char(32);not null;comment:设备id"`
	GroupId     string `gorm:"column:group_id;index:idx_group_device_gid;type:varchar(100);not null;comment:群id"`
	GroupName   string `gorm:"column:group_name;type:varchar(200);comment:群名称"`
	OwnerWxId   string `gorm:"column:owner_wx_id;type:varchar(100);comment:群主微信id"`
	MemberCount int    `gorm:"column:member_count;comment:成员数"`
	Avatar      string `gorm:"column:avatar;type:varchar(255);comment:群头像"`
	Valid       bool   `gorm:"column:valid;not null;default:true;comment:是否有效"`
}

// TableName 指定表名
func (WeChatGroup) TableName() string {
	return "wechat_group"
}
