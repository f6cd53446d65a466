package model

import "gorm.io/gorm"

// WeChatContact 联系人模型
// 对应数据库 wechat_contact 表，由同步命令批量刷新
type WeChatContact struct {
	gorm.Model

	DeviceId string `gorm:"column:device_id;index:idx_contact_device_wxid;type:char(32);not null;comment:设备id"`
	WeChatId string `gorm:"column:wechat_id;index:idx_contact_device_wxid;type:varchar(100);not null;comment:联系人微信id"`
	Nickname string `gorm:"column:nickname;type:varchar(100);comment:昵称"`
	Remark   string `gorm:"column:remark;type:varchar(100);comment:备注"`
	Avatar   string `gorm:"column:avatar;type:varchar(255);comment:头像"`
	Valid    bool   `gorm:"column:valid;not null;default:true;comment:是否有效"`
}

// TableName 指定表名
func (WeChatContact) TableName() string {
	return "wechat_contact"
}
