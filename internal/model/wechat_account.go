// Package model 定义数据库实体模型
// 本文件定义设备账号模型，对应一个逻辑上的微信客户端会话
package model

import (
	"database/sql"
	"time"

	"gorm.io/gorm"
)

// 设备账号状态
// 状态只能沿 §状态机定义的边迁移：
// pending_login → online → offline ↔ online，任意状态 → expired（终态）
const (
	AccountStatusPendingLogin = "pending_login" // 已注册设备，等待扫码登录
	AccountStatusOnline       = "online"        // 已登录在线
	AccountStatusOffline      = "offline"       // 掉线/登出
	AccountStatusExpired      = "expired"       // 设备被厂商回收，需重新创建设备
)

// WeChatAccount 设备账号模型
// 对应数据库 wechat_account 表
// 由设备会话管理器（登录流程、在线巡检）和回调分发器（异步推送）共同维护
type WeChatAccount struct {
	gorm.Model

	// DeviceId 设备唯一标识
	// 创建设备时分配，之后不可变更，是对外的业务主键
	DeviceId string `gorm:"column:device_id;uniqueIndex;type:char(32);not null;comment:设备唯一id"`

	// ApiAccountId 所属平台凭证 ID
	// 一个平台凭证可以承载多个设备（1:N）
	ApiAccountId uint `gorm:"column:api_account_id;index;not null;comment:所属平台凭证"`

	// WeChatId 微信号
	// 登录成功后才有值，非空时全局唯一（由服务层在登录回写时保证）
	WeChatId string `gorm:"column:wechat_id;index;type:varchar(100);comment:微信id"`

	// Nickname 微信昵称，登录成功后回填
	Nickname string `gorm:"column:nickname;type:varchar(100);comment:微信昵称"`

	// Avatar 微信头像 URL，登录成功后回填
	Avatar string `gorm:"column:avatar;type:varchar(255);comment:头像"`

	// QrCode 登录二维码原始内容
	QrCode string `gorm:"column:qr_code;type:text;comment:登录二维码内容"`

	// QrCodeUrl 登录二维码图片地址，管理端直接渲染
	QrCodeUrl string `gorm:"column:qr_code_url;type:varchar(500);comment:登录二维码图片url"`

	// AccessToken 厂商下发的设备会话 token
	// 注意与平台凭证 token 是两个东西
	AccessToken string `gorm:"column:access_token;type:varchar(500);comment:设备会话token"`

	// Proxy 设备出口代理
	Proxy string `gorm:"column:proxy;type:varchar(255);comment:网络代理"`

	// Status 设备状态，取值见上方常量
	Status string `gorm:"column:status;index;type:varchar(20);not null;default:pending_login;comment:设备状态"`

	// AwaitingVerifyCode 厂商要求输入验证码
	// 置位后确认登录轮询为空操作，直到调用 InputLoginCode
	AwaitingVerifyCode bool `gorm:"column:awaiting_verify_code;not null;default:false;comment:等待输入验证码"`

	// LastLoginTime 最近一次登录成功时间
	LastLoginTime sql.NullTime `gorm:"column:last_login_time;comment:最近登录时间"`

	// LastActiveTime 最近活跃时间，单调不减
	LastActiveTime sql.NullTime `gorm:"column:last_active_time;comment:最近活跃时间"`

	// Valid 软禁用标志，设备账号从不硬删除
	Valid bool `gorm:"column:valid;not null;default:true;comment:是否有效"`

	// Version 乐观锁版本号
	// 登录回调和手动登出可能并发写同一行，读-改-写必须带版本条件
	Version int64 `gorm:"column:version;not null;default:0;comment:乐观锁版本"`
}

// TableName 指定表名
func (WeChatAccount) TableName() string {
	return "wechat_account"
}

// IsOnline 设备是否在线
func (a *WeChatAccount) IsOnline() bool {
	return a.Status == AccountStatusOnline
}

// TouchActive 推进最近活跃时间
// 保证单调不减：传入时间早于当前值时不回退
func (a *WeChatAccount) TouchActive(now time.Time) {
	if a.LastActiveTime.Valid && a.LastActiveTime.Time.After(now) {
		return
	}
	a.LastActiveTime = sql.NullTime{Time: now, Valid: true}
}

// ApplyOnline 应用上线迁移，回填登录成功后才可知的身份信息
// 空入参不覆盖已有值（status 回调不携带身份字段）
func (a *WeChatAccount) ApplyOnline(wechatId, nickname, avatar, accessToken string, now time.Time) {
	a.Status = AccountStatusOnline
	if wechatId != "" {
		a.WeChatId = wechatId
	}
	if nickname != "" {
		a.Nickname = nickname
	}
	if avatar != "" {
		a.Avatar = avatar
	}
	if accessToken != "" {
		a.AccessToken = accessToken
	}
	a.LastLoginTime = sql.NullTime{Time: now, Valid: true}
	a.TouchActive(now)
}

// ApplyOffline 应用下线迁移，最近活跃时间保持不变
func (a *WeChatAccount) ApplyOffline() {
	a.Status = AccountStatusOffline
}
