// Package model 定义数据库实体模型
// 本文件定义平台凭证模型，即厂商平台级登录账号
package model

import (
	"database/sql"
	"time"

	"gorm.io/gorm"

	"wechat_bridge_server/internal/config"
	"wechat_bridge_server/pkg/aes"
)

// 平台凭证连接状态
const (
	ConnectionStatusConnected    = "connected"
	ConnectionStatusDisconnected = "disconnected"
	ConnectionStatusError        = "error"
)

// WeChatApiAccount 平台凭证模型
// 对应数据库 wechat_api_account 表
// 一个凭证可承载多个设备账号，token 由认证器统一刷新
type WeChatApiAccount struct {
	gorm.Model

	// BaseUrl 厂商网关地址
	BaseUrl string `gorm:"column:base_url;type:varchar(255);not null;comment:网关地址"`

	// Username 平台账号
	Username string `gorm:"column:username;type:varchar(100);not null;comment:平台账号"`

	// Password 平台密码（AES-GCM 加密后落库）
	Password string `gorm:"column:password;type:varchar(500);not null;comment:平台密码(密文)"`

	// AccessToken 平台级访问 token，每次平台登录后刷新
	AccessToken string `gorm:"column:access_token;type:varchar(500);comment:平台token"`

	// TokenExpiresTime token 过期时间，空表示永不过期
	TokenExpiresTime sql.NullTime `gorm:"column:token_expires_time;comment:token过期时间"`

	// ConnectionStatus 连接状态：connected / disconnected / error
	ConnectionStatus string `gorm:"column:connection_status;type:varchar(20);not null;default:disconnected;comment:连接状态"`

	// ApiCallCount 累计调用次数，厂商客户端每次调用后递增
	ApiCallCount int64 `gorm:"column:api_call_count;not null;default:0;comment:调用计数"`

	// LastApiCallTime 最近调用时间
	LastApiCallTime sql.NullTime `gorm:"column:last_api_call_time;comment:最近调用时间"`

	// Timeout 普通接口超时（秒）
	Timeout int `gorm:"column:timeout;not null;default:30;comment:接口超时(秒)"`

	// RawPassword 明文密码（不入库）
	// 调用方只需设置 RawPassword，BeforeSave 中加密
	RawPassword string `gorm:"-" json:"-"`
}

// TableName 指定表名
func (WeChatApiAccount) TableName() string {
	return "wechat_api_account"
}

// HasValidToken token 存在且未过期（过期时间为空视为长期有效）
func (a *WeChatApiAccount) HasValidToken() bool {
	if a.AccessToken == "" {
		return false
	}
	if !a.TokenExpiresTime.Valid {
		return true
	}
	return a.TokenExpiresTime.Time.After(time.Now())
}

// BeforeSave GORM Hook：将明文密码加密后存入 Password 字段
func (a *WeChatApiAccount) BeforeSave(tx *gorm.DB) (err error) {
	if a.RawPassword != "" {
		key := []byte(config.GetConfig().VendorConfig.CredentialKey)
		ciphertext, err := aes.Encrypt([]byte(a.RawPassword), key)
		if err != nil {
			return err
		}
		a.Password = ciphertext
		a.RawPassword = "" // 清空明文，防止泄露
	}
	return nil
}

// PlainPassword 解密出明文密码，平台登录时使用
func (a *WeChatApiAccount) PlainPassword() (string, error) {
	key := []byte(config.GetConfig().VendorConfig.CredentialKey)
	plain, err := aes.Decrypt(a.Password, key)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}
