package repository

import (
	"wechat_bridge_server/internal/model"
	"wechat_bridge_server/pkg/errorx"

	"gorm.io/gorm"
)

type accountRepository struct {
	db *gorm.DB
}

// NewAccountRepository 创建设备账号 Repository
func NewAccountRepository(db *gorm.DB) AccountRepository {
	return &accountRepository{db: db}
}

// FindByDeviceId 按设备 ID 查找账号
func (r *accountRepository) FindByDeviceId(deviceId string) (*model.WeChatAccount, error) {
	var account model.WeChatAccount
	if err := r.db.First(&account, "device_id = ?", deviceId).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询设备 device_id=%s", deviceId)
	}
	return &account, nil
}

// FindByWeChatId 按微信号查找账号
func (r *accountRepository) FindByWeChatId(wechatId string) (*model.WeChatAccount, error) {
	var account model.WeChatAccount
	if err := r.db.First(&account, "wechat_id = ?", wechatId).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询设备 wechat_id=%s", wechatId)
	}
	return &account, nil
}

// FindByStatus 按状态查找有效账号
func (r *accountRepository) FindByStatus(status string) ([]model.WeChatAccount, error) {
	var accounts []model.WeChatAccount
	if err := r.db.Where("status = ? AND valid = ?", status, true).Find(&accounts).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询设备列表 status=%s", status)
	}
	return accounts, nil
}

// FindAll 查找所有有效账号
func (r *accountRepository) FindAll() ([]model.WeChatAccount, error) {
	var accounts []model.WeChatAccount
	if err := r.db.Where("valid = ?", true).Find(&accounts).Error; err != nil {
		return nil, wrapDBError(err, "查询设备列表")
	}
	return accounts, nil
}

// Create 创建账号
func (r *accountRepository) Create(account *model.WeChatAccount) error {
	if err := r.db.Create(account).Error; err != nil {
		return wrapDBError(err, "创建设备账号")
	}
	return nil
}

// UpdateWithVersion 带乐观锁版本条件的整行更新
// 登录回调与手动登出可能并发写同一行，版本不匹配说明已被并发修改
func (r *accountRepository) UpdateWithVersion(account *model.WeChatAccount) error {
	res := r.db.Model(&model.WeChatAccount{}).
		Where("id = ? AND version = ?", account.ID, account.Version).
		Updates(map[string]interface{}{
			"wechat_id":            account.WeChatId,
			"nickname":             account.Nickname,
			"avatar":               account.Avatar,
			"qr_code":              account.QrCode,
			"qr_code_url":          account.QrCodeUrl,
			"access_token":         account.AccessToken,
			"proxy":                account.Proxy,
			"status":               account.Status,
			"awaiting_verify_code": account.AwaitingVerifyCode,
			"last_login_time":      account.LastLoginTime,
			"last_active_time":     account.LastActiveTime,
			"valid":                account.Valid,
			"version":              account.Version + 1,
		})
	if res.Error != nil {
		return wrapDBErrorf(res.Error, "更新设备 device_id=%s", account.DeviceId)
	}
	if res.RowsAffected == 0 {
		return errorx.Newf(errorx.CodeConflict, "设备 %s 版本冲突", account.DeviceId)
	}
	account.Version++
	return nil
}

// SoftDisableByDeviceIds 批量软禁用
func (r *accountRepository) SoftDisableByDeviceIds(deviceIds []string) error {
	if len(deviceIds) == 0 {
		return nil
	}
	if err := r.db.Model(&model.WeChatAccount{}).
		Where("device_id IN ?", deviceIds).
		Update("valid", false).Error; err != nil {
		return wrapDBError(err, "批量禁用设备")
	}
	return nil
}
