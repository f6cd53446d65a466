package repository

import (
	"time"

	"wechat_bridge_server/internal/model"

	"gorm.io/gorm"
)

type apiAccountRepository struct {
	db *gorm.DB
}

// NewApiAccountRepository 创建平台凭证 Repository
func NewApiAccountRepository(db *gorm.DB) ApiAccountRepository {
	return &apiAccountRepository{db: db}
}

// FindById 按主键查找凭证
func (r *apiAccountRepository) FindById(id uint) (*model.WeChatApiAccount, error) {
	var account model.WeChatApiAccount
	if err := r.db.First(&account, id).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询平台凭证 id=%d", id)
	}
	return &account, nil
}

// FindByUsername 按平台账号查找凭证
func (r *apiAccountRepository) FindByUsername(username string) (*model.WeChatApiAccount, error) {
	var account model.WeChatApiAccount
	if err := r.db.First(&account, "username = ?", username).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询平台凭证 username=%s", username)
	}
	return &account, nil
}

// FindAll 查找所有凭证
func (r *apiAccountRepository) FindAll() ([]model.WeChatApiAccount, error) {
	var accounts []model.WeChatApiAccount
	if err := r.db.Find(&accounts).Error; err != nil {
		return nil, wrapDBError(err, "查询平台凭证列表")
	}
	return accounts, nil
}

// Create 创建凭证
func (r *apiAccountRepository) Create(account *model.WeChatApiAccount) error {
	if err := r.db.Create(account).Error; err != nil {
		return wrapDBError(err, "创建平台凭证")
	}
	return nil
}

// UpdateToken 刷新 token、过期时间与连接状态
func (r *apiAccountRepository) UpdateToken(id uint, token string, expiresAt *time.Time, connectionStatus string) error {
	updates := map[string]interface{}{
		"access_token":      token,
		"connection_status": connectionStatus,
	}
	if expiresAt != nil {
		updates["token_expires_time"] = *expiresAt
	}
	if err := r.db.Model(&model.WeChatApiAccount{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return wrapDBErrorf(err, "刷新平台token id=%d", id)
	}
	return nil
}

// IncrementCallCount 调用计数 +1 并刷新最近调用时间
// 使用 SQL 自增避免并发调用下的丢失更新
func (r *apiAccountRepository) IncrementCallCount(id uint, callTime time.Time) error {
	if err := r.db.Model(&model.WeChatApiAccount{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"api_call_count":     gorm.Expr("api_call_count + 1"),
			"last_api_call_time": callTime,
		}).Error; err != nil {
		return wrapDBErrorf(err, "递增调用计数 id=%d", id)
	}
	return nil
}
