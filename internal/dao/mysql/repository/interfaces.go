// Package repository 定义数据访问层接口和聚合结构
// 采用 Repository 模式将数据访问逻辑与业务逻辑分离
// 所有 Repository 接口在此文件定义，具体实现在各自的文件中
package repository

import (
	"time"

	"wechat_bridge_server/internal/model"

	"gorm.io/gorm"
)

// AccountRepository 设备账号数据访问接口
type AccountRepository interface {
	// FindByDeviceId 按设备 ID 查找账号
	FindByDeviceId(deviceId string) (*model.WeChatAccount, error)
	// FindByWeChatId 按微信号查找账号
	FindByWeChatId(wechatId string) (*model.WeChatAccount, error)
	// FindByStatus 按状态查找账号
	FindByStatus(status string) ([]model.WeChatAccount, error)
	// FindAll 查找所有有效账号
	FindAll() ([]model.WeChatAccount, error)
	// Create 创建账号
	Create(account *model.WeChatAccount) error
	// UpdateWithVersion 带乐观锁版本条件的整行更新
	// 版本不匹配时返回 CodeConflict 错误，调用方应重读后重试
	UpdateWithVersion(account *model.WeChatAccount) error
	// SoftDisableByDeviceIds 批量软禁用（valid=false），设备账号从不硬删除
	SoftDisableByDeviceIds(deviceIds []string) error
}

// ApiAccountRepository 平台凭证数据访问接口
type ApiAccountRepository interface {
	// FindById 按主键查找凭证
	FindById(id uint) (*model.WeChatApiAccount, error)
	// FindByUsername 按平台账号查找凭证
	FindByUsername(username string) (*model.WeChatApiAccount, error)
	// FindAll 查找所有凭证
	FindAll() ([]model.WeChatApiAccount, error)
	// Create 创建凭证
	Create(account *model.WeChatApiAccount) error
	// UpdateToken 刷新 token、过期时间与连接状态
	UpdateToken(id uint, token string, expiresAt *time.Time, connectionStatus string) error
	// IncrementCallCount 调用计数 +1 并刷新最近调用时间（SQL 原子自增）
	IncrementCallCount(id uint, callTime time.Time) error
}

// MessageRepository 消息数据访问接口
type MessageRepository interface {
	// Create 创建消息
	Create(message *model.WeChatMessage) error
	// FindByDeviceAndMessageId 按 (设备, 厂商消息id) 查找，幂等落库的去重键
	FindByDeviceAndMessageId(deviceId, messageId string) (*model.WeChatMessage, error)
	// FindByUuid 按本地雪花 ID 查找
	FindByUuid(uuid int64) (*model.WeChatMessage, error)
	// FindByDeviceId 按设备查询消息，按时间倒序分页
	FindByDeviceId(deviceId string, limit, offset int) ([]model.WeChatMessage, error)
	// UpdateFlags 更新已读/已回复标记
	UpdateFlags(uuid int64, updates map[string]interface{}) error
}

// ContactRepository 联系人数据访问接口
type ContactRepository interface {
	// Upsert 按 (设备, 微信id) 创建或更新联系人
	Upsert(contact *model.WeChatContact) error
	// FindByDeviceId 查询设备的所有联系人
	FindByDeviceId(deviceId string) ([]model.WeChatContact, error)
}

// GroupRepository 群组数据访问接口
type GroupRepository interface {
	// Upsert 按 (设备, 群id) 创建或更新群组
	Upsert(group *model.WeChatGroup) error
	// FindByDeviceId 查询设备的所有群组
	FindByDeviceId(deviceId string) ([]model.WeChatGroup, error)
}

// Repositories 聚合所有 Repository 实例
// 作为依赖注入的入口，Service 层通过此结构访问数据层
type Repositories struct {
	db         *gorm.DB
	Account    AccountRepository
	ApiAccount ApiAccountRepository
	Message    MessageRepository
	Contact    ContactRepository
	Group      GroupRepository
}

// NewRepositories 创建所有 Repository 实例
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		db:         db,
		Account:    NewAccountRepository(db),
		ApiAccount: NewApiAccountRepository(db),
		Message:    NewMessageRepository(db),
		Contact:    NewContactRepository(db),
		Group:      NewGroupRepository(db),
	}
}

// Transaction 在数据库事务中执行函数
// 事务内的所有操作要么全部成功，要么全部回滚
func (r *Repositories) Transaction(fn func(txRepos *Repositories) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(NewRepositories(tx))
	})
}
