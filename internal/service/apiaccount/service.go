// Package apiaccount 管理厂商平台凭证
// 负责平台 token 的获取与刷新，以及调用计数
package apiaccount

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"wechat_bridge_server/internal/config"
	"wechat_bridge_server/internal/dao/mysql/repository"
	"wechat_bridge_server/internal/infrastructure/vendorapi"
	"wechat_bridge_server/internal/model"
	"wechat_bridge_server/pkg/errorx"

	"go.uber.org/zap"
)

// Service 平台凭证服务
// 同时实现 vendorapi.CallRecorder 和 device.CredentialProvider
type Service struct {
	repos   *repository.Repositories
	gateway vendorapi.Gateway

	mu    sync.Mutex
	locks map[uint]*sync.Mutex // 按凭证粒度的刷新锁
}

// NewService 创建平台凭证服务
// gateway 与本服务存在构造顺序上的相互依赖，由 SetGateway 延迟注入
func NewService(repos *repository.Repositories) *Service {
	return &Service{
		repos: repos,
		locks: make(map[uint]*sync.Mutex),
	}
}

// SetGateway 注入厂商网关
func (s *Service) SetGateway(gateway vendorapi.Gateway) {
	s.gateway = gateway
}

func (s *Service) lockFor(id uint) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

// RecordCall 记录一次厂商调用（实现 vendorapi.CallRecorder）
// 计数在数据库侧原子自增，失败只记日志不影响主流程
func (s *Service) RecordCall(apiAccountId uint) {
	if err := s.repos.ApiAccount.IncrementCallCount(apiAccountId, time.Now()); err != nil {
		zap.L().Warn("increment api call count failed",
			zap.Uint("apiAccountId", apiAccountId), zap.Error(err))
	}
}

// CredentialFor 取携带有效 token 的凭证（实现 device.CredentialProvider）
func (s *Service) CredentialFor(ctx context.Context, apiAccountId uint) (*model.WeChatApiAccount, error) {
	cred, err := s.repos.ApiAccount.FindById(apiAccountId)
	if err != nil {
		if errorx.IsNotFound(err) {
			return nil, errorx.Newf(errorx.CodeDeviceNotExist, "api account %d not found", apiAccountId)
		}
		return nil, err
	}
	return s.EnsureToken(ctx, cred)
}

// EnsureToken 保证凭证携带有效的平台 token，必要时刷新
// 双重检查：拿到凭证粒度锁后重读，避免并发重复登录
func (s *Service) EnsureToken(ctx context.Context, cred *model.WeChatApiAccount) (*model.WeChatApiAccount, error) {
	if cred.HasValidToken() {
		return cred, nil
	}

	lock := s.lockFor(cred.ID)
	lock.Lock()
	defer lock.Unlock()

	fresh, err := s.repos.ApiAccount.FindById(cred.ID)
	if err != nil {
		return nil, err
	}
	if fresh.HasValidToken() {
		return fresh, nil
	}

	return s.refreshToken(ctx, fresh)
}

// refreshToken 平台登录换取新 token，调用方必须持有凭证锁
func (s *Service) refreshToken(ctx context.Context, cred *model.WeChatApiAccount) (*model.WeChatApiAccount, error) {
	data, err := s.gateway.PlatformLogin(ctx, cred)
	if err != nil {
		_ = s.repos.ApiAccount.UpdateToken(cred.ID, cred.AccessToken, nil, model.ConnectionStatusError)
		return nil, errorx.Wrap(err, errorx.CodeVendorError, "platform login")
	}

	var expiresAt *time.Time
	if data.ExpiresIn > 0 {
		t := time.Now().Add(time.Duration(data.ExpiresIn) * time.Second)
		expiresAt = &t
	}
	if err := s.repos.ApiAccount.UpdateToken(cred.ID, data.AccessToken, expiresAt, model.ConnectionStatusConnected); err != nil {
		return nil, err
	}

	cred.AccessToken = data.AccessToken
	if expiresAt != nil {
		cred.TokenExpiresTime = sql.NullTime{Time: *expiresAt, Valid: true}
	}
	cred.ConnectionStatus = model.ConnectionStatusConnected
	zap.L().Info("platform token refreshed", zap.Uint("apiAccountId", cred.ID))
	return cred, nil
}

// RefreshAllTokens 刷新所有凭证的 token，定时任务入口
func (s *Service) RefreshAllTokens(ctx context.Context) {
	creds, err := s.repos.ApiAccount.FindAll()
	if err != nil {
		zap.L().Error("list api accounts failed", zap.Error(err))
		return
	}
	for i := range creds {
		if creds[i].HasValidToken() {
			continue
		}
		if _, err := s.EnsureToken(ctx, &creds[i]); err != nil {
			zap.L().Warn("token refresh failed",
				zap.Uint("apiAccountId", creds[i].ID), zap.Error(err))
		}
	}
}

// CreateAccount 创建平台凭证
// 密码以明文入参，BeforeSave 钩子落库前加密
func (s *Service) CreateAccount(baseUrl, username, password string, timeout int) (*model.WeChatApiAccount, error) {
	if existing, err := s.repos.ApiAccount.FindByUsername(username); err == nil && existing != nil {
		return nil, errorx.Newf(errorx.CodeDeviceExist, "api account %s already exists", username)
	} else if err != nil && !errorx.IsNotFound(err) {
		return nil, err
	}

	cred := &model.WeChatApiAccount{
		BaseUrl:          baseUrl,
		Username:         username,
		RawPassword:      password,
		ConnectionStatus: model.ConnectionStatusDisconnected,
		Timeout:          timeout,
	}
	if err := s.repos.ApiAccount.Create(cred); err != nil {
		return nil, err
	}
	return cred, nil
}

// EnsureSeedCredential 按配置播种平台凭证
// 已存在同名凭证时跳过，启动时调用
func (s *Service) EnsureSeedCredential(cfg *config.VendorConfig) error {
	if cfg == nil || cfg.Username == "" {
		return nil
	}
	if _, err := s.repos.ApiAccount.FindByUsername(cfg.Username); err == nil {
		return nil
	} else if !errorx.IsNotFound(err) {
		return err
	}

	_, err := s.CreateAccount(cfg.BaseUrl, cfg.Username, cfg.Password, cfg.Timeout)
	if err == nil {
		zap.L().Info("seed api account created", zap.String("username", cfg.Username))
	}
	return err
}

// ListAccounts 查询所有平台凭证
func (s *Service) ListAccounts() ([]model.WeChatApiAccount, error) {
	return s.repos.ApiAccount.FindAll()
}
