// Package device 实现设备会话生命周期管理
// 覆盖设备创建、扫码登录、验证码、二次登录、登出和在线巡检
package device

import (
	"context"
	"errors"
	"time"

	"wechat_bridge_server/internal/dao/mysql/repository"
	"wechat_bridge_server/internal/dto/respond"
	"wechat_bridge_server/internal/infrastructure/vendorapi"
	"wechat_bridge_server/internal/model"
	"wechat_bridge_server/pkg/errorx"
	"wechat_bridge_server/pkg/util/random"

	"go.uber.org/zap"
)

// 登录进度文案，管理端直接展示
const (
	MsgWaitingScan    = "等待扫码登录"
	MsgNeedVerifyCode = "需要输入验证码"
)

const timeLayout = "2006-01-02 15:04:05"

// 乐观锁冲突时的重读重试次数
const versionRetryLimit = 3

// CredentialProvider 平台凭证提供接口，由凭证服务实现
// 返回的凭证保证携带有效的平台 token
type CredentialProvider interface {
	CredentialFor(ctx context.Context, apiAccountId uint) (*model.WeChatApiAccount, error)
}

// transitionEvent 状态机事件
type transitionEvent string

const (
	eventStartLogin     transitionEvent = "start_login"
	eventLoginConfirmed transitionEvent = "login_confirmed"
	eventLoginFailed    transitionEvent = "login_failed"
	eventProbeOnline    transitionEvent = "probe_online"
	eventProbeOffline   transitionEvent = "probe_offline"
	eventLogout         transitionEvent = "logout"
	eventExpired        transitionEvent = "expired"
)

// nextStatus 设备状态机的迁移函数
// 返回目标状态和迁移是否合法；所有状态变更必须经过此函数
func nextStatus(current string, ev transitionEvent) (string, bool) {
	switch ev {
	case eventExpired:
		// 设备被厂商回收，任意状态可达
		return model.AccountStatusExpired, true
	case eventLogout, eventProbeOffline, eventLoginFailed:
		if current == model.AccountStatusExpired {
			return current, false
		}
		return model.AccountStatusOffline, true
	case eventLoginConfirmed:
		// expired 设备收到登录成功视为重新激活
		return model.AccountStatusOnline, true
	case eventProbeOnline:
		if current == model.AccountStatusExpired {
			return current, false
		}
		return model.AccountStatusOnline, true
	case eventStartLogin:
		if current == model.AccountStatusOnline || current == model.AccountStatusExpired {
			return current, false
		}
		return model.AccountStatusPendingLogin, true
	}
	return current, false
}

// SessionManager 设备会话管理器
type SessionManager struct {
	repos   *repository.Repositories
	gateway vendorapi.Gateway
	creds   CredentialProvider
	locks   *keyedMutex
	now     func() time.Time
}

// NewSessionManager 创建设备会话管理器
func NewSessionManager(repos *repository.Repositories, gateway vendorapi.Gateway, creds CredentialProvider) *SessionManager {
	return &SessionManager{
		repos:   repos,
		gateway: gateway,
		creds:   creds,
		locks:   newKeyedMutex(),
		now:     time.Now,
	}
}

// credential 取设备所属的平台凭证
func (s *SessionManager) credential(ctx context.Context, account *model.WeChatAccount) (*model.WeChatApiAccount, error) {
	return s.creds.CredentialFor(ctx, account.ApiAccountId)
}

// loadAccount 按设备 ID 读取有效账号
func (s *SessionManager) loadAccount(deviceId string) (*model.WeChatAccount, error) {
	account, err := s.repos.Account.FindByDeviceId(deviceId)
	if err != nil {
		if errorx.IsNotFound(err) {
			return nil, errorx.Newf(errorx.CodeDeviceNotExist, "device %s not found", deviceId)
		}
		return nil, err
	}
	if !account.Valid {
		return nil, errorx.Newf(errorx.CodeDeviceNotExist, "device %s is disabled", deviceId)
	}
	return account, nil
}

// saveWithRetry 带乐观锁冲突重试的保存
// mutate 在每次（重）读之后应用业务变更，必须是纯内存操作
func (s *SessionManager) saveWithRetry(account *model.WeChatAccount, mutate func(*model.WeChatAccount)) error {
	mutate(account)
	err := s.repos.Account.UpdateWithVersion(account)
	for i := 0; i < versionRetryLimit && errorx.IsConflict(err); i++ {
		fresh, ferr := s.repos.Account.FindByDeviceId(account.DeviceId)
		if ferr != nil {
			return ferr
		}
		mutate(fresh)
		*account = *fresh
		err = s.repos.Account.UpdateWithVersion(account)
	}
	return err
}

// CreateDevice 创建设备
// 先在厂商侧注册，成功后本地落库为 pending_login
func (s *SessionManager) CreateDevice(ctx context.Context, apiAccountId uint, proxy string) (*respond.AccountRespond, error) {
	cred, err := s.creds.CredentialFor(ctx, apiAccountId)
	if err != nil {
		return nil, err
	}

	// 6 位日期前缀 + 26 位随机，总长 32，与 device_id 列宽一致
	deviceId := random.GetNowAndLenRandomString(26)
	if err := s.gateway.CreateDevice(ctx, cred, deviceId); err != nil {
		return nil, errorx.Wrap(err, errorx.CodeVendorError, "create device on vendor")
	}

	account := &model.WeChatAccount{
		DeviceId:     deviceId,
		ApiAccountId: apiAccountId,
		Proxy:        proxy,
		Status:       model.AccountStatusPendingLogin,
		Valid:        true,
	}
	if err := s.repos.Account.Create(account); err != nil {
		return nil, err
	}

	zap.L().Info("device created",
		zap.String("deviceId", deviceId),
		zap.Uint("apiAccountId", apiAccountId))
	return toAccountRespond(account), nil
}

// StartLogin 发起扫码登录，获取二维码
// 在线设备不允许重复发起；expired 设备必须重新创建
func (s *SessionManager) StartLogin(ctx context.Context, deviceId, province, city, proxy string) (*respond.LoginResult, error) {
	unlock := s.locks.Lock(deviceId)
	defer unlock()

	account, err := s.loadAccount(deviceId)
	if err != nil {
		return nil, err
	}
	if _, ok := nextStatus(account.Status, eventStartLogin); !ok {
		return nil, errorx.Newf(errorx.CodeInvalidState, "device %s in status %s cannot start login", deviceId, account.Status)
	}

	cred, err := s.credential(ctx, account)
	if err != nil {
		return nil, err
	}

	if proxy == "" {
		proxy = account.Proxy
	}
	qr, err := s.gateway.GetLoginQRCode(ctx, cred, deviceId, province, city, proxy)
	if err != nil {
		return nil, errorx.Wrap(err, errorx.CodeVendorError, "get login qrcode")
	}

	if err := s.saveWithRetry(account, func(a *model.WeChatAccount) {
		a.Status, _ = nextStatus(a.Status, eventStartLogin)
		a.QrCode = qr.QrCode
		a.QrCodeUrl = qr.QrCodeUrl
		a.AwaitingVerifyCode = false
		if proxy != "" {
			a.Proxy = proxy
		}
	}); err != nil {
		return nil, err
	}

	zap.L().Info("login qrcode issued", zap.String("deviceId", deviceId))
	return &respond.LoginResult{QrCodeUrl: qr.QrCodeUrl, Message: MsgWaitingScan}, nil
}

// ConfirmLogin 确认登录（长轮询）
// 厂商侧超时表示用户尚未扫码，不是错误；等待验证码期间为空操作
func (s *SessionManager) ConfirmLogin(ctx context.Context, deviceId string) (*respond.LoginResult, error) {
	account, err := s.loadAccount(deviceId)
	if err != nil {
		return nil, err
	}
	if account.IsOnline() {
		return &respond.LoginResult{Success: true}, nil
	}
	if account.AwaitingVerifyCode {
		return &respond.LoginResult{Message: MsgNeedVerifyCode}, nil
	}

	cred, err := s.credential(ctx, account)
	if err != nil {
		return nil, err
	}

	data, err := s.gateway.ConfirmLogin(ctx, cred, deviceId)
	if err != nil {
		if vendorapi.IsTimeout(err) {
			return &respond.LoginResult{Message: MsgWaitingScan}, nil
		}
		return nil, errorx.Wrap(err, errorx.CodeVendorError, "confirm login")
	}

	return s.applyLoginData(deviceId, data)
}

// ConfirmLoginShort 确认登录（短轮询），立即返回当前进度
func (s *SessionManager) ConfirmLoginShort(ctx context.Context, deviceId string) (*respond.LoginResult, error) {
	account, err := s.loadAccount(deviceId)
	if err != nil {
		return nil, err
	}
	if account.IsOnline() {
		return &respond.LoginResult{Success: true}, nil
	}
	if account.AwaitingVerifyCode {
		return &respond.LoginResult{Message: MsgNeedVerifyCode}, nil
	}

	cred, err := s.credential(ctx, account)
	if err != nil {
		return nil, err
	}

	data, err := s.gateway.ConfirmLoginShort(ctx, cred, deviceId)
	if err != nil {
		if vendorapi.IsTimeout(err) {
			return &respond.LoginResult{Message: MsgWaitingScan}, nil
		}
		return nil, errorx.Wrap(err, errorx.CodeVendorError, "confirm login short")
	}

	return s.applyLoginData(deviceId, data)
}

// applyLoginData 把厂商确认登录结果落到账号上
func (s *SessionManager) applyLoginData(deviceId string, data *vendorapi.LoginData) (*respond.LoginResult, error) {
	unlock := s.locks.Lock(deviceId)
	defer unlock()

	account, err := s.loadAccount(deviceId)
	if err != nil {
		return nil, err
	}

	switch {
	case data.LoggedIn:
		now := s.now()
		if err := s.saveWithRetry(account, func(a *model.WeChatAccount) {
			a.Status, _ = nextStatus(a.Status, eventLoginConfirmed)
			a.ApplyOnline(data.WxId, data.Nickname, data.Avatar, data.AccessToken, now)
			a.AwaitingVerifyCode = false
		}); err != nil {
			return nil, err
		}
		zap.L().Info("device logged in",
			zap.String("deviceId", deviceId),
			zap.String("weChatId", account.WeChatId))
		return &respond.LoginResult{Success: true}, nil

	case data.NeedVerifyCode:
		if err := s.saveWithRetry(account, func(a *model.WeChatAccount) {
			a.AwaitingVerifyCode = true
		}); err != nil {
			return nil, err
		}
		return &respond.LoginResult{Message: MsgNeedVerifyCode}, nil
	}

	// pending 或厂商未给出明确结论
	return &respond.LoginResult{Message: MsgWaitingScan}, nil
}

// ConfirmLoginAsync 后台确认登录
// 返回只发送一次结果的通道，供管理端异步发起长轮询
func (s *SessionManager) ConfirmLoginAsync(ctx context.Context, deviceId string) <-chan *respond.LoginResult {
	ch := make(chan *respond.LoginResult, 1)
	go func() {
		defer close(ch)
		result, err := s.ConfirmLogin(ctx, deviceId)
		if err != nil {
			ch <- &respond.LoginResult{Error: err.Error()}
			return
		}
		ch <- result
	}()
	return ch
}

// InputLoginCode 输入登录验证码，随后立即查询一次登录结果
func (s *SessionManager) InputLoginCode(ctx context.Context, deviceId, code string) (*respond.LoginResult, error) {
	account, err := s.loadAccount(deviceId)
	if err != nil {
		return nil, err
	}
	if !account.AwaitingVerifyCode {
		return nil, errorx.Newf(errorx.CodeInvalidState, "device %s is not awaiting a verify code", deviceId)
	}

	cred, err := s.credential(ctx, account)
	if err != nil {
		return nil, err
	}
	if err := s.gateway.InputVerificationCode(ctx, cred, deviceId, code); err != nil {
		return nil, errorx.Wrap(err, errorx.CodeVendorError, "input verification code")
	}

	if err := s.saveWithRetry(account, func(a *model.WeChatAccount) {
		a.AwaitingVerifyCode = false
	}); err != nil {
		return nil, err
	}

	data, err := s.gateway.ConfirmLoginShort(ctx, cred, deviceId)
	if err != nil {
		// 验证码已接受，查询失败不影响后续轮询
		zap.L().Warn("confirm after verify code failed",
			zap.String("deviceId", deviceId), zap.Error(err))
		return &respond.LoginResult{Message: MsgWaitingScan}, nil
	}
	return s.applyLoginData(deviceId, data)
}

// ReLogin 二次登录（免扫码）
// 设备超过厂商保留期会被回收，此时标记为 expired，必须重新创建设备
func (s *SessionManager) ReLogin(ctx context.Context, deviceId string) (*respond.LoginResult, error) {
	unlock := s.locks.Lock(deviceId)
	defer unlock()

	account, err := s.loadAccount(deviceId)
	if err != nil {
		return nil, err
	}
	if account.Status == model.AccountStatusExpired {
		return nil, errorx.Newf(errorx.CodeInvalidState, "device %s is expired, recreate it", deviceId)
	}

	cred, err := s.credential(ctx, account)
	if err != nil {
		return nil, err
	}

	data, err := s.gateway.ReLogin(ctx, cred, deviceId)
	if err != nil {
		var apiErr *vendorapi.APIError
		if errors.As(err, &apiErr) && apiErr.Code == vendorapi.CodeExpired {
			if serr := s.saveWithRetry(account, func(a *model.WeChatAccount) {
				a.Status, _ = nextStatus(a.Status, eventExpired)
			}); serr != nil {
				return nil, serr
			}
			zap.L().Warn("device reclaimed by vendor", zap.String("deviceId", deviceId))
			return nil, errorx.Wrapf(err, errorx.CodeInvalidState, "device %s reclaimed by vendor", deviceId)
		}
		if vendorapi.IsTimeout(err) {
			return &respond.LoginResult{Message: MsgWaitingScan}, nil
		}
		return nil, errorx.Wrap(err, errorx.CodeVendorError, "relogin")
	}

	if data.LoggedIn {
		now := s.now()
		if err := s.saveWithRetry(account, func(a *model.WeChatAccount) {
			a.Status, _ = nextStatus(a.Status, eventLoginConfirmed)
			a.ApplyOnline(data.WxId, data.Nickname, data.Avatar, data.AccessToken, now)
		}); err != nil {
			return nil, err
		}
		return &respond.LoginResult{Success: true}, nil
	}
	return &respond.LoginResult{Message: MsgWaitingScan}, nil
}

// Logout 登出设备
// 幂等操作：已离线的设备视为空操作成功，不访问厂商
func (s *SessionManager) Logout(ctx context.Context, deviceId string) (bool, error) {
	unlock := s.locks.Lock(deviceId)
	defer unlock()

	account, err := s.loadAccount(deviceId)
	if err != nil {
		return false, err
	}
	if !account.IsOnline() {
		return true, nil
	}

	cred, err := s.credential(ctx, account)
	if err != nil {
		return false, err
	}

	if err := s.gateway.Logout(ctx, cred, deviceId); err != nil {
		// 厂商侧已离线也算登出成功
		var apiErr *vendorapi.APIError
		if !errors.As(err, &apiErr) || apiErr.Code != vendorapi.CodeOffline {
			return false, errorx.Wrap(err, errorx.CodeVendorError, "logout")
		}
	}

	if err := s.saveWithRetry(account, func(a *model.WeChatAccount) {
		a.Status, _ = nextStatus(a.Status, eventLogout)
	}); err != nil {
		return false, err
	}
	zap.L().Info("device logged out", zap.String("deviceId", deviceId))
	return true, nil
}

// ReconcileOnlineStatus 主动探测并校准设备在线状态
// 收到厂商应答（含探测超时视为离线）时必然写回 online/offline 之一；
// 其余传输错误不改动状态，原样上抛
func (s *SessionManager) ReconcileOnlineStatus(ctx context.Context, deviceId string) (*respond.DeviceStatus, error) {
	unlock := s.locks.Lock(deviceId)
	defer unlock()

	account, err := s.loadAccount(deviceId)
	if err != nil {
		return nil, err
	}

	cred, err := s.credential(ctx, account)
	if err != nil {
		return nil, err
	}

	status, err := s.gateway.CheckOnlineStatus(ctx, cred, deviceId)
	if err != nil {
		if vendorapi.IsTimeout(err) {
			// 探测超时按离线处理，避免僵尸在线状态
			status = &vendorapi.StatusData{Code: vendorapi.CodeOffline}
		} else {
			return nil, errorx.Wrap(err, errorx.CodeVendorError, "check online status")
		}
	}

	ev := eventProbeOffline
	if status.Online {
		ev = eventProbeOnline
	}
	if status.Code == vendorapi.CodeExpired {
		ev = eventExpired
	}

	now := s.now()
	if err := s.saveWithRetry(account, func(a *model.WeChatAccount) {
		if next, ok := nextStatus(a.Status, ev); ok {
			a.Status = next
		}
		if ev == eventProbeOnline {
			a.TouchActive(now)
		}
	}); err != nil {
		return nil, err
	}

	return toDeviceStatus(account), nil
}

// ApplyLoginEvent 应用登录结果回调（实现 callback.AccountUpdater）
// expired 设备收到登录成功回调视为重新激活
func (s *SessionManager) ApplyLoginEvent(ctx context.Context, deviceId string, success bool, wxId, nickname, avatar, accessToken string) error {
	unlock := s.locks.Lock(deviceId)
	defer unlock()

	account, err := s.loadAccount(deviceId)
	if err != nil {
		zap.L().Warn("login callback for unknown device", zap.String("deviceId", deviceId))
		return err
	}

	if !success {
		return s.saveWithRetry(account, func(a *model.WeChatAccount) {
			if next, ok := nextStatus(a.Status, eventLoginFailed); ok {
				a.Status = next
			}
		})
	}

	now := s.now()
	return s.saveWithRetry(account, func(a *model.WeChatAccount) {
		a.Status, _ = nextStatus(a.Status, eventLoginConfirmed)
		a.ApplyOnline(wxId, nickname, avatar, accessToken, now)
		a.AwaitingVerifyCode = false
	})
}

// ApplyStatusEvent 应用在线状态变更回调（实现 callback.AccountUpdater)
func (s *SessionManager) ApplyStatusEvent(ctx context.Context, deviceId string, online bool) error {
	unlock := s.locks.Lock(deviceId)
	defer unlock()

	account, err := s.loadAccount(deviceId)
	if err != nil {
		zap.L().Warn("status callback for unknown device", zap.String("deviceId", deviceId))
		return err
	}

	ev := eventProbeOffline
	if online {
		ev = eventProbeOnline
	}
	now := s.now()
	return s.saveWithRetry(account, func(a *model.WeChatAccount) {
		if next, ok := nextStatus(a.Status, ev); ok {
			a.Status = next
		}
		if online {
			a.TouchActive(now)
		}
	})
}

// GetDevice 查询单个设备
func (s *SessionManager) GetDevice(deviceId string) (*respond.AccountRespond, error) {
	account, err := s.loadAccount(deviceId)
	if err != nil {
		return nil, err
	}
	return toAccountRespond(account), nil
}

// ListDevices 查询所有有效设备
func (s *SessionManager) ListDevices() ([]respond.AccountRespond, error) {
	accounts, err := s.repos.Account.FindAll()
	if err != nil {
		return nil, err
	}
	list := make([]respond.AccountRespond, 0, len(accounts))
	for i := range accounts {
		list = append(list, *toAccountRespond(&accounts[i]))
	}
	return list, nil
}

// ListDevicesByStatus 按状态查询设备，巡检任务使用
func (s *SessionManager) ListDevicesByStatus(status string) ([]model.WeChatAccount, error) {
	return s.repos.Account.FindByStatus(status)
}

func toAccountRespond(a *model.WeChatAccount) *respond.AccountRespond {
	r := &respond.AccountRespond{
		DeviceId:  a.DeviceId,
		WeChatId:  a.WeChatId,
		Nickname:  a.Nickname,
		Avatar:    a.Avatar,
		Status:    a.Status,
		QrCodeUrl: a.QrCodeUrl,
		Proxy:     a.Proxy,
	}
	if a.LastLoginTime.Valid {
		r.LastLoginTime = a.LastLoginTime.Time.Format(timeLayout)
	}
	if a.LastActiveTime.Valid {
		r.LastActiveTime = a.LastActiveTime.Time.Format(timeLayout)
	}
	return r
}

func toDeviceStatus(a *model.WeChatAccount) *respond.DeviceStatus {
	s := &respond.DeviceStatus{
		DeviceId: a.DeviceId,
		IsOnline: a.IsOnline(),
		Status:   a.Status,
	}
	if a.LastActiveTime.Valid {
		s.LastActiveTime = a.LastActiveTime.Time.Format(timeLayout)
	}
	return s
}
