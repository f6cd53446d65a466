package device

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"wechat_bridge_server/internal/dao/mysql/repository"
	"wechat_bridge_server/internal/infrastructure/vendorapi"
	"wechat_bridge_server/internal/model"
	"wechat_bridge_server/pkg/errorx"
)

// fakeAccountRepo 内存版设备账号仓储，带乐观锁语义
type fakeAccountRepo struct {
	mu        sync.Mutex
	accounts  map[string]model.WeChatAccount
	conflicts int // 前 N 次 UpdateWithVersion 强制返回版本冲突
}

func newFakeAccountRepo(accounts ...model.WeChatAccount) *fakeAccountRepo {
	r := &fakeAccountRepo{accounts: make(map[string]model.WeChatAccount)}
	for _, a := range accounts {
		r.accounts[a.DeviceId] = a
	}
	return r
}

func (r *fakeAccountRepo) FindByDeviceId(deviceId string) (*model.WeChatAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[deviceId]
	if !ok {
		return nil, errorx.Newf(errorx.CodeNotFound, "device %s not found", deviceId)
	}
	copied := a
	return &copied, nil
}

func (r *fakeAccountRepo) FindByWeChatId(wechatId string) (*model.WeChatAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if a.WeChatId == wechatId {
			copied := a
			return &copied, nil
		}
	}
	return nil, errorx.New(errorx.CodeNotFound, "not found")
}

func (r *fakeAccountRepo) FindByStatus(status string) ([]model.WeChatAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.WeChatAccount
	for _, a := range r.accounts {
		if a.Status == status && a.Valid {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *fakeAccountRepo) FindAll() ([]model.WeChatAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.WeChatAccount
	for _, a := range r.accounts {
		if a.Valid {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *fakeAccountRepo) Create(account *model.WeChatAccount) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.accounts[account.DeviceId]; ok {
		return errorx.New(errorx.CodeConflict, "duplicate device")
	}
	r.accounts[account.DeviceId] = *account
	return nil
}

func (r *fakeAccountRepo) UpdateWithVersion(account *model.WeChatAccount) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conflicts > 0 {
		r.conflicts--
		return errorx.Newf(errorx.CodeConflict, "设备 %s 版本冲突", account.DeviceId)
	}
	stored, ok := r.accounts[account.DeviceId]
	if !ok {
		return errorx.New(errorx.CodeNotFound, "not found")
	}
	if stored.Version != account.Version {
		return errorx.Newf(errorx.CodeConflict, "设备 %s 版本冲突", account.DeviceId)
	}
	account.Version++
	r.accounts[account.DeviceId] = *account
	return nil
}

func (r *fakeAccountRepo) SoftDisableByDeviceIds(deviceIds []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range deviceIds {
		if a, ok := r.accounts[id]; ok {
			a.Valid = false
			r.accounts[id] = a
		}
	}
	return nil
}

func (r *fakeAccountRepo) get(deviceId string) model.WeChatAccount {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.accounts[deviceId]
}

// fakeGateway 可编程的厂商网关
type fakeGateway struct {
	qr        *vendorapi.QRCodeData
	qrErr     error
	login     *vendorapi.LoginData
	loginErr  error
	status    *vendorapi.StatusData
	statusErr error
	logoutErr error

	confirmCalls int
	logoutCalls  int
}

func (g *fakeGateway) PlatformLogin(context.Context, *model.WeChatApiAccount) (*vendorapi.TokenData, error) {
	return &vendorapi.TokenData{AccessToken: "tok"}, nil
}

func (g *fakeGateway) CreateDevice(context.Context, *model.WeChatApiAccount, string) error {
	return nil
}

func (g *fakeGateway) GetLoginQRCode(context.Context, *model.WeChatApiAccount, string, string, string, string) (*vendorapi.QRCodeData, error) {
	return g.qr, g.qrErr
}

func (g *fakeGateway) ConfirmLogin(context.Context, *model.WeChatApiAccount, string) (*vendorapi.LoginData, error) {
	g.confirmCalls++
	return g.login, g.loginErr
}

func (g *fakeGateway) ConfirmLoginShort(context.Context, *model.WeChatApiAccount, string) (*vendorapi.LoginData, error) {
	return g.login, g.loginErr
}

func (g *fakeGateway) InputVerificationCode(context.Context, *model.WeChatApiAccount, string, string) error {
	return nil
}

func (g *fakeGateway) ReLogin(context.Context, *model.WeChatApiAccount, string) (*vendorapi.LoginData, error) {
	return g.login, g.loginErr
}

func (g *fakeGateway) Logout(context.Context, *model.WeChatApiAccount, string) error {
	g.logoutCalls++
	return g.logoutErr
}

func (g *fakeGateway) CheckOnlineStatus(context.Context, *model.WeChatApiAccount, string) (*vendorapi.StatusData, error) {
	return g.status, g.statusErr
}

func (g *fakeGateway) SendMessage(context.Context, *model.WeChatApiAccount, *vendorapi.SendMessageRequest) (*vendorapi.SendData, error) {
	return &vendorapi.SendData{}, nil
}

func (g *fakeGateway) RecallMessage(context.Context, *model.WeChatApiAccount, *vendorapi.RecallMessageRequest) error {
	return nil
}

func (g *fakeGateway) GetContactList(context.Context, *model.WeChatApiAccount, string) ([]vendorapi.ContactData, error) {
	return nil, nil
}

func (g *fakeGateway) GetGroupList(context.Context, *model.WeChatApiAccount, string) ([]vendorapi.GroupData, error) {
	return nil, nil
}

type fakeCreds struct{}

func (fakeCreds) CredentialFor(context.Context, uint) (*model.WeChatApiAccount, error) {
	return &model.WeChatApiAccount{BaseUrl: "http://vendor", AccessToken: "tok"}, nil
}

func newTestManager(repo *fakeAccountRepo, gw *fakeGateway) *SessionManager {
	m := NewSessionManager(&repository.Repositories{Account: repo}, gw, fakeCreds{})
	m.now = func() time.Time { return time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC) }
	return m
}

func pendingAccount(deviceId string) model.WeChatAccount {
	return model.WeChatAccount{
		DeviceId:     deviceId,
		ApiAccountId: 1,
		Status:       model.AccountStatusPendingLogin,
		Valid:        true,
	}
}

func onlineAccount(deviceId string) model.WeChatAccount {
	a := pendingAccount(deviceId)
	a.Status = model.AccountStatusOnline
	a.WeChatId = "wxid_" + deviceId
	return a
}

// 状态机封闭性：任何状态经任何事件都落在已知状态集内
func TestStateMachineClosure(t *testing.T) {
	statuses := []string{
		model.AccountStatusPendingLogin,
		model.AccountStatusOnline,
		model.AccountStatusOffline,
		model.AccountStatusExpired,
	}
	events := []transitionEvent{
		eventStartLogin, eventLoginConfirmed, eventLoginFailed,
		eventProbeOnline, eventProbeOffline, eventLogout, eventExpired,
	}
	known := map[string]bool{}
	for _, s := range statuses {
		known[s] = true
	}

	for _, s := range statuses {
		for _, ev := range events {
			next, _ := nextStatus(s, ev)
			if !known[next] {
				t.Fatalf("transition (%s, %s) escapes to unknown status %q", s, ev, next)
			}
		}
	}
}

func TestStateMachineExpiredOnlyExitsViaLogin(t *testing.T) {
	exits := map[transitionEvent]bool{}
	for _, ev := range []transitionEvent{eventStartLogin, eventLoginFailed, eventProbeOnline, eventProbeOffline, eventLogout} {
		next, ok := nextStatus(model.AccountStatusExpired, ev)
		if ok && next != model.AccountStatusExpired {
			exits[ev] = true
		}
	}
	if len(exits) != 0 {
		t.Fatalf("expired must only exit via login confirmation, but exits via %v", exits)
	}
	if next, ok := nextStatus(model.AccountStatusExpired, eventLoginConfirmed); !ok || next != model.AccountStatusOnline {
		t.Fatal("login confirmation must reactivate an expired device")
	}
}

func TestCreateDeviceIdFitsColumn(t *testing.T) {
	repo := newFakeAccountRepo()
	m := newTestManager(repo, &fakeGateway{})

	account, err := m.CreateDevice(context.Background(), 1, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// device_id 列为 char(32)，超长在严格模式下整条插入失败
	if len(account.DeviceId) != 32 {
		t.Fatalf("deviceId length %d, want 32: %s", len(account.DeviceId), account.DeviceId)
	}
	if repo.get(account.DeviceId).Status != model.AccountStatusPendingLogin {
		t.Fatal("created device must start in pending_login")
	}
}

func TestStartLoginIssuesQRCode(t *testing.T) {
	repo := newFakeAccountRepo(pendingAccount("d1"))
	gw := &fakeGateway{qr: &vendorapi.QRCodeData{QrCode: "raw", QrCodeUrl: "http://qr/1.png"}}
	m := newTestManager(repo, gw)

	result, err := m.StartLogin(context.Background(), "d1", "广东", "深圳", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.QrCodeUrl != "http://qr/1.png" || result.Message != MsgWaitingScan {
		t.Fatalf("unexpected result: %+v", result)
	}

	stored := repo.get("d1")
	if stored.QrCodeUrl != "http://qr/1.png" || stored.Status != model.AccountStatusPendingLogin {
		t.Fatalf("qrcode not persisted: %+v", stored)
	}
}

func TestStartLoginRejectedWhenOnline(t *testing.T) {
	repo := newFakeAccountRepo(onlineAccount("d1"))
	m := newTestManager(repo, &fakeGateway{})

	_, err := m.StartLogin(context.Background(), "d1", "", "", "")
	if errorx.GetCode(err) != errorx.CodeInvalidState {
		t.Fatalf("expected CodeInvalidState, got %v", err)
	}
}

func TestConfirmLoginSuccess(t *testing.T) {
	repo := newFakeAccountRepo(pendingAccount("d1"))
	gw := &fakeGateway{login: &vendorapi.LoginData{
		LoggedIn: true, WxId: "wxid_1", Nickname: "张三", AccessToken: "device-tok",
	}}
	m := newTestManager(repo, gw)

	result, err := m.ConfirmLogin(context.Background(), "d1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}

	stored := repo.get("d1")
	if stored.Status != model.AccountStatusOnline {
		t.Fatalf("expected online, got %s", stored.Status)
	}
	if stored.WeChatId != "wxid_1" || stored.AccessToken != "device-tok" {
		t.Fatalf("identity not applied: %+v", stored)
	}
	if !stored.LastLoginTime.Valid || !stored.LastActiveTime.Valid {
		t.Fatal("login/active time not recorded")
	}
}

func TestConfirmLoginTimeoutMeansStillPending(t *testing.T) {
	repo := newFakeAccountRepo(pendingAccount("d1"))
	gw := &fakeGateway{loginErr: context.DeadlineExceeded}
	m := newTestManager(repo, gw)

	result, err := m.ConfirmLogin(context.Background(), "d1")
	if err != nil {
		t.Fatalf("timeout must not be an error, got %v", err)
	}
	if result.Success || result.Message != MsgWaitingScan {
		t.Fatalf("unexpected result: %+v", result)
	}
	if repo.get("d1").Status != model.AccountStatusPendingLogin {
		t.Fatal("status must stay pending on timeout")
	}
}

func TestConfirmLoginVerifyCodeFlow(t *testing.T) {
	repo := newFakeAccountRepo(pendingAccount("d1"))
	gw := &fakeGateway{login: &vendorapi.LoginData{NeedVerifyCode: true}}
	m := newTestManager(repo, gw)

	result, err := m.ConfirmLogin(context.Background(), "d1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Message != MsgNeedVerifyCode {
		t.Fatalf("unexpected result: %+v", result)
	}
	if !repo.get("d1").AwaitingVerifyCode {
		t.Fatal("awaiting_verify_code flag not set")
	}

	// 等待验证码期间确认登录是空操作，不应再打厂商接口
	calls := gw.confirmCalls
	result, err = m.ConfirmLogin(context.Background(), "d1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Message != MsgNeedVerifyCode {
		t.Fatalf("unexpected result: %+v", result)
	}
	if gw.confirmCalls != calls {
		t.Fatal("confirm while awaiting verify code must not call the vendor")
	}
}

func TestConfirmLoginAsyncDeliversOneResult(t *testing.T) {
	repo := newFakeAccountRepo(pendingAccount("d1"))
	gw := &fakeGateway{login: &vendorapi.LoginData{LoggedIn: true, WxId: "wxid_1"}}
	m := newTestManager(repo, gw)

	ch := m.ConfirmLoginAsync(context.Background(), "d1")

	select {
	case result := <-ch:
		if result == nil || !result.Success {
			t.Fatalf("unexpected result: %+v", result)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("async confirm did not deliver a result")
	}
	if _, open := <-ch; open {
		t.Fatal("channel must be closed after the single result")
	}
}

func TestConfirmLoginShortPending(t *testing.T) {
	repo := newFakeAccountRepo(pendingAccount("d1"))
	gw := &fakeGateway{login: &vendorapi.LoginData{Pending: true}}
	m := newTestManager(repo, gw)

	result, err := m.ConfirmLoginShort(context.Background(), "d1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Success || result.Message != MsgWaitingScan {
		t.Fatalf("unexpected result: %+v", result)
	}
	if repo.get("d1").Status != model.AccountStatusPendingLogin {
		t.Fatal("pending probe must not change status")
	}
}

func TestLogoutIdempotent(t *testing.T) {
	repo := newFakeAccountRepo(onlineAccount("d1"))
	gw := &fakeGateway{}
	m := newTestManager(repo, gw)

	loggedOut, err := m.Logout(context.Background(), "d1")
	if err != nil || !loggedOut {
		t.Fatalf("first logout: loggedOut=%v err=%v", loggedOut, err)
	}
	if repo.get("d1").Status != model.AccountStatusOffline {
		t.Fatal("device not offline after logout")
	}

	// 已离线再登出是空操作成功，不再打厂商接口
	loggedOut, err = m.Logout(context.Background(), "d1")
	if err != nil || !loggedOut {
		t.Fatalf("second logout must be a no-op success: loggedOut=%v err=%v", loggedOut, err)
	}
	if gw.logoutCalls != 1 {
		t.Fatalf("vendor logout called %d times, want 1", gw.logoutCalls)
	}
}

func TestReconcileProbeTimeoutMarksOffline(t *testing.T) {
	repo := newFakeAccountRepo(onlineAccount("d1"))
	gw := &fakeGateway{statusErr: context.DeadlineExceeded}
	m := newTestManager(repo, gw)

	status, err := m.ReconcileOnlineStatus(context.Background(), "d1")
	if err != nil {
		t.Fatalf("probe timeout must not surface as error, got %v", err)
	}
	if status.IsOnline || status.Status != model.AccountStatusOffline {
		t.Fatalf("expected offline, got %+v", status)
	}
}

func TestReconcileTransportErrorLeavesStatusUntouched(t *testing.T) {
	repo := newFakeAccountRepo(onlineAccount("d1"))
	gw := &fakeGateway{statusErr: errors.New("connection refused")}
	m := newTestManager(repo, gw)

	_, err := m.ReconcileOnlineStatus(context.Background(), "d1")
	if errorx.GetCode(err) != errorx.CodeVendorError {
		t.Fatalf("expected CodeVendorError, got %v", err)
	}
	if repo.get("d1").Status != model.AccountStatusOnline {
		t.Fatal("transport error must not change device status")
	}
}

func TestReconcileOnlineAdvancesActiveTime(t *testing.T) {
	account := onlineAccount("d1")
	repo := newFakeAccountRepo(account)
	gw := &fakeGateway{status: &vendorapi.StatusData{Code: vendorapi.CodeSuccess, Online: true}}
	m := newTestManager(repo, gw)

	if _, err := m.ReconcileOnlineStatus(context.Background(), "d1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stored := repo.get("d1")
	if !stored.LastActiveTime.Valid {
		t.Fatal("active time not advanced")
	}
}

func TestReconcileExpiredCode(t *testing.T) {
	repo := newFakeAccountRepo(onlineAccount("d1"))
	gw := &fakeGateway{status: &vendorapi.StatusData{Code: vendorapi.CodeExpired}}
	m := newTestManager(repo, gw)

	status, err := m.ReconcileOnlineStatus(context.Background(), "d1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status.Status != model.AccountStatusExpired {
		t.Fatalf("expected expired, got %+v", status)
	}
}

func TestReLoginExpiredDevice(t *testing.T) {
	repo := newFakeAccountRepo(onlineAccount("d1"))
	gw := &fakeGateway{loginErr: &vendorapi.APIError{Code: vendorapi.CodeExpired, Msg: "reclaimed"}}
	m := newTestManager(repo, gw)

	_, err := m.ReLogin(context.Background(), "d1")
	if errorx.GetCode(err) != errorx.CodeInvalidState {
		t.Fatalf("expected CodeInvalidState, got %v", err)
	}
	if repo.get("d1").Status != model.AccountStatusExpired {
		t.Fatal("device must be marked expired")
	}

	// expired 之后二次登录直接拒绝
	_, err = m.ReLogin(context.Background(), "d1")
	if errorx.GetCode(err) != errorx.CodeInvalidState {
		t.Fatalf("expected CodeInvalidState on expired device, got %v", err)
	}
}

func TestApplyLoginEventReactivatesExpired(t *testing.T) {
	account := pendingAccount("d1")
	account.Status = model.AccountStatusExpired
	repo := newFakeAccountRepo(account)
	m := newTestManager(repo, &fakeGateway{})

	err := m.ApplyLoginEvent(context.Background(), "d1", true, "wxid_1", "张三", "", "tok")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stored := repo.get("d1")
	if stored.Status != model.AccountStatusOnline || stored.WeChatId != "wxid_1" {
		t.Fatalf("expired device not reactivated: %+v", stored)
	}
}

func TestApplyStatusEventKeepsExpired(t *testing.T) {
	account := pendingAccount("d1")
	account.Status = model.AccountStatusExpired
	repo := newFakeAccountRepo(account)
	m := newTestManager(repo, &fakeGateway{})

	if err := m.ApplyStatusEvent(context.Background(), "d1", false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.get("d1").Status != model.AccountStatusExpired {
		t.Fatal("offline event must not resurrect an expired device")
	}
}

func TestApplyLoginEventUnknownDevice(t *testing.T) {
	m := newTestManager(newFakeAccountRepo(), &fakeGateway{})
	err := m.ApplyLoginEvent(context.Background(), "ghost", true, "", "", "", "")
	if errorx.GetCode(err) != errorx.CodeDeviceNotExist {
		t.Fatalf("expected CodeDeviceNotExist, got %v", err)
	}
}

func TestSaveWithRetryOnVersionConflict(t *testing.T) {
	repo := newFakeAccountRepo(pendingAccount("d1"))
	repo.conflicts = 2
	gw := &fakeGateway{login: &vendorapi.LoginData{LoggedIn: true, WxId: "wxid_1"}}
	m := newTestManager(repo, gw)

	result, err := m.ConfirmLogin(context.Background(), "d1")
	if err != nil {
		t.Fatalf("conflict within retry budget must succeed, got %v", err)
	}
	if !result.Success || repo.get("d1").Status != model.AccountStatusOnline {
		t.Fatal("login not applied after retry")
	}
}

func TestMonotonicActiveTime(t *testing.T) {
	a := pendingAccount("d1")
	future := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	a.TouchActive(future)
	a.TouchActive(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))
	if !a.LastActiveTime.Time.Equal(future) {
		t.Fatalf("active time regressed: %v", a.LastActiveTime.Time)
	}
}
