package message

import (
	"context"
	"sync"
	"testing"
	"time"

	"wechat_bridge_server/internal/dao/mysql/repository"
	"wechat_bridge_server/internal/infrastructure/mq"
	"wechat_bridge_server/internal/infrastructure/vendorapi"
	"wechat_bridge_server/internal/model"
	"wechat_bridge_server/internal/service/callback"
	"wechat_bridge_server/pkg/errorx"
)

type fakeMessageRepo struct {
	mu       sync.Mutex
	byKey    map[string]*model.WeChatMessage
	creates  int
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{byKey: make(map[string]*model.WeChatMessage)}
}

func key(deviceId, messageId string) string { return deviceId + "|" + messageId }

func (r *fakeMessageRepo) Create(message *model.WeChatMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.creates++
	k := key(message.DeviceId, message.MessageId)
	if message.MessageId != "" {
		if _, ok := r.byKey[k]; ok {
			return errorx.New(errorx.CodeConflict, "duplicate message")
		}
	}
	copied := *message
	r.byKey[k] = &copied
	return nil
}

func (r *fakeMessageRepo) FindByDeviceAndMessageId(deviceId, messageId string) (*model.WeChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.byKey[key(deviceId, messageId)]; ok {
		copied := *m
		return &copied, nil
	}
	return nil, errorx.New(errorx.CodeNotFound, "not found")
}

func (r *fakeMessageRepo) FindByUuid(uuid int64) (*model.WeChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.byKey {
		if m.Uuid == uuid {
			copied := *m
			return &copied, nil
		}
	}
	return nil, errorx.New(errorx.CodeNotFound, "not found")
}

func (r *fakeMessageRepo) FindByDeviceId(deviceId string, limit, offset int) ([]model.WeChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.WeChatMessage
	for _, m := range r.byKey {
		if m.DeviceId == deviceId {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (r *fakeMessageRepo) UpdateFlags(uuid int64, updates map[string]interface{}) error {
	return nil
}

type fakeAccountRepo struct {
	account *model.WeChatAccount
}

func (r *fakeAccountRepo) FindByDeviceId(deviceId string) (*model.WeChatAccount, error) {
	if r.account == nil || r.account.DeviceId != deviceId {
		return nil, errorx.New(errorx.CodeNotFound, "not found")
	}
	copied := *r.account
	return &copied, nil
}

func (r *fakeAccountRepo) FindByWeChatId(string) (*model.WeChatAccount, error) {
	return nil, errorx.New(errorx.CodeNotFound, "not found")
}
func (r *fakeAccountRepo) FindByStatus(string) ([]model.WeChatAccount, error) { return nil, nil }
func (r *fakeAccountRepo) FindAll() ([]model.WeChatAccount, error)            { return nil, nil }
func (r *fakeAccountRepo) Create(*model.WeChatAccount) error                  { return nil }
func (r *fakeAccountRepo) UpdateWithVersion(*model.WeChatAccount) error       { return nil }
func (r *fakeAccountRepo) SoftDisableByDeviceIds([]string) error              { return nil }

// fakeCache 同步执行 Submit，测试结果确定
type fakeCache struct {
	mu   sync.Mutex
	data map[string]string
}

func newFakeCache() *fakeCache { return &fakeCache{data: make(map[string]string)} }

func (c *fakeCache) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.data[key], nil
}

func (c *fakeCache) SetEx(_ context.Context, key, value string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *fakeCache) Submit(action func()) { action() }

type fakeGateway struct {
	sendData *vendorapi.SendData
	sendErr  error
	recalled int
}

func (g *fakeGateway) PlatformLogin(context.Context, *model.WeChatApiAccount) (*vendorapi.TokenData, error) {
	return &vendorapi.TokenData{AccessToken: "tok"}, nil
}
func (g *fakeGateway) CreateDevice(context.Context, *model.WeChatApiAccount, string) error { return nil }
func (g *fakeGateway) GetLoginQRCode(context.Context, *model.WeChatApiAccount, string, string, string, string) (*vendorapi.QRCodeData, error) {
	return nil, nil
}
func (g *fakeGateway) ConfirmLogin(context.Context, *model.WeChatApiAccount, string) (*vendorapi.LoginData, error) {
	return nil, nil
}
func (g *fakeGateway) ConfirmLoginShort(context.Context, *model.WeChatApiAccount, string) (*vendorapi.LoginData, error) {
	return nil, nil
}
func (g *fakeGateway) InputVerificationCode(context.Context, *model.WeChatApiAccount, string, string) error {
	return nil
}
func (g *fakeGateway) ReLogin(context.Context, *model.WeChatApiAccount, string) (*vendorapi.LoginData, error) {
	return nil, nil
}
func (g *fakeGateway) Logout(context.Context, *model.WeChatApiAccount, string) error { return nil }
func (g *fakeGateway) CheckOnlineStatus(context.Context, *model.WeChatApiAccount, string) (*vendorapi.StatusData, error) {
	return nil, nil
}
func (g *fakeGateway) SendMessage(context.Context, *model.WeChatApiAccount, *vendorapi.SendMessageRequest) (*vendorapi.SendData, error) {
	return g.sendData, g.sendErr
}
func (g *fakeGateway) RecallMessage(context.Context, *model.WeChatApiAccount, *vendorapi.RecallMessageRequest) error {
	g.recalled++
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
	return &model.WeChatApiAccount{AccessToken: "tok"}, nil
}

func newTestService(msgRepo *fakeMessageRepo, accountRepo *fakeAccountRepo, gw *fakeGateway, cache Cache, pub mq.Publisher) *Service {
	repos := &repository.Repositories{Message: msgRepo, Account: accountRepo}
	return NewService(repos, gw, fakeCreds{}, cache, pub)
}

func inboundPayload(messageId string) *callback.MessagePayload {
	return &callback.MessagePayload{
		MessageId:   messageId,
		MsgId:       "raw-" + messageId,
		NewMsgId:    "new-" + messageId,
		CreateTime:  1700000000,
		MessageType: "text",
		SenderId:    "wxid_sender",
		SenderName:  "张三",
		ReceiverId:  "wxid_self",
		Content:     "hello",
		Timestamp:   1700000000,
	}
}

func TestIngestInboundCreatesRecord(t *testing.T) {
	repo := newFakeMessageRepo()
	svc := newTestService(repo, &fakeAccountRepo{}, &fakeGateway{}, newFakeCache(), nil)

	record, err := svc.IngestInbound(context.Background(), "d1", inboundPayload("m1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if record == nil || record.Uuid == 0 {
		t.Fatalf("record not created: %+v", record)
	}
	if record.Direction != model.DirectionInbound || record.MessageType != model.MessageTypeText {
		t.Fatalf("unexpected record: %+v", record)
	}
	if record.VendorMsgId != "raw-m1" || record.VendorNewMsgId != "new-m1" {
		t.Fatal("vendor identifiers must be retained for recall")
	}
}

func TestIngestInboundIdempotent(t *testing.T) {
	repo := newFakeMessageRepo()
	svc := newTestService(repo, &fakeAccountRepo{}, &fakeGateway{}, newFakeCache(), nil)

	first, err := svc.IngestInbound(context.Background(), "d1", inboundPayload("m1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := svc.IngestInbound(context.Background(), "d1", inboundPayload("m1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second == nil || second.Uuid != first.Uuid {
		t.Fatalf("duplicate must return the original record: first=%+v second=%+v", first, second)
	}
	if repo.creates != 1 {
		t.Fatalf("expected exactly 1 create, got %d", repo.creates)
	}
}

func TestIngestInboundNilCache(t *testing.T) {
	repo := newFakeMessageRepo()
	svc := newTestService(repo, &fakeAccountRepo{}, &fakeGateway{}, nil, nil)

	if _, err := svc.IngestInbound(context.Background(), "d1", inboundPayload("m1")); err != nil {
		t.Fatalf("nil cache must degrade to db-only dedup, got %v", err)
	}
	if _, err := svc.IngestInbound(context.Background(), "d1", inboundPayload("m1")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.creates != 1 {
		t.Fatalf("expected exactly 1 create, got %d", repo.creates)
	}
}

func TestIngestInboundIncompletePayload(t *testing.T) {
	svc := newTestService(newFakeMessageRepo(), &fakeAccountRepo{}, &fakeGateway{}, nil, nil)

	cases := []*callback.MessagePayload{
		nil,
		{MessageId: "m1", MessageType: "text"}, // 缺 senderId
		{MessageId: "m1", SenderId: "wx1"},     // 缺 messageType
	}
	for i, payload := range cases {
		record, err := svc.IngestInbound(context.Background(), "d1", payload)
		if err != nil {
			t.Fatalf("case %d: unexpected error: %v", i, err)
		}
		if record != nil {
			t.Fatalf("case %d: incomplete payload must yield nil record", i)
		}
	}
}

func TestIngestInboundWithoutMessageId(t *testing.T) {
	// 预回执消息没有厂商 messageId，必须照常落库（仅雪花 id 标识，不做去重）
	repo := newFakeMessageRepo()
	svc := newTestService(repo, &fakeAccountRepo{}, &fakeGateway{}, newFakeCache(), nil)

	payload := &callback.MessagePayload{SenderId: "u1", MessageType: "text", Content: "hi"}
	first, err := svc.IngestInbound(context.Background(), "d1", payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first == nil || first.Uuid == 0 || first.MessageId != "" {
		t.Fatalf("record without messageId not persisted: %+v", first)
	}

	second, err := svc.IngestInbound(context.Background(), "d1", payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.Uuid == first.Uuid {
		t.Fatal("each record without messageId must get its own uuid")
	}
	if repo.creates != 2 {
		t.Fatalf("expected 2 creates (no dedup without messageId), got %d", repo.creates)
	}
}

func TestIngestInboundGroupMessage(t *testing.T) {
	svc := newTestService(newFakeMessageRepo(), &fakeAccountRepo{}, &fakeGateway{}, nil, nil)

	payload := inboundPayload("m1")
	payload.GroupId = "group@chatroom"
	payload.GroupName = "测试群"

	record, err := svc.IngestInbound(context.Background(), "d1", payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !record.IsGroupMessage() || record.ReceiverId != "" {
		t.Fatalf("group message must not carry receiverId: %+v", record)
	}
}

func TestIngestInboundPublishesEvent(t *testing.T) {
	pub := mq.NewChannelPublisher(8)
	svc := newTestService(newFakeMessageRepo(), &fakeAccountRepo{}, &fakeGateway{}, nil, pub)

	if _, err := svc.IngestInbound(context.Background(), "d1", inboundPayload("m1")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case event := <-pub.Events():
		if event.DeviceId != "d1" || event.MessageId != "m1" {
			t.Fatalf("unexpected event: %+v", event)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("message event not published")
	}
}

func onlineAccount() *model.WeChatAccount {
	return &model.WeChatAccount{
		DeviceId:     "d1",
		ApiAccountId: 1,
		WeChatId:     "wxid_self",
		Status:       model.AccountStatusOnline,
		Valid:        true,
	}
}

func TestSendTextPersistsOutbound(t *testing.T) {
	repo := newFakeMessageRepo()
	gw := &fakeGateway{sendData: &vendorapi.SendData{
		MessageId: "srv-1", MsgId: "raw-1", NewMsgId: "new-1", CreateTime: 1700000001,
	}}
	svc := newTestService(repo, &fakeAccountRepo{account: onlineAccount()}, gw, nil, nil)

	result, err := svc.SendTextMessage(context.Background(), "d1", "wxid_peer", "", "你好")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success || result.MessageId != "srv-1" || result.Uuid == 0 {
		t.Fatalf("unexpected result: %+v", result)
	}

	stored, err := repo.FindByDeviceAndMessageId("d1", "srv-1")
	if err != nil {
		t.Fatalf("outbound message not persisted: %v", err)
	}
	if stored.Direction != model.DirectionOutbound || stored.SenderId != "wxid_self" {
		t.Fatalf("unexpected outbound record: %+v", stored)
	}
}

func TestSendRequiresOnlineDevice(t *testing.T) {
	account := onlineAccount()
	account.Status = model.AccountStatusOffline
	svc := newTestService(newFakeMessageRepo(), &fakeAccountRepo{account: account}, &fakeGateway{}, nil, nil)

	_, err := svc.SendTextMessage(context.Background(), "d1", "wxid_peer", "", "hi")
	if errorx.GetCode(err) != errorx.CodeInvalidState {
		t.Fatalf("expected CodeInvalidState, got %v", err)
	}
}

func TestSendTargetExclusivity(t *testing.T) {
	svc := newTestService(newFakeMessageRepo(), &fakeAccountRepo{account: onlineAccount()}, &fakeGateway{}, nil, nil)

	// 两个都给
	_, err := svc.SendTextMessage(context.Background(), "d1", "wxid_peer", "group@chatroom", "hi")
	if errorx.GetCode(err) != errorx.CodeInvalidParam {
		t.Fatalf("expected CodeInvalidParam, got %v", err)
	}
	// 一个都不给
	_, err = svc.SendTextMessage(context.Background(), "d1", "", "", "hi")
	if errorx.GetCode(err) != errorx.CodeInvalidParam {
		t.Fatalf("expected CodeInvalidParam, got %v", err)
	}
}

func TestRecallMessage(t *testing.T) {
	repo := newFakeMessageRepo()
	gw := &fakeGateway{sendData: &vendorapi.SendData{
		MessageId: "srv-1", MsgId: "raw-1", NewMsgId: "new-1", CreateTime: 1700000001,
	}}
	svc := newTestService(repo, &fakeAccountRepo{account: onlineAccount()}, gw, nil, nil)

	if _, err := svc.SendTextMessage(context.Background(), "d1", "wxid_peer", "", "撤回我"); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	recalled, err := svc.RecallMessage(context.Background(), "d1", "srv-1")
	if err != nil || !recalled {
		t.Fatalf("recall failed: recalled=%v err=%v", recalled, err)
	}
	if gw.recalled != 1 {
		t.Fatalf("vendor recall called %d times, want 1", gw.recalled)
	}
}

func TestRecallWithoutVendorIds(t *testing.T) {
	repo := newFakeMessageRepo()
	record := &model.WeChatMessage{Uuid: 1, DeviceId: "d1", MessageId: "m1", Direction: model.DirectionInbound, Valid: true}
	if err := repo.Create(record); err != nil {
		t.Fatal(err)
	}
	svc := newTestService(repo, &fakeAccountRepo{account: onlineAccount()}, &fakeGateway{}, nil, nil)

	_, err := svc.RecallMessage(context.Background(), "d1", "m1")
	if errorx.GetCode(err) != errorx.CodeInvalidState {
		t.Fatalf("expected CodeInvalidState, got %v", err)
	}
}
