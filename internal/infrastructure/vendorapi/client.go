package vendorapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"wechat_bridge_server/internal/config"
	"wechat_bridge_server/internal/model"
	"wechat_bridge_server/pkg/constants"
)

// 厂商端点路径
// 路径随厂商协议版本一起变化，集中在此处维护
const (
	pathPlatformLogin  = "/api/platform/login"
	pathCreateDevice   = "/api/device/create"
	pathLoginQRCode    = "/api/login/qrcode"
	pathConfirmLogin   = "/api/login/confirm"
	pathConfirmShort   = "/api/login/confirm-short"
	pathVerifyCode     = "/api/login/verify-code"
	pathReLogin        = "/api/login/relogin"
	pathLogout         = "/api/device/logout"
	pathOnlineStatus   = "/api/device/status"
	pathSendMessage    = "/api/message/send/"
	pathRecallMessage  = "/api/message/recall"
	pathContactList    = "/api/contact/list"
	pathGroupList      = "/api/group/list"
)

// envelope 厂商统一响应包
type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// Client 厂商网关 HTTP 客户端
// 底层 http.Client 不设全局超时，每个操作通过 context 携带各自的超时
type Client struct {
	httpClient *http.Client
	recorder   CallRecorder

	genericTimeout      time.Duration
	confirmLoginTimeout time.Duration
	reLoginTimeout      time.Duration
	listTimeout         time.Duration
}

var _ Gateway = (*Client)(nil)

// NewClient 按配置创建厂商客户端
// recorder 可为 nil（不计数），正常部署由平台凭证服务注入
func NewClient(cfg *config.VendorConfig, recorder CallRecorder) *Client {
	c := &Client{
		httpClient:          &http.Client{},
		recorder:            recorder,
		genericTimeout:      constants.VENDOR_TIMEOUT_GENERIC,
		confirmLoginTimeout: constants.VENDOR_TIMEOUT_CONFIRM_LOGIN,
		reLoginTimeout:      constants.VENDOR_TIMEOUT_RELOGIN,
		listTimeout:         constants.VENDOR_TIMEOUT_LIST,
	}
	if cfg != nil {
		if cfg.Timeout > 0 {
			c.genericTimeout = time.Duration(cfg.Timeout) * time.Second
		}
		if cfg.ConfirmLoginTimeout > 0 {
			c.confirmLoginTimeout = time.Duration(cfg.ConfirmLoginTimeout) * time.Second
		}
		if cfg.ReLoginTimeout > 0 {
			c.reLoginTimeout = time.Duration(cfg.ReLoginTimeout) * time.Second
		}
		if cfg.ListTimeout > 0 {
			c.listTimeout = time.Duration(cfg.ListTimeout) * time.Second
		}
	}
	return c
}

// IsTimeout 判断是否为超时类传输错误
// 确认登录长轮询超时是正常的"仍在等待"，不作为硬失败
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// call 执行一次 JSON POST 并解包厂商响应
// 每次调用（无论成败）都触发计数钩子
func (c *Client) call(ctx context.Context, cred *model.WeChatApiAccount, timeout time.Duration, path string, body any) (*envelope, error) {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(cctx, http.MethodPost, cred.BaseUrl+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if cred.AccessToken != "" {
		req.Header.Set("Authorization", cred.AccessToken)
	}

	resp, err := c.httpClient.Do(req)
	if c.recorder != nil {
		c.recorder.RecordCall(cred.ID)
	}
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("vendor gateway http %d: %s", resp.StatusCode, string(raw))
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode vendor response: %w", err)
	}
	return &env, nil
}

// PlatformLogin 平台级登录
// 唯一使用表单编码且不带 Authorization 的端点
func (c *Client) PlatformLogin(ctx context.Context, cred *model.WeChatApiAccount) (*TokenData, error) {
	cctx, cancel := context.WithTimeout(ctx, c.genericTimeout)
	defer cancel()

	password, err := cred.PlainPassword()
	if err != nil {
		return nil, fmt.Errorf("decrypt credential password: %w", err)
	}

	form := url.Values{}
	form.Set("username", cred.Username)
	form.Set("password", password)

	req, err := http.NewRequestWithContext(cctx, http.MethodPost, cred.BaseUrl+pathPlatformLogin,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if c.recorder != nil {
		c.recorder.RecordCall(cred.ID)
	}
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode vendor response: %w", err)
	}
	if env.Code != CodeSuccess {
		return nil, &APIError{Code: env.Code, Msg: env.Msg}
	}

	var data TokenData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// CreateDevice 在厂商侧注册设备
func (c *Client) CreateDevice(ctx context.Context, cred *model.WeChatApiAccount, deviceId string) error {
	env, err := c.call(ctx, cred, c.genericTimeout, pathCreateDevice, map[string]string{"deviceId": deviceId})
	if err != nil {
		return err
	}
	if env.Code != CodeSuccess {
		return &APIError{Code: env.Code, Msg: env.Msg}
	}
	return nil
}

// GetLoginQRCode 获取登录二维码
func (c *Client) GetLoginQRCode(ctx context.Context, cred *model.WeChatApiAccount, deviceId, province, city, proxy string) (*QRCodeData, error) {
	env, err := c.call(ctx, cred, c.genericTimeout, pathLoginQRCode, map[string]string{
		"deviceId": deviceId,
		"province": province,
		"city":     city,
		"proxy":    proxy,
	})
	if err != nil {
		return nil, err
	}
	if env.Code != CodeSuccess {
		return nil, &APIError{Code: env.Code, Msg: env.Msg}
	}

	var data QRCodeData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// decodeLogin 将确认登录类响应解释为 LoginData
func decodeLogin(env *envelope) (*LoginData, error) {
	switch env.Code {
	case CodeSuccess:
		data := &LoginData{LoggedIn: true}
		if len(env.Data) > 0 {
			if err := json.Unmarshal(env.Data, data); err != nil {
				return nil, err
			}
		}
		data.LoggedIn = true
		return data, nil
	case CodePending:
		return &LoginData{Pending: true}, nil
	case CodeNeedVerifyCode:
		return &LoginData{NeedVerifyCode: true}, nil
	}
	return nil, &APIError{Code: env.Code, Msg: env.Msg}
}

// ConfirmLogin 确认登录（长轮询）
func (c *Client) ConfirmLogin(ctx context.Context, cred *model.WeChatApiAccount, deviceId string) (*LoginData, error) {
	env, err := c.call(ctx, cred, c.confirmLoginTimeout, pathConfirmLogin, map[string]string{"deviceId": deviceId})
	if err != nil {
		return nil, err
	}
	return decodeLogin(env)
}

// ConfirmLoginShort 确认登录（短轮询）
func (c *Client) ConfirmLoginShort(ctx context.Context, cred *model.WeChatApiAccount, deviceId string) (*LoginData, error) {
	env, err := c.call(ctx, cred, c.genericTimeout, pathConfirmShort, map[string]string{"deviceId": deviceId})
	if err != nil {
		return nil, err
	}
	return decodeLogin(env)
}

// InputVerificationCode 输入登录验证码
func (c *Client) InputVerificationCode(ctx context.Context, cred *model.WeChatApiAccount, deviceId, code string) error {
	env, err := c.call(ctx, cred, c.genericTimeout, pathVerifyCode, map[string]string{
		"deviceId": deviceId,
		"code":     code,
	})
	if err != nil {
		return err
	}
	if env.Code != CodeSuccess {
		return &APIError{Code: env.Code, Msg: env.Msg}
	}
	return nil
}

// ReLogin 二次登录
func (c *Client) ReLogin(ctx context.Context, cred *model.WeChatApiAccount, deviceId string) (*LoginData, error) {
	env, err := c.call(ctx, cred, c.reLoginTimeout, pathReLogin, map[string]string{"deviceId": deviceId})
	if err != nil {
		return nil, err
	}
	return decodeLogin(env)
}

// Logout 登出设备
func (c *Client) Logout(ctx context.Context, cred *model.WeChatApiAccount, deviceId string) error {
	env, err := c.call(ctx, cred, c.genericTimeout, pathLogout, map[string]string{"deviceId": deviceId})
	if err != nil {
		return err
	}
	if env.Code != CodeSuccess {
		return &APIError{Code: env.Code, Msg: env.Msg}
	}
	return nil
}

// CheckOnlineStatus 探测设备在线状态
// 业务性状态码（包括离线）不作为错误返回，由调用方解释
func (c *Client) CheckOnlineStatus(ctx context.Context, cred *model.WeChatApiAccount, deviceId string) (*StatusData, error) {
	env, err := c.call(ctx, cred, c.genericTimeout, pathOnlineStatus, map[string]string{"deviceId": deviceId})
	if err != nil {
		return nil, err
	}
	return &StatusData{Code: env.Code, Online: env.Code == CodeSuccess}, nil
}

// SendMessage 发送消息，按消息类型路由到对应端点
func (c *Client) SendMessage(ctx context.Context, cred *model.WeChatApiAccount, req *SendMessageRequest) (*SendData, error) {
	body := map[string]any{
		"deviceId": req.DeviceId,
		"target":   req.Target,
	}
	switch req.Type {
	case model.MessageTypeText:
		body["content"] = req.Content
	case model.MessageTypeImage, model.MessageTypeVoice, model.MessageTypeVideo, model.MessageTypeFile:
		body["url"] = req.MediaUrl
		body["fileName"] = req.MediaFileName
	case model.MessageTypeLink:
		body["title"] = req.Title
		body["description"] = req.Description
		body["url"] = req.MediaUrl
		body["thumbUrl"] = req.ThumbUrl
	case model.MessageTypeCard:
		body["cardWxId"] = req.CardWxId
	default:
		return nil, fmt.Errorf("unsupported message type %q", req.Type)
	}

	env, err := c.call(ctx, cred, c.genericTimeout, pathSendMessage+req.Type, body)
	if err != nil {
		return nil, err
	}
	if env.Code != CodeSuccess {
		return nil, &APIError{Code: env.Code, Msg: env.Msg}
	}

	var data SendData
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return nil, err
		}
	}
	return &data, nil
}

// RecallMessage 撤回消息
func (c *Client) RecallMessage(ctx context.Context, cred *model.WeChatApiAccount, req *RecallMessageRequest) error {
	env, err := c.call(ctx, cred, c.genericTimeout, pathRecallMessage, map[string]any{
		"deviceId":   req.DeviceId,
		"msgId":      req.MsgId,
		"newMsgId":   req.NewMsgId,
		"createTime": req.CreateTime,
	})
	if err != nil {
		return err
	}
	if env.Code != CodeSuccess {
		return &APIError{Code: env.Code, Msg: env.Msg}
	}
	return nil
}

// GetContactList 拉取通讯录，初始化可能耗时数十秒
func (c *Client) GetContactList(ctx context.Context, cred *model.WeChatApiAccount, deviceId string) ([]ContactData, error) {
	env, err := c.call(ctx, cred, c.listTimeout, pathContactList, map[string]string{"deviceId": deviceId})
	if err != nil {
		return nil, err
	}
	if env.Code != CodeSuccess {
		return nil, &APIError{Code: env.Code, Msg: env.Msg}
	}

	var data []ContactData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, err
	}
	return data, nil
}

// GetGroupList 拉取群列表
func (c *Client) GetGroupList(ctx context.Context, cred *model.WeChatApiAccount, deviceId string) ([]GroupData, error) {
	env, err := c.call(ctx, cred, c.listTimeout, pathGroupList, map[string]string{"deviceId": deviceId})
	if err != nil {
		return nil, err
	}
	if env.Code != CodeSuccess {
		return nil, &APIError{Code: env.Code, Msg: env.Msg}
	}

	var data []GroupData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, err
	}
	return data, nil
}
