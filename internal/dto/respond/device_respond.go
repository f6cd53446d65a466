// Package respond 定义服务层返回给管理端的响应结构
package respond

// LoginResult 登录流程各步骤的统一返回
type LoginResult struct {
	QrCodeUrl string `json:"qrCodeUrl,omitempty"` // 获取二维码步骤返回
	Success   bool   `json:"success"`             // 是否已登录成功
	Message   string `json:"message,omitempty"`   // 进度说明，如 "等待扫码登录"
	Error     string `json:"error,omitempty"`
}

// DeviceStatus 设备在线状态
type DeviceStatus struct {
	DeviceId       string `json:"deviceId"`
	IsOnline       bool   `json:"isOnline"`
	Status         string `json:"status"`
	LastActiveTime string `json:"lastActiveTime,omitempty"`
	Error          string `json:"error,omitempty"`
}

// ApiAccountRespond 平台凭证详情，密码和 token 不下发
type ApiAccountRespond struct {
	Id               uint   `json:"id"`
	BaseUrl          string `json:"baseUrl"`
	Username         string `json:"username"`
	ConnectionStatus string `json:"connectionStatus"`
	ApiCallCount     int64  `json:"apiCallCount"`
	LastApiCallTime  string `json:"lastApiCallTime,omitempty"`
}

// AccountRespond 设备账号详情
type AccountRespond struct {
	DeviceId       string `json:"deviceId"`
	WeChatId       string `json:"weChatId"`
	Nickname       string `json:"nickname"`
	Avatar         string `json:"avatar"`
	Status         string `json:"status"`
	QrCodeUrl      string `json:"qrCodeUrl,omitempty"`
	Proxy          string `json:"proxy,omitempty"`
	LastLoginTime  string `json:"lastLoginTime,omitempty"`
	LastActiveTime string `json:"lastActiveTime,omitempty"`
}
