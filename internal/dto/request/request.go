// Package request 定义管理端请求参数结构
// binding 标签由 gin + validator 驱动，校验失败统一返回参数错误
package request

// CreateDeviceRequest 创建设备
type CreateDeviceRequest struct {
	ApiAccountId uint   `json:"apiAccountId"`
	Proxy        string `json:"proxy"`
}

// DeviceRequest 仅携带设备 ID 的通用请求
type DeviceRequest struct {
	DeviceId string `json:"deviceId" binding:"required,len=32"`
}

// StartLoginRequest 发起扫码登录
type StartLoginRequest struct {
	DeviceId string `json:"deviceId" binding:"required,len=32"`
	Province string `json:"province"`
	City     string `json:"city"`
	Proxy    string `json:"proxy"`
}

// InputCodeRequest 输入登录验证码
type InputCodeRequest struct {
	DeviceId string `json:"deviceId" binding:"required,len=32"`
	Code     string `json:"code" binding:"required"`
}

// SendMessageRequest 发送消息
// receiverId 和 groupId 二选一，由服务层校验
type SendMessageRequest struct {
	DeviceId   string `json:"deviceId" binding:"required,len=32"`
	ReceiverId string `json:"receiverId"`
	GroupId    string `json:"groupId"`

	Content       string `json:"content"`
	MediaUrl      string `json:"mediaUrl"`
	MediaFileName string `json:"mediaFileName"`
	Title         string `json:"title"`
	Description   string `json:"description"`
	ThumbUrl      string `json:"thumbUrl"`
	CardWxId      string `json:"cardWxId"`
}

// RecallMessageRequest 撤回消息
type RecallMessageRequest struct {
	DeviceId  string `json:"deviceId" binding:"required,len=32"`
	MessageId string `json:"messageId" binding:"required"`
}

// MessageListRequest 消息列表查询
type MessageListRequest struct {
	DeviceId string `json:"deviceId" binding:"required,len=32"`
	Limit    int    `json:"limit" binding:"omitempty,min=1,max=200"`
	Offset   int    `json:"offset" binding:"omitempty,min=0"`
}

// AdminLoginRequest 管理端登录
type AdminLoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// CreateApiAccountRequest 创建平台凭证
type CreateApiAccountRequest struct {
	BaseUrl  string `json:"baseUrl" binding:"required,url"`
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	Timeout  int    `json:"timeout" binding:"omitempty,min=1,max=600"`
}
