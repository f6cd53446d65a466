package respond

// SendResult 发送消息的统一返回
type SendResult struct {
	Uuid      int64  `json:"uuid,string"` // 本地消息 ID，雪花算法生成
	MessageId string `json:"messageId"`   // 厂商消息 ID，撤回时使用
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
}

// MessageRespond 消息列表条目
type MessageRespond struct {
	Uuid        int64  `json:"uuid,string"`
	DeviceId    string `json:"deviceId"`
	MessageId   string `json:"messageId"`
	MessageType string `json:"messageType"`
	Direction   string `json:"direction"`
	SenderId    string `json:"senderId"`
	SenderName  string `json:"senderName,omitempty"`
	ReceiverId  string `json:"receiverId,omitempty"`
	GroupId     string `json:"groupId,omitempty"`
	GroupName   string `json:"groupName,omitempty"`
	Content     string `json:"content,omitempty"`
	MediaUrl    string `json:"mediaUrl,omitempty"`
	MessageTime string `json:"messageTime"`
	IsRead      bool   `json:"isRead"`
	IsReplied   bool   `json:"isReplied"`
}

// ContactRespond 联系人条目
type ContactRespond struct {
	DeviceId string `json:"deviceId"`
	WeChatId string `json:"weChatId"`
	Nickname string `json:"nickname"`
	Remark   string `json:"remark,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
}

// GroupRespond 群组条目
type GroupRespond struct {
	DeviceId    string `json:"deviceId"`
	GroupId     string `json:"groupId"`
	GroupName   string `json:"groupName"`
	OwnerWxId   string `json:"ownerWxId,omitempty"`
	MemberCount int    `json:"memberCount"`
	Avatar      string `json:"avatar,omitempty"`
}

// TokenRespond 管理端登录返回
type TokenRespond struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// SyncResult 通讯录/群列表同步结果
type SyncResult struct {
	DeviceId string `json:"deviceId"`
	Total    int    `json:"total"`
	Upserted int    `json:"upserted"`
}
