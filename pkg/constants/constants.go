package constants

import "time"

const (
	CHANNEL_SIZE  = 100 // 消息事件通道大小
	REDIS_TIMEOUT = 1   // redis 缓存超时 (分钟)

	// 厂商调用默认超时，可被 vendorConfig 覆盖
	VENDOR_TIMEOUT_GENERIC       = 30 * time.Second  // 普通接口
	VENDOR_TIMEOUT_CONFIRM_LOGIN = 240 * time.Second // 确认登录长轮询（厂商内部窗口约 215s）
	VENDOR_TIMEOUT_RELOGIN       = 180 * time.Second // 二次登录等待用户确认
	VENDOR_TIMEOUT_LIST          = 120 * time.Second // 通讯录/群列表初始化

	// 消息去重 redis key 过期时间
	MESSAGE_DEDUP_TTL = 24 * time.Hour

	// 在线状态巡检的最小间隔，低于该值可能触发厂商风控导致掉线
	MIN_STATUS_CHECK_INTERVAL = 60 * time.Second
)
