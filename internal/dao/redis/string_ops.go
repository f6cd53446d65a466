// Package redis 提供 Redis 缓存操作的封装
// 本文件包含 String 类型的基础操作
package redis

import (
	"context"
	"errors"
	"time"

	"wechat_bridge_server/pkg/errorx"

	"github.com/redis/go-redis/v9"
)

// SetKeyEx 设置键值对并指定过期时间
func SetKeyEx(ctx context.Context, key string, value string, timeout time.Duration) error {
	if err := redisClient.Set(ctx, key, value, timeout).Err(); err != nil {
		return errorx.Wrapf(err, errorx.CodeCacheError, "redis set key %s", key)
	}
	return nil
}

// GetKey 获取键对应的值
// 如果键不存在，返回空字符串和 nil（不视为错误）
func GetKey(ctx context.Context, key string) (string, error) {
	value, err := redisClient.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", errorx.Wrapf(err, errorx.CodeCacheError, "redis get key %s", key)
	}
	return value, nil
}

// DelKey 删除键
func DelKey(ctx context.Context, key string) error {
	if err := redisClient.Del(ctx, key).Err(); err != nil {
		return errorx.Wrapf(err, errorx.CodeCacheError, "redis del key %s", key)
	}
	return nil
}

// Adapter 把包级操作适配成 Service 层依赖的缓存接口
// Service 层通过接口依赖缓存，单元测试可以不启动 Redis
type Adapter struct{}

// Get 实现 service.Cache
func (Adapter) Get(ctx context.Context, key string) (string, error) {
	return GetKey(ctx, key)
}

// SetEx 实现 service.Cache
func (Adapter) SetEx(ctx context.Context, key, value string, ttl time.Duration) error {
	return SetKeyEx(ctx, key, value, ttl)
}

// Submit 实现 service.Cache，异步任务入队
func (Adapter) Submit(action func()) {
	SubmitCacheTask(action)
}
