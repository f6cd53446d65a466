// Package scheduler 定时巡检设备在线状态并维护平台 token
package scheduler

import (
	"context"
	"sync"
	"time"

	"wechat_bridge_server/internal/config"
	"wechat_bridge_server/internal/model"
	"wechat_bridge_server/internal/service/apiaccount"
	"wechat_bridge_server/internal/service/device"
	"wechat_bridge_server/pkg/constants"

	"github.com/panjf2000/ants/v2"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler 定时任务调度器
// 巡检并发由 ants 池限制，避免一次性打爆厂商接口
type Scheduler struct {
	cfg     *config.SchedulerConfig
	cron    *cron.Cron
	pool    *ants.Pool
	devices *device.SessionManager
	creds   *apiaccount.Service

	mu      sync.Mutex
	lastRun time.Time
}

// New 创建调度器
func New(cfg *config.SchedulerConfig, devices *device.SessionManager, creds *apiaccount.Service) (*Scheduler, error) {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 5
	}
	pool, err := ants.NewPool(concurrency)
	if err != nil {
		return nil, err
	}
	return &Scheduler{
		cfg:     cfg,
		cron:    cron.New(),
		pool:    pool,
		devices: devices,
		creds:   creds,
	}, nil
}

// Start 注册并启动定时任务
func (s *Scheduler) Start() error {
	checkSpec := s.cfg.CheckSpec
	if checkSpec == "" {
		checkSpec = "@every 5m"
	}
	tokenSpec := s.cfg.TokenSpec
	if tokenSpec == "" {
		tokenSpec = "@every 10m"
	}

	if _, err := s.cron.AddFunc(checkSpec, s.checkOnlineStatuses); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(tokenSpec, s.refreshTokens); err != nil {
		return err
	}

	s.cron.Start()
	zap.L().Info("scheduler started",
		zap.String("checkSpec", checkSpec),
		zap.String("tokenSpec", tokenSpec),
		zap.Int("concurrency", s.pool.Cap()))
	return nil
}

// Stop 停止调度并等待运行中的任务结束
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.pool.Release()
	zap.L().Info("scheduler stopped")
}

// checkOnlineStatuses 巡检设备在线状态
// 运行间隔低于阈值可能触发厂商风控，两次巡检之间强制留出最小间隔
func (s *Scheduler) checkOnlineStatuses() {
	s.mu.Lock()
	if time.Since(s.lastRun) < constants.MIN_STATUS_CHECK_INTERVAL {
		s.mu.Unlock()
		zap.L().Warn("status check skipped, interval too short")
		return
	}
	s.lastRun = time.Now()
	s.mu.Unlock()

	accounts, err := s.listTargets()
	if err != nil {
		zap.L().Error("list devices for status check failed", zap.Error(err))
		return
	}
	if len(accounts) == 0 {
		return
	}

	probeTimeout := time.Duration(s.cfg.ProbeTimeout) * time.Second
	if probeTimeout <= 0 {
		probeTimeout = constants.VENDOR_TIMEOUT_GENERIC
	}

	var wg sync.WaitGroup
	for i := range accounts {
		deviceId := accounts[i].DeviceId
		wg.Add(1)
		if err := s.pool.Submit(func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
			defer cancel()
			if _, err := s.devices.ReconcileOnlineStatus(ctx, deviceId); err != nil {
				zap.L().Warn("status check failed",
					zap.String("deviceId", deviceId), zap.Error(err))
			}
		}); err != nil {
			wg.Done()
			zap.L().Warn("submit status check failed",
				zap.String("deviceId", deviceId), zap.Error(err))
		}
	}
	wg.Wait()
	zap.L().Info("status check round finished", zap.Int("devices", len(accounts)))
}

// listTargets 巡检对象：onlyOnline 时只查在线设备，否则含离线和待登录
func (s *Scheduler) listTargets() ([]model.WeChatAccount, error) {
	if s.cfg.OnlyOnline {
		return s.devices.ListDevicesByStatus(model.AccountStatusOnline)
	}

	var all []model.WeChatAccount
	for _, status := range []string{model.AccountStatusOnline, model.AccountStatusOffline, model.AccountStatusPendingLogin} {
		accounts, err := s.devices.ListDevicesByStatus(status)
		if err != nil {
			return nil, err
		}
		all = append(all, accounts...)
	}
	return all, nil
}

// refreshTokens 刷新快过期的平台 token
func (s *Scheduler) refreshTokens() {
	ctx, cancel := context.WithTimeout(context.Background(), constants.VENDOR_TIMEOUT_GENERIC*2)
	defer cancel()
	s.creds.RefreshAllTokens(ctx)
}
