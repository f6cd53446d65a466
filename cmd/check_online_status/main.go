// 在线状态巡检命令
// 对全部（或指定）设备执行一轮状态校准后退出，供 crontab 或手工排障使用
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"wechat_bridge_server/internal/config"
	dao "wechat_bridge_server/internal/dao/mysql"
	"wechat_bridge_server/internal/infrastructure/logger"
	"wechat_bridge_server/internal/model"
	"wechat_bridge_server/internal/service"

	"go.uber.org/zap"
)

func main() {
	deviceId := flag.String("device", "", "只巡检指定设备，留空则巡检全部")
	onlyOnline := flag.Bool("only-online", false, "只巡检当前标记在线的设备")
	timeout := flag.Int("timeout", 30, "单设备探测超时（秒）")
	flag.Parse()

	conf := config.GetConfig()
	if err := logger.Init(&conf.LogConfig, "release"); err != nil {
		log.Fatalf("init logger failed: %v", err)
	}
	dao.Init()
	services := service.InitServices(conf, dao.Repos)

	var targets []model.WeChatAccount
	if *deviceId != "" {
		account, err := dao.Repos.Account.FindByDeviceId(*deviceId)
		if err != nil {
			fmt.Fprintf(os.Stderr, "device %s: %v\n", *deviceId, err)
			os.Exit(1)
		}
		targets = []model.WeChatAccount{*account}
	} else {
		var err error
		if *onlyOnline {
			targets, err = dao.Repos.Account.FindByStatus(model.AccountStatusOnline)
		} else {
			targets, err = dao.Repos.Account.FindAll()
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "list devices: %v\n", err)
			os.Exit(1)
		}
	}

	failed := 0
	for i := range targets {
		id := targets[i].DeviceId
		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(*timeout)*time.Second)
		status, err := services.Device.ReconcileOnlineStatus(ctx, id)
		cancel()
		if err != nil {
			failed++
			fmt.Printf("[%d/%d] %s: ERROR %v\n", i+1, len(targets), id, err)
			continue
		}
		fmt.Printf("[%d/%d] %s: %s\n", i+1, len(targets), id, status.Status)
	}

	zap.L().Info("status check command finished",
		zap.Int("total", len(targets)), zap.Int("failed", failed))
	if failed > 0 {
		os.Exit(1)
	}
}
