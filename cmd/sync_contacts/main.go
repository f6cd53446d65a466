// 通讯录同步命令
// 对在线设备全量同步通讯录后退出
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
)

func main() {
	deviceId := flag.String("device", "", "只同步指定设备，留空则同步全部在线设备")
	timeout := flag.Int("timeout", 180, "单设备同步超时（秒）")
	delay := flag.Int("delay", 0, "设备之间的间隔（秒），避免触发厂商限流")
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
		targets, err = dao.Repos.Account.FindByStatus(model.AccountStatusOnline)
		if err != nil {
			fmt.Fprintf(os.Stderr, "list online devices: %v\n", err)
			os.Exit(1)
		}
	}

	failed := 0
	for i := range targets {
		if i > 0 && *delay > 0 {
			time.Sleep(time.Duration(*delay) * time.Second)
		}
		id := targets[i].DeviceId
		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(*timeout)*time.Second)
		result, err := services.Contact.SyncContacts(ctx, id)
		cancel()
		if err != nil {
			failed++
			fmt.Printf("[%d/%d] %s: ERROR %v\n", i+1, len(targets), id, err)
			continue
		}
		fmt.Printf("[%d/%d] %s: %d/%d contacts\n", i+1, len(targets), id, result.Upserted, result.Total)
	}

	if failed > 0 {
		os.Exit(1)
	}
}
