package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"wechat_bridge_server/internal/config"
	dao "wechat_bridge_server/internal/dao/mysql"
	myredis "wechat_bridge_server/internal/dao/redis"
	"wechat_bridge_server/internal/handler"
	"wechat_bridge_server/internal/https_server"
	"wechat_bridge_server/internal/infrastructure/logger"
	"wechat_bridge_server/internal/scheduler"
	"wechat_bridge_server/internal/service"
	"wechat_bridge_server/pkg/util/jwt"
	"wechat_bridge_server/pkg/util/snowflake"

	"go.uber.org/zap"
)

func main() {
	// 1. 加载配置
	conf := config.GetConfig()

	// 2. 初始化日志
	if err := logger.Init(&conf.LogConfig, "dev"); err != nil {
		log.Fatalf("init logger failed: %v", err)
	}
	zap.L().Info("日志初始化成功")

	// 3. 初始化数据库
	dao.Init()
	zap.L().Info("数据库初始化成功")

	// 4. 初始化 Redis
	myredis.Init()
	zap.L().Info("Redis 初始化成功")

	// 5. 初始化 JWT 和雪花 ID
	jwt.Init(conf.JWTConfig.Secret, conf.JWTConfig.AccessTokenExpiry, conf.JWTConfig.RefreshTokenExpiry)
	snowflake.Init()

	// 6. 初始化参数校验翻译器
	if err := handler.InitTrans("zh"); err != nil {
		zap.L().Fatal("校验翻译器初始化失败", zap.Error(err))
	}

	// 7. 初始化 Service 层（依赖注入）
	services := service.InitServices(conf, dao.Repos)
	zap.L().Info("Service 层初始化成功")

	// 8. 播种平台凭证
	if err := services.ApiAccount.EnsureSeedCredential(&conf.VendorConfig); err != nil {
		zap.L().Error("平台凭证播种失败", zap.Error(err))
	}

	// 9. 启动定时巡检
	var sched *scheduler.Scheduler
	if conf.SchedulerConfig.Enabled {
		var err error
		sched, err = scheduler.New(&conf.SchedulerConfig, services.Device, services.ApiAccount)
		if err != nil {
			zap.L().Fatal("调度器创建失败", zap.Error(err))
		}
		if err := sched.Start(); err != nil {
			zap.L().Fatal("调度器启动失败", zap.Error(err))
		}
	}

	// 10. 初始化 HTTP 服务器并启动
	handlers := handler.NewHandlers(conf, services)
	engine := https_server.Init(handlers)

	host := conf.MainConfig.Host
	port := conf.MainConfig.Port
	go func() {
		if err := engine.Run(fmt.Sprintf("%s:%d", host, port)); err != nil {
			zap.L().Fatal("server running fault", zap.Error(err))
		}
	}()
	zap.L().Info("服务器启动", zap.String("host", host), zap.Int("port", port))

	// 设置信号监听
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zap.L().Info("关闭服务器...")
	if sched != nil {
		sched.Stop()
	}
	if err := services.Publisher.Close(); err != nil {
		zap.L().Error("关闭事件发布器失败", zap.Error(err))
	}
	zap.L().Info("服务器已关闭")
}
