// Package https_server 提供 HTTP 服务器的初始化和配置
// 负责创建 Gin 引擎实例并配置中间件和路由
package https_server

import (
	"wechat_bridge_server/internal/handler"
	"wechat_bridge_server/internal/infrastructure/logger"
	"wechat_bridge_server/internal/router"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Init 初始化 HTTP 服务器并返回 Gin 引擎实例
// 使用空白引擎以完全控制中间件：zap 日志 + panic 恢复 + CORS
func Init(handlers *handler.Handlers) *gin.Engine {
	engine := gin.New()

	engine.Use(logger.GinLogger())
	engine.Use(logger.GinRecovery(true))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"*"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	engine.Use(cors.New(corsConfig))

	// 回调端点只允许 POST，其他方法回 405 而不是 404
	engine.HandleMethodNotAllowed = true

	rt := router.NewRouter(handlers)
	rt.RegisterRoutes(engine)

	return engine
}
