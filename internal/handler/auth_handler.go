package handler

import (
	"wechat_bridge_server/internal/config"
	"wechat_bridge_server/internal/dto/request"
	"wechat_bridge_server/internal/dto/respond"
	"wechat_bridge_server/pkg/errorx"
	"wechat_bridge_server/pkg/util/jwt"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

// AuthHandler 管理端认证处理器
// 管理端是单账号，账号密码来自配置文件（密码存 bcrypt 哈希）
type AuthHandler struct {
	cfg *config.AdminConfig
}

// NewAuthHandler 创建认证处理器实例
func NewAuthHandler(cfg *config.AdminConfig) *AuthHandler {
	return &AuthHandler{cfg: cfg}
}

// Login 管理端登录
// POST /auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req request.AdminLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleParamError(c, err)
		return
	}

	if req.Username != h.cfg.Username ||
		bcrypt.CompareHashAndPassword([]byte(h.cfg.PasswordHash), []byte(req.Password)) != nil {
		HandleError(c, errorx.New(errorx.CodeUnauthorized, "用户名或密码错误"))
		return
	}

	accessToken, err := jwt.GenerateAccessToken(req.Username)
	if err != nil {
		HandleError(c, err)
		return
	}
	refreshToken, _, err := jwt.GenerateRefreshToken(req.Username)
	if err != nil {
		HandleError(c, err)
		return
	}

	HandleSuccess(c, respond.TokenRespond{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	})
}

// Refresh 用 Refresh Token 换新的 Access Token
// POST /auth/refresh
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refreshToken" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleParamError(c, err)
		return
	}

	claims, err := jwt.ParseToken(req.RefreshToken)
	if err != nil || claims.Subject != "refresh_token" {
		HandleError(c, errorx.New(errorx.CodeUnauthorized, "Refresh Token 已过期或无效"))
		return
	}

	accessToken, err := jwt.GenerateAccessToken(claims.UserID)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, respond.TokenRespond{AccessToken: accessToken})
}
