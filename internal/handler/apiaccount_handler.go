package handler

import (
	"wechat_bridge_server/internal/dto/request"
	"wechat_bridge_server/internal/dto/respond"
	"wechat_bridge_server/internal/model"
	"wechat_bridge_server/internal/service/apiaccount"

	"github.com/gin-gonic/gin"
)

// ApiAccountHandler 平台凭证处理器
type ApiAccountHandler struct {
	apiAccountSvc *apiaccount.Service
}

// NewApiAccountHandler 创建平台凭证处理器实例
func NewApiAccountHandler(apiAccountSvc *apiaccount.Service) *ApiAccountHandler {
	return &ApiAccountHandler{apiAccountSvc: apiAccountSvc}
}

// Create 创建平台凭证
// POST /api-account/create
func (h *ApiAccountHandler) Create(c *gin.Context) {
	var req request.CreateApiAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	cred, err := h.apiAccountSvc.CreateAccount(req.BaseUrl, req.Username, req.Password, req.Timeout)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, toApiAccountRespond(cred))
}

// List 平台凭证列表
// GET /api-account/list
func (h *ApiAccountHandler) List(c *gin.Context) {
	creds, err := h.apiAccountSvc.ListAccounts()
	if err != nil {
		HandleError(c, err)
		return
	}
	list := make([]respond.ApiAccountRespond, 0, len(creds))
	for i := range creds {
		list = append(list, *toApiAccountRespond(&creds[i]))
	}
	HandleSuccess(c, list)
}

// toApiAccountRespond 密码和 token 不出接口
func toApiAccountRespond(a *model.WeChatApiAccount) *respond.ApiAccountRespond {
	r := &respond.ApiAccountRespond{
		Id:               a.ID,
		BaseUrl:          a.BaseUrl,
		Username:         a.Username,
		ConnectionStatus: a.ConnectionStatus,
		ApiCallCount:     a.ApiCallCount,
	}
	if a.LastApiCallTime.Valid {
		r.LastApiCallTime = a.LastApiCallTime.Time.Format("2006-01-02 15:04:05")
	}
	return r
}
