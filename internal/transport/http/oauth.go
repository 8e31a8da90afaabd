package httptransport

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailroom/backend/internal/service"
)

// OAuthHandler 处理 Gmail 授权相关的 HTTP 请求
type OAuthHandler struct {
	oauth *service.GmailOAuthService
	log   *zap.Logger
}

// NewOAuthHandler 创建授权处理器
func NewOAuthHandler(oauth *service.GmailOAuthService, log *zap.Logger) *OAuthHandler {
	return &OAuthHandler{oauth: oauth, log: log}
}

type oauthCallbackRequest struct {
	State string `json:"state" binding:"required"`
	Code  string `json:"code" binding:"required"`
}

type oauthStatusResponse struct {
	Configured bool   `json:"configured"`
	Connected  bool   `json:"connected"`
	Email      string `json:"email,omitempty"`
}

// AuthURL godoc
// @Summary 获取 Gmail 授权链接
// @Description 生成带一次性 state 的 Google 授权跳转地址
// @Tags Gmail授权
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{url=string}
// @Failure 503 {object} Response "系统未配置 Gmail 授权"
// @Router /v1/oauth/gmail/url [get]
func (h *OAuthHandler) AuthURL(c *gin.Context) {
	url, err := h.oauth.AuthURL(c.GetString("userID"))
	if err != nil {
		if err == service.ErrGmailNotConfigured {
			ServiceUnavailable(c, GetErrorMessage(err))
			return
		}
		h.log.Error("failed to build auth url", zap.Error(err))
		InternalError(c, MsgInternalError)
		return
	}

	Success(c, gin.H{"url": url})
}

// Callback godoc
// @Summary 完成 Gmail 授权
// @Description 前端携带 Google 回调返回的 code 与 state 完成令牌交换
// @Tags Gmail授权
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body oauthCallbackRequest true "授权码"
// @Success 200 {object} oauthStatusResponse
// @Failure 400 {object} Response "state 校验失败"
// @Failure 503 {object} Response "系统未配置 Gmail 授权"
// @Router /v1/oauth/gmail/callback [post]
func (h *OAuthHandler) Callback(c *gin.Context) {
	var req oauthCallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	userID := c.GetString("userID")
	token, err := h.oauth.HandleCallback(c.Request.Context(), userID, req.State, req.Code)
	if err != nil {
		switch err {
		case service.ErrGmailNotConfigured:
			ServiceUnavailable(c, GetErrorMessage(err))
		case service.ErrOAuthStateMismatch:
			BadRequest(c, GetErrorMessage(err))
		default:
			h.log.Error("failed to complete oauth callback", zap.Error(err))
			InternalError(c, "Gmail 授权失败，请重试")
		}
		return
	}

	h.log.Info("gmail account connected",
		zap.String("user_id", userID),
		zap.String("account", token.Email),
	)

	Success(c, oauthStatusResponse{
		Configured: true,
		Connected:  true,
		Email:      token.Email,
	})
}

// Status godoc
// @Summary 查询 Gmail 授权状态
// @Tags Gmail授权
// @Produce json
// @Security BearerAuth
// @Success 200 {object} oauthStatusResponse
// @Router /v1/oauth/gmail/status [get]
func (h *OAuthHandler) Status(c *gin.Context) {
	connected, email := h.oauth.Status(c.GetString("userID"))
	Success(c, oauthStatusResponse{
		Configured: h.oauth.Configured(),
		Connected:  connected,
		Email:      email,
	})
}

// Disconnect godoc
// @Summary 解除 Gmail 授权
// @Description 删除已保存的授权凭证，之后无法发送通知邮件
// @Tags Gmail授权
// @Security BearerAuth
// @Success 204
// @Router /v1/oauth/gmail [delete]
func (h *OAuthHandler) Disconnect(c *gin.Context) {
	if err := h.oauth.Disconnect(c.GetString("userID")); err != nil {
		h.log.Error("failed to disconnect gmail", zap.Error(err))
		InternalError(c, MsgInternalError)
		return
	}
	NoContent(c)
}
