package httptransport

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailroom/backend/internal/domain"
	"mailroom/backend/internal/monitoring"
	"mailroom/backend/internal/service"
	"mailroom/backend/internal/storage"
)

// NotificationHandler 处理取件通知相关的 HTTP 请求
type NotificationHandler struct {
	notifications *service.NotificationService
	metrics       *monitoring.Metrics
	log           *zap.Logger
}

// NewNotificationHandler 创建通知处理器
func NewNotificationHandler(notifications *service.NotificationService, log *zap.Logger) *NotificationHandler {
	return &NotificationHandler{notifications: notifications, log: log}
}

// SetMetrics 注入指标收集器
func (h *NotificationHandler) SetMetrics(m *monitoring.Metrics) {
	h.metrics = m
}

type notifyRequest struct {
	// ItemIDs 为空时通知该联系人全部待通知邮件
	ItemIDs []string `json:"itemIds"`
}

type notifyResponse struct {
	Items []domain.MailItem `json:"items"`
	Count int               `json:"count"`
}

// Notify godoc
// @Summary 发送取件通知
// @Description 通过已授权的 Gmail 账号向联系人发送取件通知邮件，
// @Description 成功后相关邮件状态流转为已通知。
// @Tags 通知
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "联系人ID"
// @Param request body notifyRequest true "要通知的邮件（可为空）"
// @Success 200 {object} notifyResponse
// @Failure 400 {object} Response "联系人没有邮箱或没有待通知邮件"
// @Failure 404 {object} Response "联系人不存在"
// @Failure 429 {object} Response "通知频率受限"
// @Failure 503 {object} Response "Gmail 未配置或未关联"
// @Router /v1/contacts/{id}/notify [post]
func (h *NotificationHandler) Notify(c *gin.Context) {
	var req notifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	items, err := h.notifications.NotifyContact(c.Param("id"), req.ItemIDs, c.GetString("userID"))
	if err != nil {
		if h.metrics != nil {
			h.metrics.RecordNotificationFailed()
		}
		switch err {
		case storage.ErrContactNotFound:
			NotFound(c, GetErrorMessage(err))
		case service.ErrContactNoEmail, service.ErrNothingToNotify, service.ErrStaffRequired:
			BadRequest(c, GetErrorMessage(err))
		case service.ErrNotifyRateLimited:
			TooManyRequests(c, GetErrorMessage(err))
		case service.ErrGmailNotConfigured, service.ErrGmailNotConnected:
			ServiceUnavailable(c, GetErrorMessage(err))
		default:
			h.log.Error("failed to notify contact", zap.Error(err))
			InternalError(c, MsgNotifyFailed)
		}
		return
	}

	if h.metrics != nil {
		h.metrics.RecordNotificationSent()
	}

	Success(c, notifyResponse{Items: items, Count: len(items)})
}
