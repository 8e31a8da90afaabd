package httptransport

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailroom/backend/internal/service"
)

// MailLogHandler 处理前台邮件日志视图的 HTTP 请求
type MailLogHandler struct {
	mailLog *service.MailLogService
	log     *zap.Logger
}

// NewMailLogHandler 创建邮件日志处理器
func NewMailLogHandler(mailLog *service.MailLogService, log *zap.Logger) *MailLogHandler {
	return &MailLogHandler{mailLog: mailLog, log: log}
}

type mailLogResponse struct {
	Groups []service.MailLogGroup `json:"groups"`
	Count  int                    `json:"count"`
}

// Groups godoc
// @Summary 获取邮件日志
// @Description 同联系人同日同类型的邮件合并为一行，支持多字段排序
// @Tags 邮件日志
// @Produce json
// @Security BearerAuth
// @Param contactId query string false "按联系人过滤"
// @Param status query string false "按状态过滤"
// @Param type query string false "按类型过滤"
// @Param q query string false "搜索描述或联系人名"
// @Param from query string false "起始时间 (RFC3339)"
// @Param to query string false "结束时间 (RFC3339)"
// @Param sortBy query string false "排序字段：date/status/customer/type/quantity/last_notified"
// @Param descending query boolean false "是否降序"
// @Success 200 {object} mailLogResponse
// @Failure 400 {object} Response
// @Router /v1/mail-log [get]
func (h *MailLogHandler) Groups(c *gin.Context) {
	filter, err := parseMailItemFilter(c)
	if err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	sortBy := c.DefaultQuery("sortBy", service.SortByDate)
	descending := c.DefaultQuery("descending", "true") == "true"

	groups, err := h.mailLog.Groups(filter, sortBy, descending)
	if err != nil {
		h.log.Error("failed to build mail log", zap.Error(err))
		InternalError(c, MsgMailLogFailed)
		return
	}

	Success(c, mailLogResponse{Groups: groups, Count: len(groups)})
}
