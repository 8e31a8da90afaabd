package httptransport

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailroom/backend/internal/domain"
	"mailroom/backend/internal/monitoring"
	"mailroom/backend/internal/service"
	"mailroom/backend/internal/storage"
)

// MailItemHandler 处理邮件登记相关的 HTTP 请求
type MailItemHandler struct {
	mailItems *service.MailItemService
	metrics   *monitoring.Metrics
	log       *zap.Logger
}

// NewMailItemHandler 创建邮件登记处理器
func NewMailItemHandler(mailItems *service.MailItemService, log *zap.Logger) *MailItemHandler {
	return &MailItemHandler{mailItems: mailItems, log: log}
}

// SetMetrics 注入指标收集器
func (h *MailItemHandler) SetMetrics(m *monitoring.Metrics) {
	h.metrics = m
}

type updateStatusRequest struct {
	Status domain.MailItemStatus `json:"status" binding:"required"`
	Notes  string                `json:"notes"`
}

type mailItemListResponse struct {
	Items []domain.MailItem `json:"items"`
	Total int               `json:"total"`
}

type historyListResponse struct {
	Items []domain.ActionHistory `json:"items"`
	Count int                    `json:"count"`
}

// Log godoc
// @Summary 登记邮件
// @Description 为联系人登记一件新到的邮件或包裹。短时间内重复登记
// @Description 同类邮件会返回 409，前台确认后携带 force 重新提交。
// @Tags 邮件
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body service.LogMailInput true "登记信息"
// @Success 201 {object} domain.MailItem
// @Failure 400 {object} Response
// @Failure 404 {object} Response "联系人不存在"
// @Failure 409 {object} Response "疑似重复登记"
// @Router /v1/mail-items [post]
func (h *MailItemHandler) Log(c *gin.Context) {
	var input service.LogMailInput
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}
	input.LoggedBy = c.GetString("username")

	item, err := h.mailItems.Log(input)
	if err != nil {
		switch err {
		case storage.ErrContactNotFound:
			NotFound(c, GetErrorMessage(err))
		case service.ErrDuplicateMailItem:
			Conflict(c, GetErrorMessage(err))
		case service.ErrStaffRequired, service.ErrInvalidType:
			BadRequest(c, GetErrorMessage(err))
		default:
			h.log.Error("failed to log mail item", zap.Error(err))
			InternalError(c, MsgMailItemLogFailed)
		}
		return
	}

	if h.metrics != nil {
		h.metrics.RecordMailItemLogged(string(item.Type), "manual")
	}

	Created(c, item)
}

// List godoc
// @Summary 获取邮件列表
// @Tags 邮件
// @Produce json
// @Security BearerAuth
// @Param contactId query string false "按联系人过滤"
// @Param status query string false "按状态过滤"
// @Param type query string false "按类型过滤"
// @Param q query string false "搜索描述或联系人名"
// @Param from query string false "起始时间 (RFC3339)"
// @Param to query string false "结束时间 (RFC3339)"
// @Param page query int false "页码（从 1 开始）"
// @Param pageSize query int false "每页数量"
// @Success 200 {object} mailItemListResponse
// @Failure 400 {object} Response
// @Router /v1/mail-items [get]
func (h *MailItemHandler) List(c *gin.Context) {
	filter, err := parseMailItemFilter(c)
	if err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	items, total, err := h.mailItems.List(filter)
	if err != nil {
		h.log.Error("failed to list mail items", zap.Error(err))
		InternalError(c, MsgMailItemListFailed)
		return
	}

	Success(c, mailItemListResponse{Items: items, Total: total})
}

// Get godoc
// @Summary 获取邮件详情
// @Tags 邮件
// @Produce json
// @Security BearerAuth
// @Param id path string true "邮件ID"
// @Success 200 {object} domain.MailItem
// @Failure 404 {object} Response
// @Router /v1/mail-items/{id} [get]
func (h *MailItemHandler) Get(c *gin.Context) {
	item, err := h.mailItems.Get(c.Param("id"))
	if err != nil {
		if err == storage.ErrMailItemNotFound {
			NotFound(c, GetErrorMessage(err))
			return
		}
		h.log.Error("failed to get mail item", zap.Error(err))
		InternalError(c, MsgInternalError)
		return
	}

	Success(c, item)
}

// Update godoc
// @Summary 编辑邮件记录
// @Description 修改类型、数量或描述，变更写入操作历史
// @Tags 邮件
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "邮件ID"
// @Param request body service.UpdateMailInput true "修改内容"
// @Success 200 {object} domain.MailItem
// @Failure 400 {object} Response
// @Failure 404 {object} Response
// @Router /v1/mail-items/{id} [put]
func (h *MailItemHandler) Update(c *gin.Context) {
	var input service.UpdateMailInput
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}
	input.PerformedBy = c.GetString("username")

	item, err := h.mailItems.Update(c.Param("id"), input)
	if err != nil {
		switch err {
		case storage.ErrMailItemNotFound:
			NotFound(c, GetErrorMessage(err))
		case service.ErrStaffRequired, service.ErrInvalidType, domain.ErrQuantityInvalid:
			BadRequest(c, GetErrorMessage(err))
		default:
			h.log.Error("failed to update mail item", zap.Error(err))
			InternalError(c, MsgMailItemUpdateFailed)
		}
		return
	}

	Success(c, item)
}

// UpdateStatus godoc
// @Summary 更新邮件状态
// @Description 流转邮件状态（已取件、待转寄、无人认领等）
// @Tags 邮件
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "邮件ID"
// @Param request body updateStatusRequest true "新状态"
// @Success 200 {object} domain.MailItem
// @Failure 400 {object} Response
// @Failure 404 {object} Response
// @Router /v1/mail-items/{id}/status [patch]
func (h *MailItemHandler) UpdateStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	item, err := h.mailItems.UpdateStatus(c.Param("id"), req.Status, req.Notes, c.GetString("username"))
	if err != nil {
		switch err {
		case storage.ErrMailItemNotFound:
			NotFound(c, GetErrorMessage(err))
		case service.ErrInvalidStatus, service.ErrStaffRequired:
			BadRequest(c, GetErrorMessage(err))
		default:
			h.log.Error("failed to update mail item status", zap.Error(err))
			InternalError(c, MsgMailItemUpdateFailed)
		}
		return
	}

	if h.metrics != nil && item.Status == domain.MailStatusPickedUp {
		h.metrics.RecordMailItemPickedUp()
	}

	Success(c, item)
}

// Delete godoc
// @Summary 删除邮件记录
// @Description 删除误登记的邮件，删除动作本身写入操作历史
// @Tags 邮件
// @Security BearerAuth
// @Param id path string true "邮件ID"
// @Success 204
// @Failure 404 {object} Response
// @Router /v1/mail-items/{id} [delete]
func (h *MailItemHandler) Delete(c *gin.Context) {
	err := h.mailItems.Delete(c.Param("id"), c.GetString("username"))
	if err != nil {
		switch err {
		case storage.ErrMailItemNotFound:
			NotFound(c, GetErrorMessage(err))
		case service.ErrStaffRequired:
			BadRequest(c, GetErrorMessage(err))
		default:
			h.log.Error("failed to delete mail item", zap.Error(err))
			InternalError(c, MsgMailItemDeleteFailed)
		}
		return
	}
	NoContent(c)
}

// History godoc
// @Summary 获取单件邮件的操作历史
// @Tags 邮件
// @Produce json
// @Security BearerAuth
// @Param id path string true "邮件ID"
// @Success 200 {object} historyListResponse
// @Failure 404 {object} Response
// @Router /v1/mail-items/{id}/history [get]
func (h *MailItemHandler) History(c *gin.Context) {
	entries, err := h.mailItems.History(c.Param("id"))
	if err != nil {
		if err == storage.ErrMailItemNotFound {
			NotFound(c, GetErrorMessage(err))
			return
		}
		h.log.Error("failed to list mail item history", zap.Error(err))
		InternalError(c, MsgHistoryListFailed)
		return
	}

	Success(c, historyListResponse{Items: entries, Count: len(entries)})
}

// RecentActivity godoc
// @Summary 获取最近操作动态
// @Description 返回全站最近的操作历史，用于首页动态流
// @Tags 邮件
// @Produce json
// @Security BearerAuth
// @Param limit query int false "返回条数（默认 20）"
// @Success 200 {object} historyListResponse
// @Router /v1/activity [get]
func (h *MailItemHandler) RecentActivity(c *gin.Context) {
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	entries, err := h.mailItems.RecentActivity(limit)
	if err != nil {
		h.log.Error("failed to list recent activity", zap.Error(err))
		InternalError(c, MsgHistoryListFailed)
		return
	}

	Success(c, historyListResponse{Items: entries, Count: len(entries)})
}

// parseMailItemFilter 从查询参数解析邮件列表过滤条件。
func parseMailItemFilter(c *gin.Context) (domain.MailItemFilter, error) {
	filter := domain.MailItemFilter{
		ContactID: c.Query("contactId"),
		Status:    domain.MailItemStatus(c.Query("status")),
		Type:      domain.MailItemType(c.Query("type")),
		Search:    c.Query("q"),
	}

	if raw := c.Query("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, err
		}
		filter.From = t
	}
	if raw := c.Query("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, err
		}
		filter.To = t
	}
	if raw := c.Query("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return filter, err
		}
		filter.Page = n
	}
	if raw := c.Query("pageSize"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return filter, err
		}
		filter.PageSize = n
	}

	return filter, nil
}
