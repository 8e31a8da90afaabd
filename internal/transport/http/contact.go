package httptransport

import (
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailroom/backend/internal/domain"
	"mailroom/backend/internal/service"
	"mailroom/backend/internal/storage"
)

// ContactHandler 处理联系人档案相关的 HTTP 请求
type ContactHandler struct {
	contacts *service.ContactService
	log      *zap.Logger
}

// NewContactHandler 创建联系人处理器
func NewContactHandler(contacts *service.ContactService, log *zap.Logger) *ContactHandler {
	return &ContactHandler{contacts: contacts, log: log}
}

type contactListResponse struct {
	Items []domain.Contact `json:"items"`
	Count int              `json:"count"`
}

// Create godoc
// @Summary 新建联系人
// @Description 登记一个新的租户/客户档案
// @Tags 联系人
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body service.ContactInput true "联系人信息"
// @Success 201 {object} domain.Contact
// @Failure 400 {object} Response
// @Failure 409 {object} Response "信箱号已被占用"
// @Router /v1/contacts [post]
func (h *ContactHandler) Create(c *gin.Context) {
	var input service.ContactInput
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	contact, err := h.contacts.Create(input)
	if err != nil {
		switch err {
		case storage.ErrMailboxNumberTaken:
			Conflict(c, GetErrorMessage(err))
		case domain.ErrContactNameRequired, domain.ErrMailboxNumberInvalid, domain.ErrEmailInvalid:
			BadRequest(c, GetErrorMessage(err))
		default:
			h.log.Error("failed to create contact", zap.Error(err))
			InternalError(c, MsgContactCreateFailed)
		}
		return
	}

	Created(c, contact)
}

// List godoc
// @Summary 获取联系人列表
// @Description 返回联系人列表，支持关键词搜索和归档过滤
// @Tags 联系人
// @Produce json
// @Security BearerAuth
// @Param q query string false "按姓名/公司/信箱号搜索"
// @Param includeArchived query boolean false "是否包含已归档联系人"
// @Success 200 {object} contactListResponse
// @Router /v1/contacts [get]
func (h *ContactHandler) List(c *gin.Context) {
	var (
		contacts []domain.Contact
		err      error
	)

	if query := strings.TrimSpace(c.Query("q")); query != "" {
		contacts, err = h.contacts.Search(query)
	} else {
		includeArchived := c.Query("includeArchived") == "true"
		contacts, err = h.contacts.List(includeArchived)
	}
	if err != nil {
		h.log.Error("failed to list contacts", zap.Error(err))
		InternalError(c, MsgContactListFailed)
		return
	}

	Success(c, contactListResponse{Items: contacts, Count: len(contacts)})
}

// Get godoc
// @Summary 获取联系人详情
// @Tags 联系人
// @Produce json
// @Security BearerAuth
// @Param id path string true "联系人ID"
// @Success 200 {object} domain.Contact
// @Failure 404 {object} Response
// @Router /v1/contacts/{id} [get]
func (h *ContactHandler) Get(c *gin.Context) {
	contact, err := h.contacts.Get(c.Param("id"))
	if err != nil {
		if err == storage.ErrContactNotFound {
			NotFound(c, GetErrorMessage(err))
			return
		}
		h.log.Error("failed to get contact", zap.Error(err))
		InternalError(c, MsgInternalError)
		return
	}

	Success(c, contact)
}

// Update godoc
// @Summary 更新联系人
// @Tags 联系人
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "联系人ID"
// @Param request body service.ContactInput true "联系人信息"
// @Success 200 {object} domain.Contact
// @Failure 400 {object} Response
// @Failure 404 {object} Response
// @Failure 409 {object} Response "信箱号已被占用"
// @Router /v1/contacts/{id} [put]
func (h *ContactHandler) Update(c *gin.Context) {
	var input service.ContactInput
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	contact, err := h.contacts.Update(c.Param("id"), input)
	if err != nil {
		switch err {
		case storage.ErrContactNotFound:
			NotFound(c, GetErrorMessage(err))
		case storage.ErrMailboxNumberTaken:
			Conflict(c, GetErrorMessage(err))
		case domain.ErrContactNameRequired, domain.ErrMailboxNumberInvalid, domain.ErrEmailInvalid:
			BadRequest(c, GetErrorMessage(err))
		default:
			h.log.Error("failed to update contact", zap.Error(err))
			InternalError(c, MsgContactUpdateFailed)
		}
		return
	}

	Success(c, contact)
}

// Archive godoc
// @Summary 归档联系人
// @Description 归档后不再出现在扫描匹配名册中，历史邮件记录保留
// @Tags 联系人
// @Security BearerAuth
// @Param id path string true "联系人ID"
// @Success 204
// @Failure 404 {object} Response
// @Router /v1/contacts/{id}/archive [post]
func (h *ContactHandler) Archive(c *gin.Context) {
	if err := h.contacts.Archive(c.Param("id")); err != nil {
		if err == storage.ErrContactNotFound {
			NotFound(c, GetErrorMessage(err))
			return
		}
		h.log.Error("failed to archive contact", zap.Error(err))
		InternalError(c, MsgContactUpdateFailed)
		return
	}
	NoContent(c)
}

// Delete godoc
// @Summary 删除联系人
// @Tags 联系人
// @Security BearerAuth
// @Param id path string true "联系人ID"
// @Success 204
// @Failure 404 {object} Response
// @Router /v1/contacts/{id} [delete]
func (h *ContactHandler) Delete(c *gin.Context) {
	if err := h.contacts.Delete(c.Param("id")); err != nil {
		if err == storage.ErrContactNotFound {
			NotFound(c, GetErrorMessage(err))
			return
		}
		h.log.Error("failed to delete contact", zap.Error(err))
		InternalError(c, MsgContactDeleteFailed)
		return
	}
	NoContent(c)
}
