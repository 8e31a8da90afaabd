package httptransport

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailroom/backend/internal/domain"
	"mailroom/backend/internal/photostore"
	"mailroom/backend/internal/scan"
	"mailroom/backend/internal/security"
	"mailroom/backend/internal/storage"
)

// ScanHandler 处理扫描录入相关的 HTTP 请求
type ScanHandler struct {
	scans     *scan.Service
	photos    photostore.Store
	validator *security.PhotoValidator
	log       *zap.Logger
}

// NewScanHandler 创建扫描处理器
func NewScanHandler(scans *scan.Service, photos photostore.Store, log *zap.Logger) *ScanHandler {
	return &ScanHandler{
		scans:     scans,
		photos:    photos,
		validator: security.NewPhotoValidator(0),
		log:       log,
	}
}

type scanSessionResponse struct {
	Session *domain.ScanSession `json:"session"`
	Resumed bool                `json:"resumed,omitempty"`
}

type resolveItemRequest struct {
	ContactID string              `json:"contactId" binding:"required"`
	Type      domain.MailItemType `json:"type"`
}

type scanSummaryResponse struct {
	Groups []domain.ScanSummaryGroup `json:"groups"`
}

type submitRequest struct {
	SkipNotification bool `json:"skipNotification"`
}

// Start godoc
// @Summary 开始扫描会话
// @Description 为当前操作员创建扫描会话；已有未过期会话时直接返回原会话
// @Tags 扫描
// @Produce json
// @Security BearerAuth
// @Success 201 {object} scanSessionResponse
// @Router /v1/scan/session [post]
func (h *ScanHandler) Start(c *gin.Context) {
	session, err := h.scans.Start(c.GetString("userID"))
	if err != nil {
		h.log.Error("failed to start scan session", zap.Error(err))
		InternalError(c, MsgScanStartFailed)
		return
	}

	Created(c, scanSessionResponse{Session: session})
}

// Resume godoc
// @Summary 获取当前扫描会话
// @Description 返回进行中的会话；首次恢复带未提交条目时 resumed 为 true，
// @Description 供前端提示"继续上次未完成的批次"。
// @Tags 扫描
// @Produce json
// @Security BearerAuth
// @Success 200 {object} scanSessionResponse
// @Failure 404 {object} Response "没有进行中的会话"
// @Router /v1/scan/session [get]
func (h *ScanHandler) Resume(c *gin.Context) {
	session, resumed, err := h.scans.Resume(c.GetString("userID"))
	if err != nil {
		if errors.Is(err, scan.ErrNoActiveSession) {
			NotFound(c, GetErrorMessage(scan.ErrNoActiveSession))
			return
		}
		h.log.Error("failed to resume scan session", zap.Error(err))
		InternalError(c, MsgInternalError)
		return
	}

	Success(c, scanSessionResponse{Session: session, Resumed: resumed})
}

// Cancel godoc
// @Summary 取消扫描会话
// @Description 丢弃会话中全部条目和照片
// @Tags 扫描
// @Security BearerAuth
// @Success 204
// @Failure 404 {object} Response "没有进行中的会话"
// @Router /v1/scan/session [delete]
func (h *ScanHandler) Cancel(c *gin.Context) {
	if err := h.scans.Cancel(c.Request.Context(), c.GetString("userID")); err != nil {
		if errors.Is(err, scan.ErrNoActiveSession) {
			NotFound(c, GetErrorMessage(scan.ErrNoActiveSession))
			return
		}
		h.log.Error("failed to cancel scan session", zap.Error(err))
		InternalError(c, MsgInternalError)
		return
	}
	NoContent(c)
}

// Capture godoc
// @Summary 扫描单张照片
// @Description 上传一张邮件照片，识别收件人并返回匹配结果
// @Tags 扫描
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param photo formData file true "邮件照片"
// @Success 200 {object} domain.ScannedItem
// @Failure 400 {object} Response
// @Failure 404 {object} Response "没有进行中的会话"
// @Router /v1/scan/capture [post]
func (h *ScanHandler) Capture(c *gin.Context) {
	file, err := c.FormFile("photo")
	if err != nil {
		BadRequest(c, MsgInvalidPhoto)
		return
	}

	data, err := readUpload(file)
	if err != nil {
		BadRequest(c, MsgInvalidPhoto)
		return
	}
	if _, err := h.validator.Validate(data); err != nil {
		BadRequest(c, err.Error())
		return
	}

	item, err := h.scans.Capture(c.Request.Context(), c.GetString("userID"), data)
	if err != nil {
		h.scanError(c, err, MsgScanCaptureFailed)
		return
	}

	Success(c, item)
}

// CaptureBatch godoc
// @Summary 批量扫描照片
// @Description 一次上传多张照片，整批识别后逐条返回结果
// @Tags 扫描
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param photos formData file true "邮件照片（可多张）"
// @Success 200 {object} object{items=[]domain.ScannedItem}
// @Failure 400 {object} Response "批量为空或超出上限"
// @Failure 404 {object} Response "没有进行中的会话"
// @Router /v1/scan/capture/batch [post]
func (h *ScanHandler) CaptureBatch(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		BadRequest(c, MsgInvalidPhoto)
		return
	}

	files := form.File["photos"]
	images := make([][]byte, 0, len(files))
	for _, file := range files {
		data, err := readUpload(file)
		if err != nil {
			BadRequest(c, MsgInvalidPhoto)
			return
		}
		if _, err := h.validator.Validate(data); err != nil {
			BadRequest(c, err.Error())
			return
		}
		images = append(images, data)
	}

	items, err := h.scans.CaptureBatch(c.Request.Context(), c.GetString("userID"), images)
	if err != nil {
		h.scanError(c, err, MsgScanCaptureFailed)
		return
	}

	Success(c, gin.H{"items": items})
}

// Resolve godoc
// @Summary 人工确认扫描条目
// @Description 为识别失败或不确定的条目手动指定联系人
// @Tags 扫描
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param itemId path string true "条目ID"
// @Param request body resolveItemRequest true "指定的联系人和类型"
// @Success 200 {object} domain.ScannedItem
// @Failure 400 {object} Response
// @Failure 404 {object} Response
// @Router /v1/scan/items/{itemId} [patch]
func (h *ScanHandler) Resolve(c *gin.Context) {
	var req resolveItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	item, err := h.scans.Resolve(c.GetString("userID"), c.Param("itemId"), req.ContactID, req.Type)
	if err != nil {
		h.scanError(c, err, MsgInternalError)
		return
	}

	Success(c, item)
}

// RemoveItem godoc
// @Summary 移除扫描条目
// @Description 从会话中删除一条扫描记录及其照片
// @Tags 扫描
// @Security BearerAuth
// @Param itemId path string true "条目ID"
// @Success 204
// @Failure 404 {object} Response
// @Router /v1/scan/items/{itemId} [delete]
func (h *ScanHandler) RemoveItem(c *gin.Context) {
	if err := h.scans.RemoveItem(c.Request.Context(), c.GetString("userID"), c.Param("itemId")); err != nil {
		h.scanError(c, err, MsgInternalError)
		return
	}
	NoContent(c)
}

// Summary godoc
// @Summary 获取批次确认汇总
// @Description 提交前按联系人汇总本批次的信件和包裹数量
// @Tags 扫描
// @Produce json
// @Security BearerAuth
// @Success 200 {object} scanSummaryResponse
// @Failure 400 {object} Response "会话为空"
// @Failure 404 {object} Response "没有进行中的会话"
// @Router /v1/scan/summary [get]
func (h *ScanHandler) Summary(c *gin.Context) {
	groups, err := h.scans.End(c.GetString("userID"))
	if err != nil {
		h.scanError(c, err, MsgInternalError)
		return
	}

	Success(c, scanSummaryResponse{Groups: groups})
}

// Submit godoc
// @Summary 提交扫描批次
// @Description 将已匹配条目批量写入邮件日志，未匹配条目跳过；
// @Description 默认随后发送取件通知，可通过 skipNotification 跳过。
// @Tags 扫描
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body submitRequest false "提交选项"
// @Success 200 {object} scan.SubmitResult
// @Failure 400 {object} Response "没有可提交的条目"
// @Failure 404 {object} Response "没有进行中的会话"
// @Router /v1/scan/submit [post]
func (h *ScanHandler) Submit(c *gin.Context) {
	var req submitRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			BadRequest(c, MsgInvalidRequest)
			return
		}
	}

	result, err := h.scans.Submit(c.Request.Context(), c.GetString("userID"), req.SkipNotification)
	if err != nil {
		h.scanError(c, err, MsgScanSubmitFailed)
		return
	}

	Success(c, result)
}

// Photo godoc
// @Summary 获取扫描照片
// @Description 按存档 key 返回照片原图
// @Tags 扫描
// @Produce image/jpeg
// @Security BearerAuth
// @Param key path string true "照片 key"
// @Success 200 {file} binary
// @Failure 404 {object} Response
// @Router /v1/photos/{key} [get]
func (h *ScanHandler) Photo(c *gin.Context) {
	key := c.Param("key")
	if len(key) > 0 && key[0] == '/' {
		key = key[1:]
	}

	if h.photos == nil {
		NotFound(c, MsgPhotoNotFound)
		return
	}

	data, contentType, err := h.photos.Load(c.Request.Context(), key)
	if err != nil {
		if errors.Is(err, photostore.ErrPhotoNotFound) {
			NotFound(c, MsgPhotoNotFound)
			return
		}
		h.log.Error("failed to load photo", zap.String("key", key), zap.Error(err))
		InternalError(c, MsgInternalError)
		return
	}

	c.Data(http.StatusOK, contentType, data)
}

// scanError 把扫描服务错误映射为 HTTP 响应。
func (h *ScanHandler) scanError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, scan.ErrNoActiveSession):
		NotFound(c, GetErrorMessage(scan.ErrNoActiveSession))
	case errors.Is(err, scan.ErrItemNotFound):
		NotFound(c, GetErrorMessage(scan.ErrItemNotFound))
	case errors.Is(err, storage.ErrContactNotFound):
		NotFound(c, GetErrorMessage(storage.ErrContactNotFound))
	case errors.Is(err, scan.ErrBatchTooLarge):
		BadRequest(c, err.Error())
	case errors.Is(err, scan.ErrEmptyBatch),
		errors.Is(err, scan.ErrSessionEmpty),
		errors.Is(err, scan.ErrNothingToSubmit):
		BadRequest(c, GetErrorMessage(err))
	default:
		h.log.Error("scan operation failed", zap.Error(err))
		InternalError(c, fallback)
	}
}

// readUpload 读取 multipart 上传文件的全部内容。
func readUpload(file *multipart.FileHeader) ([]byte, error) {
	f, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
