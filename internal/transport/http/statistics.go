package httptransport

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailroom/backend/internal/storage"
)

// StatisticsHandler 处理统计面板的 HTTP 请求
type StatisticsHandler struct {
	stats storage.StatisticsRepository
	log   *zap.Logger
}

// NewStatisticsHandler 创建统计处理器
func NewStatisticsHandler(stats storage.StatisticsRepository, log *zap.Logger) *StatisticsHandler {
	return &StatisticsHandler{stats: stats, log: log}
}

// Get godoc
// @Summary 获取系统统计
// @Description 返回联系人、邮件、待办的汇总指标（经理及以上）
// @Tags 统计
// @Produce json
// @Security BearerAuth
// @Success 200 {object} domain.MailroomStatistics
// @Failure 403 {object} Response "权限不足"
// @Router /v1/statistics [get]
func (h *StatisticsHandler) Get(c *gin.Context) {
	stats, err := h.stats.GetStatistics()
	if err != nil {
		h.log.Error("failed to collect statistics", zap.Error(err))
		InternalError(c, MsgStatisticsGetFailed)
		return
	}

	Success(c, stats)
}
