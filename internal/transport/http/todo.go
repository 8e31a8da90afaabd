package httptransport

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailroom/backend/internal/domain"
	"mailroom/backend/internal/service"
	"mailroom/backend/internal/storage"
)

// TodoHandler 处理待办事项相关的 HTTP 请求
type TodoHandler struct {
	todos *service.TodoService
	log   *zap.Logger
}

// NewTodoHandler 创建待办处理器
func NewTodoHandler(todos *service.TodoService, log *zap.Logger) *TodoHandler {
	return &TodoHandler{todos: todos, log: log}
}

type todoListResponse struct {
	Items []domain.Todo `json:"items"`
	Count int           `json:"count"`
}

type completeTodoRequest struct {
	Completed *bool `json:"completed" binding:"required"`
}

// Create godoc
// @Summary 创建待办
// @Tags 待办
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body service.TodoInput true "待办内容"
// @Success 201 {object} domain.Todo
// @Failure 400 {object} Response
// @Router /v1/todos [post]
func (h *TodoHandler) Create(c *gin.Context) {
	var input service.TodoInput
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	todo, err := h.todos.Create(input, c.GetString("username"))
	if err != nil {
		switch err {
		case service.ErrTodoTitleRequired, service.ErrStaffRequired:
			BadRequest(c, GetErrorMessage(err))
		default:
			h.log.Error("failed to create todo", zap.Error(err))
			InternalError(c, MsgTodoCreateFailed)
		}
		return
	}

	Created(c, todo)
}

// List godoc
// @Summary 获取待办列表
// @Description 按日期分桶排序返回，默认不含已完成项
// @Tags 待办
// @Produce json
// @Security BearerAuth
// @Param includeCompleted query boolean false "是否包含已完成待办"
// @Success 200 {object} todoListResponse
// @Router /v1/todos [get]
func (h *TodoHandler) List(c *gin.Context) {
	includeCompleted := c.Query("includeCompleted") == "true"

	todos, err := h.todos.List(includeCompleted)
	if err != nil {
		h.log.Error("failed to list todos", zap.Error(err))
		InternalError(c, MsgTodoListFailed)
		return
	}

	Success(c, todoListResponse{Items: todos, Count: len(todos)})
}

// Update godoc
// @Summary 更新待办
// @Tags 待办
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "待办ID"
// @Param request body service.TodoInput true "待办内容"
// @Success 200 {object} domain.Todo
// @Failure 400 {object} Response
// @Failure 404 {object} Response
// @Router /v1/todos/{id} [put]
func (h *TodoHandler) Update(c *gin.Context) {
	var input service.TodoInput
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	todo, err := h.todos.Update(c.Param("id"), input)
	if err != nil {
		switch err {
		case storage.ErrTodoNotFound:
			NotFound(c, GetErrorMessage(err))
		case service.ErrTodoTitleRequired:
			BadRequest(c, GetErrorMessage(err))
		default:
			h.log.Error("failed to update todo", zap.Error(err))
			InternalError(c, MsgTodoUpdateFailed)
		}
		return
	}

	Success(c, todo)
}

// Complete godoc
// @Summary 完成或撤销完成待办
// @Tags 待办
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "待办ID"
// @Param request body completeTodoRequest true "完成状态"
// @Success 200 {object} domain.Todo
// @Failure 400 {object} Response
// @Failure 404 {object} Response
// @Router /v1/todos/{id}/complete [patch]
func (h *TodoHandler) Complete(c *gin.Context) {
	var req completeTodoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	todo, err := h.todos.Complete(c.Param("id"), *req.Completed, c.GetString("username"))
	if err != nil {
		if err == storage.ErrTodoNotFound {
			NotFound(c, GetErrorMessage(err))
			return
		}
		h.log.Error("failed to complete todo", zap.Error(err))
		InternalError(c, MsgTodoUpdateFailed)
		return
	}

	Success(c, todo)
}

// Delete godoc
// @Summary 删除待办
// @Tags 待办
// @Security BearerAuth
// @Param id path string true "待办ID"
// @Success 204
// @Failure 404 {object} Response
// @Router /v1/todos/{id} [delete]
func (h *TodoHandler) Delete(c *gin.Context) {
	if err := h.todos.Delete(c.Param("id")); err != nil {
		if err == storage.ErrTodoNotFound {
			NotFound(c, GetErrorMessage(err))
			return
		}
		h.log.Error("failed to delete todo", zap.Error(err))
		InternalError(c, MsgTodoDeleteFailed)
		return
	}
	NoContent(c)
}
