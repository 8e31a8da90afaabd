package service

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"mailroom/backend/internal/domain"
	"mailroom/backend/internal/storage"
)

var ErrTodoTitleRequired = errors.New("todo title is required")

// TodoService 封装前台待办业务操作。
type TodoService struct {
	repo   storage.TodoRepository
	logger *zap.Logger
}

// NewTodoService 创建待办业务服务。
func NewTodoService(repo storage.TodoRepository, logger *zap.Logger) *TodoService {
	return &TodoService{repo: repo, logger: logger}
}

// TodoInput 创建/更新待办的输入。
type TodoInput struct {
	Title    string            `json:"title"`
	Notes    string            `json:"notes"`
	Bucket   domain.TodoBucket `json:"bucket"`
	DueDate  *time.Time        `json:"dueDate"`
	Priority bool              `json:"priority"`
	Category string            `json:"category"`
}

// Create 创建待办。
func (s *TodoService) Create(input TodoInput, createdBy string) (*domain.Todo, error) {
	if strings.TrimSpace(input.Title) == "" {
		return nil, ErrTodoTitleRequired
	}
	if createdBy == "" {
		return nil, ErrStaffRequired
	}

	now := time.Now()
	todo := &domain.Todo{
		ID:        uuid.NewString(),
		Title:     strings.TrimSpace(input.Title),
		Notes:     input.Notes,
		Bucket:    input.Bucket,
		DueDate:   input.DueDate,
		Priority:  input.Priority,
		Category:  input.Category,
		CreatedBy: createdBy,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if todo.Bucket == "" {
		todo.Bucket = domain.TodoBucketToday
	}

	if err := s.repo.CreateTodo(todo); err != nil {
		return nil, err
	}
	return todo, nil
}

// List 返回待办列表。
func (s *TodoService) List(includeCompleted bool) ([]domain.Todo, error) {
	return s.repo.ListTodos(includeCompleted)
}

// Update 更新待办内容。
func (s *TodoService) Update(id string, input TodoInput) (*domain.Todo, error) {
	todo, err := s.repo.GetTodo(id)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(input.Title) != "" {
		todo.Title = strings.TrimSpace(input.Title)
	}
	if input.Bucket != "" {
		todo.Bucket = input.Bucket
	}
	todo.Notes = input.Notes
	todo.DueDate = input.DueDate
	todo.Priority = input.Priority
	todo.Category = input.Category
	todo.UpdatedAt = time.Now()

	if err := s.repo.UpdateTodo(todo); err != nil {
		return nil, err
	}
	return todo, nil
}

// Complete 标记待办完成/取消完成。
func (s *TodoService) Complete(id string, completed bool, completedBy string) (*domain.Todo, error) {
	todo, err := s.repo.GetTodo(id)
	if err != nil {
		return nil, err
	}

	todo.Completed = completed
	todo.UpdatedAt = time.Now()
	if completed {
		now := time.Now()
		todo.CompletedAt = &now
		todo.CompletedBy = completedBy
	} else {
		todo.CompletedAt = nil
		todo.CompletedBy = ""
	}

	if err := s.repo.UpdateTodo(todo); err != nil {
		return nil, err
	}
	return todo, nil
}

// Delete 删除待办。
func (s *TodoService) Delete(id string) error {
	return s.repo.DeleteTodo(id)
}
