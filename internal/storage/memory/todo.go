package memory

import (
	"sort"

	"mailroom/backend/internal/domain"
	"mailroom/backend/internal/storage"
)

// CreateTodo 创建待办。
func (s *Store) CreateTodo(todo *domain.Todo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := *todo
	s.todos[todo.ID] = &t
	return nil
}

// GetTodo 根据 ID 获取待办。
func (s *Store) GetTodo(id string) (*domain.Todo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	todo, ok := s.todos[id]
	if !ok {
		return nil, storage.ErrTodoNotFound
	}
	t := *todo
	return &t, nil
}

// ListTodos 返回待办列表，按创建时间正序。
func (s *Store) ListTodos(includeCompleted bool) ([]domain.Todo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	todos := make([]domain.Todo, 0, len(s.todos))
	for _, t := range s.todos {
		if !includeCompleted && t.Completed {
			continue
		}
		todos = append(todos, *t)
	}
	sort.Slice(todos, func(i, j int) bool {
		return todos[i].CreatedAt.Before(todos[j].CreatedAt)
	})
	return todos, nil
}

// UpdateTodo 更新待办。
func (s *Store) UpdateTodo(todo *domain.Todo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.todos[todo.ID]; !ok {
		return storage.ErrTodoNotFound
	}
	t := *todo
	s.todos[todo.ID] = &t
	return nil
}

// DeleteTodo 删除待办。
func (s *Store) DeleteTodo(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.todos[id]; !ok {
		return storage.ErrTodoNotFound
	}
	delete(s.todos, id)
	return nil
}
