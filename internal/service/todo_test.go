package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mailroom/backend/internal/domain"
	"mailroom/backend/internal/storage"
	"mailroom/backend/internal/storage/memory"
)

func newTodoService(t *testing.T) *TodoService {
	t.Helper()
	return NewTodoService(memory.NewStore(), zap.NewNop())
}

func TestTodoService_Create(t *testing.T) {
	t.Run("创建成功并默认今日清单", func(t *testing.T) {
		svc := newTodoService(t)

		todo, err := svc.Create(TodoInput{Title: "  给 101 信箱补登包裹  "}, "staff")
		require.NoError(t, err)
		assert.Equal(t, "给 101 信箱补登包裹", todo.Title)
		assert.Equal(t, domain.TodoBucketToday, todo.Bucket)
		assert.Equal(t, "staff", todo.CreatedBy)
		assert.False(t, todo.Completed)
	})

	t.Run("缺少标题", func(t *testing.T) {
		svc := newTodoService(t)

		_, err := svc.Create(TodoInput{Title: "   "}, "staff")
		assert.ErrorIs(t, err, ErrTodoTitleRequired)
	})

	t.Run("缺少经办人", func(t *testing.T) {
		svc := newTodoService(t)

		_, err := svc.Create(TodoInput{Title: "x"}, "")
		assert.ErrorIs(t, err, ErrStaffRequired)
	})
}

func TestTodoService_Complete(t *testing.T) {
	svc := newTodoService(t)

	todo, err := svc.Create(TodoInput{Title: "整理前台"}, "staff")
	require.NoError(t, err)

	done, err := svc.Complete(todo.ID, true, "manager")
	require.NoError(t, err)
	assert.True(t, done.Completed)
	assert.Equal(t, "manager", done.CompletedBy)
	require.NotNil(t, done.CompletedAt)

	// 取消完成清空完成标记
	undone, err := svc.Complete(todo.ID, false, "")
	require.NoError(t, err)
	assert.False(t, undone.Completed)
	assert.Nil(t, undone.CompletedAt)
	assert.Empty(t, undone.CompletedBy)

	_, err = svc.Complete("no-such-id", true, "staff")
	assert.ErrorIs(t, err, storage.ErrTodoNotFound)
}

func TestTodoService_ListHidesCompletedByDefault(t *testing.T) {
	svc := newTodoService(t)

	first, err := svc.Create(TodoInput{Title: "a"}, "staff")
	require.NoError(t, err)
	_, err = svc.Create(TodoInput{Title: "b"}, "staff")
	require.NoError(t, err)
	_, err = svc.Complete(first.ID, true, "staff")
	require.NoError(t, err)

	open, err := svc.List(false)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "b", open[0].Title)

	all, err := svc.List(true)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestTodoService_Update(t *testing.T) {
	svc := newTodoService(t)

	todo, err := svc.Create(TodoInput{Title: "旧标题", Notes: "旧备注"}, "staff")
	require.NoError(t, err)

	updated, err := svc.Update(todo.ID, TodoInput{
		Title:    "新标题",
		Bucket:   domain.TodoBucketLater,
		Priority: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "新标题", updated.Title)
	assert.Equal(t, domain.TodoBucketLater, updated.Bucket)
	assert.True(t, updated.Priority)
	// 未填写的备注被清空，编辑表单整体覆盖
	assert.Empty(t, updated.Notes)

	// 空标题沿用原标题
	kept, err := svc.Update(todo.ID, TodoInput{Title: "  "})
	require.NoError(t, err)
	assert.Equal(t, "新标题", kept.Title)
}
