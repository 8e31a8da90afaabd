package service

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mailroom/backend/internal/config"
	"mailroom/backend/internal/domain"
	"mailroom/backend/internal/storage"
	"mailroom/backend/internal/storage/memory"
)

func newMailItemService(t *testing.T) (*MailItemService, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	cfg := &config.Config{
		Mailroom: config.MailroomConfig{DuplicateWindow: 10 * time.Minute},
	}
	return NewMailItemService(store, cfg, zap.NewNop()), store
}

func seedContact(t *testing.T, store *memory.Store, mailbox string) *domain.Contact {
	t.Helper()
	contact := &domain.Contact{
		ID:            uuid.NewString(),
		ContactPerson: "Jane Smith",
		MailboxNumber: mailbox,
		Status:        domain.ContactStatusActive,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	require.NoError(t, store.SaveContact(contact))
	return contact
}

func TestMailItemService_Log(t *testing.T) {
	t.Run("登记成功", func(t *testing.T) {
		svc, store := newMailItemService(t)
		contact := seedContact(t, store, "101")

		item, err := svc.Log(LogMailInput{
			ContactID: contact.ID,
			Type:      domain.MailItemLetter,
			LoggedBy:  "staff",
		})
		require.NoError(t, err)
		assert.Equal(t, domain.MailStatusReceived, item.Status)
		assert.Equal(t, 1, item.Quantity)
		assert.Equal(t, "staff", item.LoggedBy)

		history, err := store.ListHistoryByMailItem(item.ID)
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.Equal(t, domain.ActionCreated, history[0].Action)
		assert.Equal(t, "staff", history[0].PerformedBy)
	})

	t.Run("缺少经办人", func(t *testing.T) {
		svc, store := newMailItemService(t)
		contact := seedContact(t, store, "101")

		_, err := svc.Log(LogMailInput{ContactID: contact.ID, Type: domain.MailItemLetter})
		assert.ErrorIs(t, err, ErrStaffRequired)
	})

	t.Run("非法类型", func(t *testing.T) {
		svc, store := newMailItemService(t)
		contact := seedContact(t, store, "101")

		_, err := svc.Log(LogMailInput{ContactID: contact.ID, Type: "postcard", LoggedBy: "staff"})
		assert.ErrorIs(t, err, ErrInvalidType)
	})

	t.Run("联系人不存在", func(t *testing.T) {
		svc, _ := newMailItemService(t)

		_, err := svc.Log(LogMailInput{ContactID: "no-such-id", Type: domain.MailItemLetter, LoggedBy: "staff"})
		assert.ErrorIs(t, err, storage.ErrContactNotFound)
	})
}

func TestMailItemService_DuplicateDetection(t *testing.T) {
	svc, store := newMailItemService(t)
	contact := seedContact(t, store, "101")

	input := LogMailInput{ContactID: contact.ID, Type: domain.MailItemLetter, LoggedBy: "staff"}
	_, err := svc.Log(input)
	require.NoError(t, err)

	// 时间窗口内同联系人同类型触发重复提示
	_, err = svc.Log(input)
	assert.ErrorIs(t, err, ErrDuplicateMailItem)

	// 不同类型不算重复
	_, err = svc.Log(LogMailInput{ContactID: contact.ID, Type: domain.MailItemPackage, LoggedBy: "staff"})
	require.NoError(t, err)

	// 前台确认后 Force 放行
	input.Force = true
	item, err := svc.Log(input)
	require.NoError(t, err)
	assert.NotEmpty(t, item.ID)
}

func TestMailItemService_Update(t *testing.T) {
	svc, store := newMailItemService(t)
	contact := seedContact(t, store, "101")

	item, err := svc.Log(LogMailInput{ContactID: contact.ID, Type: domain.MailItemLetter, LoggedBy: "staff"})
	require.NoError(t, err)

	updated, err := svc.Update(item.ID, UpdateMailInput{
		Type:        domain.MailItemPackage,
		Quantity:    3,
		PerformedBy: "staff",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.MailItemPackage, updated.Type)
	assert.Equal(t, 3, updated.Quantity)

	history, err := svc.History(item.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, domain.ActionEdited, history[1].Action)
	assert.Equal(t, "letter x1", history[1].OldValue)
	assert.Equal(t, "package x3", history[1].NewValue)

	_, err = svc.Update(item.ID, UpdateMailInput{Type: domain.MailItemLetter})
	assert.ErrorIs(t, err, ErrStaffRequired)
}

func TestMailItemService_UpdateStatus(t *testing.T) {
	svc, store := newMailItemService(t)
	contact := seedContact(t, store, "101")

	item, err := svc.Log(LogMailInput{ContactID: contact.ID, Type: domain.MailItemLetter, LoggedBy: "staff"})
	require.NoError(t, err)

	updated, err := svc.UpdateStatus(item.ID, domain.MailStatusPickedUp, "本人领取", "staff")
	require.NoError(t, err)
	assert.Equal(t, domain.MailStatusPickedUp, updated.Status)

	history, err := svc.History(item.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, domain.ActionStatusChange, history[1].Action)
	assert.Equal(t, "received", history[1].OldValue)
	assert.Equal(t, "picked_up", history[1].NewValue)
	assert.Equal(t, "本人领取", history[1].Notes)

	// 状态不变时不追加历史
	_, err = svc.UpdateStatus(item.ID, domain.MailStatusPickedUp, "", "staff")
	require.NoError(t, err)
	history, err = svc.History(item.ID)
	require.NoError(t, err)
	assert.Len(t, history, 2)

	_, err = svc.UpdateStatus(item.ID, "vanished", "", "staff")
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestMailItemService_MarkNotified(t *testing.T) {
	svc, store := newMailItemService(t)
	contact := seedContact(t, store, "101")

	item, err := svc.Log(LogMailInput{ContactID: contact.ID, Type: domain.MailItemLetter, LoggedBy: "staff"})
	require.NoError(t, err)

	updated, err := svc.MarkNotified(item.ID, "staff")
	require.NoError(t, err)
	assert.Equal(t, domain.MailStatusNotified, updated.Status)
	require.NotNil(t, updated.LastNotifiedAt)

	// 已取件的状态不回退，只刷新通知时间
	_, err = svc.UpdateStatus(item.ID, domain.MailStatusPickedUp, "", "staff")
	require.NoError(t, err)
	updated, err = svc.MarkNotified(item.ID, "staff")
	require.NoError(t, err)
	assert.Equal(t, domain.MailStatusPickedUp, updated.Status)
}

func TestMailItemService_Delete(t *testing.T) {
	svc, store := newMailItemService(t)
	contact := seedContact(t, store, "101")

	item, err := svc.Log(LogMailInput{ContactID: contact.ID, Type: domain.MailItemLetter, LoggedBy: "staff"})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Delete(item.ID, ""), ErrStaffRequired)
	require.NoError(t, svc.Delete(item.ID, "staff"))

	_, err = svc.Get(item.ID)
	assert.ErrorIs(t, err, storage.ErrMailItemNotFound)

	// 删除历史仍可在全局动态里看到
	recent, err := svc.RecentActivity(10)
	require.NoError(t, err)
	var deleted bool
	for _, entry := range recent {
		if entry.Action == domain.ActionDeleted && entry.MailItemID == item.ID {
			deleted = true
		}
	}
	assert.True(t, deleted)
}

func TestMailItemService_RecentActivityLimit(t *testing.T) {
	svc, store := newMailItemService(t)
	contact := seedContact(t, store, "101")

	for i := 0; i < 5; i++ {
		_, err := svc.Log(LogMailInput{
			ContactID: contact.ID,
			Type:      domain.MailItemLetter,
			LoggedBy:  "staff",
			Force:     true,
		})
		require.NoError(t, err)
	}

	recent, err := svc.RecentActivity(3)
	require.NoError(t, err)
	assert.Len(t, recent, 3)
}
