package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mailroom/backend/internal/config"
	"mailroom/backend/internal/domain"
	"mailroom/backend/internal/notify"
	"mailroom/backend/internal/storage"
	"mailroom/backend/internal/storage/memory"
)

func newNotificationService(t *testing.T) (*NotificationService, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	log := zap.NewNop()
	cfg := &config.Config{
		Mailroom: config.MailroomConfig{DuplicateWindow: 10 * time.Minute},
	}
	// 未配置 OAuth 客户端：发送链路在取凭证一步终止
	oauth := NewGmailOAuthService(store, &config.NotifyConfig{}, log)
	mailItems := NewMailItemService(store, cfg, log)
	mailer := notify.NewMailer(&config.NotifyConfig{}, log)
	return NewNotificationService(store, mailer, oauth, mailItems, 5, log), store
}

func seedPendingItem(t *testing.T, store *memory.Store, contactID string) *domain.MailItem {
	t.Helper()
	svc := NewMailItemService(store, &config.Config{
		Mailroom: config.MailroomConfig{DuplicateWindow: time.Minute},
	}, zap.NewNop())
	item, err := svc.Log(LogMailInput{
		ContactID: contactID,
		Type:      domain.MailItemLetter,
		LoggedBy:  "staff",
		Force:     true,
	})
	require.NoError(t, err)
	return item
}

func TestNotificationService_NotifyContact(t *testing.T) {
	t.Run("缺少经办人", func(t *testing.T) {
		svc, _ := newNotificationService(t)

		_, err := svc.NotifyContact("c-1", nil, "")
		assert.ErrorIs(t, err, ErrStaffRequired)
	})

	t.Run("联系人不存在", func(t *testing.T) {
		svc, _ := newNotificationService(t)

		_, err := svc.NotifyContact("no-such-id", nil, "u-1")
		assert.ErrorIs(t, err, storage.ErrContactNotFound)
	})

	t.Run("联系人没有邮箱", func(t *testing.T) {
		svc, store := newNotificationService(t)
		contact := seedContact(t, store, "101")

		_, err := svc.NotifyContact(contact.ID, nil, "u-1")
		assert.ErrorIs(t, err, ErrContactNoEmail)
	})

	t.Run("没有待通知的邮件", func(t *testing.T) {
		svc, store := newNotificationService(t)
		contact := seedContact(t, store, "101")
		contact.Email = "jane@example.com"
		require.NoError(t, store.UpdateContact(contact))

		_, err := svc.NotifyContact(contact.ID, nil, "u-1")
		assert.ErrorIs(t, err, ErrNothingToNotify)
	})

	t.Run("未配置 Gmail 时拒绝发送", func(t *testing.T) {
		svc, store := newNotificationService(t)
		contact := seedContact(t, store, "101")
		contact.Email = "jane@example.com"
		require.NoError(t, store.UpdateContact(contact))
		seedPendingItem(t, store, contact.ID)

		_, err := svc.NotifyContact(contact.ID, nil, "u-1")
		assert.ErrorIs(t, err, ErrGmailNotConfigured)
	})
}

func TestNotificationService_RateLimit(t *testing.T) {
	svc, store := newNotificationService(t)
	contact := seedContact(t, store, "101")
	contact.Email = "jane@example.com"
	require.NoError(t, store.UpdateContact(contact))
	seedPendingItem(t, store, contact.ID)

	// 把该联系人本小时的配额用尽
	for i := 0; i < 5; i++ {
		_, err := store.IncrementRateLimit("notify:"+contact.ID, time.Hour)
		require.NoError(t, err)
	}

	_, err := svc.NotifyContact(contact.ID, nil, "u-1")
	assert.ErrorIs(t, err, ErrNotifyRateLimited)
}

func TestNotificationService_RejectsForeignItems(t *testing.T) {
	svc, store := newNotificationService(t)
	jane := seedContact(t, store, "101")
	jane.Email = "jane@example.com"
	require.NoError(t, store.UpdateContact(jane))

	other := &domain.Contact{
		ID:            "c-other",
		ContactPerson: "Robert Johnson",
		MailboxNumber: "205",
		Status:        domain.ContactStatusActive,
	}
	require.NoError(t, store.SaveContact(other))
	foreign := seedPendingItem(t, store, other.ID)

	// 指定的邮件必须属于被通知的联系人
	_, err := svc.NotifyContact(jane.ID, []string{foreign.ID}, "u-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNothingToNotify)
}
