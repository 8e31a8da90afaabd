package service

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mailroom/backend/internal/domain"
	"mailroom/backend/internal/storage/memory"
)

func newMailLogService(t *testing.T, loc *time.Location) (*MailLogService, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	return NewMailLogService(store, loc, zap.NewNop()), store
}

func seedMailItem(t *testing.T, store *memory.Store, contactID string, itemType domain.MailItemType, status domain.MailItemStatus, receivedAt time.Time) *domain.MailItem {
	t.Helper()
	item := &domain.MailItem{
		ID:         uuid.NewString(),
		ContactID:  contactID,
		Type:       itemType,
		Quantity:   1,
		Status:     status,
		ReceivedAt: receivedAt,
		LoggedBy:   "staff",
		CreatedAt:  receivedAt,
		UpdatedAt:  receivedAt,
	}
	require.NoError(t, store.CreateMailItem(item))
	return item
}

func TestMailLogService_GroupsByContactDayType(t *testing.T) {
	svc, store := newMailLogService(t, time.UTC)
	contact := seedContact(t, store, "101")

	day := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	seedMailItem(t, store, contact.ID, domain.MailItemLetter, domain.MailStatusReceived, day)
	seedMailItem(t, store, contact.ID, domain.MailItemLetter, domain.MailStatusReceived, day.Add(2*time.Hour))
	// 不同类型单独成行
	seedMailItem(t, store, contact.ID, domain.MailItemPackage, domain.MailStatusReceived, day)
	// 不同日期单独成行
	seedMailItem(t, store, contact.ID, domain.MailItemLetter, domain.MailStatusReceived, day.AddDate(0, 0, 1))

	groups, err := svc.Groups(domain.MailItemFilter{}, SortByDate, false)
	require.NoError(t, err)
	require.Len(t, groups, 3)

	var letters *MailLogGroup
	for i := range groups {
		if groups[i].Type == domain.MailItemLetter && groups[i].Date == "2025-03-10" {
			letters = &groups[i]
		}
	}
	require.NotNil(t, letters)
	assert.Equal(t, 2, letters.Quantity)
	assert.Len(t, letters.ItemIDs, 2)
	assert.Equal(t, "Jane Smith", letters.ContactName)
	assert.Equal(t, "received", letters.DisplayStatus)
}

func TestMailLogService_MixedStatus(t *testing.T) {
	svc, store := newMailLogService(t, time.UTC)
	contact := seedContact(t, store, "101")

	day := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	seedMailItem(t, store, contact.ID, domain.MailItemLetter, domain.MailStatusReceived, day)
	seedMailItem(t, store, contact.ID, domain.MailItemLetter, domain.MailStatusPickedUp, day.Add(time.Hour))

	groups, err := svc.Groups(domain.MailItemFilter{}, SortByDate, false)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	// 列表按收件时间倒序，状态合并顺序随之固定
	assert.Equal(t, "Mixed (picked_up/received)", groups[0].DisplayStatus)
}

func TestMailLogService_DayBoundaryFollowsTimezone(t *testing.T) {
	// UTC 3 月 11 日凌晨 2 点在 UTC-5 还是 3 月 10 日晚上
	loc := time.FixedZone("UTC-5", -5*3600)
	svc, store := newMailLogService(t, loc)
	contact := seedContact(t, store, "101")

	seedMailItem(t, store, contact.ID, domain.MailItemLetter, domain.MailStatusReceived,
		time.Date(2025, 3, 10, 22, 0, 0, 0, time.UTC))
	seedMailItem(t, store, contact.ID, domain.MailItemLetter, domain.MailStatusReceived,
		time.Date(2025, 3, 11, 2, 0, 0, 0, time.UTC))

	groups, err := svc.Groups(domain.MailItemFilter{}, SortByDate, false)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "2025-03-10", groups[0].Date)
	assert.Equal(t, 2, groups[0].Quantity)
}

func TestMailLogService_ContactFallsBackToID(t *testing.T) {
	svc, store := newMailLogService(t, time.UTC)

	// 联系人已被删除，只剩历史邮件
	seedMailItem(t, store, "ghost-contact", domain.MailItemLetter, domain.MailStatusReceived,
		time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))

	groups, err := svc.Groups(domain.MailItemFilter{}, SortByDate, false)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "ghost-contact", groups[0].ContactName)
}

func TestMailLogService_Sort(t *testing.T) {
	svc, store := newMailLogService(t, time.UTC)
	contact := seedContact(t, store, "101")

	day1 := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)
	day3 := day1.AddDate(0, 0, 2)

	notified := day2.Add(time.Hour)
	a := seedMailItem(t, store, contact.ID, domain.MailItemLetter, domain.MailStatusNotified, day1)
	a.LastNotifiedAt = &notified
	require.NoError(t, store.UpdateMailItem(a))
	seedMailItem(t, store, contact.ID, domain.MailItemLetter, domain.MailStatusReceived, day2)
	seedMailItem(t, store, contact.ID, domain.MailItemLetter, domain.MailStatusReceived, day3)

	t.Run("按日期倒序", func(t *testing.T) {
		groups, err := svc.Groups(domain.MailItemFilter{}, SortByDate, true)
		require.NoError(t, err)
		require.Len(t, groups, 3)
		assert.Equal(t, "2025-03-12", groups[0].Date)
		assert.Equal(t, "2025-03-10", groups[2].Date)
	})

	t.Run("从未通知的行垫底", func(t *testing.T) {
		groups, err := svc.Groups(domain.MailItemFilter{}, SortByLastNotified, true)
		require.NoError(t, err)
		require.Len(t, groups, 3)
		// 唯一通知过的行排最前，方向不影响垫底规则
		assert.Equal(t, "2025-03-10", groups[0].Date)
		assert.Nil(t, groups[1].LastNotifiedAt)
		assert.Nil(t, groups[2].LastNotifiedAt)
	})
}
