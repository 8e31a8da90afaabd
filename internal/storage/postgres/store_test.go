package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"mailroom/backend/internal/domain"
	"mailroom/backend/internal/storage"
)

// newTestStore 启动一次性 PostgreSQL 容器并建好表结构。
// 需要本机 Docker，-short 模式下跳过。
func newTestStore(t *testing.T) *Store {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("mailroom_test"),
		tcpostgres.WithUsername("mailroom"),
		tcpostgres.WithPassword("mailroom"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Skipf("docker unavailable, skipping: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Errorf("failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	store, err := NewStore(dsn, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testContact(mailbox string) *domain.Contact {
	now := time.Now()
	return &domain.Contact{
		ID:            uuid.NewString(),
		ContactPerson: "Jane Smith",
		MailboxNumber: mailbox,
		Email:         "jane@example.com",
		Status:        domain.ContactStatusActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func TestStore_ContactRoundTrip(t *testing.T) {
	store := newTestStore(t)

	contact := testContact("101")
	require.NoError(t, store.SaveContact(contact))

	got, err := store.GetContact(contact.ID)
	require.NoError(t, err)
	assert.Equal(t, contact.MailboxNumber, got.MailboxNumber)

	byNumber, err := store.GetContactByMailboxNumber("101")
	require.NoError(t, err)
	assert.Equal(t, contact.ID, byNumber.ID)

	// 信箱号唯一
	dup := testContact("101")
	assert.ErrorIs(t, store.SaveContact(dup), storage.ErrMailboxNumberTaken)

	// 大小写不敏感检索
	results, err := store.SearchContacts("smith")
	require.NoError(t, err)
	require.Len(t, results, 1)

	results, err = store.SearchContacts("SMITH")
	require.NoError(t, err)
	require.Len(t, results, 1)

	contact.Status = domain.ContactStatusArchived
	require.NoError(t, store.UpdateContact(contact))

	active, err := store.ListContacts(false)
	require.NoError(t, err)
	assert.Empty(t, active)

	_, err = store.GetContact("no-such-id")
	assert.ErrorIs(t, err, storage.ErrContactNotFound)
}

func TestStore_CreateMailItemsTransactional(t *testing.T) {
	store := newTestStore(t)

	contact := testContact("101")
	require.NoError(t, store.SaveContact(contact))

	now := time.Now()
	items := make([]domain.MailItem, 0, 2)
	histories := make([]domain.ActionHistory, 0, 2)
	for i := 0; i < 2; i++ {
		item := domain.MailItem{
			ID:         uuid.NewString(),
			ContactID:  contact.ID,
			Type:       domain.MailItemLetter,
			Quantity:   1,
			Status:     domain.MailStatusScanned,
			ReceivedAt: now,
			LoggedBy:   "staff",
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		items = append(items, item)
		histories = append(histories, domain.ActionHistory{
			ID:          uuid.NewString(),
			MailItemID:  item.ID,
			Action:      domain.ActionScanned,
			NewValue:    string(domain.MailStatusScanned),
			PerformedBy: "staff",
			CreatedAt:   now,
		})
	}
	require.NoError(t, store.CreateMailItems(items, histories))

	listed, total, err := store.ListMailItems(domain.MailItemFilter{ContactID: contact.ID})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, listed, 2)

	history, err := store.ListHistoryByMailItem(items[0].ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, domain.ActionScanned, history[0].Action)
}

func TestStore_DeleteMailItemKeepsHistory(t *testing.T) {
	store := newTestStore(t)

	contact := testContact("101")
	require.NoError(t, store.SaveContact(contact))

	now := time.Now()
	item := &domain.MailItem{
		ID:         uuid.NewString(),
		ContactID:  contact.ID,
		Type:       domain.MailItemLetter,
		Quantity:   1,
		Status:     domain.MailStatusReceived,
		ReceivedAt: now,
		LoggedBy:   "staff",
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	require.NoError(t, store.CreateMailItem(item))
	require.NoError(t, store.AppendHistory(&domain.ActionHistory{
		ID:          uuid.NewString(),
		MailItemID:  item.ID,
		Action:      domain.ActionCreated,
		PerformedBy: "staff",
		CreatedAt:   now,
	}))
	require.NoError(t, store.AppendHistory(&domain.ActionHistory{
		ID:          uuid.NewString(),
		MailItemID:  item.ID,
		Action:      domain.ActionDeleted,
		PerformedBy: "staff",
		CreatedAt:   now.Add(time.Second),
	}))

	require.NoError(t, store.DeleteMailItem(item.ID))

	_, err := store.GetMailItem(item.ID)
	assert.ErrorIs(t, err, storage.ErrMailItemNotFound)

	// 操作轨迹不随邮件删除
	history, err := store.ListHistoryByMailItem(item.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, domain.ActionDeleted, history[1].Action)

	recent, err := store.ListRecentHistory(10)
	require.NoError(t, err)
	assert.NotEmpty(t, recent)
}

func TestStore_MailItemFilterAndPaging(t *testing.T) {
	store := newTestStore(t)

	contact := testContact("101")
	require.NoError(t, store.SaveContact(contact))

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		itemType := domain.MailItemLetter
		if i%2 == 1 {
			itemType = domain.MailItemPackage
		}
		item := &domain.MailItem{
			ID:         uuid.NewString(),
			ContactID:  contact.ID,
			Type:       itemType,
			Quantity:   1,
			Status:     domain.MailStatusReceived,
			ReceivedAt: base.Add(time.Duration(i) * time.Minute),
			LoggedBy:   "staff",
			CreatedAt:  base,
			UpdatedAt:  base,
		}
		require.NoError(t, store.CreateMailItem(item))
	}

	letters, total, err := store.ListMailItems(domain.MailItemFilter{Type: domain.MailItemLetter})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, letters, 3)

	page, total, err := store.ListMailItems(domain.MailItemFilter{Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Len(t, page, 2)

	recent, err := store.FindRecentMailItem(contact.ID, domain.MailItemLetter, 2*time.Hour)
	require.NoError(t, err)
	require.NotNil(t, recent)
	assert.Equal(t, domain.MailItemLetter, recent.Type)

	// 关键字检索大小写不敏感，可命中联系人姓名
	found, total, err := store.ListMailItems(domain.MailItemFilter{Search: "SMITH"})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Len(t, found, 5)
}

func TestStore_Statistics(t *testing.T) {
	store := newTestStore(t)

	contact := testContact("101")
	require.NoError(t, store.SaveContact(contact))

	now := time.Now()
	item := &domain.MailItem{
		ID:         uuid.NewString(),
		ContactID:  contact.ID,
		Type:       domain.MailItemPackage,
		Quantity:   1,
		Status:     domain.MailStatusNotified,
		ReceivedAt: now,
		LoggedBy:   "staff",
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	require.NoError(t, store.CreateMailItem(item))

	require.NoError(t, store.CreateTodo(&domain.Todo{
		ID:        uuid.NewString(),
		Title:     "follow up",
		Bucket:    domain.TodoBucketToday,
		CreatedBy: "staff",
		CreatedAt: now,
		UpdatedAt: now,
	}))

	stats, err := store.GetStatistics()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalContacts)
	assert.Equal(t, 1, stats.ActiveContacts)
	assert.Equal(t, 1, stats.TotalMailItems)
	assert.Equal(t, 1, stats.PendingPickup)
	assert.Equal(t, 1, stats.OpenTodos)
}
