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

func newContactService(t *testing.T) (*ContactService, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	return NewContactService(store, zap.NewNop()), store
}

func TestContactService_Create(t *testing.T) {
	t.Run("创建成功并默认为 active", func(t *testing.T) {
		svc, _ := newContactService(t)

		contact, err := svc.Create(ContactInput{
			ContactPerson: "  Jane Smith  ",
			MailboxNumber: "101",
			Email:         "jane@example.com",
		})
		require.NoError(t, err)
		assert.NotEmpty(t, contact.ID)
		assert.Equal(t, "Jane Smith", contact.ContactPerson)
		assert.Equal(t, domain.ContactStatusActive, contact.Status)
	})

	t.Run("缺少姓名和公司名", func(t *testing.T) {
		svc, _ := newContactService(t)

		_, err := svc.Create(ContactInput{MailboxNumber: "101"})
		assert.ErrorIs(t, err, domain.ErrContactNameRequired)
	})

	t.Run("邮箱格式错误", func(t *testing.T) {
		svc, _ := newContactService(t)

		_, err := svc.Create(ContactInput{
			ContactPerson: "Jane Smith",
			MailboxNumber: "101",
			Email:         "not-an-email",
		})
		assert.ErrorIs(t, err, domain.ErrEmailInvalid)
	})

	t.Run("信箱号冲突", func(t *testing.T) {
		svc, _ := newContactService(t)

		_, err := svc.Create(ContactInput{ContactPerson: "Jane Smith", MailboxNumber: "101"})
		require.NoError(t, err)
		_, err = svc.Create(ContactInput{ContactPerson: "Robert Johnson", MailboxNumber: "101"})
		assert.ErrorIs(t, err, storage.ErrMailboxNumberTaken)
	})
}

func TestContactService_Update(t *testing.T) {
	svc, _ := newContactService(t)

	created, err := svc.Create(ContactInput{ContactPerson: "Jane Smith", MailboxNumber: "101"})
	require.NoError(t, err)

	updated, err := svc.Update(created.ID, ContactInput{
		ContactPerson: "Jane Smith",
		CompanyName:   "Smith Consulting",
		MailboxNumber: "101",
		DisplayName:   domain.DisplayNameCompany,
	})
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)
	assert.Equal(t, "Smith Consulting", updated.PreferredName())
	// 未显式指定状态时沿用原状态
	assert.Equal(t, domain.ContactStatusActive, updated.Status)

	_, err = svc.Update("no-such-id", ContactInput{ContactPerson: "X", MailboxNumber: "1"})
	assert.ErrorIs(t, err, storage.ErrContactNotFound)
}

func TestContactService_ArchiveHidesFromDefaultList(t *testing.T) {
	svc, _ := newContactService(t)

	contact, err := svc.Create(ContactInput{ContactPerson: "Jane Smith", MailboxNumber: "101"})
	require.NoError(t, err)
	require.NoError(t, svc.Archive(contact.ID))

	// 归档后联系人仍可按 ID 查到，历史邮件还挂在上面
	archived, err := svc.Get(contact.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ContactStatusArchived, archived.Status)

	active, err := svc.List(false)
	require.NoError(t, err)
	assert.Empty(t, active)

	all, err := svc.List(true)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestContactService_Search(t *testing.T) {
	svc, _ := newContactService(t)

	_, err := svc.Create(ContactInput{ContactPerson: "Jane Smith", MailboxNumber: "101"})
	require.NoError(t, err)
	_, err = svc.Create(ContactInput{CompanyName: "Acme Logistics", MailboxNumber: "205"})
	require.NoError(t, err)

	results, err := svc.Search("acme")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Acme Logistics", results[0].CompanyName)

	// 空查询退化为在用联系人列表
	results, err = svc.Search("   ")
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestContactService_ActiveRosterCache(t *testing.T) {
	svc, _ := newContactService(t)

	_, err := svc.Create(ContactInput{ContactPerson: "Jane Smith", MailboxNumber: "101"})
	require.NoError(t, err)

	roster, err := svc.ActiveRoster()
	require.NoError(t, err)
	assert.Len(t, roster, 1)

	// 写操作使名单快照失效，下一次读到新联系人
	_, err = svc.Create(ContactInput{ContactPerson: "Robert Johnson", MailboxNumber: "205"})
	require.NoError(t, err)

	roster, err = svc.ActiveRoster()
	require.NoError(t, err)
	assert.Len(t, roster, 2)
}
