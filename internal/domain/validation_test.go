package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestContactValidator_ValidateContact(t *testing.T) {
	v := NewContactValidator()

	t.Run("姓名和公司名同时为空", func(t *testing.T) {
		err := v.ValidateContact(&Contact{MailboxNumber: "101"})
		assert.ErrorIs(t, err, ErrContactNameRequired)
	})

	t.Run("合法的个人联系人", func(t *testing.T) {
		err := v.ValidateContact(&Contact{
			ContactPerson: "Jane Smith",
			MailboxNumber: "A-102",
			Email:         "jane@example.com",
		})
		assert.NoError(t, err)
	})

	t.Run("仅公司名也合法", func(t *testing.T) {
		err := v.ValidateContact(&Contact{CompanyName: "Acme Corp"})
		assert.NoError(t, err)
	})
}

func TestContactValidator_ValidateMailboxNumber(t *testing.T) {
	v := NewContactValidator()

	valid := []string{"1", "101", "A102", "A-102", "B12-3"}
	for _, n := range valid {
		assert.NoError(t, v.ValidateMailboxNumber(n), n)
	}

	invalid := []string{"", "   ", "1234567", "A_102", "A--102", "10 2"}
	for _, n := range invalid {
		assert.ErrorIs(t, v.ValidateMailboxNumber(n), ErrMailboxNumberInvalid, n)
	}
}

func TestContactValidator_ValidateEmail(t *testing.T) {
	v := NewContactValidator()

	assert.NoError(t, v.ValidateEmail("staff@mailroom.example"))
	assert.ErrorIs(t, v.ValidateEmail("not-an-email"), ErrEmailInvalid)
	assert.ErrorIs(t, v.ValidateEmail("a@b"), ErrEmailInvalid)
}

func TestValidateMailItem(t *testing.T) {
	item := &MailItem{
		Type:       MailItemLetter,
		Quantity:   1,
		Status:     MailStatusReceived,
		ReceivedAt: time.Now(),
	}
	assert.NoError(t, ValidateMailItem(item))

	item.Quantity = 0
	assert.ErrorIs(t, ValidateMailItem(item), ErrQuantityInvalid)

	item.Quantity = 2
	item.Type = "postcard"
	assert.Error(t, ValidateMailItem(item))
}

func TestScanSession_Expired(t *testing.T) {
	now := time.Now()
	session := &ScanSession{
		StartedAt: now,
		ExpiresAt: now.Add(4 * time.Hour),
	}

	assert.False(t, session.Expired(now))
	assert.False(t, session.Expired(now.Add(4*time.Hour-time.Second)))
	assert.True(t, session.Expired(now.Add(4*time.Hour+time.Second)))
}

func TestScanSession_Summarize(t *testing.T) {
	session := &ScanSession{
		Items: []ScannedItem{
			{ID: "1", ContactID: "c1", Status: ScanItemMatched, ItemType: MailItemLetter},
			{ID: "2", ContactID: "c1", Status: ScanItemMatched, ItemType: MailItemPackage},
			{ID: "3", ContactID: "c2", Status: ScanItemMatched, ItemType: MailItemLetter},
			{ID: "4", ContactID: "", Status: ScanItemUncertain, ItemType: MailItemLetter},
		},
	}

	groups := session.Summarize()
	assert.Len(t, groups, 2)
	assert.Equal(t, "c1", groups[0].ContactID)
	assert.Equal(t, 1, groups[0].Letters)
	assert.Equal(t, 1, groups[0].Packages)
	assert.Equal(t, "c2", groups[1].ContactID)
	assert.Equal(t, 1, groups[1].Letters)
}
