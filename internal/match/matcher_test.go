package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailroom/backend/internal/domain"
)

func testContacts() []domain.Contact {
	return []domain.Contact{
		{ID: "c1", ContactPerson: "Houyu Chen", MailboxNumber: "101"},
		{ID: "c2", ContactPerson: "Jane Smith", CompanyName: "Smith Design LLC", MailboxNumber: "102"},
		{ID: "c3", CompanyName: "Acme Logistics", MailboxNumber: "A-201"},
		{ID: "c4", ContactPerson: "Robert Johnson", MailboxNumber: "301"},
	}
}

func TestMatchContact_EmptyInput(t *testing.T) {
	assert.Nil(t, MatchContact("", testContacts()))
	assert.Nil(t, MatchContact("   ", testContacts()))
	assert.Nil(t, MatchContact("Jane Smith", nil))
	assert.Nil(t, MatchContact("Jane Smith", []domain.Contact{}))
}

func TestMatchContact_MailboxNumberExact(t *testing.T) {
	for _, c := range testContacts() {
		m := MatchContact(c.MailboxNumber, testContacts())
		require.NotNil(t, m, c.MailboxNumber)
		assert.Equal(t, c.ID, m.Contact.ID)
		assert.Equal(t, 1.0, m.Confidence)
		assert.Equal(t, FieldMailboxNumber, m.Field)
	}

	// 大小写不敏感
	m := MatchContact("a-201", testContacts())
	require.NotNil(t, m)
	assert.Equal(t, "c3", m.Contact.ID)
	assert.Equal(t, 1.0, m.Confidence)
}

func TestMatchContact_ExactName(t *testing.T) {
	m := MatchContact("Jane Smith", testContacts())
	require.NotNil(t, m)
	assert.Equal(t, "c2", m.Contact.ID)
	assert.Equal(t, FieldContactPerson, m.Field)
	assert.Equal(t, 1.0, m.Confidence)
}

func TestMatchContact_ReversedTokenOrder(t *testing.T) {
	// "Chen Houyu" 应命中 contact_person 为 "Houyu Chen" 的联系人
	m := MatchContact("Chen Houyu", testContacts())
	require.NotNil(t, m)
	assert.Equal(t, "c1", m.Contact.ID)
	assert.Equal(t, FieldContactPerson, m.Field)
}

func TestMatchContact_MissingSpace(t *testing.T) {
	// OCR 粘连："JaneSmith" 应命中 "Jane Smith"
	m := MatchContact("JaneSmith", testContacts())
	require.NotNil(t, m)
	assert.Equal(t, "c2", m.Contact.ID)
}

func TestMatchContact_SplitName(t *testing.T) {
	// OCR 把名字拆成两段："Hou yu Chen" 实为 "Houyu Chen"
	m := MatchContact("Hou yu Chen", testContacts())
	require.NotNil(t, m)
	assert.Equal(t, "c1", m.Contact.ID)
}

func TestMatchContact_CompanyName(t *testing.T) {
	m := MatchContact("Acme Logistics", testContacts())
	require.NotNil(t, m)
	assert.Equal(t, "c3", m.Contact.ID)
	assert.Equal(t, FieldCompanyName, m.Field)
}

func TestMatchContact_OCRNoise(t *testing.T) {
	// 轻微识别错误仍应命中
	m := MatchContact("Rabert Johnsen", testContacts())
	require.NotNil(t, m)
	assert.Equal(t, "c4", m.Contact.ID)
	assert.GreaterOrEqual(t, m.Confidence, MinConfidence)
}

func TestMatchContact_BelowThresholdIsNil(t *testing.T) {
	// 与任何联系人都不相关的文本必须返回 nil，
	// 而不是返回一个低置信度结果。
	m := MatchContact("zzqx wvk pltr", testContacts())
	assert.Nil(t, m)
}

func TestMatchContact_FieldDisambiguation(t *testing.T) {
	contacts := []domain.Contact{
		{ID: "c1", ContactPerson: "Jane Smith", CompanyName: "Jane Smith Studio"},
	}

	m := MatchContact("Jane Smith Studio", contacts)
	require.NotNil(t, m)
	assert.Equal(t, FieldCompanyName, m.Field)

	m = MatchContact("Jane Smith", contacts)
	require.NotNil(t, m)
	assert.Equal(t, FieldContactPerson, m.Field)
}

func TestNameVariations(t *testing.T) {
	assert.Nil(t, NameVariations("jane"))
	assert.Equal(t, []string{"janesmith"}, NameVariations("jane smith"))
	assert.Equal(t,
		[]string{"houyu chen wang", "hou yu chenwang"},
		NameVariations("hou yu chen wang")[0:2])

	v := NameVariations("jane ann smith")
	assert.Contains(t, v, "janeann smith")
	assert.Contains(t, v, "jane annsmith")
}
