package domain

import (
	"time"
)

// ContactStatus 联系人（租户/客户）状态
type ContactStatus string

const (
	ContactStatusActive   ContactStatus = "active"   // 正常使用中
	ContactStatusPending  ContactStatus = "pending"  // 待激活（资料未补全）
	ContactStatusArchived ContactStatus = "archived" // 已归档（停止服务）
)

// DisplayNamePreference 通知邮件中的称呼偏好
type DisplayNamePreference string

const (
	DisplayNamePerson  DisplayNamePreference = "person"  // 优先使用个人姓名
	DisplayNameCompany DisplayNamePreference = "company" // 优先使用公司名称
)

// Contact 表示租户/客户档案的业务实体。
type Contact struct {
	ID            string                `json:"id" gorm:"primaryKey;type:varchar(36)"`
	ContactPerson string                `json:"contactPerson" gorm:"type:varchar(255);index"`
	CompanyName   string                `json:"companyName" gorm:"type:varchar(255);index"`
	MailboxNumber string                `json:"mailboxNumber" gorm:"type:varchar(32);index"`
	UnitNumber    string                `json:"unitNumber" gorm:"type:varchar(32)"`
	Email         string                `json:"email" gorm:"type:varchar(255)"`
	Phone         string                `json:"phone,omitempty" gorm:"type:varchar(32)"`
	Status        ContactStatus         `json:"status" gorm:"type:varchar(16);index"`
	DisplayName   DisplayNamePreference `json:"displayName" gorm:"type:varchar(16)"`
	Notes         string                `json:"notes,omitempty" gorm:"type:text"`
	CreatedAt     time.Time             `json:"createdAt"`
	UpdatedAt     time.Time             `json:"updatedAt"`
}

// PreferredName 根据称呼偏好返回通知中使用的名称。
func (c *Contact) PreferredName() string {
	if c.DisplayName == DisplayNameCompany && c.CompanyName != "" {
		return c.CompanyName
	}
	if c.ContactPerson != "" {
		return c.ContactPerson
	}
	return c.CompanyName
}

// IsActive 联系人是否可接收邮件登记与通知。
func (c *Contact) IsActive() bool {
	return c.Status == ContactStatusActive
}
