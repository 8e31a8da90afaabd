package domain

import (
	"time"
)

// MailItemType 邮件/包裹类型
type MailItemType string

const (
	MailItemLetter  MailItemType = "letter"
	MailItemPackage MailItemType = "package"
)

// MailItemStatus 邮件状态流转
type MailItemStatus string

const (
	MailStatusReceived  MailItemStatus = "received"  // 已收件
	MailStatusNotified  MailItemStatus = "notified"  // 已通知客户
	MailStatusPickedUp  MailItemStatus = "picked_up" // 已取件
	MailStatusScanned   MailItemStatus = "scanned"   // 扫描批次录入
	MailStatusForward   MailItemStatus = "forward"   // 待转寄
	MailStatusAbandoned MailItemStatus = "abandoned" // 无人认领
)

// ValidMailItemType 检查类型取值是否合法。
func ValidMailItemType(t MailItemType) bool {
	return t == MailItemLetter || t == MailItemPackage
}

// ValidMailItemStatus 检查状态取值是否合法。
func ValidMailItemStatus(s MailItemStatus) bool {
	switch s {
	case MailStatusReceived, MailStatusNotified, MailStatusPickedUp,
		MailStatusScanned, MailStatusForward, MailStatusAbandoned:
		return true
	}
	return false
}

// MailItem 表示一件到达邮务室的邮件或包裹。
//
// 不变式：每件邮件恰好归属一个联系人；Quantity >= 1。
type MailItem struct {
	ID             string         `json:"id" gorm:"primaryKey;type:varchar(36)"`
	ContactID      string         `json:"contactId" gorm:"type:varchar(36);index;not null"`
	Type           MailItemType   `json:"type" gorm:"type:varchar(16);index"`
	Quantity       int            `json:"quantity"`
	Status         MailItemStatus `json:"status" gorm:"type:varchar(16);index"`
	Description    string         `json:"description,omitempty" gorm:"type:text"`
	ReceivedAt     time.Time      `json:"receivedAt" gorm:"index"`
	LastNotifiedAt *time.Time     `json:"lastNotifiedAt,omitempty"`
	LoggedBy       string         `json:"loggedBy" gorm:"type:varchar(128)"` // 登记人（员工名）
	PhotoKey       string         `json:"photoKey,omitempty" gorm:"type:varchar(255)"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

// MailItemFilter 邮件列表查询条件
//
// 零值字段表示不过滤；Page 从 1 开始，PageSize 为 0 时不分页。
type MailItemFilter struct {
	ContactID string
	Status    MailItemStatus
	Type      MailItemType
	Search    string // 匹配描述或联系人名
	From      time.Time
	To        time.Time
	Page      int
	PageSize  int
}
