package domain

import (
	"time"
)

// ActionType 操作记录的动作类型
type ActionType string

const (
	ActionCreated      ActionType = "created"
	ActionStatusChange ActionType = "status_change"
	ActionNotified     ActionType = "notified"
	ActionEdited       ActionType = "edited"
	ActionDeleted      ActionType = "deleted"
	ActionScanned      ActionType = "scanned"
)

// ActionHistory 表示邮件状态变更的操作记录。
//
// 不变式：记录只追加，永不修改或删除。存储层因此不提供
// 任何 Update/Delete 方法。
type ActionHistory struct {
	ID          string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	MailItemID  string     `json:"mailItemId" gorm:"type:varchar(36);index;not null"`
	Action      ActionType `json:"action" gorm:"type:varchar(32)"`
	OldValue    string     `json:"oldValue,omitempty" gorm:"type:varchar(255)"`
	NewValue    string     `json:"newValue,omitempty" gorm:"type:varchar(255)"`
	Notes       string     `json:"notes,omitempty" gorm:"type:text"`
	PerformedBy string     `json:"performedBy" gorm:"type:varchar(128)"`
	CreatedAt   time.Time  `json:"createdAt" gorm:"index"`
}
