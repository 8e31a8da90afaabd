package domain

import (
	"time"
)

// MailroomStatistics 系统统计信息（管理面板）
type MailroomStatistics struct {
	TotalContacts  int       `json:"totalContacts"`
	ActiveContacts int       `json:"activeContacts"`
	TotalMailItems int       `json:"totalMailItems"`
	PendingPickup  int       `json:"pendingPickup"` // 已通知未取件
	ReceivedToday  int       `json:"receivedToday"`
	NotifiedToday  int       `json:"notifiedToday"`
	OpenTodos      int       `json:"openTodos"`
	GeneratedAt    time.Time `json:"generatedAt"`
}
