package domain

import (
	"time"
)

// TodoBucket 待办事项的日期分组
type TodoBucket string

const (
	TodoBucketToday    TodoBucket = "today"
	TodoBucketTomorrow TodoBucket = "tomorrow"
	TodoBucketWeek     TodoBucket = "this_week"
	TodoBucketLater    TodoBucket = "later"
)

// Todo 表示员工待办任务。
type Todo struct {
	ID          string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Title       string     `json:"title" gorm:"type:varchar(255);not null"`
	Notes       string     `json:"notes,omitempty" gorm:"type:text"`
	Bucket      TodoBucket `json:"bucket" gorm:"type:varchar(16);index"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	Priority    bool       `json:"priority" gorm:"index"`
	Category    string     `json:"category,omitempty" gorm:"type:varchar(64)"`
	Completed   bool       `json:"completed" gorm:"index"`
	CreatedBy   string     `json:"createdBy" gorm:"type:varchar(128)"`
	CompletedBy string     `json:"completedBy,omitempty" gorm:"type:varchar(128)"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}
