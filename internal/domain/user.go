package domain

import (
	"time"
)

// UserRole 员工角色
type UserRole string

const (
	RoleStaff   UserRole = "staff"   // 普通员工（日常收发件操作）
	RoleManager UserRole = "manager" // 主管（可管理联系人与员工）
	RoleAdmin   UserRole = "admin"   // 系统管理员
)

// User 表示邮务室员工账号。
type User struct {
	ID           string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Email        string     `json:"email" gorm:"type:varchar(255);uniqueIndex"`
	Username     string     `json:"username" gorm:"type:varchar(64);uniqueIndex"`
	DisplayName  string     `json:"displayName" gorm:"type:varchar(128)"`
	PasswordHash string     `json:"-" gorm:"type:varchar(255)"`
	Role         UserRole   `json:"role" gorm:"type:varchar(16)"`
	IsActive     bool       `json:"isActive"`
	LastLoginAt  *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// IsAdmin 是否具有管理员权限。
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// CanManage 是否具有主管及以上权限。
func (u *User) CanManage() bool {
	return u.Role == RoleManager || u.Role == RoleAdmin
}
