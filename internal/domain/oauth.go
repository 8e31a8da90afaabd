package domain

import (
	"time"
)

// OAuthToken 保存 Gmail 授权令牌（每个员工账号至多一条）。
type OAuthToken struct {
	UserID       string    `json:"userId" gorm:"primaryKey;type:varchar(36)"`
	Provider     string    `json:"provider" gorm:"primaryKey;type:varchar(32)"` // 目前仅 "gmail"
	Email        string    `json:"email" gorm:"type:varchar(255)"`              // 授权的 Gmail 地址
	AccessToken  string    `json:"-" gorm:"type:text"`
	RefreshToken string    `json:"-" gorm:"type:text"`
	TokenType    string    `json:"-" gorm:"type:varchar(32)"`
	Expiry       time.Time `json:"expiry"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// ProviderGmail Gmail OAuth 提供方标识
const ProviderGmail = "gmail"
