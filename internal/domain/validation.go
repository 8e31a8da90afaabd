package domain

import (
	"errors"
	"regexp"
	"strings"
)

var (
	// ErrContactNameRequired 联系人姓名和公司名不能同时为空
	ErrContactNameRequired = errors.New("contact person or company name is required")
	// ErrMailboxNumberInvalid 信箱号格式非法
	ErrMailboxNumberInvalid = errors.New("mailbox number invalid")
	// ErrEmailInvalid 邮箱地址格式非法
	ErrEmailInvalid = errors.New("email address invalid")
	// ErrQuantityInvalid 数量必须 >= 1
	ErrQuantityInvalid = errors.New("quantity must be at least 1")
)

// 信箱号：1-6 位字母数字，允许可选的短横线分段（如 "A-102"）。
var mailboxNumberPattern = regexp.MustCompile(`^[A-Za-z0-9]{1,6}(-[A-Za-z0-9]{1,6})?$`)

// 邮箱地址的宽松校验，完整的 RFC 校验交给发送链路。
var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// ContactValidator 联系人档案校验器。
type ContactValidator struct{}

// NewContactValidator 创建联系人校验器。
func NewContactValidator() *ContactValidator {
	return &ContactValidator{}
}

// ValidateContact 校验联系人档案的必填项与格式。
func (v *ContactValidator) ValidateContact(c *Contact) error {
	if strings.TrimSpace(c.ContactPerson) == "" && strings.TrimSpace(c.CompanyName) == "" {
		return ErrContactNameRequired
	}
	if c.MailboxNumber != "" {
		if err := v.ValidateMailboxNumber(c.MailboxNumber); err != nil {
			return err
		}
	}
	if c.Email != "" {
		if err := v.ValidateEmail(c.Email); err != nil {
			return err
		}
	}
	return nil
}

// ValidateMailboxNumber 校验信箱号格式。
func (v *ContactValidator) ValidateMailboxNumber(number string) error {
	if !mailboxNumberPattern.MatchString(strings.TrimSpace(number)) {
		return ErrMailboxNumberInvalid
	}
	return nil
}

// ValidateEmail 校验邮箱地址基本格式。
func (v *ContactValidator) ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if len(email) > 254 || !emailPattern.MatchString(email) {
		return ErrEmailInvalid
	}
	return nil
}

// 认证相关请求体

type RegisterRequest struct {
	Username    string   `json:"username"`
	Email       string   `json:"email"`
	DisplayName string   `json:"displayName"`
	Password    string   `json:"password"`
	Role        UserRole `json:"role"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type ChangePasswordRequest struct {
	UserID      string `json:"userId"`
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

// ValidateMailItem 校验邮件登记的业务不变式。
func ValidateMailItem(item *MailItem) error {
	if item.Quantity < 1 {
		return ErrQuantityInvalid
	}
	if !ValidMailItemType(item.Type) {
		return errors.New("unknown mail item type")
	}
	if !ValidMailItemStatus(item.Status) {
		return errors.New("unknown mail item status")
	}
	return nil
}
