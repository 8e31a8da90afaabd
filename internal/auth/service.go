package auth

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"mailroom/backend/internal/domain"
)

var (
	// ErrInvalidEmail 无效的邮箱格式
	ErrInvalidEmail = errors.New("invalid email format")
	// ErrInvalidPassword 无效的密码
	ErrInvalidPassword = errors.New("invalid password")
	// ErrEmailExists 邮箱已存在
	ErrEmailExists = errors.New("email already exists")
	// ErrUsernameExists 用户名已存在
	ErrUsernameExists = errors.New("username already exists")
	// ErrUserNotFound 用户不存在
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidCredentials 凭证无效
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserInactive 账号已被禁用
	ErrUserInactive = errors.New("user is inactive")
	// ErrNotManager 需要主管及以上权限
	ErrNotManager = errors.New("manager role required")
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// Service 员工账号认证服务
type Service struct {
	userRepo UserRepository
}

// UserRepository 员工账号存储接口
type UserRepository interface {
	CreateUser(user *domain.User) error
	GetUserByID(id string) (*domain.User, error)
	GetUserByEmail(email string) (*domain.User, error)
	GetUserByUsername(username string) (*domain.User, error)
	UpdateUser(user *domain.User) error
	UpdateLastLogin(userID string) error
}

// NewService 创建认证服务
func NewService(userRepo UserRepository) *Service {
	return &Service{
		userRepo: userRepo,
	}
}

// RegisterInput 开设员工账号的输入
type RegisterInput struct {
	Email       string
	Username    string
	DisplayName string
	Password    string
	Role        domain.UserRole
}

// LoginInput 登录输入
type LoginInput struct {
	Identifier string
	Password   string
}

// Register 开设员工账号。只有主管及以上角色可以调用。
func (s *Service) Register(input RegisterInput, operator *domain.User) (*domain.User, error) {
	if operator == nil || !operator.CanManage() {
		return nil, ErrNotManager
	}

	// 验证邮箱格式
	if !ValidateEmail(input.Email) {
		return nil, ErrInvalidEmail
	}

	// 验证密码强度
	if err := ValidatePassword(input.Password); err != nil {
		return nil, err
	}

	// 检查邮箱是否已存在
	if user, err := s.userRepo.GetUserByEmail(strings.ToLower(input.Email)); err == nil && user != nil {
		return nil, ErrEmailExists
	}

	// 检查用户名是否已存在
	if user, err := s.userRepo.GetUserByUsername(strings.ToLower(input.Username)); err == nil && user != nil {
		return nil, ErrUsernameExists
	}

	role := input.Role
	if role == "" {
		role = domain.RoleStaff
	}
	// 管理员账号只能由管理员开设
	if role == domain.RoleAdmin && !operator.IsAdmin() {
		return nil, ErrNotManager
	}

	// 哈希密码
	passwordHash, err := HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	displayName := strings.TrimSpace(input.DisplayName)
	if displayName == "" {
		displayName = input.Username
	}

	now := time.Now()
	user := &domain.User{
		ID:           uuid.New().String(),
		Email:        strings.ToLower(input.Email),
		Username:     input.Username,
		DisplayName:  displayName,
		PasswordHash: passwordHash,
		Role:         role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.userRepo.CreateUser(user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

// Login 员工登录，Identifier 可以是邮箱或用户名。
func (s *Service) Login(input LoginInput) (*domain.User, error) {
	identifier := strings.ToLower(input.Identifier)

	// 优先按邮箱查找
	user, err := s.userRepo.GetUserByEmail(identifier)
	if err != nil {
		// 如果按邮箱查找失败，尝试按用户名查找
		user, err = s.userRepo.GetUserByUsername(identifier)
		if err != nil {
			return nil, ErrInvalidCredentials
		}
	}

	// 检查账号是否激活
	if !user.IsActive {
		return nil, ErrUserInactive
	}

	// 验证密码
	if !CheckPassword(input.Password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	// 更新最后登录时间
	_ = s.userRepo.UpdateLastLogin(user.ID)

	return user, nil
}

// GetUserByID 根据 ID 获取员工账号
func (s *Service) GetUserByID(userID string) (*domain.User, error) {
	user, err := s.userRepo.GetUserByID(userID)
	if err != nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// ChangePassword 修改密码
func (s *Service) ChangePassword(userID, oldPassword, newPassword string) error {
	user, err := s.userRepo.GetUserByID(userID)
	if err != nil {
		return ErrUserNotFound
	}

	// 验证旧密码
	if !CheckPassword(oldPassword, user.PasswordHash) {
		return errors.New("invalid old password")
	}

	// 验证新密码强度
	if err := ValidatePassword(newPassword); err != nil {
		return err
	}

	// 哈希新密码
	newHash, err := HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	user.PasswordHash = newHash
	return s.userRepo.UpdateUser(user)
}

// SetActive 启用或禁用员工账号。只有主管及以上角色可以调用。
func (s *Service) SetActive(userID string, active bool, operator *domain.User) error {
	if operator == nil || !operator.CanManage() {
		return ErrNotManager
	}

	user, err := s.userRepo.GetUserByID(userID)
	if err != nil {
		return ErrUserNotFound
	}
	user.IsActive = active
	return s.userRepo.UpdateUser(user)
}

// ValidateEmail 验证邮箱格式
func ValidateEmail(email string) bool {
	return emailRegex.MatchString(email)
}

// ValidatePassword 验证密码强度
func ValidatePassword(password string) error {
	if len(password) < 8 {
		return errors.New("password must be at least 8 characters")
	}
	if len(password) > 72 {
		return errors.New("password must be at most 72 characters")
	}
	return nil
}

// HashPassword 哈希密码
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword 检查密码是否匹配
func CheckPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
