package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailroom/backend/internal/config"
	"mailroom/backend/internal/domain"
	"mailroom/backend/internal/storage/memory"
)

func newAuthService(t *testing.T) (*AuthService, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	cfg := &config.JWTConfig{
		Secret:        strings.Repeat("a", 32),
		Issuer:        "test",
		AccessExpiry:  15 * time.Minute,
		RefreshExpiry: 7 * 24 * time.Hour,
	}
	return NewAuthService(store, NewJWTManager(cfg), store), store
}

func manager() *domain.User {
	return &domain.User{
		ID:       "mgr-1",
		Username: "manager",
		Role:     domain.RoleManager,
		IsActive: true,
	}
}

func TestAuthService_Register(t *testing.T) {
	service, _ := newAuthService(t)

	req := &domain.RegisterRequest{
		Username: "frontdesk",
		Email:    "frontdesk@example.com",
		Password: "Password123!",
	}

	response, err := service.Register(req, manager())
	require.NoError(t, err)
	assert.NotEmpty(t, response.User.ID)
	assert.Equal(t, "frontdesk", response.User.Username)
	assert.Equal(t, "frontdesk@example.com", response.User.Email)
	// 未指定角色时默认为普通员工
	assert.Equal(t, domain.RoleStaff, response.User.Role)
	assert.NotEmpty(t, response.AccessToken)
	assert.NotEmpty(t, response.RefreshToken)
}

func TestAuthService_Register_RequiresManager(t *testing.T) {
	service, _ := newAuthService(t)

	req := &domain.RegisterRequest{
		Username: "frontdesk",
		Email:    "frontdesk@example.com",
		Password: "Password123!",
	}

	staff := &domain.User{ID: "s-1", Role: domain.RoleStaff, IsActive: true}
	_, err := service.Register(req, staff)
	assert.ErrorIs(t, err, ErrNotManager)

	_, err = service.Register(req, nil)
	assert.ErrorIs(t, err, ErrNotManager)

	// 管理员账号只能由管理员开设
	req.Role = domain.RoleAdmin
	_, err = service.Register(req, manager())
	assert.ErrorIs(t, err, ErrNotManager)
}

func TestAuthService_Register_DuplicateUsername(t *testing.T) {
	service, _ := newAuthService(t)

	req1 := &domain.RegisterRequest{
		Username: "frontdesk",
		Email:    "one@example.com",
		Password: "Password123!",
	}
	_, err := service.Register(req1, manager())
	require.NoError(t, err)

	req2 := &domain.RegisterRequest{
		Username: "frontdesk",
		Email:    "two@example.com",
		Password: "Password123!",
	}
	_, err = service.Register(req2, manager())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "username already exists")
}

func TestAuthService_Register_DuplicateEmail(t *testing.T) {
	service, store := newAuthService(t)

	user := &domain.User{
		ID:           "user-1",
		Username:     "frontdesk1",
		Email:        "frontdesk@example.com",
		PasswordHash: "somehash",
		Role:         domain.RoleStaff,
		IsActive:     true,
	}
	require.NoError(t, store.CreateUser(user))

	req := &domain.RegisterRequest{
		Username: "frontdesk2",
		Email:    "frontdesk@example.com",
		Password: "Password123!",
	}
	_, err := service.Register(req, manager())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "email already exists")
}

func TestAuthService_Login(t *testing.T) {
	service, _ := newAuthService(t)

	registerReq := &domain.RegisterRequest{
		Username: "frontdesk",
		Email:    "frontdesk@example.com",
		Password: "Password123!",
	}
	_, err := service.Register(registerReq, manager())
	require.NoError(t, err)

	t.Run("用户名登录", func(t *testing.T) {
		response, err := service.Login(&domain.LoginRequest{
			Username: "frontdesk",
			Password: "Password123!",
		})
		require.NoError(t, err)
		assert.Equal(t, "frontdesk", response.User.Username)
		assert.NotEmpty(t, response.AccessToken)
		assert.NotEmpty(t, response.RefreshToken)
	})

	t.Run("邮箱登录", func(t *testing.T) {
		response, err := service.Login(&domain.LoginRequest{
			Username: "frontdesk@example.com",
			Password: "Password123!",
		})
		require.NoError(t, err)
		assert.Equal(t, "frontdesk", response.User.Username)
	})

	t.Run("密码错误", func(t *testing.T) {
		_, err := service.Login(&domain.LoginRequest{
			Username: "frontdesk",
			Password: "WrongPassword123!",
		})
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("账号不存在", func(t *testing.T) {
		_, err := service.Login(&domain.LoginRequest{
			Username: "nobody",
			Password: "Password123!",
		})
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestAuthService_Login_InactiveUser(t *testing.T) {
	service, _ := newAuthService(t)

	registerReq := &domain.RegisterRequest{
		Username: "frontdesk",
		Email:    "frontdesk@example.com",
		Password: "Password123!",
	}
	resp, err := service.Register(registerReq, manager())
	require.NoError(t, err)

	require.NoError(t, service.SetActive(resp.User.ID, false, manager()))

	_, err = service.Login(&domain.LoginRequest{
		Username: "frontdesk",
		Password: "Password123!",
	})
	assert.ErrorIs(t, err, ErrUserInactive)
}

func TestAuthService_RefreshToken(t *testing.T) {
	service, _ := newAuthService(t)

	registerReq := &domain.RegisterRequest{
		Username: "frontdesk",
		Email:    "frontdesk@example.com",
		Password: "Password123!",
	}
	registerResponse, err := service.Register(registerReq, manager())
	require.NoError(t, err)

	// JWT 时间戳精度为秒，等待以确保新令牌内容不同
	time.Sleep(1100 * time.Millisecond)

	response, err := service.RefreshToken(&domain.RefreshTokenRequest{
		RefreshToken: registerResponse.RefreshToken,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, response.AccessToken)
	assert.NotEqual(t, registerResponse.AccessToken, response.AccessToken)
	assert.NotEmpty(t, response.RefreshToken)
}

func TestAuthService_RefreshToken_Invalid(t *testing.T) {
	service, _ := newAuthService(t)

	_, err := service.RefreshToken(&domain.RefreshTokenRequest{
		RefreshToken: "invalid-refresh-token",
	})
	assert.Error(t, err)
}

func TestAuthService_Logout(t *testing.T) {
	service, _ := newAuthService(t)

	registerReq := &domain.RegisterRequest{
		Username: "frontdesk",
		Email:    "frontdesk@example.com",
		Password: "Password123!",
	}
	resp, err := service.Register(registerReq, manager())
	require.NoError(t, err)

	// 登出前访问令牌有效
	_, err = service.ValidateToken(resp.AccessToken)
	require.NoError(t, err)

	require.NoError(t, service.Logout(resp.AccessToken))

	// 登出后访问令牌被拉黑
	_, err = service.ValidateToken(resp.AccessToken)
	assert.Error(t, err)

	// 拉黑刷新令牌后不可再刷新
	require.NoError(t, service.Logout(resp.RefreshToken))
	_, err = service.RefreshToken(&domain.RefreshTokenRequest{RefreshToken: resp.RefreshToken})
	assert.Error(t, err)
}

func TestAuthService_ChangePassword(t *testing.T) {
	service, _ := newAuthService(t)

	registerReq := &domain.RegisterRequest{
		Username: "frontdesk",
		Email:    "frontdesk@example.com",
		Password: "Password123!",
	}
	registerResponse, err := service.Register(registerReq, manager())
	require.NoError(t, err)

	err = service.ChangePassword(&domain.ChangePasswordRequest{
		UserID:      registerResponse.User.ID,
		OldPassword: "Password123!",
		NewPassword: "NewPassword123!",
	})
	require.NoError(t, err)

	// 新密码可登录
	_, err = service.Login(&domain.LoginRequest{
		Username: "frontdesk",
		Password: "NewPassword123!",
	})
	assert.NoError(t, err)

	// 旧密码失效
	_, err = service.Login(&domain.LoginRequest{
		Username: "frontdesk",
		Password: "Password123!",
	})
	assert.Error(t, err)
}

func TestAuthService_ChangePassword_WrongOldPassword(t *testing.T) {
	service, _ := newAuthService(t)

	registerReq := &domain.RegisterRequest{
		Username: "frontdesk",
		Email:    "frontdesk@example.com",
		Password: "Password123!",
	}
	registerResponse, err := service.Register(registerReq, manager())
	require.NoError(t, err)

	err = service.ChangePassword(&domain.ChangePasswordRequest{
		UserID:      registerResponse.User.ID,
		OldPassword: "WrongPassword123!",
		NewPassword: "NewPassword123!",
	})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid old password")
}
