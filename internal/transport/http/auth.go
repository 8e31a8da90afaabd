package httptransport

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailroom/backend/internal/auth"
	jwtpkg "mailroom/backend/internal/auth/jwt"
	"mailroom/backend/internal/domain"
)

// AuthHandler 处理员工认证相关的 HTTP 请求
type AuthHandler struct {
	authService *auth.AuthService
	log         *zap.Logger
}

// NewAuthHandler 创建认证处理器
func NewAuthHandler(authService *auth.AuthService, log *zap.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		log:         log,
	}
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required"`
}

type setActiveRequest struct {
	IsActive *bool `json:"isActive" binding:"required"`
}

type userResponse struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	Username    string     `json:"username"`
	DisplayName string     `json:"displayName"`
	Role        string     `json:"role"`
	IsActive    bool       `json:"isActive"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
}

type authResponse struct {
	User         userResponse `json:"user"`
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
	TokenType    string       `json:"tokenType"`
	ExpiresIn    int64        `json:"expiresIn"`
}

func toUserResponse(user *domain.User) userResponse {
	return userResponse{
		ID:          user.ID,
		Email:       user.Email,
		Username:    user.Username,
		DisplayName: user.DisplayName,
		Role:        string(user.Role),
		IsActive:    user.IsActive,
		LastLoginAt: user.LastLoginAt,
	}
}

func toAuthResponse(resp *auth.AuthResponse) authResponse {
	return authResponse{
		User:         toUserResponse(resp.User),
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		TokenType:    resp.TokenType,
		ExpiresIn:    resp.ExpiresIn,
	}
}

// Login 员工登录
// @Summary 员工登录
// @Description 使用用户名（或邮箱）和密码登录，返回认证令牌
// @Tags 认证
// @Accept json
// @Produce json
// @Param request body loginRequest true "登录凭证"
// @Success 200 {object} authResponse "登录成功"
// @Failure 400 {object} Response "请求参数错误"
// @Failure 401 {object} Response "用户名或密码错误"
// @Failure 403 {object} Response "账号已被禁用"
// @Router /v1/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	resp, err := h.authService.Login(&domain.LoginRequest{
		Username: strings.TrimSpace(req.Username),
		Password: req.Password,
	})
	if err != nil {
		switch err {
		case auth.ErrInvalidCredentials:
			Unauthorized(c, MsgInvalidCredentials)
		case auth.ErrUserInactive:
			Forbidden(c, "账号已被禁用")
		default:
			h.log.Error("failed to login", zap.Error(err))
			InternalError(c, "登录失败，请稍后重试")
		}
		return
	}

	h.log.Info("user logged in",
		zap.String("user_id", resp.User.ID),
		zap.String("username", resp.User.Username),
	)

	Success(c, toAuthResponse(resp))
}

// Logout 员工登出
// @Summary 员工登出
// @Description 将当前访问令牌按剩余有效期拉黑
// @Tags 认证
// @Produce json
// @Security BearerAuth
// @Success 204
// @Router /v1/auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	token := extractBearerToken(c)
	if token != "" {
		if err := h.authService.Logout(token); err != nil {
			h.log.Warn("failed to blacklist token", zap.Error(err))
		}
	}
	NoContent(c)
}

// Refresh 刷新访问令牌
// @Summary 刷新访问令牌
// @Description 使用刷新令牌换取新的令牌对
// @Tags 认证
// @Accept json
// @Produce json
// @Param request body refreshRequest true "包含刷新令牌的请求"
// @Success 200 {object} auth.TokenResponse "新的令牌对"
// @Failure 400 {object} Response "请求参数错误"
// @Failure 401 {object} Response "刷新令牌无效或已过期"
// @Router /v1/auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	tokens, err := h.authService.RefreshToken(&domain.RefreshTokenRequest{RefreshToken: req.RefreshToken})
	if err != nil {
		switch err {
		case jwtpkg.ErrExpiredToken:
			Unauthorized(c, MsgTokenExpired)
		case jwtpkg.ErrInvalidToken:
			Unauthorized(c, MsgTokenInvalid)
		default:
			h.log.Error("failed to refresh token", zap.Error(err))
			InternalError(c, "刷新令牌失败")
		}
		return
	}

	Success(c, tokens)
}

// Me 获取当前登录员工信息
// @Summary 获取当前用户信息
// @Tags 认证
// @Produce json
// @Security BearerAuth
// @Success 200 {object} userResponse "用户信息"
// @Failure 401 {object} Response "未认证或令牌无效"
// @Router /v1/auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	userID, exists := c.Get("userID")
	if !exists {
		Unauthorized(c, MsgAuthRequired)
		return
	}

	user, err := h.authService.GetUserByID(userID.(string))
	if err != nil {
		if err == auth.ErrUserNotFound {
			NotFound(c, "用户不存在")
			return
		}
		h.log.Error("failed to get user", zap.Error(err))
		InternalError(c, MsgInternalError)
		return
	}

	Success(c, toUserResponse(user))
}

// ChangePassword 修改当前账号密码
// @Summary 修改密码
// @Tags 认证
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body changePasswordRequest true "新旧密码"
// @Success 204
// @Failure 400 {object} Response "请求参数错误或新密码不合规"
// @Failure 401 {object} Response "旧密码错误"
// @Router /v1/auth/password [post]
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	userID, exists := c.Get("userID")
	if !exists {
		Unauthorized(c, MsgAuthRequired)
		return
	}

	err := h.authService.ChangePassword(&domain.ChangePasswordRequest{
		UserID:      userID.(string),
		OldPassword: req.OldPassword,
		NewPassword: req.NewPassword,
	})
	if err != nil {
		switch err {
		case auth.ErrInvalidCredentials:
			Unauthorized(c, "旧密码错误")
		case auth.ErrInvalidPassword:
			BadRequest(c, err.Error())
		default:
			h.log.Error("failed to change password", zap.Error(err))
			InternalError(c, MsgInternalError)
		}
		return
	}

	NoContent(c)
}

// Register 开设员工账号（经理及以上）
// @Summary 开设员工账号
// @Description 由经理或管理员为新员工开设账号
// @Tags 认证
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body domain.RegisterRequest true "新账号信息"
// @Success 201 {object} authResponse "开设成功"
// @Failure 400 {object} Response "请求参数错误"
// @Failure 403 {object} Response "权限不足"
// @Failure 409 {object} Response "用户名或邮箱已存在"
// @Router /v1/staff [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req domain.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	operator := operatorFromContext(c)

	resp, err := h.authService.Register(&req, operator)
	if err != nil {
		switch err {
		case auth.ErrNotManager:
			Forbidden(c, MsgPermissionDenied)
		case auth.ErrInvalidEmail:
			BadRequest(c, "邮箱格式无效")
		case auth.ErrInvalidPassword:
			BadRequest(c, err.Error())
		case auth.ErrEmailExists:
			Conflict(c, "该邮箱已被注册")
		case auth.ErrUsernameExists:
			Conflict(c, "该用户名已被使用")
		default:
			h.log.Error("failed to register user", zap.Error(err))
			InternalError(c, "开设账号失败，请稍后重试")
		}
		return
	}

	h.log.Info("staff account created",
		zap.String("user_id", resp.User.ID),
		zap.String("username", resp.User.Username),
		zap.String("role", string(resp.User.Role)),
	)

	Created(c, toAuthResponse(resp))
}

// SetActive 启用或禁用员工账号（经理及以上）
// @Summary 启用或禁用员工账号
// @Tags 认证
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "员工ID"
// @Param request body setActiveRequest true "启用状态"
// @Success 204
// @Failure 403 {object} Response "权限不足"
// @Failure 404 {object} Response "用户不存在"
// @Router /v1/staff/{id}/active [patch]
func (h *AuthHandler) SetActive(c *gin.Context) {
	var req setActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	operator := operatorFromContext(c)

	err := h.authService.SetActive(c.Param("id"), *req.IsActive, operator)
	if err != nil {
		switch err {
		case auth.ErrNotManager:
			Forbidden(c, MsgPermissionDenied)
		case auth.ErrUserNotFound:
			NotFound(c, "用户不存在")
		default:
			h.log.Error("failed to set user active state", zap.Error(err))
			InternalError(c, MsgInternalError)
		}
		return
	}

	NoContent(c)
}

// operatorFromContext 取出中间件注入的当前用户，没有时返回 nil。
func operatorFromContext(c *gin.Context) *domain.User {
	if v, exists := c.Get("user"); exists {
		if user, ok := v.(*domain.User); ok {
			return user
		}
	}
	return nil
}

// extractBearerToken 从 Authorization 头取出 Bearer 令牌。
func extractBearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}
