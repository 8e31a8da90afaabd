package auth

import (
	"time"

	"mailroom/backend/internal/auth/jwt"
	"mailroom/backend/internal/config"
	"mailroom/backend/internal/domain"
	"mailroom/backend/internal/storage"
)

// JWTManager JWT 管理器包装
type JWTManager struct {
	manager *jwt.Manager
}

// NewJWTManager 创建 JWT 管理器
func NewJWTManager(cfg *config.JWTConfig) *JWTManager {
	manager := jwt.NewManager(cfg.Secret, cfg.Issuer, cfg.AccessExpiry, cfg.RefreshExpiry)
	return &JWTManager{manager: manager}
}

// TokenResponse 令牌响应
type TokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	TokenType    string `json:"tokenType"`
	ExpiresIn    int64  `json:"expiresIn"`
}

// Claims JWT 声明
type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	JTI      string `json:"jti"`
	Expires  time.Time
}

// GenerateTokens 生成令牌对
func (j *JWTManager) GenerateTokens(userID, username, role string) (*TokenResponse, error) {
	tokenPair, err := j.manager.GenerateTokenPair(userID, username, role)
	if err != nil {
		return nil, err
	}

	return &TokenResponse{
		AccessToken:  tokenPair.AccessToken,
		RefreshToken: tokenPair.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    tokenPair.ExpiresIn,
	}, nil
}

// ValidateToken 验证令牌
func (j *JWTManager) ValidateToken(tokenString string) (*Claims, error) {
	claims, err := j.manager.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}

	return &Claims{
		UserID:   claims.UserID,
		Username: claims.Username,
		Role:     claims.Role,
		JTI:      claims.ID,
		Expires:  claims.ExpiresAt.Time,
	}, nil
}

// AuthService 认证服务包装。在基础认证之上叠加令牌签发、
// 刷新与基于黑名单的登出。
type AuthService struct {
	service    *Service
	jwtManager *JWTManager
	blacklist  storage.JWTRepository
}

// NewAuthService 创建认证服务
func NewAuthService(userRepo UserRepository, jwtManager *JWTManager, blacklist storage.JWTRepository) *AuthService {
	service := NewService(userRepo)
	return &AuthService{
		service:    service,
		jwtManager: jwtManager,
		blacklist:  blacklist,
	}
}

// AuthResponse 认证响应
type AuthResponse struct {
	User         *domain.User `json:"user"`
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
	TokenType    string       `json:"tokenType"`
	ExpiresIn    int64        `json:"expiresIn"`
}

// Register 开设员工账号并签发令牌
func (a *AuthService) Register(req *domain.RegisterRequest, operator *domain.User) (*AuthResponse, error) {
	input := RegisterInput{
		Email:       req.Email,
		Username:    req.Username,
		DisplayName: req.DisplayName,
		Password:    req.Password,
		Role:        req.Role,
	}

	user, err := a.service.Register(input, operator)
	if err != nil {
		return nil, err
	}

	tokens, err := a.jwtManager.GenerateTokens(user.ID, user.Username, string(user.Role))
	if err != nil {
		return nil, err
	}

	return &AuthResponse{
		User:         user,
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		TokenType:    tokens.TokenType,
		ExpiresIn:    tokens.ExpiresIn,
	}, nil
}

// Login 员工登录
func (a *AuthService) Login(req *domain.LoginRequest) (*AuthResponse, error) {
	input := LoginInput{
		Identifier: req.Username, // 可以是用户名或邮箱
		Password:   req.Password,
	}

	user, err := a.service.Login(input)
	if err != nil {
		return nil, err
	}

	tokens, err := a.jwtManager.GenerateTokens(user.ID, user.Username, string(user.Role))
	if err != nil {
		return nil, err
	}

	return &AuthResponse{
		User:         user,
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		TokenType:    tokens.TokenType,
		ExpiresIn:    tokens.ExpiresIn,
	}, nil
}

// RefreshToken 刷新令牌。已登出（拉黑）的刷新令牌不可用。
func (a *AuthService) RefreshToken(req *domain.RefreshTokenRequest) (*TokenResponse, error) {
	claims, err := a.jwtManager.ValidateToken(req.RefreshToken)
	if err != nil {
		return nil, err
	}
	if revoked, err := a.IsRevoked(claims.JTI); err == nil && revoked {
		return nil, jwt.ErrInvalidToken
	}

	tokens, err := a.jwtManager.GenerateTokens(claims.UserID, claims.Username, claims.Role)
	if err != nil {
		return nil, err
	}
	return tokens, nil
}

// Logout 登出：把令牌按剩余有效期拉黑。
func (a *AuthService) Logout(tokenString string) error {
	claims, err := a.jwtManager.ValidateToken(tokenString)
	if err != nil {
		// 过期或非法令牌无需拉黑
		return nil
	}
	ttl := time.Until(claims.Expires)
	if ttl <= 0 {
		return nil
	}
	return a.blacklist.AddToBlacklist(claims.JTI, ttl)
}

// IsRevoked 令牌是否已被拉黑
func (a *AuthService) IsRevoked(jti string) (bool, error) {
	if a.blacklist == nil {
		return false, nil
	}
	return a.blacklist.IsBlacklisted(jti)
}

// ValidateToken 验证访问令牌，含黑名单检查
func (a *AuthService) ValidateToken(tokenString string) (*Claims, error) {
	claims, err := a.jwtManager.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	if revoked, err := a.IsRevoked(claims.JTI); err == nil && revoked {
		return nil, jwt.ErrInvalidToken
	}
	return claims, nil
}

// GetUserByID 根据 ID 获取员工账号
func (a *AuthService) GetUserByID(userID string) (*domain.User, error) {
	return a.service.GetUserByID(userID)
}

// ChangePassword 修改密码
func (a *AuthService) ChangePassword(req *domain.ChangePasswordRequest) error {
	return a.service.ChangePassword(req.UserID, req.OldPassword, req.NewPassword)
}

// SetActive 启用或禁用员工账号
func (a *AuthService) SetActive(userID string, active bool, operator *domain.User) error {
	return a.service.SetActive(userID, active, operator)
}
