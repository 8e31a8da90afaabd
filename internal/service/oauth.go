package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"mailroom/backend/internal/config"
	"mailroom/backend/internal/domain"
	"mailroom/backend/internal/storage"
)

var (
	ErrGmailNotConfigured = errors.New("gmail oauth is not configured")
	ErrGmailNotConnected  = errors.New("gmail account is not connected")
	ErrOAuthStateMismatch = errors.New("oauth state mismatch")
)

// Gmail 发信所需的最小授权范围
const gmailSendScope = "https://mail.google.com/"

// stateTTL 授权跳转到回调之间允许的最长间隔
const stateTTL = 10 * time.Minute

// GmailOAuthService 管理员工 Gmail 账号的 OAuth 授权。
//
// 员工在设置页完成 Google 授权后，刷新令牌落库，之后发通知
// 时按需换取访问令牌，不保存任何账号密码。
type GmailOAuthService struct {
	store       storage.Store
	oauth       *oauth2.Config
	userinfoURL string
	logger      *zap.Logger
}

// NewGmailOAuthService 创建 Gmail 授权服务。
func NewGmailOAuthService(store storage.Store, cfg *config.NotifyConfig, logger *zap.Logger) *GmailOAuthService {
	var oauthCfg *oauth2.Config
	if cfg.ClientID != "" && cfg.ClientSecret != "" {
		oauthCfg = &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{gmailSendScope, "email"},
			Endpoint:     google.Endpoint,
		}
	}
	return &GmailOAuthService{
		store:       store,
		oauth:       oauthCfg,
		userinfoURL: "https://www.googleapis.com/oauth2/v2/userinfo",
		logger:      logger,
	}
}

// Configured 返回是否配置了 Google OAuth 客户端。
func (s *GmailOAuthService) Configured() bool {
	return s.oauth != nil
}

// AuthURL 生成授权跳转地址。
//
// state 在服务端留档，回调时校验，防止跨站请求伪造。
func (s *GmailOAuthService) AuthURL(userID string) (string, error) {
	if s.oauth == nil {
		return "", ErrGmailNotConfigured
	}

	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	state := base64.RawURLEncoding.EncodeToString(buf)

	if _, err := s.store.IncrementRateLimit("oauth:state:"+state+":"+userID, stateTTL); err != nil {
		return "", err
	}

	// AccessTypeOffline 才会发刷新令牌
	return s.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce), nil
}

// HandleCallback 处理授权回调，换取并保存令牌。
func (s *GmailOAuthService) HandleCallback(ctx context.Context, userID, state, code string) (*domain.OAuthToken, error) {
	if s.oauth == nil {
		return nil, ErrGmailNotConfigured
	}

	stateKey := "oauth:state:" + state + ":" + userID
	count, err := s.store.GetRateLimit(stateKey)
	if err != nil || count == 0 {
		return nil, ErrOAuthStateMismatch
	}
	// state 一次有效，校验通过即作废，TTL 剩余时间内也不能重放
	if err := s.store.DeleteRateLimit(stateKey); err != nil {
		s.logger.Warn("failed to consume oauth state", zap.Error(err))
	}

	tok, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("oauth exchange failed: %w", err)
	}

	email, err := s.fetchAccountEmail(ctx, tok)
	if err != nil {
		s.logger.Warn("failed to resolve gmail address", zap.Error(err))
	}

	record := &domain.OAuthToken{
		UserID:       userID,
		Provider:     domain.ProviderGmail,
		Email:        email,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		Expiry:       tok.Expiry,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	if err := s.store.SaveOAuthToken(record); err != nil {
		return nil, err
	}

	s.logger.Info("gmail account connected",
		zap.String("user", userID),
		zap.String("email", email))
	return record, nil
}

// Status 返回用户的 Gmail 连接状态。
func (s *GmailOAuthService) Status(userID string) (connected bool, email string) {
	record, err := s.store.GetOAuthToken(userID, domain.ProviderGmail)
	if err != nil {
		return false, ""
	}
	return true, record.Email
}

// Disconnect 断开 Gmail 连接并删除令牌。
func (s *GmailOAuthService) Disconnect(userID string) error {
	return s.store.DeleteOAuthToken(userID, domain.ProviderGmail)
}

// SenderCredentials 返回发信账号和当前有效的访问令牌。
//
// 令牌过期时用刷新令牌换新，并把新令牌写回存储。
func (s *GmailOAuthService) SenderCredentials(userID string) (email, accessToken string, err error) {
	if s.oauth == nil {
		return "", "", ErrGmailNotConfigured
	}

	record, err := s.store.GetOAuthToken(userID, domain.ProviderGmail)
	if err != nil {
		if errors.Is(err, storage.ErrOAuthTokenNotFound) {
			return "", "", ErrGmailNotConnected
		}
		return "", "", err
	}

	stored := &oauth2.Token{
		AccessToken:  record.AccessToken,
		RefreshToken: record.RefreshToken,
		TokenType:    record.TokenType,
		Expiry:       record.Expiry,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	fresh, err := s.oauth.TokenSource(ctx, stored).Token()
	if err != nil {
		return "", "", fmt.Errorf("failed to refresh gmail token: %w", err)
	}

	if fresh.AccessToken != record.AccessToken {
		record.AccessToken = fresh.AccessToken
		if fresh.RefreshToken != "" {
			record.RefreshToken = fresh.RefreshToken
		}
		record.Expiry = fresh.Expiry
		record.UpdatedAt = time.Now()
		if err := s.store.SaveOAuthToken(record); err != nil {
			s.logger.Error("failed to persist refreshed token", zap.Error(err))
		}
	}

	return record.Email, fresh.AccessToken, nil
}

// fetchAccountEmail 用访问令牌查询授权账号的邮箱地址。
func (s *GmailOAuthService) fetchAccountEmail(ctx context.Context, tok *oauth2.Token) (string, error) {
	client := s.oauth.Client(ctx, tok)
	resp, err := client.Get(s.userinfoURL)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return "", fmt.Errorf("userinfo returned %d: %s", resp.StatusCode, string(body))
	}

	var info struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return "", err
	}
	return info.Email, nil
}
