package memory

import (
	"errors"
	"strings"
	"time"

	"mailroom/backend/internal/domain"
	"mailroom/backend/internal/storage"
)

var ErrEmailExists = errors.New("email already exists")

// CreateUser 创建员工账号。
func (s *Store) CreateUser(user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(user.Email)
	if _, ok := s.byEmail[email]; ok {
		return ErrEmailExists
	}
	if _, ok := s.byUsername[user.Username]; ok {
		return ErrEmailExists
	}

	u := *user
	s.users[user.ID] = &u
	s.byEmail[email] = user.ID
	s.byUsername[user.Username] = user.ID
	return nil
}

// GetUserByID 根据 ID 获取用户。
func (s *Store) GetUserByID(id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	u := *user
	return &u, nil
}

// GetUserByEmail 根据邮箱获取用户。
func (s *Store) GetUserByEmail(email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	u := *s.users[id]
	return &u, nil
}

// GetUserByUsername 根据用户名获取用户。
func (s *Store) GetUserByUsername(username string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byUsername[username]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	u := *s.users[id]
	return &u, nil
}

// UpdateUser 更新用户。
func (s *Store) UpdateUser(user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.users[user.ID]
	if !ok {
		return storage.ErrUserNotFound
	}
	if oldEmail := strings.ToLower(old.Email); oldEmail != strings.ToLower(user.Email) {
		delete(s.byEmail, oldEmail)
		s.byEmail[strings.ToLower(user.Email)] = user.ID
	}
	if old.Username != user.Username {
		delete(s.byUsername, old.Username)
		s.byUsername[user.Username] = user.ID
	}

	u := *user
	s.users[user.ID] = &u
	return nil
}

// UpdateLastLogin 更新最后登录时间。
func (s *Store) UpdateLastLogin(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok {
		return storage.ErrUserNotFound
	}
	now := time.Now()
	user.LastLoginAt = &now
	return nil
}

// SaveOAuthToken 保存第三方授权令牌。
func (s *Store) SaveOAuthToken(token *domain.OAuthToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := *token
	s.oauthTokens[token.UserID+":"+token.Provider] = &t
	return nil
}

// GetOAuthToken 获取第三方授权令牌。
func (s *Store) GetOAuthToken(userID, provider string) (*domain.OAuthToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	token, ok := s.oauthTokens[userID+":"+provider]
	if !ok {
		return nil, storage.ErrOAuthTokenNotFound
	}
	t := *token
	return &t, nil
}

// DeleteOAuthToken 删除第三方授权令牌。
func (s *Store) DeleteOAuthToken(userID, provider string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := userID + ":" + provider
	if _, ok := s.oauthTokens[key]; !ok {
		return storage.ErrOAuthTokenNotFound
	}
	delete(s.oauthTokens, key)
	return nil
}

// AddToBlacklist 将 JWT 加入黑名单。
func (s *Store) AddToBlacklist(jti string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.blacklist[jti] = time.Now().Add(ttl)
	return nil
}

// IsBlacklisted 检查 JWT 是否在黑名单中。
func (s *Store) IsBlacklisted(jti string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiry, ok := s.blacklist[jti]
	if !ok {
		return false, nil
	}
	if time.Now().After(expiry) {
		delete(s.blacklist, jti)
		return false, nil
	}
	return true, nil
}

// IncrementRateLimit 递增限流计数并返回当前值。
func (s *Store) IncrementRateLimit(key string, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if now.After(s.rateLimitsCleanup) {
		for k, entry := range s.rateLimits {
			if now.After(entry.ExpiresAt) {
				delete(s.rateLimits, k)
			}
		}
		s.rateLimitsCleanup = now.Add(5 * time.Minute)
	}

	entry, ok := s.rateLimits[key]
	if !ok || now.After(entry.ExpiresAt) {
		s.rateLimits[key] = &rateLimitEntry{Count: 1, ExpiresAt: now.Add(window)}
		return 1, nil
	}
	entry.Count++
	return entry.Count, nil
}

// DeleteRateLimit 删除限流计数。
func (s *Store) DeleteRateLimit(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rateLimits, key)
	return nil
}

// GetRateLimit 获取限流计数当前值。
func (s *Store) GetRateLimit(key string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.rateLimits[key]
	if !ok || time.Now().After(entry.ExpiresAt) {
		return 0, nil
	}
	return entry.Count, nil
}
