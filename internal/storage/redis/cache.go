package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"mailroom/backend/internal/domain"
	"mailroom/backend/internal/storage"
)

// Redis 键前缀
const (
	scanSessionKey  = "scan:session:%s"  // 按会话 ID
	scanOperatorKey = "scan:operator:%s" // 操作员 -> 会话 ID
	blacklistKey    = "jwt:blacklist:%s"
	rateLimitKey    = "ratelimit:%s"
)

// Cache 基于 Redis 的易失数据存储
//
// 承载扫描会话、JWT 黑名单和限流计数这类带 TTL 的数据，
// 过期靠键过期实现，不需要扫描清理。
type Cache struct {
	client *Client
	ctx    context.Context
}

// NewCache 创建 Redis 缓存实例
func NewCache(client *Client) *Cache {
	return &Cache{
		client: client,
		ctx:    context.Background(),
	}
}

// ========== 扫描会话 ==========

// SaveScanSession 序列化并保存扫描会话，同时维护操作员索引。
func (c *Cache) SaveScanSession(session *domain.ScanSession, ttl time.Duration) error {
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	key := fmt.Sprintf(scanSessionKey, session.ID)
	if err := c.client.Set(c.ctx, key, data, ttl); err != nil {
		return err
	}
	opKey := fmt.Sprintf(scanOperatorKey, session.OperatorID)
	return c.client.Set(c.ctx, opKey, session.ID, ttl)
}

// GetScanSession 获取扫描会话。
func (c *Cache) GetScanSession(id string) (*domain.ScanSession, error) {
	data, err := c.client.Get(c.ctx, fmt.Sprintf(scanSessionKey, id))
	if err != nil {
		if err == goredis.Nil {
			return nil, storage.ErrScanSessionNotFound
		}
		return nil, err
	}

	var session domain.ScanSession
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// GetScanSessionByOperator 获取指定操作员的扫描会话。
func (c *Cache) GetScanSessionByOperator(operatorID string) (*domain.ScanSession, error) {
	id, err := c.client.Get(c.ctx, fmt.Sprintf(scanOperatorKey, operatorID))
	if err != nil {
		if err == goredis.Nil {
			return nil, storage.ErrScanSessionNotFound
		}
		return nil, err
	}
	return c.GetScanSession(id)
}

// DeleteScanSession 删除扫描会话及操作员索引。
func (c *Cache) DeleteScanSession(id string) error {
	session, err := c.GetScanSession(id)
	if err != nil {
		return err
	}
	return c.client.Del(c.ctx,
		fmt.Sprintf(scanSessionKey, id),
		fmt.Sprintf(scanOperatorKey, session.OperatorID))
}

// DeleteExpiredScanSessions 过期清理。
//
// Redis 靠键 TTL 自动过期，这里恒为 0。
func (c *Cache) DeleteExpiredScanSessions() (int, error) {
	return 0, nil
}

// ========== JWT 黑名单 ==========

// AddToBlacklist 将 JWT 加入黑名单，过期自动移出。
func (c *Cache) AddToBlacklist(jti string, ttl time.Duration) error {
	return c.client.Set(c.ctx, fmt.Sprintf(blacklistKey, jti), "1", ttl)
}

// IsBlacklisted 检查 JWT 是否在黑名单中。
func (c *Cache) IsBlacklisted(jti string) (bool, error) {
	n, err := c.client.Exists(c.ctx, fmt.Sprintf(blacklistKey, jti))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ========== 限流 ==========

// IncrementRateLimit 递增限流计数，首次递增时设置窗口过期。
func (c *Cache) IncrementRateLimit(key string, window time.Duration) (int64, error) {
	fullKey := fmt.Sprintf(rateLimitKey, key)
	count, err := c.client.Incr(c.ctx, fullKey)
	if err != nil {
		return 0, err
	}
	if count == 1 {
		if err := c.client.Expire(c.ctx, fullKey, window); err != nil {
			return count, err
		}
	}
	return count, nil
}

// DeleteRateLimit 删除限流计数。
func (c *Cache) DeleteRateLimit(key string) error {
	return c.client.Del(c.ctx, fmt.Sprintf(rateLimitKey, key))
}

// GetRateLimit 获取限流计数当前值。
func (c *Cache) GetRateLimit(key string) (int64, error) {
	data, err := c.client.Get(c.ctx, fmt.Sprintf(rateLimitKey, key))
	if err != nil {
		if err == goredis.Nil {
			return 0, nil
		}
		return 0, err
	}
	var count int64
	if _, err := fmt.Sscanf(data, "%d", &count); err != nil {
		return 0, err
	}
	return count, nil
}
