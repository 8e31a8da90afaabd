package hybrid

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"mailroom/backend/internal/config"
	"mailroom/backend/internal/domain"
	"mailroom/backend/internal/storage/postgres"
	"mailroom/backend/internal/storage/redis"
)

// Store 混合存储实现，结合 PostgreSQL 和 Redis
//
// 联系人、邮件、历史、待办、账号走 PostgreSQL 持久化；
// 扫描会话、JWT 黑名单、限流计数走 Redis，靠键 TTL 过期。
type Store struct {
	*postgres.Store
	cache *redis.Cache
	rdb   *redis.Client
}

// NewStore 创建混合存储实例
func NewStore(dbCfg *config.DatabaseConfig, redisCfg *config.RedisConfig, log *zap.Logger) (*Store, error) {
	var (
		dbStore *postgres.Store
		err     error
	)
	switch dbCfg.Type {
	case "mysql":
		// MySQL DSN 不能喂给 pgxpool，辅助客户端只在 PostgreSQL 下建
		dbStore, err = postgres.NewMySQLStore(dbCfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
	case "", "postgres", "postgresql":
		pgClient, cerr := postgres.New(dbCfg, log)
		if cerr != nil {
			return nil, fmt.Errorf("failed to initialize pgx pool: %w", cerr)
		}
		dbStore, err = postgres.NewStore(dbCfg.DSN, pgClient)
		if err != nil {
			pgClient.Close()
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported database type: %s (supported: mysql, postgres)", dbCfg.Type)
	}

	rdb, err := redis.New(redisCfg, log)
	if err != nil {
		dbStore.Close()
		return nil, fmt.Errorf("failed to initialize redis: %w", err)
	}

	return &Store{
		Store: dbStore,
		cache: redis.NewCache(rdb),
		rdb:   rdb,
	}, nil
}

// ========== 扫描会话（Redis） ==========

// SaveScanSession 保存扫描会话
func (s *Store) SaveScanSession(session *domain.ScanSession, ttl time.Duration) error {
	return s.cache.SaveScanSession(session, ttl)
}

// GetScanSession 获取扫描会话
func (s *Store) GetScanSession(id string) (*domain.ScanSession, error) {
	return s.cache.GetScanSession(id)
}

// GetScanSessionByOperator 获取指定操作员的扫描会话
func (s *Store) GetScanSessionByOperator(operatorID string) (*domain.ScanSession, error) {
	return s.cache.GetScanSessionByOperator(operatorID)
}

// DeleteScanSession 删除扫描会话
func (s *Store) DeleteScanSession(id string) error {
	return s.cache.DeleteScanSession(id)
}

// DeleteExpiredScanSessions 过期清理，Redis 键自动过期
func (s *Store) DeleteExpiredScanSessions() (int, error) {
	return s.cache.DeleteExpiredScanSessions()
}

// ========== JWT 黑名单（Redis） ==========

// AddToBlacklist 将 JWT 加入黑名单
func (s *Store) AddToBlacklist(jti string, ttl time.Duration) error {
	return s.cache.AddToBlacklist(jti, ttl)
}

// IsBlacklisted 检查 JWT 是否在黑名单中
func (s *Store) IsBlacklisted(jti string) (bool, error) {
	return s.cache.IsBlacklisted(jti)
}

// ========== 限流（Redis） ==========

// IncrementRateLimit 递增限流计数
func (s *Store) IncrementRateLimit(key string, window time.Duration) (int64, error) {
	return s.cache.IncrementRateLimit(key, window)
}

// GetRateLimit 获取限流计数
func (s *Store) GetRateLimit(key string) (int64, error) {
	return s.cache.GetRateLimit(key)
}

// DeleteRateLimit 删除限流计数
func (s *Store) DeleteRateLimit(key string) error {
	return s.cache.DeleteRateLimit(key)
}

// ========== 工具方法 ==========

// Close 依次关闭 Redis 和 PostgreSQL 连接
func (s *Store) Close() error {
	rErr := s.rdb.Close()
	pErr := s.Store.Close()
	if pErr != nil {
		return pErr
	}
	return rErr
}

// Health 检查两个后端的连通性
func (s *Store) Health() error {
	if err := s.Store.Health(); err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	ctx, cancel := contextWithTimeout()
	defer cancel()
	if err := s.rdb.Ping(ctx); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	return nil
}
