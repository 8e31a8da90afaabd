package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"mailroom/backend/internal/config"
	"mailroom/backend/internal/domain"
)

// Client 封装 PostgreSQL 连接池
//
// GORM 之外单独维护一个 pgx 连接池，统计聚合和深度健康检查
// 这类原生 SQL 查询从这里走，不占用 GORM 的连接配额。
type Client struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

// New 创建新的 PostgreSQL 客户端
func New(cfg *config.DatabaseConfig, log *zap.Logger) (*Client, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database DSN is required")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database DSN: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	poolConfig.MinConns = int32(cfg.MaxIdleConns)
	poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// 测试连接
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info("connected to PostgreSQL",
		zap.Int("max_conns", cfg.MaxOpenConns),
		zap.Int("min_conns", cfg.MaxIdleConns),
	)

	return &Client{
		pool: pool,
		log:  log,
	}, nil
}

// Pool 返回底层的连接池
func (c *Client) Pool() *pgxpool.Pool {
	return c.pool
}

// Close 关闭数据库连接池
func (c *Client) Close() {
	c.pool.Close()
	c.log.Info("PostgreSQL connection closed")
}

// Ping 测试数据库连接
func (c *Client) Ping(ctx context.Context) error {
	return c.pool.Ping(ctx)
}

// Stats 返回连接池统计信息
func (c *Client) Stats() *pgxpool.Stat {
	return c.pool.Stat()
}

// GetStatistics 单条 SQL 聚合邮务室统计
func (c *Client) GetStatistics() (*domain.MailroomStatistics, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stats := &domain.MailroomStatistics{GeneratedAt: time.Now()}
	row := c.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM contacts),
			(SELECT COUNT(*) FROM contacts WHERE status = 'active'),
			(SELECT COUNT(*) FROM mail_items),
			(SELECT COUNT(*) FROM mail_items WHERE status IN ('received', 'notified')),
			(SELECT COUNT(*) FROM mail_items WHERE received_at >= CURRENT_DATE),
			(SELECT COUNT(*) FROM mail_items WHERE last_notified_at >= CURRENT_DATE),
			(SELECT COUNT(*) FROM todos WHERE NOT completed)`)

	err := row.Scan(
		&stats.TotalContacts,
		&stats.ActiveContacts,
		&stats.TotalMailItems,
		&stats.PendingPickup,
		&stats.ReceivedToday,
		&stats.NotifiedToday,
		&stats.OpenTodos,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate statistics: %w", err)
	}
	return stats, nil
}
