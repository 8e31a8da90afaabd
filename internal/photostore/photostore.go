package photostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"mailroom/backend/internal/config"
)

// ErrPhotoNotFound 照片不存在错误
var ErrPhotoNotFound = errors.New("photo not found")

// Store 面单照片归档存储
//
// 扫描录入的每张面单照片按 key 归档，用于事后对账和争议处理。
type Store interface {
	// Save 保存照片，key 由调用方生成，重复 key 覆盖。
	Save(ctx context.Context, key string, data []byte, contentType string) error
	// Load 读取照片内容和内容类型。
	Load(ctx context.Context, key string) ([]byte, string, error)
	// Delete 删除照片，不存在时返回 ErrPhotoNotFound。
	Delete(ctx context.Context, key string) error
	Close() error
}

// New 按配置创建照片存储
func New(cfg *config.PhotoConfig, log *zap.Logger) (Store, error) {
	switch cfg.Backend {
	case "", "local":
		return NewLocal(cfg.LocalDir, log)
	case "s3":
		return NewS3(cfg, log)
	default:
		return nil, fmt.Errorf("unsupported photo backend: %s (supported: local, s3)", cfg.Backend)
	}
}

// PhotoKey 生成归档键
//
// 按天分目录，方便按日期批量巡检和清理。
func PhotoKey(sessionID, itemID string, at time.Time) string {
	return fmt.Sprintf("%s/%s-%s.jpg", at.Format("2006-01-02"), sessionID, itemID)
}
