package photostore

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// Local 本地文件系统照片存储
//
// key 直接映射为存储目录下的相对路径。写入先落临时文件再
// rename，避免进程中断留下半截文件。
type Local struct {
	dir string
	log *zap.Logger
}

// NewLocal 创建本地照片存储
func NewLocal(dir string, log *zap.Logger) (*Local, error) {
	if dir == "" {
		return nil, fmt.Errorf("photo storage dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create photo dir: %w", err)
	}
	return &Local{dir: dir, log: log}, nil
}

// Save 保存照片
func (l *Local) Save(_ context.Context, key string, data []byte, _ string) error {
	path, err := l.resolve(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".photo-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}

// Load 读取照片
func (l *Local) Load(_ context.Context, key string) ([]byte, string, error) {
	path, err := l.resolve(key)
	if err != nil {
		return nil, "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", ErrPhotoNotFound
		}
		return nil, "", err
	}
	return data, http.DetectContentType(data), nil
}

// Delete 删除照片
func (l *Local) Delete(_ context.Context, key string) error {
	path, err := l.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return ErrPhotoNotFound
		}
		return err
	}
	return nil
}

// Close 关闭存储
func (l *Local) Close() error {
	return nil
}

// resolve 将 key 解析为存储目录内的绝对路径，拒绝目录穿越。
func (l *Local) resolve(key string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(key))
	if cleaned == "." || strings.HasPrefix(cleaned, "..") || filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("invalid photo key: %s", key)
	}
	return filepath.Join(l.dir, cleaned), nil
}
