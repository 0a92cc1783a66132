package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/Tuns2000/Campusfix-sub000/config"
)

// ErrNotExist 对象不存在
var ErrNotExist = errors.New("storage: 对象不存在")

// ErrInvalidKey 对象键非法（绝对路径、包含 .. 等）
var ErrInvalidKey = errors.New("storage: 非法的对象键")

// ObjectInfo 对象元信息
type ObjectInfo struct {
	Key     string
	Size    int64
	ModTime time.Time
}

// Object 可读取的对象
type Object struct {
	io.ReadCloser
	ObjectInfo
}

// Storage 附件存储抽象
// 键统一使用 "/" 分隔的相对路径，如 2026-10/<uuid>.pdf
type Storage interface {
	Save(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Open(ctx context.Context, key string) (*Object, error)
	Remove(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	List(ctx context.Context) ([]ObjectInfo, error)
}

// New 按配置创建存储驱动
func New(ctx context.Context, cfg *config.UploadConfig, logger *zap.Logger) (Storage, error) {
	switch cfg.Driver {
	case "", "local":
		s, err := NewLocal(cfg.Dir)
		if err != nil {
			return nil, err
		}
		logger.Info("附件存储: 本地磁盘", zap.String("dir", cfg.Dir))
		return s, nil
	case "minio":
		s, err := NewMinio(ctx, &cfg.Minio)
		if err != nil {
			return nil, err
		}
		logger.Info("附件存储: MinIO",
			zap.String("endpoint", cfg.Minio.Endpoint),
			zap.String("bucket", cfg.Minio.Bucket),
		)
		return s, nil
	default:
		return nil, fmt.Errorf("不支持的存储驱动: %s", cfg.Driver)
	}
}
