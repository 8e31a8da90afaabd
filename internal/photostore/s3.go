package photostore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	"mailroom/backend/internal/config"
)

// S3 对象存储照片归档
//
// 配置了静态密钥时用静态凭证（MinIO 等自建服务），否则走
// AWS SDK 默认链（环境变量、共享配置、实例角色）。
// Endpoint 非空时指向 S3 兼容服务，并启用路径寻址。
type S3 struct {
	client *awss3.Client
	bucket string
	log    *zap.Logger
}

// NewS3 创建 S3 照片存储
func NewS3(cfg *config.PhotoConfig, log *zap.Logger) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	ctx := context.Background()
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	log.Info("photo archive using S3",
		zap.String("bucket", cfg.Bucket),
		zap.String("region", cfg.Region),
	)

	return &S3{client: client, bucket: cfg.Bucket, log: log}, nil
}

// Save 保存照片
func (s *S3) Save(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, &awss3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload photo: %w", err)
	}
	return nil
}

// Load 读取照片
func (s *S3) Load(ctx context.Context, key string) ([]byte, string, error) {
	out, err := s.client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, "", ErrPhotoNotFound
		}
		return nil, "", fmt.Errorf("failed to download photo: %w", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, "", err
	}
	return data, aws.ToString(out.ContentType), nil
}

// Delete 删除照片
//
// S3 删除不存在的对象也返回成功，这里先探测一次保持与
// 本地实现一致的语义。
func (s *S3) Delete(ctx context.Context, key string) error {
	_, err := s.client.HeadObject(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return ErrPhotoNotFound
		}
		return err
	}

	_, err = s.client.DeleteObject(ctx, &awss3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	return err
}

// Close 关闭存储
func (s *S3) Close() error {
	return nil
}
