package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"path/filepath"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/qs3c/tender_rag_server/config"
	"github.com/qs3c/tender_rag_server/internal/pkg/oss"
)

// Mirror 报告文件的对象存储副本
type Mirror interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
}

// New 按配置选择 OSS 或 S3，都未配置时返回 nil
func New(cfg *config.Config) (Mirror, error) {
	switch {
	case cfg.OSS.Endpoint != "" && cfg.OSS.AccessKeyID != "":
		client, err := oss.NewClient(&cfg.OSS)
		if err != nil {
			return nil, err
		}
		return client, nil
	case cfg.S3.Endpoint != "" && cfg.S3.Bucket != "":
		client, err := NewS3(&cfg.S3)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, nil
	}
}

// ObjectKey 报告在对象存储中的位置：reports/<day>/<file>
func ObjectKey(localPath string) string {
	day := filepath.Base(filepath.Dir(localPath))
	return path.Join("reports", day, filepath.Base(localPath))
}

// S3 兼容 S3 协议的对象存储（MinIO 等）
type S3 struct {
	client   *minio.Client
	endpoint string
	bucket   string
	secure   bool
}

func NewS3(cfg *config.S3Config) (*S3, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}

	return &S3{
		client:   client,
		endpoint: cfg.Endpoint,
		bucket:   cfg.Bucket,
		secure:   cfg.UseSSL,
	}, nil
}

func (s *S3) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("s3 put object: %w", err)
	}
	return s.URL(key), nil
}

func (s *S3) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("s3 get object: %w", err)
	}
	// GetObject 不发请求，Stat 确认对象存在
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, fmt.Errorf("s3 stat object: %w", err)
	}
	return obj, nil
}

// URL path-style 访问地址
func (s *S3) URL(key string) string {
	scheme := "http"
	if s.secure {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, s.endpoint, s.bucket, key)
}
