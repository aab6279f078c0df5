// Package objectstore 提供基于 S3 兼容对象存储的预览图存储
package objectstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.opentelemetry.io/otel/attribute"

	"github.com/MfFischer/makersai-studio/internal/application/generation"
	"github.com/MfFischer/makersai-studio/internal/config"
	"github.com/MfFischer/makersai-studio/pkg/logger"
	"github.com/MfFischer/makersai-studio/pkg/tracer"
)

const putTimeout = 15 * time.Second

// PreviewStore 把预览图写入对象存储并返回公开 URL
type PreviewStore struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

// ValidateConfig 校验对象存储配置
func ValidateConfig(c config.MinIOConfig) error {
	if strings.TrimSpace(c.Endpoint) == "" {
		return errors.New("minio endpoint is required")
	}
	if strings.Contains(c.Endpoint, "://") {
		return fmt.Errorf("minio endpoint must not include scheme: %q", c.Endpoint)
	}
	if strings.TrimSpace(c.AccessKey) == "" || strings.TrimSpace(c.SecretKey) == "" {
		return errors.New("minio access key and secret key are required")
	}
	if strings.TrimSpace(c.Bucket) == "" {
		return errors.New("minio bucket is required")
	}
	return nil
}

// NewPreviewStore 创建客户端并确保 bucket 存在
func NewPreviewStore(ctx context.Context, c config.MinIOConfig) (*PreviewStore, error) {
	if err := ValidateConfig(c); err != nil {
		return nil, err
	}
	client, err := minio.New(c.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(c.AccessKey, c.SecretKey, ""),
		Secure: c.UseSSL,
		Region: c.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, c.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %s: %w", c.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, c.Bucket, minio.MakeBucketOptions{Region: c.Region}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", c.Bucket, err)
		}
		logger.Info(ctx, "created preview bucket", "bucket", c.Bucket)
	}

	return &PreviewStore{
		client:    client,
		bucket:    c.Bucket,
		publicURL: publicBase(c),
	}, nil
}

// Put 上传预览图，键由内容摘要决定，相同图片只存一份
func (s *PreviewStore) Put(ctx context.Context, img generation.RenderedImage) (string, error) {
	ctx, span := tracer.Start(ctx, "objectstore.PutPreview")

	data, err := base64.StdEncoding.DecodeString(img.Base64)
	if err != nil {
		tracer.End(span, err)
		return "", fmt.Errorf("decode preview image: %w", err)
	}
	contentType := img.MIMEType
	if contentType == "" {
		contentType = "image/png"
	}
	key := objectKey(data, contentType)
	span.SetAttributes(
		attribute.String("objectstore.bucket", s.bucket),
		attribute.String("objectstore.key", key),
		attribute.Int("objectstore.size", len(data)),
	)

	putCtx, cancel := context.WithTimeout(ctx, putTimeout)
	defer cancel()
	_, err = s.client.PutObject(
		putCtx,
		s.bucket,
		key,
		bytes.NewReader(data),
		int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType},
	)
	if err != nil {
		tracer.End(span, err)
		return "", fmt.Errorf("put preview %s: %w", key, err)
	}
	span.End()
	return s.publicURL + "/" + key, nil
}

// HealthCheck 检查 bucket 可访问
func (s *PreviewStore) HealthCheck(ctx context.Context) error {
	ok, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("bucket %s does not exist", s.bucket)
	}
	return nil
}

func objectKey(data []byte, contentType string) string {
	sum := sha256.Sum256(data)
	ext := ".png"
	switch contentType {
	case "image/jpeg":
		ext = ".jpg"
	case "image/webp":
		ext = ".webp"
	}
	return "previews/" + hex.EncodeToString(sum[:]) + ext
}

func publicBase(c config.MinIOConfig) string {
	if u := strings.TrimRight(strings.TrimSpace(c.PublicURL), "/"); u != "" {
		return u
	}
	scheme := "http"
	if c.UseSSL {
		scheme = "https"
	}
	return scheme + "://" + c.Endpoint + "/" + c.Bucket
}
