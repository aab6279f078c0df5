package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/MfFischer/makersai-studio/pkg/logger"
)

// Store 字节缓存
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
}

// CompressedStore 使用 zstd 压缩缓存值，主要用于体积较大的预览图
type CompressedStore struct {
	inner   Store
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewCompressedStore 包装底层缓存，level 为 zstd 压缩级别 (1-22)
func NewCompressedStore(inner Store, level int) (*CompressedStore, error) {
	if level <= 0 {
		level = 3
	}
	encoder, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		_ = encoder.Close()
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &CompressedStore{inner: inner, encoder: encoder, decoder: decoder}, nil
}

// Get 读取并解压，解压失败视为未命中
func (s *CompressedStore) Get(ctx context.Context, key string) ([]byte, bool) {
	data, ok := s.inner.Get(ctx, key)
	if !ok {
		return nil, false
	}
	out, err := s.decoder.DecodeAll(data, nil)
	if err != nil {
		logger.Warn(ctx, "cache value decompression failed, treating as miss", "key", key, "error", err.Error())
		return nil, false
	}
	return out, true
}

// Set 压缩后写入
func (s *CompressedStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	s.inner.Set(ctx, key, s.encoder.EncodeAll(value, nil), ttl)
}

// Close 释放编解码器
func (s *CompressedStore) Close() error {
	s.decoder.Close()
	return s.encoder.Close()
}
