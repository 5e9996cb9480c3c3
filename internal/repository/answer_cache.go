// Package repository 提供了数据访问层的实现。
package repository

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"pmc-rag-go/internal/model"

	"github.com/go-redis/redis/v8"
)

// AnswerCacheRepository 定义了问答结果缓存的操作接口。
type AnswerCacheRepository interface {
	Get(ctx context.Context, question string) (*model.QueryResult, error)
	Set(ctx context.Context, question string, result model.QueryResult, ttl time.Duration) error
}

type redisAnswerCacheRepository struct {
	redisClient *redis.Client
}

// NewAnswerCacheRepository 创建一个新的 AnswerCacheRepository 实例。
func NewAnswerCacheRepository(redisClient *redis.Client) AnswerCacheRepository {
	return &redisAnswerCacheRepository{redisClient: redisClient}
}

// cacheKey 对问题做归一化后取 sha1，同一问题的大小写/空白差异命中同一键。
func cacheKey(question string) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(question), " "))
	sum := sha1.Sum([]byte(normalized))
	return "answer:" + hex.EncodeToString(sum[:])
}

// Get 查询缓存，未命中时返回 (nil, nil)。
func (r *redisAnswerCacheRepository) Get(ctx context.Context, question string) (*model.QueryResult, error) {
	jsonData, err := r.redisClient.Get(ctx, cacheKey(question)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cached answer: %w", err)
	}
	var result model.QueryResult
	if err := json.Unmarshal([]byte(jsonData), &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached answer: %w", err)
	}
	return &result, nil
}

// Set 写入缓存。
func (r *redisAnswerCacheRepository) Set(ctx context.Context, question string, result model.QueryResult, ttl time.Duration) error {
	jsonData, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal answer: %w", err)
	}
	if err := r.redisClient.Set(ctx, cacheKey(question), jsonData, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set cached answer: %w", err)
	}
	return nil
}
