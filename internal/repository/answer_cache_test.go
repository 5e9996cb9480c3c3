package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCacheKeyNormalization(t *testing.T) {
	// 大小写与空白差异命中同一键
	assert.Equal(t, cacheKey("What is bone loss?"), cacheKey("  what   is BONE loss?  "))
	assert.NotEqual(t, cacheKey("bone loss"), cacheKey("muscle atrophy"))
	assert.Contains(t, cacheKey("q"), "answer:")
}
