// Package stats 维护进程内的查询使用统计。
package stats

import (
	"sync"
	"time"
)

// QuerySample 是一次查询的采样记录。
type QuerySample struct {
	Question   string    `json:"question"`
	Topic      string    `json:"topic"`
	Answered   bool      `json:"answered"`
	DurationMS int64     `json:"duration_ms"`
	Timestamp  time.Time `json:"timestamp"`
}

// Snapshot 是统计数据的一致性快照。
type Snapshot struct {
	Total    int64          `json:"total"`
	Answered int64          `json:"answered"`
	Unsure   int64          `json:"unsure"`
	Topics   map[string]int `json:"topics"`
	Recent   []QuerySample  `json:"recent"`
}

// Collector 以内存计数器统计查询量，保留有界的最近样本环。
type Collector struct {
	mu       sync.Mutex
	total    int64
	answered int64
	unsure   int64
	topics   map[string]int
	recent   []QuerySample
	next     int
	capacity int
}

// NewCollector 创建统计收集器，capacity 为最近样本环的容量。
func NewCollector(capacity int) *Collector {
	if capacity <= 0 {
		capacity = 100
	}
	return &Collector{
		topics:   make(map[string]int),
		recent:   make([]QuerySample, 0, capacity),
		capacity: capacity,
	}
}

// Record 记录一次查询的结果。
func (c *Collector) Record(sample QuerySample) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.total++
	if sample.Answered {
		c.answered++
	} else {
		c.unsure++
	}
	if sample.Topic != "" {
		c.topics[sample.Topic]++
	}

	if len(c.recent) < c.capacity {
		c.recent = append(c.recent, sample)
	} else {
		c.recent[c.next] = sample
		c.next = (c.next + 1) % c.capacity
	}
}

// Snapshot 返回当前统计的拷贝，最近样本按时间先后排列。
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	topics := make(map[string]int, len(c.topics))
	for k, v := range c.topics {
		topics[k] = v
	}

	recent := make([]QuerySample, 0, len(c.recent))
	if len(c.recent) < c.capacity {
		recent = append(recent, c.recent...)
	} else {
		recent = append(recent, c.recent[c.next:]...)
		recent = append(recent, c.recent[:c.next]...)
	}

	return Snapshot{
		Total:    c.total,
		Answered: c.answered,
		Unsure:   c.unsure,
		Topics:   topics,
		Recent:   recent,
	}
}

// Reset 清空全部统计。
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.total, c.answered, c.unsure = 0, 0, 0
	c.topics = make(map[string]int)
	c.recent = c.recent[:0]
	c.next = 0
}
