// Package service 实现了业务逻辑层。
package service

import (
	"context"
	"time"

	"pmc-rag-go/internal/model"
	"pmc-rag-go/internal/pipeline"
	"pmc-rag-go/internal/repository"
	"pmc-rag-go/internal/stats"
	"pmc-rag-go/pkg/events"
	"pmc-rag-go/pkg/kafka"
	"pmc-rag-go/pkg/log"
)

// QueryService 定义了问答查询的业务接口。
type QueryService interface {
	Answer(ctx context.Context, question string) model.QueryResult
	AnswerMarkdown(ctx context.Context, question string, opts pipeline.RenderOptions) string
	Stats() stats.Snapshot
}

type queryService struct {
	pipe      *pipeline.Pipeline
	cache     repository.AnswerCacheRepository
	collector *stats.Collector
	cacheTTL  time.Duration
}

// NewQueryService 创建一个新的 QueryService 实例。cache 可以为 nil（未启用 Redis）。
func NewQueryService(pipe *pipeline.Pipeline, cache repository.AnswerCacheRepository, collector *stats.Collector, cacheTTL time.Duration) QueryService {
	return &queryService{
		pipe:      pipe,
		cache:     cache,
		collector: collector,
		cacheTTL:  cacheTTL,
	}
}

// Answer 执行一次查询：缓存命中直接返回，否则走完整管线，
// 仅缓存得到有效答案的结果，并异步上报使用事件。
func (s *queryService) Answer(ctx context.Context, question string) model.QueryResult {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, question)
		if err != nil {
			log.Warnf("[QueryService] 缓存读取失败: %v", err)
		} else if cached != nil {
			log.Infof("[QueryService] 缓存命中, question: %s", question)
			return *cached
		}
	}

	start := time.Now()
	result := s.pipe.Run(ctx, question)
	duration := time.Since(start)

	answered := !pipeline.IsUnanswerable(result.Answer)
	if answered && s.cache != nil {
		if err := s.cache.Set(ctx, question, result, s.cacheTTL); err != nil {
			log.Warnf("[QueryService] 缓存写入失败: %v", err)
		}
	}

	s.collector.Record(stats.QuerySample{
		Question:   question,
		Topic:      result.Topic,
		Answered:   answered,
		DurationMS: duration.Milliseconds(),
		Timestamp:  time.Now(),
	})

	pmcids := make([]string, 0, len(result.Sources))
	for _, src := range result.Sources {
		pmcids = append(pmcids, src.PMCID)
	}
	kafka.ProduceUsageEventAsync(events.QueryUsageEvent{
		Question:   question,
		Topic:      result.Topic,
		PMCIDs:     pmcids,
		DurationMS: duration.Milliseconds(),
		Timestamp:  time.Now().Unix(),
	})

	return result
}

// AnswerMarkdown 执行查询并渲染为 Markdown 文档。
func (s *queryService) AnswerMarkdown(ctx context.Context, question string, opts pipeline.RenderOptions) string {
	result := s.Answer(ctx, question)
	return pipeline.RenderMarkdown(result, opts)
}

// Stats 返回当前使用统计快照。
func (s *queryService) Stats() stats.Snapshot {
	return s.collector.Snapshot()
}
