package pipeline

import (
	"context"

	"pmc-rag-go/internal/model"
	"pmc-rag-go/pkg/log"
)

const sourceTitleMaxChars = 200

// KeywordSearcher 是可选的 BM25 关键词召回：为原始问题提供一路额外的
// 排序列表参与 RRF 融合。返回错误或空列表时融合按纯向量路进行。
type KeywordSearcher func(ctx context.Context, query string, k int) ([]model.Record, error)

// Options 配置查询管线。
type Options struct {
	KPerQuery       int
	TopKFinal       int
	RRFK            float64
	MaxContextChars int
	EnableReform    bool
	UseHyde         bool
	NRewrites       int
}

// Pipeline 协调一次查询的完整流程：
// 查询改写 → 批量检索 → RRF 融合 → 上下文组装 → 答案生成 →
// 引用解析 + 图表解析 → 结构化结果。
//
// 任何内部失败都映射为格式良好的降级 QueryResult，公共入口不抛错。
type Pipeline struct {
	retriever *Retriever
	reformer  *Reformer
	generator *Generator
	keyword   KeywordSearcher
	figIndex  FigureIndex
	opts      Options
	available bool
}

// New 创建查询管线。retriever 为 nil 表示索引在启动时不可用，
// 此后每次请求都直接返回固定的"证据不足"结果，直到协作方修复。
func New(retriever *Retriever, reformer *Reformer, generator *Generator, keyword KeywordSearcher, figIndex FigureIndex, opts Options) *Pipeline {
	return &Pipeline{
		retriever: retriever,
		reformer:  reformer,
		generator: generator,
		keyword:   keyword,
		figIndex:  figIndex,
		opts:      opts,
		available: retriever != nil,
	}
}

// Available 报告底层索引是否可用。
func (p *Pipeline) Available() bool {
	return p.available
}

// degradedResult 构造固定的降级结果：unsure 答案、空来源与图表、空主题。
func degradedResult(question string) model.QueryResult {
	return model.QueryResult{
		Question: question,
		Answer:   UnsureAnswer,
		Sources:  []model.SourceItem{},
		Figures:  []model.FigureItem{},
		Topic:    "",
	}
}

// Run 执行一次完整的查询。
func (p *Pipeline) Run(ctx context.Context, question string) model.QueryResult {
	if !p.available {
		log.Warnf("[Pipeline] 索引不可用, 返回降级结果, question: %s", question)
		return degradedResult(question)
	}

	// 1. 构建子查询：原始问题始终排在第一位，改写失败时也能独立成行
	queries := []string{question}
	if p.opts.EnableReform && p.reformer != nil {
		rq := p.reformer.Reform(ctx, question, p.opts.NRewrites, p.opts.UseHyde)
		queries = append(queries, rq.Expansions...)
		if rq.HydeDoc != "" {
			queries = append(queries, rq.HydeDoc)
		}
	}

	// 2. 批量检索，列表顺序与查询顺序一致
	rankings := p.retriever.Batch(ctx, queries, p.opts.KPerQuery)

	// 3. 可选的 BM25 关键词召回作为额外一路
	if p.keyword != nil {
		kwRecords, err := p.keyword(ctx, question, p.opts.KPerQuery)
		if err != nil {
			log.Warnf("[Pipeline] 关键词召回失败, 忽略该路: %v", err)
		} else if len(kwRecords) > 0 {
			rankings = append(rankings, kwRecords)
		}
	}

	// 4. 全部子查询都空手而归时视同索引不可用（仅针对本次请求）
	if allEmpty(rankings) {
		log.Warnf("[Pipeline] 所有子查询均无命中, question: %s", question)
		return degradedResult(question)
	}

	// 5. RRF 融合 + 上下文组装
	fused := FuseRRF(rankings, p.opts.RRFK, p.opts.TopKFinal)
	contextBlock := BuildContext(fused, p.opts.MaxContextChars)

	// 6. 生成答案（失败 → 空串，结果仍然格式良好）
	answer := p.generator.Generate(ctx, question, contextBlock)

	// 7. 收集来源与图表
	sources := formatSources(fused)
	figures := CollectFigures(fused, p.figIndex)

	// 8. 主题提取（无法回答 → 空串；其余失败 → "General"）
	topic := p.generator.ExtractTopic(ctx, question, answer)

	return model.QueryResult{
		Question: question,
		Answer:   answer,
		Sources:  sources,
		Figures:  figures,
		Topic:    topic,
	}
}

func allEmpty(rankings [][]model.Record) bool {
	for _, ranking := range rankings {
		if len(ranking) > 0 {
			return false
		}
	}
	return true
}

// formatSources 按 PMCID 去重并保持首次出现顺序，标题截断到 200 字符。
func formatSources(records []model.Record) []model.SourceItem {
	out := make([]model.SourceItem, 0)
	seen := make(map[string]struct{})
	for _, rec := range records {
		if rec.PMCID == "" {
			continue
		}
		if _, dup := seen[rec.PMCID]; dup {
			continue
		}
		seen[rec.PMCID] = struct{}{}

		out = append(out, model.SourceItem{
			PMCID: rec.PMCID,
			Title: truncateRunes(rec.Title, sourceTitleMaxChars),
			URL:   rec.ArticleURL(),
		})
	}
	return out
}
