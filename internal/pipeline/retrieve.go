package pipeline

import (
	"context"
	"fmt"
	"sync"

	"pmc-rag-go/internal/model"
	"pmc-rag-go/pkg/embedding"
	"pmc-rag-go/pkg/log"
	"pmc-rag-go/pkg/vectorindex"
)

// Retriever 把查询文本向量化后在只读索引上做最近邻检索，
// 再把命中位置映射回元数据记录。
type Retriever struct {
	store    *vectorindex.Store
	embedder embedding.Client
}

// NewRetriever 创建 Retriever。
func NewRetriever(store *vectorindex.Store, embedder embedding.Client) *Retriever {
	return &Retriever{store: store, embedder: embedder}
}

// Retrieve 为单个查询返回最优先的 k 条记录。
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]model.Record, error) {
	vec, err := r.embedder.CreateEmbedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	hits, err := r.store.Search(vec, k)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	records := make([]model.Record, 0, len(hits))
	for _, hit := range hits {
		rec, err := r.store.GetByPosition(hit.Position)
		if err != nil {
			return nil, fmt.Errorf("failed to map hit position: %w", err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// Batch 对每个查询独立检索。各查询之间没有数据依赖，这里并发执行，
// 但结果按输入顺序写回固定下标：融合阶段依赖列表顺序与查询顺序的
// 位置对应关系。单个查询失败只产生一个空列表，不中断整批。
func (r *Retriever) Batch(ctx context.Context, queries []string, k int) [][]model.Record {
	rankings := make([][]model.Record, len(queries))

	var wg sync.WaitGroup
	for i, q := range queries {
		wg.Add(1)
		go func(idx int, query string) {
			defer wg.Done()
			records, err := r.Retrieve(ctx, query, k)
			if err != nil {
				log.Warnf("[Retriever] 子查询检索失败 (idx=%d): %v", idx, err)
				return
			}
			rankings[idx] = records
		}(i, q)
	}
	wg.Wait()

	return rankings
}
