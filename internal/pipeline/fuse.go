package pipeline

import (
	"sort"

	"pmc-rag-go/internal/model"
)

// FuseRRF 用 Reciprocal Rank Fusion 合并多路排序列表。
//
// 同一记录在第 i 路列表中以零起排名 r 出现时，累加 1/(kConst+r+1)；
// 未出现的列表不贡献分数。按总分降序返回前 topK 条，
// 同分时按跨全部列表的首次发现顺序排列。首次发现序号作为显式的
// 次级排序键记录下来，不依赖底层排序算法的稳定性。
func FuseRRF(rankings [][]model.Record, kConst float64, topK int) []model.Record {
	type fusedDoc struct {
		rec   model.Record
		score float64
		disc  int // 首次发现顺序
	}

	byKey := make(map[string]*fusedDoc)
	var order []*fusedDoc

	for _, ranking := range rankings {
		for rank, rec := range ranking {
			key := rec.FuseKey()
			doc, ok := byKey[key]
			if !ok {
				doc = &fusedDoc{rec: rec, disc: len(order)}
				byKey[key] = doc
				order = append(order, doc)
			}
			doc.score += 1.0 / (kConst + float64(rank) + 1.0)
		}
	}

	sort.Slice(order, func(i, j int) bool {
		if order[i].score != order[j].score {
			return order[i].score > order[j].score
		}
		return order[i].disc < order[j].disc
	})

	if topK < 0 {
		topK = 0
	}
	if topK > len(order) {
		topK = len(order)
	}
	fused := make([]model.Record, 0, topK)
	for _, doc := range order[:topK] {
		fused = append(fused, doc.rec)
	}
	return fused
}
