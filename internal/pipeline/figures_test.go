package pipeline

import (
	"testing"

	"pmc-rag-go/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func figRecord(id, pmcid, label string) model.Record {
	return model.Record{
		ID:              id,
		PMCID:           pmcid,
		Type:            "figure",
		FigureLabel:     label,
		FigureCaption:   "caption of " + label,
		FigureImageURLs: []string{"http://img/" + id + ".jpg"},
		Text:            "caption of " + label,
	}
}

func TestNormalizeFigureToken(t *testing.T) {
	assert.Equal(t, "2A", NormalizeFigureToken("2a"))
	assert.Equal(t, "2-1", NormalizeFigureToken("2–1")) // en dash
	assert.Equal(t, "2-1", NormalizeFigureToken("2—1")) // em dash
	assert.Equal(t, "S1", NormalizeFigureToken(" s1 "))
}

func TestFindFigureRefs(t *testing.T) {
	refs := FindFigureRefs("As shown in Figure 1 and Fig. 2a, and also fig 3.")
	assert.Equal(t, []string{"1", "2A", "3."}, refs[:3])
}

func TestBuildFigureIndexAliases(t *testing.T) {
	idx := BuildFigureIndex([]model.Record{
		figRecord("f1", "PMC1", "Figure 2A"),
		figRecord("f2", "PMC1", "Figure 3-1"),
		figRecord("f3", "PMC2", "Supplementary panel"), // 标签解析不出 token，整体兜底
		{ID: "s1", PMCID: "PMC1", Type: "section", Text: "not a figure"},
	})

	// '2A' 与 '2-A' 指向同一条目
	e1, ok := idx.resolve("PMC1", "2A")
	require.True(t, ok)
	e2, ok := idx.resolve("PMC1", "2-A")
	require.True(t, ok)
	assert.Equal(t, e1.id, e2.id)

	// '3-1' 与 '31' 同理
	e3, ok := idx.resolve("PMC1", "3-1")
	require.True(t, ok)
	assert.Equal(t, "f2", e3.id)
	e4, ok := idx.resolve("PMC1", "31")
	require.True(t, ok)
	assert.Equal(t, "f2", e4.id)

	// 兜底键：整个标签归一化
	_, ok = idx.resolve("PMC2", "SUPPLEMENTARY PANEL")
	assert.True(t, ok)

	// 未知文章或未知 token
	_, ok = idx.resolve("PMC9", "1")
	assert.False(t, ok)
	_, ok = idx.resolve("PMC1", "9")
	assert.False(t, ok)
}

func TestCollectFiguresDirectAndIndirect(t *testing.T) {
	figRec := figRecord("f1", "PMC1", "Figure 2A")
	idx := BuildFigureIndex([]model.Record{figRec})

	fused := []model.Record{
		// 直接命中的 figure 记录
		figRec,
		// 正文引用同一图表，应被去重
		{ID: "s1", PMCID: "PMC1", Type: "section", Text: "See Figure 2A for details."},
		// 引用其他文章的图表，索引中不存在，忽略
		{ID: "s2", PMCID: "PMC2", Type: "section", Text: "See Figure 1."},
	}

	figures := CollectFigures(fused, idx)
	require.Len(t, figures, 1)
	assert.Equal(t, "PMC1", figures[0].PMCID)
	assert.Equal(t, "Figure 2A", figures[0].Label)
	require.Len(t, figures[0].Images, 1)
	assert.Equal(t, "f1.jpg", figures[0].Images[0].Filename)
}

func TestCollectFiguresIndirectOnly(t *testing.T) {
	idx := BuildFigureIndex([]model.Record{
		figRecord("f1", "PMC1", "Figure 1"),
		figRecord("f2", "PMC1", "Figure 2"),
	})

	fused := []model.Record{
		{ID: "s1", PMCID: "PMC1", Type: "section", Text: "Results in Figure 2 and Figure 1 confirm this."},
	}

	figures := CollectFigures(fused, idx)
	require.Len(t, figures, 2)
	// 保持正文扫描中的首次出现顺序
	assert.Equal(t, "Figure 2", figures[0].Label)
	assert.Equal(t, "Figure 1", figures[1].Label)
}
