package pipeline

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"pmc-rag-go/internal/model"
	"pmc-rag-go/pkg/vectorindex"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEmbedder 按关键词把查询映射到固定向量，检索结果完全可预期。
// 查询命中 failSubstr 时返回错误，用于模拟单路向量化失败。
type fakeEmbedder struct {
	vectors     map[string][]float32
	fallbackVec []float32
	failSubstr  string
}

func (f *fakeEmbedder) CreateEmbedding(_ context.Context, text string) ([]float32, error) {
	if f.failSubstr != "" && strings.Contains(strings.ToLower(text), f.failSubstr) {
		return nil, assert.AnError
	}
	for key, vec := range f.vectors {
		if strings.Contains(strings.ToLower(text), key) {
			return vec, nil
		}
	}
	return f.fallbackVec, nil
}

// newTestStore 在临时目录构建三条记录的索引快照并加载。
func newTestStore(t *testing.T) *vectorindex.Store {
	t.Helper()
	dir := t.TempDir()
	vectorsPath := filepath.Join(dir, "vectors.bin")
	metaPath := filepath.Join(dir, "meta.jsonl")

	records := []model.Record{
		{ID: "c1", PMCID: "PMC1", Title: "Bone study", Type: "section", SectionTitle: "Results", Text: "Bone loss results, see Figure 1 for details."},
		{ID: "c2", PMCID: "PMC2", Title: "Muscle study", Type: "section", SectionTitle: "Results", Text: "Muscle atrophy results."},
		{ID: "f1", PMCID: "PMC1", Title: "Bone study", Type: "figure", FigureLabel: "Figure 1", FigureCaption: "Bone density plot", FigureImageURLs: []string{"http://img/f1.jpg"}, Text: "Bone density plot"},
	}
	vectors := [][]float32{
		{1, 0, 0},
		{0, 1, 0},
		{0, 0, 1},
	}

	f, err := os.Create(vectorsPath)
	require.NoError(t, err)
	_, err = f.WriteString("VIDX")
	require.NoError(t, err)
	require.NoError(t, binary.Write(f, binary.LittleEndian, uint32(3)))
	require.NoError(t, binary.Write(f, binary.LittleEndian, uint32(len(vectors))))
	for _, vec := range vectors {
		require.NoError(t, binary.Write(f, binary.LittleEndian, vec))
	}
	require.NoError(t, f.Close())

	mf, err := os.Create(metaPath)
	require.NoError(t, err)
	enc := json.NewEncoder(mf)
	for _, rec := range records {
		require.NoError(t, enc.Encode(rec))
	}
	require.NoError(t, mf.Close())

	store, err := vectorindex.Load(vectorsPath, metaPath)
	require.NoError(t, err)
	return store
}

func defaultTestOptions() Options {
	return Options{
		KPerQuery:       3,
		TopKFinal:       3,
		RRFK:            60,
		MaxContextChars: 12000,
	}
}

func TestRunIndexUnavailable(t *testing.T) {
	pipe := New(nil, nil, NewGenerator(fixedLLM("ignored")), nil, nil, defaultTestOptions())
	assert.False(t, pipe.Available())

	result := pipe.Run(context.Background(), "any question")
	assert.Equal(t, "any question", result.Question)
	assert.Equal(t, UnsureAnswer, result.Answer)
	assert.Empty(t, result.Sources)
	assert.Empty(t, result.Figures)
	assert.Equal(t, "", result.Topic)
	// 降级结果的切片必须非 nil，序列化为 [] 而不是 null
	assert.NotNil(t, result.Sources)
	assert.NotNil(t, result.Figures)
}

func TestRunFullFlow(t *testing.T) {
	store := newTestStore(t)
	embedder := &fakeEmbedder{
		vectors: map[string][]float32{
			"bone":   {1, 0, 0},
			"muscle": {0, 1, 0},
		},
		fallbackVec: []float32{1, 0, 0},
	}
	retriever := NewRetriever(store, embedder)
	figIndex := BuildFigureIndex(store.Records())

	client := &fakeLLM{complete: func(prompt string) (string, error) {
		switch {
		case strings.Contains(prompt, "Queries:"):
			return "muscle atrophy spaceflight", nil
		case strings.Contains(prompt, "Abstract:"):
			return "Synthetic abstract about bone loss.", nil
		case strings.Contains(prompt, "Topic:"):
			return "Bone Loss", nil
		default:
			return "Bone loss occurs [PMC1]. Muscle atrophy too [PMC2].", nil
		}
	}}

	opts := defaultTestOptions()
	opts.EnableReform = true
	opts.UseHyde = true
	opts.NRewrites = 3
	pipe := New(retriever, NewReformer(client, ""), NewGenerator(client), nil, figIndex, opts)
	require.True(t, pipe.Available())

	result := pipe.Run(context.Background(), "what does bone do in space")

	assert.Equal(t, "Bone loss occurs [PMC1]. Muscle atrophy too [PMC2].", result.Answer)
	assert.Equal(t, "Bone Loss", result.Topic)

	// 答案中引用的 PMCID 必须是检索结果中的真实文献
	sourceIDs := make(map[string]struct{})
	for _, s := range result.Sources {
		sourceIDs[s.PMCID] = struct{}{}
	}
	for id := range ExtractCitedIDs(result.Answer) {
		assert.Contains(t, sourceIDs, id)
	}

	// 正文引用了 Figure 1，图表被解析出来
	require.NotEmpty(t, result.Figures)
	assert.Equal(t, "Figure 1", result.Figures[0].Label)
	assert.Equal(t, "PMC1", result.Figures[0].PMCID)
}

func TestRunGenerationFailure(t *testing.T) {
	store := newTestStore(t)
	embedder := &fakeEmbedder{fallbackVec: []float32{1, 0, 0}}
	retriever := NewRetriever(store, embedder)

	pipe := New(retriever, nil, NewGenerator(failingLLM(assert.AnError)), nil, nil, defaultTestOptions())
	result := pipe.Run(context.Background(), "q")

	// 生成失败不致错：答案为空，但来源仍来自检索结果
	assert.Equal(t, "", result.Answer)
	assert.NotEmpty(t, result.Sources)
	assert.Equal(t, "", result.Topic)
}

func TestRunKeywordChannel(t *testing.T) {
	store := newTestStore(t)
	embedder := &fakeEmbedder{fallbackVec: []float32{0, 1, 0}}
	retriever := NewRetriever(store, embedder)

	keyword := func(_ context.Context, _ string, _ int) ([]model.Record, error) {
		return []model.Record{
			{ID: "c1", PMCID: "PMC1", Title: "Bone study", Text: "Bone loss results."},
		}, nil
	}

	client := fixedLLM("Answer [PMC1].")
	pipe := New(retriever, nil, NewGenerator(client), keyword, nil, defaultTestOptions())
	result := pipe.Run(context.Background(), "bone")

	ids := make([]string, 0, len(result.Sources))
	for _, s := range result.Sources {
		ids = append(ids, s.PMCID)
	}
	assert.Contains(t, ids, "PMC1")
}

func TestRunRetrievalEmpty(t *testing.T) {
	store := newTestStore(t)
	// 所有子查询的向量化都失败，检索空手而归
	embedder := &fakeEmbedder{failSubstr: "bone"}
	retriever := NewRetriever(store, embedder)

	client := fixedLLM("should never be called")
	pipe := New(retriever, nil, NewGenerator(client), nil, nil, defaultTestOptions())
	require.True(t, pipe.Available())

	result := pipe.Run(context.Background(), "bone question")

	assert.Equal(t, UnsureAnswer, result.Answer)
	assert.NotNil(t, result.Sources)
	assert.NotNil(t, result.Figures)
	assert.Empty(t, result.Sources)
	assert.Empty(t, result.Figures)
	assert.Equal(t, "", result.Topic)
	// 检索无命中时不触发任何生成调用
	assert.Zero(t, client.calls)
}

func TestBatchFailedQueryYieldsEmptyList(t *testing.T) {
	store := newTestStore(t)
	embedder := &fakeEmbedder{
		vectors: map[string][]float32{
			"bone":   {1, 0, 0},
			"muscle": {0, 1, 0},
		},
		failSubstr: "bad",
	}
	retriever := NewRetriever(store, embedder)

	rankings := retriever.Batch(context.Background(), []string{"bone query", "bad query", "muscle query"}, 1)
	require.Len(t, rankings, 3)

	// 失败的一路只产生空列表，其余各路保持位置对应
	require.Len(t, rankings[0], 1)
	assert.Equal(t, "c1", rankings[0][0].ID)
	assert.Empty(t, rankings[1])
	require.Len(t, rankings[2], 1)
	assert.Equal(t, "c2", rankings[2][0].ID)
}

func TestBatchPreservesOrder(t *testing.T) {
	store := newTestStore(t)
	embedder := &fakeEmbedder{
		vectors: map[string][]float32{
			"bone":   {1, 0, 0},
			"muscle": {0, 1, 0},
		},
		fallbackVec: []float32{0, 0, 1},
	}
	retriever := NewRetriever(store, embedder)

	rankings := retriever.Batch(context.Background(), []string{"muscle query", "bone query"}, 1)
	require.Len(t, rankings, 2)
	require.Len(t, rankings[0], 1)
	require.Len(t, rankings[1], 1)
	assert.Equal(t, "c2", rankings[0][0].ID)
	assert.Equal(t, "c1", rankings[1][0].ID)
}

func TestFormatSourcesDedupe(t *testing.T) {
	records := []model.Record{
		{ID: "a", PMCID: "PMC1", Title: "First"},
		{ID: "b", PMCID: "PMC1", Title: "Duplicate"},
		{ID: "c", PMCID: "PMC2", Title: strings.Repeat("x", sourceTitleMaxChars+10)},
		{ID: "d", PMCID: "", Title: "No id"},
	}
	sources := formatSources(records)
	require.Len(t, sources, 2)
	assert.Equal(t, "First", sources[0].Title)
	assert.Equal(t, "PMC1", sources[0].PMCID)
	assert.Len(t, sources[1].Title, sourceTitleMaxChars)
}

func TestFormatSourcesMultibyteTitle(t *testing.T) {
	records := []model.Record{
		{ID: "a", PMCID: "PMC1", Title: strings.Repeat("微", sourceTitleMaxChars+10)},
	}
	sources := formatSources(records)
	require.Len(t, sources, 1)

	// 截断落在 rune 边界上，不产生损坏的 UTF-8
	assert.True(t, utf8.ValidString(sources[0].Title))
	assert.Equal(t, sourceTitleMaxChars, utf8.RuneCountInString(sources[0].Title))
}
