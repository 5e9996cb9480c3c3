// Package vectorindex 提供只读的本地向量索引与元数据存储。
//
// 索引快照由离线构建任务产出，包含两个文件：
//   - vectors.bin：VIDX 魔数 + uint32 维度 + uint32 条数 + 小端 float32 向量（已 L2 归一化）
//   - meta.jsonl：每行一个 JSON 记录，第 i 行与 vectors.bin 第 i 行永久一一对应
//
// 进程启动时完整加载入内存，此后只读，并发读取无需加锁。
package vectorindex

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"sort"

	"pmc-rag-go/internal/model"
	"pmc-rag-go/pkg/log"
)

// vectorsMagic 是 vectors.bin 的文件头魔数。
const vectorsMagic = "VIDX"

// Hit 代表一次最近邻搜索的单个命中。
type Hit struct {
	Position int
	Score    float32
}

// Store 持有加载后的向量索引与并行的元数据记录。
type Store struct {
	dim     int
	vectors []float32
	records []model.Record
}

// Load 从本地快照文件加载索引与元数据。
// 向量条数与 meta.jsonl 行数不一致视为快照损坏。
func Load(vectorsPath, metaPath string) (*Store, error) {
	dim, vectors, count, err := readVectors(vectorsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load vectors: %w", err)
	}

	records, err := readMeta(metaPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load meta: %w", err)
	}

	if len(records) != count {
		return nil, fmt.Errorf("snapshot corrupt: %d vectors but %d meta records", count, len(records))
	}

	log.Infof("[VectorIndex] 索引加载完成, 记录数: %d, 向量维度: %d", count, dim)
	return &Store{dim: dim, vectors: vectors, records: records}, nil
}

func readVectors(path string) (dim int, vectors []float32, count int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, nil, 0, err
	}
	defer f.Close()

	r := bufio.NewReaderSize(f, 1<<20)

	magic := make([]byte, 4)
	if _, err := io.ReadFull(r, magic); err != nil {
		return 0, nil, 0, fmt.Errorf("failed to read header: %w", err)
	}
	if string(magic) != vectorsMagic {
		return 0, nil, 0, fmt.Errorf("bad magic %q", string(magic))
	}

	var header struct {
		Dim   uint32
		Count uint32
	}
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return 0, nil, 0, fmt.Errorf("failed to read header: %w", err)
	}
	if header.Dim == 0 {
		return 0, nil, 0, fmt.Errorf("zero vector dimension")
	}

	total := int(header.Dim) * int(header.Count)
	raw := make([]byte, total*4)
	if _, err := io.ReadFull(r, raw); err != nil {
		return 0, nil, 0, fmt.Errorf("truncated vector data: %w", err)
	}
	vectors = make([]float32, total)
	for i := 0; i < total; i++ {
		vectors[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}

	return int(header.Dim), vectors, int(header.Count), nil
}

func readMeta(path string) ([]model.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var records []model.Record
	scanner := bufio.NewScanner(f)
	// 单条记录可能包含整段文本，放宽行缓冲上限
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec model.Record
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("invalid meta record at line %d: %w", lineNo, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan meta file: %w", err)
	}
	return records, nil
}

// Count 返回索引中的记录条数。
func (s *Store) Count() int {
	return len(s.records)
}

// Dim 返回向量维度。
func (s *Store) Dim() int {
	return s.dim
}

// GetByPosition 返回位置 i 对应的记录。
func (s *Store) GetByPosition(i int) (model.Record, error) {
	if i < 0 || i >= len(s.records) {
		return model.Record{}, fmt.Errorf("position %d out of range [0,%d)", i, len(s.records))
	}
	return s.records[i], nil
}

// Records 返回全部元数据记录（只读，调用方不得修改）。
// 图表索引等一次性预处理会整体扫描元数据。
func (s *Store) Records() []model.Record {
	return s.records
}

// Search 在索引上做最近邻搜索，返回按得分降序排列的前 k 个命中。
// 余弦相似度按归一化向量的内积计算，查询向量在此处归一化。
func (s *Store) Search(query []float32, k int) ([]Hit, error) {
	if len(query) != s.dim {
		return nil, fmt.Errorf("query dimension %d does not match index dimension %d", len(query), s.dim)
	}
	if k <= 0 || len(s.records) == 0 {
		return nil, nil
	}

	q := Normalize(query)

	hits := make([]Hit, 0, len(s.records))
	for i := 0; i < len(s.records); i++ {
		base := i * s.dim
		var dot float32
		for j := 0; j < s.dim; j++ {
			dot += s.vectors[base+j] * q[j]
		}
		hits = append(hits, Hit{Position: i, Score: dot})
	}

	sort.SliceStable(hits, func(a, b int) bool {
		return hits[a].Score > hits[b].Score
	})

	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k], nil
}

// Normalize 返回 L2 归一化后的向量副本，零向量原样返回。
func Normalize(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	norm := math.Sqrt(sum)
	out := make([]float32, len(vec))
	if norm == 0 {
		copy(out, vec)
		return out
	}
	for i, v := range vec {
		out[i] = float32(float64(v) / norm)
	}
	return out
}
