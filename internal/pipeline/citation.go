// Package pipeline 实现了面向科学文献语料的查询管线核心。
package pipeline

import (
	"regexp"
	"sort"
	"strings"

	"pmc-rag-go/internal/model"
)

// 引用标记的三种文本形态（大小写不敏感、容忍空格）：
//   - 单括号:  [PMC1234567] / [pmc 1234567]
//   - 多括号:  [PMC123, PMC456, pmc 789]
//   - 双括号:  [[PMC1234567]]，且后面没有紧跟 "("（已超链接的不再处理）
var (
	citeSingleRe = regexp.MustCompile(`(?i)\[\s*(pmc\s*\d+)\s*\]`)
	citeDoubleRe = regexp.MustCompile(`(?i)\[\[\s*(pmc\s*\d+)\s*\]\]`)
	citeMultiRe  = regexp.MustCompile(`(?i)\[\s*((?:pmc\s*\d+\s*,\s*)+pmc\s*\d+)\s*\]`)

	nonDigitRe = regexp.MustCompile(`\D`)
)

// MarkerKind 标识引用标记的形态。
type MarkerKind int

const (
	// MarkerSingle 单括号引用 [PMC123]。
	MarkerSingle MarkerKind = iota
	// MarkerMulti 多括号引用 [PMC123, PMC456]。
	MarkerMulti
	// MarkerDouble 双括号但尚未超链接的引用 [[PMC123]]。
	MarkerDouble
	// MarkerLinked 已超链接的双括号引用 [[PMC123]](url)，保持原样。
	MarkerLinked
)

// CitationMarker 是引用分词器产出的一个带标签的标记。
type CitationMarker struct {
	Kind  MarkerKind
	Start int
	End   int
	Raw   string
	// IDs 为标记内的原始 id 文本，按出现顺序排列（未归一化）。
	IDs []string
}

// NormalizePMCID 将原始 id 文本归一化为 'PMC########'（大写、无空格）。
// 接受 'pmc123'、'pmc 123'、'123' 等形式；不含数字时返回空串。
func NormalizePMCID(raw string) string {
	if raw == "" {
		return ""
	}
	t := strings.ToUpper(strings.Join(strings.Fields(raw), ""))
	if strings.HasPrefix(t, "PMC") {
		t = t[3:]
	}
	digits := nonDigitRe.ReplaceAllString(t, "")
	if digits == "" {
		return ""
	}
	return "PMC" + digits
}

// TokenizeCitations 对答案文本做一次扫描，产出互不重叠的引用标记。
// 多括号优先于双括号，双括号优先于单括号，避免同一段文本被重复处理。
func TokenizeCitations(answer string) []CitationMarker {
	if answer == "" {
		return nil
	}

	var markers []CitationMarker
	claimed := make([]bool, len(answer))

	claim := func(start, end int) bool {
		for i := start; i < end; i++ {
			if claimed[i] {
				return false
			}
		}
		for i := start; i < end; i++ {
			claimed[i] = true
		}
		return true
	}

	for _, m := range citeMultiRe.FindAllStringSubmatchIndex(answer, -1) {
		if !claim(m[0], m[1]) {
			continue
		}
		group := answer[m[2]:m[3]]
		var ids []string
		for _, tok := range strings.Split(group, ",") {
			if tok = strings.TrimSpace(tok); tok != "" {
				ids = append(ids, tok)
			}
		}
		markers = append(markers, CitationMarker{Kind: MarkerMulti, Start: m[0], End: m[1], Raw: answer[m[0]:m[1]], IDs: ids})
	}

	for _, m := range citeDoubleRe.FindAllStringSubmatchIndex(answer, -1) {
		if !claim(m[0], m[1]) {
			continue
		}
		kind := MarkerDouble
		// Go 正则不支持 (?!\()，这里直接检查匹配后的下一个字节
		if m[1] < len(answer) && answer[m[1]] == '(' {
			kind = MarkerLinked
		}
		markers = append(markers, CitationMarker{Kind: kind, Start: m[0], End: m[1], Raw: answer[m[0]:m[1]], IDs: []string{answer[m[2]:m[3]]}})
	}

	for _, m := range citeSingleRe.FindAllStringSubmatchIndex(answer, -1) {
		if !claim(m[0], m[1]) {
			continue
		}
		markers = append(markers, CitationMarker{Kind: MarkerSingle, Start: m[0], End: m[1], Raw: answer[m[0]:m[1]], IDs: []string{answer[m[2]:m[3]]}})
	}

	sort.Slice(markers, func(i, j int) bool { return markers[i].Start < markers[j].Start })
	return markers
}

// ExtractCitedIDs 提取答案中引用的全部 PMCID（归一化后的集合）。
// 已超链接的引用不计入：调用方在链接改写之前提取。
func ExtractCitedIDs(answer string) map[string]struct{} {
	ids := make(map[string]struct{})
	for _, marker := range TokenizeCitations(answer) {
		if marker.Kind == MarkerLinked {
			continue
		}
		for _, raw := range marker.IDs {
			if id := NormalizePMCID(raw); id != "" {
				ids[id] = struct{}{}
			}
		}
	}
	return ids
}

// BuildSourceURLMap 由来源列表构建 归一化 PMCID -> URL 的映射。
func BuildSourceURLMap(sources []model.SourceItem) map[string]string {
	m := make(map[string]string, len(sources))
	for _, s := range sources {
		id := NormalizePMCID(s.PMCID)
		if id == "" {
			continue
		}
		url := s.URL
		if url == "" {
			url = model.PMCArticleURLBase + id + "/"
		}
		m[id] = url
	}
	return m
}

// LinkCitations 将答案中识别出的引用标记改写为超链接形式 [[PMCID]](url)。
// 多括号标记拆分为逗号连接的多个独立链接；source map 中不存在的 id
// 保持原始标记不变，绝不静默丢弃。
func LinkCitations(answer string, sourceMap map[string]string) string {
	markers := TokenizeCitations(answer)
	if len(markers) == 0 {
		return answer
	}

	linkify := func(raw string) string {
		id := NormalizePMCID(raw)
		if url, ok := sourceMap[id]; ok {
			return "[[" + id + "]](" + url + ")"
		}
		return "[" + raw + "]"
	}

	var b strings.Builder
	prev := 0
	for _, marker := range markers {
		b.WriteString(answer[prev:marker.Start])
		prev = marker.End

		switch marker.Kind {
		case MarkerLinked:
			b.WriteString(marker.Raw)
		case MarkerMulti:
			linked := make([]string, 0, len(marker.IDs))
			for _, raw := range marker.IDs {
				linked = append(linked, linkify(raw))
			}
			b.WriteString(strings.Join(linked, ", "))
		case MarkerDouble:
			id := NormalizePMCID(marker.IDs[0])
			if url, ok := sourceMap[id]; ok {
				b.WriteString("[[" + id + "]](" + url + ")")
			} else {
				b.WriteString(marker.Raw)
			}
		case MarkerSingle:
			id := NormalizePMCID(marker.IDs[0])
			if url, ok := sourceMap[id]; ok {
				b.WriteString("[[" + id + "]](" + url + ")")
			} else {
				b.WriteString(marker.Raw)
			}
		}
	}
	b.WriteString(answer[prev:])
	return b.String()
}
