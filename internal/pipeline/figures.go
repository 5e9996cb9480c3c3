package pipeline

import (
	"path"
	"regexp"
	"strings"

	"pmc-rag-go/internal/model"
)

// figTokenRe 匹配正文中的图表引用，如 "Figure 1"、"Fig. 2A"、"Figure S1"、"Figure 2-1"。
var figTokenRe = regexp.MustCompile(`(?i)\bFig(?:ure)?\.?\s+([0-9A-Za-z.\x{2013}\x{2014}-]+)`)

// figNumLetterRe 拆分 "2A" 形式的 token，用于生成 "2-A" 别名。
var figNumLetterRe = regexp.MustCompile(`^(\d+)([A-Z]+)$`)

// NormalizeFigureToken 归一化图表标签 token：统一各类连字符并转为大写。
func NormalizeFigureToken(tok string) string {
	t := strings.TrimSpace(tok)
	t = strings.ReplaceAll(t, "–", "-")
	t = strings.ReplaceAll(t, "—", "-")
	return strings.ToUpper(t)
}

// FindFigureRefs 提取文本中引用的图表 token（已归一化），按出现顺序排列。
func FindFigureRefs(text string) []string {
	var out []string
	for _, m := range figTokenRe.FindAllStringSubmatch(text, -1) {
		out = append(out, NormalizeFigureToken(m[1]))
	}
	return out
}

// figEntry 是图表索引中的一个条目，保留记录 id 用于去重。
type figEntry struct {
	id   string
	item model.FigureItem
}

// FigureIndex 是 pmcid -> 归一化 token -> 图表 的两级索引。
// 启动时由元数据中的全部 figure 记录构建一次，此后只读。
type FigureIndex map[string]map[string]figEntry

// BuildFigureIndex 扫描全部记录，为每篇文章按标签 token 建立图表索引。
// token 额外登记去连字符/加连字符的宽松别名（'2A' 与 '2-A' 指向同一条目）。
func BuildFigureIndex(records []model.Record) FigureIndex {
	idx := make(FigureIndex)
	for _, rec := range records {
		if !rec.IsFigure() || rec.PMCID == "" {
			continue
		}

		entry := figEntry{id: rec.ID, item: figureItemFromRecord(rec)}

		byToken, ok := idx[rec.PMCID]
		if !ok {
			byToken = make(map[string]figEntry)
			idx[rec.PMCID] = byToken
		}

		label := strings.TrimSpace(rec.FigureLabel)
		if label == "" {
			continue
		}

		m := figTokenRe.FindStringSubmatch(label)
		if m == nil {
			// 标签里解析不出 "Figure <token>" 时，整个标签作为键兜底
			byToken[NormalizeFigureToken(label)] = entry
			continue
		}

		token := NormalizeFigureToken(m[1])
		byToken[token] = entry
		if strings.Contains(token, "-") {
			byToken[strings.ReplaceAll(token, "-", "")] = entry
		} else if parts := figNumLetterRe.FindStringSubmatch(token); parts != nil {
			byToken[parts[1]+"-"+parts[2]] = entry
		}
	}
	return idx
}

func figureItemFromRecord(rec model.Record) model.FigureItem {
	images := make([]model.FigureImage, 0, len(rec.FigureImageURLs))
	for _, u := range rec.FigureImageURLs {
		images = append(images, model.FigureImage{URL: u, Filename: path.Base(u)})
	}
	return model.FigureItem{
		PMCID:    rec.PMCID,
		Label:    rec.FigureLabel,
		Caption:  rec.FigureCaption,
		Tileshop: rec.FigureTileshop,
		Images:   images,
	}
}

// resolve 在指定文章的图表索引中查找 token，找不到时尝试去连字符的宽松变体。
func (idx FigureIndex) resolve(pmcid, token string) (figEntry, bool) {
	byToken, ok := idx[pmcid]
	if !ok {
		return figEntry{}, false
	}
	if entry, ok := byToken[token]; ok {
		return entry, true
	}
	entry, ok := byToken[strings.ReplaceAll(token, "-", "")]
	return entry, ok
}

// CollectFigures 为融合结果收集图表附件。
//   - figure 类型的记录直接由自身字段构建
//   - 其余记录扫描正文中的 "Figure N" 引用，经图表索引解析
//
// 按 (pmcid, label 或 id) 去重，保持融合结果扫描中的首次出现顺序。
func CollectFigures(fused []model.Record, idx FigureIndex) []model.FigureItem {
	figures := make([]model.FigureItem, 0)
	seen := make(map[string]struct{})

	dedupeKey := func(pmcid, label, id string) string {
		if label != "" {
			return pmcid + "::" + label
		}
		return pmcid + "::" + id
	}

	for _, rec := range fused {
		if rec.PMCID == "" {
			continue
		}

		if rec.IsFigure() {
			key := dedupeKey(rec.PMCID, rec.FigureLabel, rec.ID)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			figures = append(figures, figureItemFromRecord(rec))
			continue
		}

		for _, token := range FindFigureRefs(rec.Text) {
			entry, ok := idx.resolve(rec.PMCID, token)
			if !ok {
				continue
			}
			key := dedupeKey(rec.PMCID, entry.item.Label, entry.id)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			figures = append(figures, entry.item)
		}
	}
	return figures
}
