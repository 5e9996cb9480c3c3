package pipeline

import (
	"strings"

	"pmc-rag-go/internal/model"
)

const (
	contextTitleMaxChars = 160
	contextSeparator     = "\n---\n"
)

// truncateRunes 按 rune 边界截断到至多 max 个字符，
// 不会把多字节 UTF-8 字符劈开。
func truncateRunes(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

// BuildContext 按融合结果的顺序把记录拼装为有界的上下文文本。
// 每条记录带有 "[PMCID] 标题 - 小节或类型" 的头部；累计字符数将要超过
// maxChars 时停止追加，已加入的记录保留。
func BuildContext(records []model.Record, maxChars int) string {
	var parts []string
	used := 0

	for _, rec := range records {
		title := truncateRunes(rec.Title, contextTitleMaxChars)
		section := rec.SectionTitle
		if section == "" {
			section = rec.Type
		}
		header := strings.TrimSpace("[" + rec.PMCID + "] " + title + " - " + section)
		body := strings.TrimSpace(rec.Text)
		chunk := header + "\n" + body + "\n"

		if used+len(chunk) > maxChars {
			break
		}
		parts = append(parts, chunk)
		used += len(chunk)
	}

	return strings.Join(parts, contextSeparator)
}
