package pipeline

import (
	"regexp"
	"sort"
	"strings"

	"pmc-rag-go/internal/model"
)

var wsRunRe = regexp.MustCompile(`\s+`)

// RenderOptions 控制 Markdown 渲染的可选区块与图表展示上限。
type RenderOptions struct {
	IncludeSources bool
	IncludeFigures bool
	// FigMaxImages 每个图表最多渲染的图片数。
	FigMaxImages int
	// FigCaptionMaxChars 图注最大字符数，0 表示不截断。
	FigCaptionMaxChars int
}

// DefaultRenderOptions 返回渲染默认值。
func DefaultRenderOptions() RenderOptions {
	return RenderOptions{
		IncludeSources: true,
		IncludeFigures: true,
		FigMaxImages:   2,
	}
}

// RenderMarkdown 将结构化查询结果渲染为单个 Markdown 文档：
// Answer 区块中的引用标记改写为超链接，Sources 只列出答案中
// 实际引用到的文献，Figures 带 Tileshop 链接与图片。
func RenderMarkdown(result model.QueryResult, opts RenderOptions) string {
	var parts []string

	if block := renderAnswer(result.Question, result.Answer, result.Sources); strings.TrimSpace(block) != "" {
		parts = append(parts, block)
	}
	if opts.IncludeSources {
		if block := renderCitedSources(result.Answer, result.Sources); block != "" {
			parts = append(parts, block)
		}
	}
	if opts.IncludeFigures {
		if block := renderFigures(result, opts.FigMaxImages, opts.FigCaptionMaxChars); block != "" {
			parts = append(parts, block)
		}
	}
	if topic := strings.TrimSpace(result.Topic); topic != "" {
		parts = append(parts, "\n> #### Topic : "+topic+"\n")
	}

	return strings.Join(parts, "\n")
}

func renderAnswer(question, answer string, sources []model.SourceItem) string {
	linked := LinkCitations(answer, BuildSourceURLMap(sources))

	var b strings.Builder
	b.WriteString("# Answer\n\n")
	b.WriteString("> ### Question: " + question + "\n\n")
	b.WriteString(strings.TrimSpace(linked) + "\n")
	return b.String()
}

// renderCitedSources 只渲染答案中被引用到的来源，按归一化 PMCID 排序。
func renderCitedSources(answer string, sources []model.SourceItem) string {
	if len(sources) == 0 {
		return ""
	}
	cited := ExtractCitedIDs(answer)
	if len(cited) == 0 {
		return ""
	}

	byID := make(map[string]model.SourceItem, len(sources))
	for _, s := range sources {
		if id := NormalizePMCID(s.PMCID); id != "" {
			byID[id] = s
		}
	}

	ids := make([]string, 0, len(cited))
	for id := range cited {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	lines := []string{"\n## Sources\n"}
	for _, id := range ids {
		s := byID[id]
		title := strings.TrimSpace(s.Title)
		if title == "" {
			title = id
		}
		url := s.URL
		if url == "" {
			url = model.PMCArticleURLBase + id + "/"
		}
		lines = append(lines, "-  "+title)
		lines = append(lines, "[["+id+"]]("+url+")")
	}
	return strings.Join(lines, "\n")
}

func sanitizeCaption(caption string, maxChars int) string {
	cleaned := strings.TrimSpace(wsRunRe.ReplaceAllString(caption, " "))
	if maxChars > 0 {
		return truncateRunes(cleaned, maxChars)
	}
	return cleaned
}

func renderFigures(result model.QueryResult, figMaxImages, figCaptionMaxChars int) string {
	if len(result.Figures) == 0 {
		return ""
	}
	urlMap := BuildSourceURLMap(result.Sources)

	lines := []string{"\n## Figures\n"}
	for _, fig := range result.Figures {
		pmcid := NormalizePMCID(fig.PMCID)
		label := strings.TrimSpace(fig.Label)
		caption := sanitizeCaption(fig.Caption, figCaptionMaxChars)
		tileshop := strings.TrimSpace(fig.Tileshop)

		articleURL, ok := urlMap[pmcid]
		if !ok {
			articleURL = model.PMCArticleURLBase + pmcid + "/"
		}
		titleLabel := label
		if titleLabel == "" {
			titleLabel = "Figure"
		}

		head := "-  __" + titleLabel + "__  \n"
		if caption != "" {
			head += caption
		}
		lines = append(lines, head)

		srcLine := "  - __Source__"
		if pmcid != "" {
			srcLine += " [[" + pmcid + "]](" + articleURL + ")"
		}
		if tileshop != "" {
			srcLine += " | [[Tileshop]](" + tileshop + ")"
		}
		lines = append(lines, srcLine)

		imgs := fig.Images
		if figMaxImages < 0 {
			figMaxImages = 0
		}
		if len(imgs) > figMaxImages {
			imgs = imgs[:figMaxImages]
		}
		if len(imgs) > 0 {
			lines = append(lines, "  - __Images__  ")
			for _, im := range imgs {
				if im.URL == "" {
					continue
				}
				alt := label
				if alt == "" {
					alt = pmcid
				}
				alt = truncateRunes(alt, 80)
				lines = append(lines, "    !["+alt+"]("+im.URL+")")
			}
		}
	}
	return strings.Join(lines, "\n")
}
