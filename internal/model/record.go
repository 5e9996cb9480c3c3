// Package model 定义了查询管线的数据模型。
package model

// PMCArticleURLBase 是 PMC 文章页的地址前缀，用于为来源与引用生成默认链接。
const PMCArticleURLBase = "https://www.ncbi.nlm.nih.gov/pmc/articles/"

// Record 代表检索的最小单元（chunk），与 meta.jsonl 中的一行一一对应。
// Text 即构建向量时使用的原文，ID 在整个语料内唯一。
type Record struct {
	ID              string   `json:"id"`
	PMCID           string   `json:"pmcid"`
	Title           string   `json:"title"`
	Type            string   `json:"type"` // "section" | "figure"
	SectionTitle    string   `json:"section_title,omitempty"`
	FigureLabel     string   `json:"figure_label,omitempty"`
	FigureCaption   string   `json:"figure_caption,omitempty"`
	FigureTileshop  string   `json:"figure_tileshop,omitempty"`
	FigureImageURLs []string `json:"figure_image_urls,omitempty"`
	Text            string   `json:"text"`
	URL             string   `json:"url,omitempty"`
}

// IsFigure 判断该记录是否为图表类型。
func (r Record) IsFigure() bool {
	return r.Type == "figure"
}

// ArticleURL 返回该记录所属文章的链接，未提供时回退到 PMC 文章页。
func (r Record) ArticleURL() string {
	if r.URL != "" {
		return r.URL
	}
	return PMCArticleURLBase + r.PMCID + "/"
}

// FuseKey 返回记录在融合去重时使用的身份键。
// 正常情况下即 ID；ID 缺失时退化为 pmcid::id 复合键。
func (r Record) FuseKey() string {
	if r.ID != "" {
		return r.ID
	}
	return r.PMCID + "::" + r.ID
}
