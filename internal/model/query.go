// Package model 定义了查询管线的数据模型。
package model

// SourceItem 代表答案引用的一篇来源文章，按 PMCID 去重。
type SourceItem struct {
	PMCID string `json:"pmcid"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

// FigureImage 代表图表的一张远程图片。
type FigureImage struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
}

// FigureItem 代表附加到答案的一张图表。
type FigureItem struct {
	PMCID    string        `json:"pmcid"`
	Label    string        `json:"label,omitempty"`
	Caption  string        `json:"caption,omitempty"`
	Tileshop string        `json:"tileshop,omitempty"`
	Images   []FigureImage `json:"images"`
}

// QueryResult 是一次查询管线运行的最终输出，对每个请求全新构建，不做持久化。
type QueryResult struct {
	Question string       `json:"question"`
	Answer   string       `json:"answer"`
	Sources  []SourceItem `json:"sources"`
	Figures  []FigureItem `json:"figures"`
	Topic    string       `json:"topic"`
}

// QueryRequestDTO 定义了查询接口的请求体。
type QueryRequestDTO struct {
	Question string `json:"question" binding:"required"`
}

// MarkdownRequestDTO 定义了 Markdown 渲染接口的请求体。
type MarkdownRequestDTO struct {
	Question           string `json:"question" binding:"required"`
	IncludeSources     *bool  `json:"includeSources,omitempty"`
	IncludeFigures     *bool  `json:"includeFigures,omitempty"`
	FigMaxImages       *int   `json:"figMaxImages,omitempty"`
	FigCaptionMaxChars *int   `json:"figCaptionMaxChars,omitempty"`
}
