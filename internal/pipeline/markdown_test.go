package pipeline

import (
	"strings"
	"testing"
	"unicode/utf8"

	"pmc-rag-go/internal/model"

	"github.com/stretchr/testify/assert"
)

func sampleResult() model.QueryResult {
	return model.QueryResult{
		Question: "What does microgravity do to bone?",
		Answer:   "Microgravity induces bone loss [PMC1]. Mechanisms remain unclear [PMC2, PMC3].",
		Sources: []model.SourceItem{
			{PMCID: "PMC1", Title: "Bone loss study", URL: "http://a"},
			{PMCID: "PMC2", Title: "Mechanism review", URL: "http://b"},
			{PMCID: "PMC3", Title: "", URL: "http://c"},
			{PMCID: "PMC4", Title: "Uncited paper", URL: "http://d"},
		},
		Figures: []model.FigureItem{
			{
				PMCID:    "PMC1",
				Label:    "Figure 2A",
				Caption:  "Dense  \n whitespace   caption",
				Tileshop: "http://tileshop",
				Images: []model.FigureImage{
					{URL: "http://img/1.jpg", Filename: "1.jpg"},
					{URL: "http://img/2.jpg", Filename: "2.jpg"},
					{URL: "http://img/3.jpg", Filename: "3.jpg"},
				},
			},
		},
		Topic: "Bone Loss",
	}
}

func TestRenderMarkdownAnswerBlock(t *testing.T) {
	md := RenderMarkdown(sampleResult(), DefaultRenderOptions())

	assert.Contains(t, md, "# Answer")
	assert.Contains(t, md, "> ### Question: What does microgravity do to bone?")
	// 引用被改写为超链接，多引用拆分
	assert.Contains(t, md, "[[PMC1]](http://a)")
	assert.Contains(t, md, "[[PMC2]](http://b), [[PMC3]](http://c)")
	assert.Contains(t, md, "> #### Topic : Bone Loss")
}

func TestRenderMarkdownCitedOnlySources(t *testing.T) {
	md := RenderMarkdown(sampleResult(), DefaultRenderOptions())

	assert.Contains(t, md, "## Sources")
	assert.Contains(t, md, "Bone loss study")
	assert.Contains(t, md, "Mechanism review")
	// 无标题来源回退为 PMCID
	assert.Contains(t, md, "-  PMC3")
	// 未被引用的来源不出现
	assert.NotContains(t, md, "Uncited paper")
}

func TestRenderMarkdownFigures(t *testing.T) {
	md := RenderMarkdown(sampleResult(), DefaultRenderOptions())

	assert.Contains(t, md, "## Figures")
	assert.Contains(t, md, "__Figure 2A__")
	assert.Contains(t, md, "Dense whitespace caption")
	assert.Contains(t, md, "[[Tileshop]](http://tileshop)")
	// 默认每图最多两张图片
	assert.Contains(t, md, "![Figure 2A](http://img/1.jpg)")
	assert.Contains(t, md, "![Figure 2A](http://img/2.jpg)")
	assert.NotContains(t, md, "3.jpg")
}

func TestRenderMarkdownCaptionTruncation(t *testing.T) {
	opts := DefaultRenderOptions()
	opts.FigCaptionMaxChars = 5

	md := RenderMarkdown(sampleResult(), opts)
	assert.Contains(t, md, "Dense")
	assert.NotContains(t, md, "Dense whitespace caption")
}

func TestRenderMarkdownCaptionTruncationMultibyte(t *testing.T) {
	result := sampleResult()
	result.Figures[0].Caption = "骨密度在微重力下持续下降"

	opts := DefaultRenderOptions()
	opts.FigCaptionMaxChars = 3

	md := RenderMarkdown(result, opts)
	assert.True(t, utf8.ValidString(md))
	assert.Contains(t, md, "骨密度")
	assert.NotContains(t, md, "骨密度在")
}

func TestRenderMarkdownToggles(t *testing.T) {
	opts := DefaultRenderOptions()
	opts.IncludeSources = false
	opts.IncludeFigures = false

	md := RenderMarkdown(sampleResult(), opts)
	assert.NotContains(t, md, "## Sources")
	assert.NotContains(t, md, "## Figures")
	assert.Contains(t, md, "# Answer")
}

func TestRenderMarkdownNoTopicLine(t *testing.T) {
	result := sampleResult()
	result.Topic = ""
	md := RenderMarkdown(result, DefaultRenderOptions())
	assert.False(t, strings.Contains(md, "Topic :"))
}
