package pipeline

import (
	"testing"

	"pmc-rag-go/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePMCID(t *testing.T) {
	cases := map[string]string{
		"PMC123":    "PMC123",
		"pmc123":    "PMC123",
		"pmc 123":   "PMC123",
		" PMC 123 ": "PMC123",
		"123":       "PMC123",
		"PMC":       "",
		"abc":       "",
		"":          "",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizePMCID(in), "input %q", in)
	}
}

func TestTokenizeCitationsKinds(t *testing.T) {
	answer := "Claim one [PMC111]. Claim two [PMC222, pmc 333]. Claim three [[PMC444]]. Done [[PMC555]](http://x)."
	markers := TokenizeCitations(answer)
	require.Len(t, markers, 4)

	assert.Equal(t, MarkerSingle, markers[0].Kind)
	assert.Equal(t, []string{"PMC111"}, markers[0].IDs)

	assert.Equal(t, MarkerMulti, markers[1].Kind)
	assert.Equal(t, []string{"PMC222", "pmc 333"}, markers[1].IDs)

	assert.Equal(t, MarkerDouble, markers[2].Kind)
	assert.Equal(t, []string{"PMC444"}, markers[2].IDs)

	assert.Equal(t, MarkerLinked, markers[3].Kind)

	// 标记按出现位置排序且互不重叠
	for i := 1; i < len(markers); i++ {
		assert.GreaterOrEqual(t, markers[i].Start, markers[i-1].End)
	}
}

func TestExtractCitedIDs(t *testing.T) {
	answer := "A [PMC1]. B [pmc 2, PMC3]. C [[PMC4]]. Linked [[PMC5]](http://x)."
	ids := ExtractCitedIDs(answer)

	for _, want := range []string{"PMC1", "PMC2", "PMC3", "PMC4"} {
		assert.Contains(t, ids, want)
	}
	// 已超链接的引用不计入
	assert.NotContains(t, ids, "PMC5")
	assert.Len(t, ids, 4)
}

func TestExtractCitedIDsEmpty(t *testing.T) {
	assert.Empty(t, ExtractCitedIDs(""))
	assert.Empty(t, ExtractCitedIDs("no citations here"))
}

func TestLinkCitations(t *testing.T) {
	sourceMap := map[string]string{
		"PMC1": "http://a",
		"PMC2": "http://b",
		"PMC3": "http://c",
	}

	t.Run("single", func(t *testing.T) {
		out := LinkCitations("Evidence [pmc 1].", sourceMap)
		assert.Equal(t, "Evidence [[PMC1]](http://a).", out)
	})

	t.Run("multi splits into separate links", func(t *testing.T) {
		out := LinkCitations("Evidence [PMC1, pmc 2].", sourceMap)
		assert.Equal(t, "Evidence [[PMC1]](http://a), [[PMC2]](http://b).", out)
	})

	t.Run("double bracket", func(t *testing.T) {
		out := LinkCitations("Evidence [[PMC3]].", sourceMap)
		assert.Equal(t, "Evidence [[PMC3]](http://c).", out)
	})

	t.Run("unknown id keeps original marker", func(t *testing.T) {
		out := LinkCitations("Evidence [PMC999].", sourceMap)
		assert.Equal(t, "Evidence [PMC999].", out)
	})

	t.Run("already linked untouched", func(t *testing.T) {
		in := "Evidence [[PMC1]](http://a)."
		assert.Equal(t, in, LinkCitations(in, sourceMap))
	})

	t.Run("no markers", func(t *testing.T) {
		assert.Equal(t, "plain text", LinkCitations("plain text", sourceMap))
	})
}

func TestBuildSourceURLMap(t *testing.T) {
	m := BuildSourceURLMap([]model.SourceItem{
		{PMCID: "pmc 1", URL: "http://a"},
		{PMCID: "PMC2"},
		{PMCID: ""},
	})
	assert.Equal(t, "http://a", m["PMC1"])
	assert.Equal(t, model.PMCArticleURLBase+"PMC2/", m["PMC2"])
	assert.Len(t, m, 2)
}
