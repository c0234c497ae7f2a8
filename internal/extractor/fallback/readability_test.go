package fallback

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePage = `<html><head>
<title>Example Article</title>
<meta name="keywords" content="go, testing, readability">
</head><body>
<article>
<h1>Example Article</h1>
<p>This is the first paragraph of a long enough article body so that
Mozilla's readability heuristics recognize it as the main content block
instead of discarding it as boilerplate navigation text.</p>
<p>A second paragraph adds more substance to the extracted article body,
making it clearly the dominant content region of the page.</p>
</article>
</body></html>`

func TestReadabilityExtractorExtractsBodyAndKeywords(t *testing.T) {
	e := New()
	article, err := e.Extract(context.Background(), "https://example.com/a", samplePage)
	require.NoError(t, err)
	assert.NotEmpty(t, article.Body)
	assert.Equal(t, "https://example.com/a", article.URL)
	assert.ElementsMatch(t, []string{"go", "testing", "readability"}, article.Keywords)
}

func TestReadabilityExtractorRejectsEmptyPage(t *testing.T) {
	e := New()
	_, err := e.Extract(context.Background(), "https://example.com/empty", "<html><body></body></html>")
	assert.Error(t, err)
}

func TestKeywordsFallsBackToArticleTags(t *testing.T) {
	html := `<html><head>
<meta property="article:tag" content="golang">
<meta property="article:tag" content="news">
</head><body></body></html>`
	assert.ElementsMatch(t, []string{"golang", "news"}, keywords(html))
}
