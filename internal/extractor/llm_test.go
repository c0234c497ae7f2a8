package extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultLLMConfig(t *testing.T) {
	cfg := DefaultLLMConfig()
	assert.Greater(t, cfg.MaxTokens, 0)
	assert.Greater(t, cfg.Timeout.Seconds(), float64(0))
	assert.NotEmpty(t, cfg.Model)
}

func TestBuildPromptIncludesURLAndContent(t *testing.T) {
	e := &LLMExtractor{config: DefaultLLMConfig()}
	prompt := e.buildPrompt("https://example.com/a", "<html>body</html>")
	assert.Contains(t, prompt, "https://example.com/a")
	assert.Contains(t, prompt, "<html>body</html>")
}
