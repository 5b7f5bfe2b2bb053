package platform

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"genstudio/internal/domain"
)

func TestDefaultCatalogRouting(t *testing.T) {
	c := Default()
	assert.Equal(t, domain.PlatformKindText, c.Kind("twitter"))
	assert.Equal(t, domain.PlatformKindText, c.Kind("Twitter"))
	assert.Equal(t, domain.PlatformKindImage, c.Kind("instagram_image"))
	assert.Equal(t, domain.PlatformKindImage, c.Kind("pinterest_image"))
	assert.Equal(t, domain.PlatformKindText, c.Kind("mastodon"))
}

func TestImagePlatformsCostMoreThanText(t *testing.T) {
	c := Default()
	for _, text := range []string{"twitter", "instagram", "youtube", "mastodon"} {
		for _, img := range []string{"instagram_image", "youtube_thumbnail", "pinterest_image"} {
			assert.Greater(t, c.EstimateCost(img), c.EstimateCost(text), "%s vs %s", img, text)
		}
	}
}

func TestAdaptPrompt(t *testing.T) {
	c := Default()
	prompt := "our new cold brew"

	tweet := c.AdaptPrompt("twitter", prompt)
	assert.Contains(t, tweet, "280 characters")
	assert.True(t, strings.HasSuffix(tweet, prompt))

	assert.Contains(t, c.AdaptPrompt("instagram", prompt), "hashtags")
	assert.Contains(t, c.AdaptPrompt("youtube", prompt), "SEO")
	assert.Equal(t, prompt, c.AdaptPrompt("mastodon", prompt))
	assert.Equal(t, prompt, c.AdaptPrompt("blog", prompt), "no template passes through")
}

func TestAdaptPromptDoesNotInterpretUserInput(t *testing.T) {
	c := Default()
	prompt := "{{.Platform}} and {{ template \"x\" }}"
	assert.True(t, strings.HasSuffix(c.AdaptPrompt("twitter", prompt), prompt))
}

func TestLoadCustomCatalog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
defaults:
  text_cost: 0.01
  image_cost: 0.5
platforms:
  Threads:
    template: "Thread for {{.Platform}}: {{.Prompt}}"
  poster:
    kind: image
`), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Thread for threads: hi", c.AdaptPrompt("threads", "hi"))
	assert.Equal(t, 0.01, c.EstimateCost("threads"))
	assert.Equal(t, 0.5, c.EstimateCost("poster"))
	assert.Equal(t, domain.PlatformKindImage, c.Kind("POSTER"))
}

func TestParseRejectsInvalidCatalogs(t *testing.T) {
	_, err := Parse([]byte("platforms:\n  x:\n    kind: video\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("defaults:\n  text_cost: 1\n  image_cost: 0.5\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("platforms:\n  x:\n    template: \"{{.Prompt\"\n"))
	assert.Error(t, err)
}
