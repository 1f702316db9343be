package characters

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresetCatalogComplete(t *testing.T) {
	catalog := PresetCatalog()

	assert.NotEmpty(t, catalog.BackgroundColors)
	assert.NotEmpty(t, catalog.Styles)
	assert.NotEmpty(t, catalog.Angles)

	for _, group := range [][]PresetOption{catalog.BackgroundColors, catalog.Styles, catalog.Angles} {
		for _, option := range group {
			assert.NotEmpty(t, option.Value)
			assert.NotEmpty(t, option.Label)
			assert.NotEmpty(t, option.PromptFragment)
		}
	}
}

func TestBuildSystemPrompt(t *testing.T) {
	prompt := BuildSystemPrompt("white", "pixel-art", "side")
	require.NotEmpty(t, prompt)
	assert.Contains(t, prompt, "solid white background")
	assert.Contains(t, prompt, "pixel art style")
	assert.Contains(t, prompt, "side profile view")
}

func TestBuildSystemPromptUnknownValues(t *testing.T) {
	// unknown selections contribute nothing
	assert.Empty(t, BuildSystemPrompt("nope", "nope", "nope"))
	assert.Empty(t, BuildSystemPrompt("", "", ""))

	partial := BuildSystemPrompt("", "anime", "")
	assert.Contains(t, partial, "anime style")
	assert.NotContains(t, partial, "background")
}

func TestAngleFragment(t *testing.T) {
	assert.Equal(t, "front-facing view, looking directly at viewer", AngleFragment("front"))
	assert.Empty(t, AngleFragment("upside-down"))
	assert.Empty(t, AngleFragment(""))
}
