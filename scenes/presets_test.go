package scenes

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildSystemPrompt(t *testing.T) {
	prompt := BuildSystemPrompt("pixel-art", "peaceful", "dusk", "forest")
	assert.Contains(t, prompt, "Generate a background scene image with the following specifications:")
	assert.Contains(t, prompt, "pixel art style")
	assert.Contains(t, prompt, "peaceful atmosphere")
	assert.Contains(t, prompt, "dusk lighting")
	assert.Contains(t, prompt, "forest environment")
}

func TestBuildSystemPromptSkipsUnknownValues(t *testing.T) {
	prompt := BuildSystemPrompt("nope", "", "night", "")
	assert.Contains(t, prompt, "night scene")
	assert.NotContains(t, prompt, "nope")
}

func TestPresetCatalogGroups(t *testing.T) {
	catalog := PresetCatalog()
	assert.NotEmpty(t, catalog.Styles)
	assert.NotEmpty(t, catalog.Moods)
	assert.NotEmpty(t, catalog.TimeOfDay)
	assert.NotEmpty(t, catalog.Environments)
}
