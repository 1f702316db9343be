package scenes

import (
	"fmt"
	"strings"
)

// PresetOption pairs a stable preset value with its display label and the
// prompt fragment injected into the model prompt.
type PresetOption struct {
	Value          string `json:"value"`
	Label          string `json:"label"`
	PromptFragment string `json:"prompt_fragment"`
}

// Presets is the full scene preset catalog served to clients.
type Presets struct {
	Styles       []PresetOption `json:"styles"`
	Moods        []PresetOption `json:"moods"`
	TimeOfDay    []PresetOption `json:"time_of_day"`
	Environments []PresetOption `json:"environments"`
}

var catalog = Presets{
	Styles: []PresetOption{
		{Value: "pixel-art", Label: "Pixel Art", PromptFragment: "pixel art style, 16-bit aesthetic, limited color palette"},
		{Value: "anime", Label: "Anime", PromptFragment: "anime style background, cel-shaded, detailed scenery"},
		{Value: "cartoon", Label: "Cartoon", PromptFragment: "cartoon style, bold colors, simplified shapes"},
		{Value: "realistic", Label: "Realistic", PromptFragment: "realistic style, detailed rendering, natural lighting"},
		{Value: "watercolor", Label: "Watercolor", PromptFragment: "watercolor painting style, soft edges, flowing colors"},
		{Value: "flat", Label: "Flat Design", PromptFragment: "flat design style, minimal shading, solid colors, vector-like"},
		{Value: "painterly", Label: "Painterly", PromptFragment: "painterly style, visible brushstrokes, artistic interpretation"},
	},
	Moods: []PresetOption{
		{Value: "peaceful", Label: "Peaceful", PromptFragment: "peaceful atmosphere, calm, serene environment"},
		{Value: "mysterious", Label: "Mysterious", PromptFragment: "mysterious atmosphere, fog, shadows, intrigue"},
		{Value: "dramatic", Label: "Dramatic", PromptFragment: "dramatic atmosphere, intense lighting, high contrast"},
		{Value: "whimsical", Label: "Whimsical", PromptFragment: "whimsical atmosphere, playful, fantastical elements"},
		{Value: "dark", Label: "Dark", PromptFragment: "dark atmosphere, ominous, moody shadows"},
		{Value: "cheerful", Label: "Cheerful", PromptFragment: "cheerful atmosphere, bright colors, uplifting"},
		{Value: "epic", Label: "Epic", PromptFragment: "epic atmosphere, grand scale, awe-inspiring"},
	},
	TimeOfDay: []PresetOption{
		{Value: "dawn", Label: "Dawn", PromptFragment: "dawn lighting, soft pink and orange sky, early morning"},
		{Value: "morning", Label: "Morning", PromptFragment: "morning light, bright daylight, fresh atmosphere"},
		{Value: "noon", Label: "Noon", PromptFragment: "midday sun, harsh shadows, bright illumination"},
		{Value: "afternoon", Label: "Afternoon", PromptFragment: "afternoon light, warm golden tones, long shadows"},
		{Value: "dusk", Label: "Dusk", PromptFragment: "dusk lighting, orange and purple sky, sunset colors"},
		{Value: "night", Label: "Night", PromptFragment: "night scene, moonlight, stars, dark blue tones"},
		{Value: "stormy", Label: "Stormy", PromptFragment: "stormy weather, dark clouds, dramatic lighting"},
	},
	Environments: []PresetOption{
		{Value: "forest", Label: "Forest", PromptFragment: "forest environment, trees, foliage, natural setting"},
		{Value: "castle", Label: "Castle", PromptFragment: "castle interior or exterior, medieval architecture, stone walls"},
		{Value: "village", Label: "Village", PromptFragment: "village setting, small buildings, rustic atmosphere"},
		{Value: "dungeon", Label: "Dungeon", PromptFragment: "dungeon environment, dark corridors, torchlight"},
		{Value: "mountain", Label: "Mountain", PromptFragment: "mountain landscape, peaks, rocky terrain, scenic views"},
		{Value: "beach", Label: "Beach", PromptFragment: "beach scene, ocean, sand, coastal atmosphere"},
		{Value: "city", Label: "City", PromptFragment: "city environment, buildings, urban landscape"},
		{Value: "cave", Label: "Cave", PromptFragment: "cave interior, rock formations, dim lighting"},
		{Value: "space", Label: "Space", PromptFragment: "space environment, stars, planets, cosmic setting"},
		{Value: "underwater", Label: "Underwater", PromptFragment: "underwater scene, ocean floor, aquatic life"},
	},
}

// PresetCatalog returns the scene preset catalog.
func PresetCatalog() Presets {
	return catalog
}

func findFragment(options []PresetOption, value string) string {
	for _, opt := range options {
		if opt.Value == value {
			return opt.PromptFragment
		}
	}
	return ""
}

// BuildSystemPrompt composes the scene generation prompt from the selected
// preset values, skipping any that do not match the catalog.
func BuildSystemPrompt(style, mood, timeOfDay, environment string) string {
	fragments := make([]string, 0, 4)
	for _, f := range []string{
		findFragment(catalog.Styles, style),
		findFragment(catalog.Moods, mood),
		findFragment(catalog.TimeOfDay, timeOfDay),
		findFragment(catalog.Environments, environment),
	} {
		if f != "" {
			fragments = append(fragments, f)
		}
	}
	return fmt.Sprintf("Generate a background scene image with the following specifications: %s.", strings.Join(fragments, ", "))
}
